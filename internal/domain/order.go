package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusOpen   OrderStatus = "open"
	OrderStatusClosed OrderStatus = "closed"
)

type OrderItem struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Subtotal  int64  `json:"subtotal"`
}

type Order struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	AddressID string      `json:"address_id"`
	Items     []OrderItem `json:"items"`
	Total     int64       `json:"total"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// AddItem appends a line item with its subtotal frozen at the given unit
// price. Later catalog price changes never touch existing items.
func (o *Order) AddItem(productID string, quantity int, unitPrice int64) OrderItem {
	item := OrderItem{
		ID:        uuid.New().String(),
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Subtotal:  unitPrice * int64(quantity),
	}
	o.Items = append(o.Items, item)
	o.RecomputeTotal()
	return item
}

// RemoveItem drops the item with the given id and recomputes the total.
// Stock is not restored.
func (o *Order) RemoveItem(itemID string) error {
	for i, item := range o.Items {
		if item.ID == itemID {
			o.Items = append(o.Items[:i], o.Items[i+1:]...)
			o.RecomputeTotal()
			return nil
		}
	}
	return fmt.Errorf("item %s not in order %s: %w", itemID, o.ID, ErrNotFound)
}

// RecomputeTotal derives the order total from the item subtotals. It is
// idempotent and order-independent.
func (o *Order) RecomputeTotal() {
	var total int64
	for _, item := range o.Items {
		total += item.Subtotal
	}
	o.Total = total
}

func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusOpen
}

package domain

import "time"

const (
	TopicOrderCreated = "order.created"
	TopicOrderClosed  = "order.closed"
)

type OrderCreatedEvent struct {
	OrderID   string      `json:"order_id"`
	UserID    string      `json:"user_id"`
	Items     []OrderItem `json:"items"`
	Total     int64       `json:"total"`
	Timestamp time.Time   `json:"timestamp"`
}

type OrderClosedEvent struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Total     int64     `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// Package inventory centralizes the check-then-decrement sequence for
// product stock. All stock mutation in the order path goes through the
// Guard; nothing else decrements stock, and nothing restores it.
package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vicentepr/storefront/internal/domain"
)

// Stock is the slice of the product catalog the guard needs. The
// Postgres catalog repository satisfies it with guarded single-statement
// updates; tests satisfy it with an in-memory fake.
type Stock interface {
	ReserveStock(ctx context.Context, productID string, quantity int) (int64, error)
	ReserveStockBatch(ctx context.Context, reservations []domain.Reservation) ([]int64, error)
}

type Guard struct {
	stock  Stock
	logger *slog.Logger
}

func NewGuard(stock Stock, logger *slog.Logger) *Guard {
	return &Guard{stock: stock, logger: logger}
}

// Reserve checks and decrements stock for a single product, returning
// the unit price captured at the moment of the decrement.
func (g *Guard) Reserve(ctx context.Context, productID string, quantity int) (int64, error) {
	if quantity < 1 {
		return 0, fmt.Errorf("quantity must be at least 1, got %d: %w", quantity, domain.ErrBusinessRule)
	}

	price, err := g.stock.ReserveStock(ctx, productID, quantity)
	if err != nil {
		return 0, err
	}

	g.logger.Info("stock reserved", "product_id", productID, "quantity", quantity, "unit_price", price)
	return price, nil
}

// ReserveAll reserves every requested quantity or none of them. Prices
// line up positionally with the reservations.
func (g *Guard) ReserveAll(ctx context.Context, reservations []domain.Reservation) ([]int64, error) {
	for _, res := range reservations {
		if res.Quantity < 1 {
			return nil, fmt.Errorf("quantity must be at least 1 for product %s, got %d: %w",
				res.ProductID, res.Quantity, domain.ErrBusinessRule)
		}
	}

	prices, err := g.stock.ReserveStockBatch(ctx, reservations)
	if err != nil {
		return nil, err
	}

	g.logger.Info("stock reserved", "reservations", len(reservations))
	return prices, nil
}

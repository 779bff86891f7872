package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/vicentepr/storefront/internal/domain"
)

// Sentinels chain onto the domain error kinds so callers can branch on
// either the specific or the generic error with errors.Is.
var (
	ErrProductNotFound   = fmt.Errorf("product not found: %w", domain.ErrNotFound)
	ErrInsufficientStock = fmt.Errorf("insufficient stock: %w", domain.ErrBusinessRule)
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	product := &domain.Product{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, price, stock, image_url
		FROM products
		WHERE id = $1
	`, id).Scan(&product.ID, &product.Name, &product.Description, &product.Price, &product.Stock, &product.ImageURL)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return product, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, price, stock, image_url
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.ImageURL); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

// FindAllByID returns only the subset of products that exist. Callers
// detecting short lists are responsible for deciding what that means.
func (r *ProductRepository) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, price, stock, image_url
		FROM products
		WHERE id = ANY($1)
		ORDER BY name
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.ImageURL); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *ProductRepository) Save(ctx context.Context, product *domain.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, stock, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = $2, description = $3, price = $4, stock = $5, image_url = $6
	`, product.ID, product.Name, product.Description, product.Price, product.Stock, product.ImageURL)
	return err
}

// ReserveStock decrements stock in a single guarded statement and returns
// the unit price captured at that instant. There is no read-modify-write
// window: concurrent reservations serialize on the row update.
func (r *ProductRepository) ReserveStock(ctx context.Context, productID string, quantity int) (int64, error) {
	return reserveStock(ctx, r.db, productID, quantity)
}

// ReserveStockBatch applies every reservation inside one transaction, so
// a failed reservation rolls back the ones before it. Returned prices are
// positionally aligned with the requests.
func (r *ProductRepository) ReserveStockBatch(ctx context.Context, reservations []domain.Reservation) ([]int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	prices := make([]int64, 0, len(reservations))
	for _, res := range reservations {
		price, err := reserveStock(ctx, tx, res.ProductID, res.Quantity)
		if err != nil {
			return nil, err
		}
		prices = append(prices, price)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return prices, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func reserveStock(ctx context.Context, q queryRower, productID string, quantity int) (int64, error) {
	var price int64
	err := q.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
		RETURNING price
	`, productID, quantity).Scan(&price)
	if err == nil {
		return price, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	// No row updated: either the product is missing or stock is short.
	var exists bool
	if err := q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)
	`, productID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("product %s: %w", productID, ErrProductNotFound)
	}
	return 0, fmt.Errorf("product %s: %w", productID, ErrInsufficientStock)
}

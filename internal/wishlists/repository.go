package wishlists

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/vicentepr/storefront/internal/domain"
)

type WishlistRepository struct {
	db *sql.DB
}

func NewWishlistRepository(db *sql.DB) *WishlistRepository {
	return &WishlistRepository{db: db}
}

func (r *WishlistRepository) Create(ctx context.Context, list *domain.Wishlist) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if list.ID == "" {
		list.ID = uuid.New().String()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wishlists (id, user_id, name)
		VALUES ($1, $2, $3)
	`, list.ID, list.UserID, list.Name)
	if err != nil {
		return err
	}

	if err := insertProducts(ctx, tx, list.ID, list.ProductIDs); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *WishlistRepository) Save(ctx context.Context, list *domain.Wishlist) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		UPDATE wishlists SET name = $2 WHERE id = $1
	`, list.ID, list.Name)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM wishlist_products WHERE wishlist_id = $1`, list.ID)
	if err != nil {
		return err
	}

	if err := insertProducts(ctx, tx, list.ID, list.ProductIDs); err != nil {
		return err
	}

	return tx.Commit()
}

func insertProducts(ctx context.Context, tx *sql.Tx, listID string, productIDs []string) error {
	for pos, productID := range productIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO wishlist_products (wishlist_id, product_id, position)
			VALUES ($1, $2, $3)
		`, listID, productID, pos)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *WishlistRepository) GetByID(ctx context.Context, id string) (*domain.Wishlist, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *WishlistRepository) GetByUserID(ctx context.Context, userID string) (*domain.Wishlist, error) {
	return r.getOne(ctx, `WHERE user_id = $1`, userID)
}

func (r *WishlistRepository) getOne(ctx context.Context, where string, arg any) (*domain.Wishlist, error) {
	list := &domain.Wishlist{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name
		FROM wishlists `+where,
		arg).Scan(&list.ID, &list.UserID, &list.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id
		FROM wishlist_products
		WHERE wishlist_id = $1
		ORDER BY position
	`, list.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var productID string
		if err := rows.Scan(&productID); err != nil {
			return nil, err
		}
		list.ProductIDs = append(list.ProductIDs, productID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (r *WishlistRepository) ExistsForUser(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM wishlists WHERE user_id = $1)
	`, userID).Scan(&exists)
	return exists, err
}

func (r *WishlistRepository) Delete(ctx context.Context, id string) error {
	// wishlist_products cascade at the schema level
	_, err := r.db.ExecContext(ctx, `DELETE FROM wishlists WHERE id = $1`, id)
	return err
}

func (r *WishlistRepository) List(ctx context.Context) ([]domain.Wishlist, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name
		FROM wishlists
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	listMap := make(map[string]*domain.Wishlist)
	var ids []string

	for rows.Next() {
		var list domain.Wishlist
		if err := rows.Scan(&list.ID, &list.UserID, &list.Name); err != nil {
			return nil, err
		}
		list.ProductIDs = []string{}
		listMap[list.ID] = &list
		ids = append(ids, list.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []domain.Wishlist{}, nil
	}

	productRows, err := r.db.QueryContext(ctx, `
		SELECT wishlist_id, product_id
		FROM wishlist_products
		WHERE wishlist_id = ANY($1)
		ORDER BY position
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = productRows.Close() }()

	for productRows.Next() {
		var listID, productID string
		if err := productRows.Scan(&listID, &productID); err != nil {
			return nil, err
		}
		list := listMap[listID]
		list.ProductIDs = append(list.ProductIDs, productID)
	}

	if err := productRows.Err(); err != nil {
		return nil, err
	}

	lists := make([]domain.Wishlist, 0, len(ids))
	for _, id := range ids {
		lists = append(lists, *listMap[id])
	}

	return lists, nil
}

// Package directory provides read access to users and delivery
// addresses. Registration and address CRUD live in another system; the
// storefront only resolves references.
package directory

import (
	"context"
	"database/sql"

	"github.com/vicentepr/storefront/internal/domain"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	user := &domain.User{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, email
		FROM users
		WHERE id = $1
	`, id).Scan(&user.ID, &user.Name, &user.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return user, nil
}

type AddressRepository struct {
	db *sql.DB
}

func NewAddressRepository(db *sql.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

func (r *AddressRepository) FindAddressByID(ctx context.Context, id string) (*domain.Address, error) {
	address := &domain.Address{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, street, city, state, zip
		FROM addresses
		WHERE id = $1
	`, id).Scan(&address.ID, &address.UserID, &address.Street, &address.City, &address.State, &address.Zip)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return address, nil
}

package wishlists

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vicentepr/storefront/internal/domain"
)

type Repository interface {
	Create(ctx context.Context, list *domain.Wishlist) error
	Save(ctx context.Context, list *domain.Wishlist) error
	GetByID(ctx context.Context, id string) (*domain.Wishlist, error)
	GetByUserID(ctx context.Context, userID string) (*domain.Wishlist, error)
	ExistsForUser(ctx context.Context, userID string) (bool, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Wishlist, error)
}

type ProductCatalog interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error)
}

type UserDirectory interface {
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
}

type CreateWishlistRequest struct {
	UserID     string   `json:"user_id"`
	Name       string   `json:"name"`
	ProductIDs []string `json:"product_ids"`
}

type Service struct {
	repo    Repository
	catalog ProductCatalog
	users   UserDirectory
	logger  *slog.Logger
}

func NewService(repo Repository, catalog ProductCatalog, users UserDirectory, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		users:   users,
		logger:  logger,
	}
}

// CreateWithProducts creates the user's wishlist. A user owns at most
// one list, and a list must reference at least one existing product.
func (s *Service) CreateWithProducts(ctx context.Context, req CreateWishlistRequest) (*domain.Wishlist, error) {
	user, err := s.users.FindUserByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", req.UserID, domain.ErrNotFound)
	}

	exists, err := s.repo.ExistsForUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("check existing wishlist: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("user %s already has a wishlist: %w", req.UserID, domain.ErrBusinessRule)
	}

	productIDs, err := s.validateProducts(ctx, req.ProductIDs)
	if err != nil {
		return nil, err
	}

	list := &domain.Wishlist{
		UserID:     req.UserID,
		Name:       req.Name,
		ProductIDs: productIDs,
	}

	if err := s.repo.Create(ctx, list); err != nil {
		return nil, fmt.Errorf("persist wishlist: %w", err)
	}

	s.logger.Info("wishlist created", "wishlist_id", list.ID, "user_id", list.UserID, "products", len(list.ProductIDs))
	return list, nil
}

// UpdateWithProducts replaces the list's name and product set, under the
// same at-least-one-existing-product rule as creation.
func (s *Service) UpdateWithProducts(ctx context.Context, listID string, req CreateWishlistRequest) (*domain.Wishlist, error) {
	list, err := s.resolve(ctx, listID)
	if err != nil {
		return nil, err
	}

	productIDs, err := s.validateProducts(ctx, req.ProductIDs)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		list.Name = req.Name
	}
	list.ProductIDs = productIDs

	if err := s.repo.Save(ctx, list); err != nil {
		return nil, fmt.Errorf("persist wishlist: %w", err)
	}

	s.logger.Info("wishlist updated", "wishlist_id", list.ID, "products", len(list.ProductIDs))
	return list, nil
}

func (s *Service) AddProduct(ctx context.Context, listID, productID string) (*domain.Wishlist, error) {
	list, err := s.resolve(ctx, listID)
	if err != nil {
		return nil, err
	}

	product, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("look up product: %w", err)
	}
	if product == nil {
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}

	if list.Contains(productID) {
		return nil, fmt.Errorf("product %s already in wishlist %s: %w", productID, listID, domain.ErrBusinessRule)
	}

	list.ProductIDs = append(list.ProductIDs, productID)

	if err := s.repo.Save(ctx, list); err != nil {
		return nil, fmt.Errorf("persist wishlist: %w", err)
	}

	s.logger.Info("product added to wishlist", "wishlist_id", listID, "product_id", productID)
	return list, nil
}

func (s *Service) RemoveProduct(ctx context.Context, listID, productID string) (*domain.Wishlist, error) {
	list, err := s.resolve(ctx, listID)
	if err != nil {
		return nil, err
	}

	if !list.Contains(productID) {
		return nil, fmt.Errorf("product %s not in wishlist %s: %w", productID, listID, domain.ErrNotFound)
	}

	kept := list.ProductIDs[:0]
	for _, id := range list.ProductIDs {
		if id != productID {
			kept = append(kept, id)
		}
	}
	list.ProductIDs = kept

	if err := s.repo.Save(ctx, list); err != nil {
		return nil, fmt.Errorf("persist wishlist: %w", err)
	}

	s.logger.Info("product removed from wishlist", "wishlist_id", listID, "product_id", productID)
	return list, nil
}

func (s *Service) Delete(ctx context.Context, listID string) error {
	if _, err := s.resolve(ctx, listID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, listID); err != nil {
		return fmt.Errorf("delete wishlist: %w", err)
	}

	s.logger.Info("wishlist deleted", "wishlist_id", listID)
	return nil
}

func (s *Service) GetByID(ctx context.Context, listID string) (*domain.Wishlist, error) {
	return s.resolve(ctx, listID)
}

func (s *Service) GetByUserID(ctx context.Context, userID string) (*domain.Wishlist, error) {
	list, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("look up wishlist: %w", err)
	}
	if list == nil {
		return nil, fmt.Errorf("no wishlist for user %s: %w", userID, domain.ErrNotFound)
	}
	return list, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Wishlist, error) {
	return s.repo.List(ctx)
}

// validateProducts resolves the requested ids against the catalog, which
// returns only the subset that exist. An empty result is a rule
// violation; a partial one points at the missing products.
func (s *Service) validateProducts(ctx context.Context, ids []string) ([]string, error) {
	products, err := s.catalog.FindAllByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("look up products: %w", err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("wishlist must reference at least one existing product: %w", domain.ErrBusinessRule)
	}

	found := make(map[string]bool, len(products))
	for _, p := range products {
		found[p.ID] = true
	}

	var missing []string
	seen := make(map[string]bool, len(ids))
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if !found[id] {
			missing = append(missing, id)
			continue
		}
		kept = append(kept, id)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("products %s: %w", strings.Join(missing, ", "), domain.ErrNotFound)
	}

	return kept, nil
}

func (s *Service) resolve(ctx context.Context, listID string) (*domain.Wishlist, error) {
	list, err := s.repo.GetByID(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("look up wishlist: %w", err)
	}
	if list == nil {
		return nil, fmt.Errorf("wishlist %s: %w", listID, domain.ErrNotFound)
	}
	return list, nil
}

package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/vicentepr/storefront/internal/domain"
)

// Collaborators are narrow interfaces so the service can be exercised
// against in-memory fakes. Postgres repositories satisfy them in
// production; lookups return (nil, nil) when the entity does not exist.

type Repository interface {
	Create(ctx context.Context, order *domain.Order) error
	Save(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Order, error)
}

type UserDirectory interface {
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
}

type AddressDirectory interface {
	FindAddressByID(ctx context.Context, id string) (*domain.Address, error)
}

type StockGuard interface {
	Reserve(ctx context.Context, productID string, quantity int) (int64, error)
	ReserveAll(ctx context.Context, reservations []domain.Reservation) ([]int64, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

type CreateOrderRequest struct {
	UserID    string        `json:"user_id"`
	AddressID string        `json:"address_id"`
	Items     []ItemRequest `json:"items"`
}

type ItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// UpdateOrderRequest is a patch: nil fields are left untouched.
type UpdateOrderRequest struct {
	Status    *domain.OrderStatus `json:"status,omitempty"`
	UserID    *string             `json:"user_id,omitempty"`
	AddressID *string             `json:"address_id,omitempty"`
}

type Service struct {
	repo      Repository
	users     UserDirectory
	addresses AddressDirectory
	guard     StockGuard
	events    EventPublisher
	logger    *slog.Logger

	ordersCreated metric.Int64Counter
	ordersClosed  metric.Int64Counter
}

func NewService(repo Repository, users UserDirectory, addresses AddressDirectory, guard StockGuard, events EventPublisher, logger *slog.Logger) (*Service, error) {
	meter := otel.Meter("orders")

	created, err := meter.Int64Counter("orders.created",
		metric.WithDescription("Orders successfully created"))
	if err != nil {
		return nil, err
	}

	closed, err := meter.Int64Counter("orders.closed",
		metric.WithDescription("Orders transitioned to closed"))
	if err != nil {
		return nil, err
	}

	return &Service{
		repo:          repo,
		users:         users,
		addresses:     addresses,
		guard:         guard,
		events:        events,
		logger:        logger,
		ordersCreated: created,
		ordersClosed:  closed,
	}, nil
}

// CreateWithItems builds and persists a new open order. Stock for every
// item is reserved all-or-nothing before anything is written, so a
// failed reservation never leaves earlier decrements behind.
func (s *Service) CreateWithItems(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	user, err := s.users.FindUserByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", req.UserID, domain.ErrNotFound)
	}

	address, err := s.addresses.FindAddressByID(ctx, req.AddressID)
	if err != nil {
		return nil, fmt.Errorf("look up address: %w", err)
	}
	if address == nil {
		return nil, fmt.Errorf("address %s: %w", req.AddressID, domain.ErrNotFound)
	}

	if len(req.Items) == 0 {
		return nil, fmt.Errorf("order must contain at least one item: %w", domain.ErrBusinessRule)
	}

	reservations := make([]domain.Reservation, len(req.Items))
	for i, item := range req.Items {
		reservations[i] = domain.Reservation{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	prices, err := s.guard.ReserveAll(ctx, reservations)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		UserID:    req.UserID,
		AddressID: req.AddressID,
		Status:    domain.OrderStatusOpen,
		CreatedAt: time.Now().UTC(),
	}
	for i, item := range req.Items {
		order.AddItem(item.ProductID, item.Quantity, prices[i])
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	s.ordersCreated.Add(ctx, 1)
	s.publishCreated(ctx, order)

	s.logger.Info("order created", "order_id", order.ID, "user_id", order.UserID, "total", order.Total)
	return order, nil
}

// AddItem reserves stock for one more line item on an open order.
func (s *Service) AddItem(ctx context.Context, orderID, productID string, quantity int) (*domain.Order, error) {
	order, err := s.resolve(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.IsOpen() {
		return nil, fmt.Errorf("order %s is %s, items can only be added while open: %w",
			order.ID, order.Status, domain.ErrBusinessRule)
	}

	price, err := s.guard.Reserve(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}

	order.AddItem(productID, quantity, price)

	if err := s.repo.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	s.logger.Info("item added", "order_id", order.ID, "product_id", productID, "quantity", quantity)
	return order, nil
}

// RemoveItem drops a line item and recomputes the total. Stock is not
// restored, matching the rest of the lifecycle.
func (s *Service) RemoveItem(ctx context.Context, orderID, itemID string) (*domain.Order, error) {
	order, err := s.resolve(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := order.RemoveItem(itemID); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	s.logger.Info("item removed", "order_id", order.ID, "item_id", itemID, "total", order.Total)
	return order, nil
}

// Update applies the provided fields. Setting status back to open on a
// closed order is allowed; closing publishes an order.closed event.
func (s *Service) Update(ctx context.Context, orderID string, req UpdateOrderRequest) (*domain.Order, error) {
	order, err := s.resolve(ctx, orderID)
	if err != nil {
		return nil, err
	}

	wasOpen := order.IsOpen()

	if req.Status != nil {
		switch *req.Status {
		case domain.OrderStatusOpen, domain.OrderStatusClosed:
			order.Status = *req.Status
		default:
			return nil, fmt.Errorf("unknown order status %q: %w", *req.Status, domain.ErrBusinessRule)
		}
	}

	if req.UserID != nil {
		user, err := s.users.FindUserByID(ctx, *req.UserID)
		if err != nil {
			return nil, fmt.Errorf("look up user: %w", err)
		}
		if user == nil {
			return nil, fmt.Errorf("user %s: %w", *req.UserID, domain.ErrNotFound)
		}
		order.UserID = *req.UserID
	}

	if req.AddressID != nil {
		address, err := s.addresses.FindAddressByID(ctx, *req.AddressID)
		if err != nil {
			return nil, fmt.Errorf("look up address: %w", err)
		}
		if address == nil {
			return nil, fmt.Errorf("address %s: %w", *req.AddressID, domain.ErrNotFound)
		}
		order.AddressID = *req.AddressID
	}

	if err := s.repo.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	if wasOpen && order.Status == domain.OrderStatusClosed {
		s.ordersClosed.Add(ctx, 1)
		s.publishClosed(ctx, order)
	}

	s.logger.Info("order updated", "order_id", order.ID, "status", order.Status)
	return order, nil
}

// Delete removes an existing order and its items. Stock reserved by the
// order is not restored.
func (s *Service) Delete(ctx context.Context, orderID string) error {
	if _, err := s.resolve(ctx, orderID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, orderID); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	s.logger.Info("order deleted", "order_id", orderID)
	return nil
}

func (s *Service) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.resolve(ctx, orderID)
}

func (s *Service) List(ctx context.Context) ([]domain.Order, error) {
	return s.repo.List(ctx)
}

func (s *Service) resolve(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("look up order: %w", err)
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return order, nil
}

// Event publication is best-effort: a broker outage must not fail an
// operation that already committed.
func (s *Service) publishCreated(ctx context.Context, order *domain.Order) {
	if s.events == nil {
		return
	}
	event := domain.OrderCreatedEvent{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Items:     order.Items,
		Total:     order.Total,
		Timestamp: order.CreatedAt,
	}
	if err := s.events.Publish(ctx, domain.TopicOrderCreated, order.ID, event); err != nil {
		s.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
	}
}

func (s *Service) publishClosed(ctx context.Context, order *domain.Order) {
	if s.events == nil {
		return
	}
	event := domain.OrderClosedEvent{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Total:     order.Total,
		Timestamp: time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, domain.TopicOrderClosed, order.ID, event); err != nil {
		s.logger.Error("failed to publish order closed event", "error", err, "order_id", order.ID)
	}
}

//go:build integration

package test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/vicentepr/storefront/internal/catalog"
	"github.com/vicentepr/storefront/internal/directory"
	"github.com/vicentepr/storefront/internal/domain"
	"github.com/vicentepr/storefront/internal/inventory"
	"github.com/vicentepr/storefront/internal/messaging"
	"github.com/vicentepr/storefront/internal/notifier"
	"github.com/vicentepr/storefront/internal/orders"
	"github.com/vicentepr/storefront/internal/wishlists"
)

// Seeded by the migrations.
const (
	seedUserID    = "11111111-1111-1111-1111-111111111111"
	seedAddressID = "aaaaaaaa-1111-1111-1111-111111111111"
	seedKeyboard  = "p1111111-1111-1111-1111-111111111111" // 34900, stock 50
	seedMouse     = "p2222222-2222-2222-2222-222222222222" // 12900, stock 120
	seedDock      = "p3333333-3333-3333-3333-333333333333" // 21500, stock 35
)

type storefront struct {
	db     *sql.DB
	orders *orders.Service
	mux    *http.ServeMux
}

func newStorefront(t *testing.T, connStr string) *storefront {
	t.Helper()

	db, err := OpenDB(connStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	products := catalog.NewProductRepository(db)
	users := directory.NewUserRepository(db)
	addresses := directory.NewAddressRepository(db)
	guard := inventory.NewGuard(products, logger)

	orderRepo := orders.NewOrderRepository(db)
	orderService, err := orders.NewService(orderRepo, users, addresses, guard, nil, logger)
	if err != nil {
		t.Fatalf("failed to create order service: %v", err)
	}
	orderHandler := orders.NewHandler(orderService, logger)

	wishlistRepo := wishlists.NewWishlistRepository(db)
	wishlistService := wishlists.NewService(wishlistRepo, products, users, logger)
	wishlistHandler := wishlists.NewHandler(wishlistService, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", orderHandler.HandleCreate)
	mux.HandleFunc("GET /orders", orderHandler.HandleList)
	mux.HandleFunc("GET /orders/{id}", orderHandler.HandleGet)
	mux.HandleFunc("PATCH /orders/{id}", orderHandler.HandleUpdate)
	mux.HandleFunc("DELETE /orders/{id}", orderHandler.HandleDelete)
	mux.HandleFunc("POST /orders/{id}/items", orderHandler.HandleAddItem)
	mux.HandleFunc("DELETE /orders/{id}/items/{itemId}", orderHandler.HandleRemoveItem)
	mux.HandleFunc("GET /wishlists", wishlistHandler.HandleList)
	mux.HandleFunc("POST /wishlists", wishlistHandler.HandleCreate)
	mux.HandleFunc("GET /wishlists/{id}", wishlistHandler.HandleGet)
	mux.HandleFunc("POST /wishlists/{id}/products/{productId}", wishlistHandler.HandleAddProduct)
	mux.HandleFunc("DELETE /wishlists/{id}/products/{productId}", wishlistHandler.HandleRemoveProduct)

	return &storefront{db: db, orders: orderService, mux: mux}
}

func (s *storefront) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *storefront) stockOf(t *testing.T, productID string) int {
	t.Helper()

	var stock int
	if err := s.db.QueryRow(`SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("failed to read stock for %s: %v", productID, err)
	}
	return stock
}

func TestOrderCreationFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	app := newStorefront(t, pg.ConnStr)

	initialKeyboard := app.stockOf(t, seedKeyboard)
	initialMouse := app.stockOf(t, seedMouse)

	reqBody := `{
		"user_id": "` + seedUserID + `",
		"address_id": "` + seedAddressID + `",
		"items": [
			{"product_id": "` + seedKeyboard + `", "quantity": 2},
			{"product_id": "` + seedMouse + `", "quantity": 1}
		]
	}`
	rec := app.do(t, http.MethodPost, "/orders", reqBody)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var created domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if created.ID == "" {
		t.Fatal("expected order ID to be set")
	}
	if created.Status != domain.OrderStatusOpen {
		t.Fatalf("expected status %s, got %s", domain.OrderStatusOpen, created.Status)
	}
	if want := int64(2*34900 + 12900); created.Total != want {
		t.Fatalf("expected total %d, got %d", want, created.Total)
	}
	if len(created.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(created.Items))
	}

	if got := app.stockOf(t, seedKeyboard); got != initialKeyboard-2 {
		t.Fatalf("expected keyboard stock %d, got %d", initialKeyboard-2, got)
	}
	if got := app.stockOf(t, seedMouse); got != initialMouse-1 {
		t.Fatalf("expected mouse stock %d, got %d", initialMouse-1, got)
	}

	fetched, err := app.orders.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("failed to fetch order: %v", err)
	}
	if fetched.Total != created.Total {
		t.Fatalf("persisted total mismatch: expected %d, got %d", created.Total, fetched.Total)
	}
}

func TestInsufficientStockRollsBack(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	app := newStorefront(t, pg.ConnStr)

	initialKeyboard := app.stockOf(t, seedKeyboard)
	initialDock := app.stockOf(t, seedDock)

	reqBody := `{
		"user_id": "` + seedUserID + `",
		"address_id": "` + seedAddressID + `",
		"items": [
			{"product_id": "` + seedKeyboard + `", "quantity": 2},
			{"product_id": "` + seedDock + `", "quantity": 9999}
		]
	}`
	rec := app.do(t, http.MethodPost, "/orders", reqBody)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d: %s", http.StatusConflict, rec.Code, rec.Body.String())
	}

	if got := app.stockOf(t, seedKeyboard); got != initialKeyboard {
		t.Fatalf("expected keyboard stock unchanged at %d, got %d", initialKeyboard, got)
	}
	if got := app.stockOf(t, seedDock); got != initialDock {
		t.Fatalf("expected dock stock unchanged at %d, got %d", initialDock, got)
	}

	all, err := app.orders.List(ctx)
	if err != nil {
		t.Fatalf("failed to list orders: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no orders persisted, got %d", len(all))
	}
}

func TestOrderLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	app := newStorefront(t, pg.ConnStr)

	reqBody := `{
		"user_id": "` + seedUserID + `",
		"address_id": "` + seedAddressID + `",
		"items": [{"product_id": "` + seedKeyboard + `", "quantity": 1}]
	}`
	rec := app.do(t, http.MethodPost, "/orders", reqBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var order domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&order); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}

	rec = app.do(t, http.MethodPost, "/orders/"+order.ID+"/items",
		`{"product_id": "`+seedMouse+`", "quantity": 3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d adding item, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if err := json.NewDecoder(rec.Body).Decode(&order); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}
	if want := int64(34900 + 3*12900); order.Total != want {
		t.Fatalf("expected total %d after add, got %d", want, order.Total)
	}

	rec = app.do(t, http.MethodPatch, "/orders/"+order.ID, `{"status": "closed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d closing order, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = app.do(t, http.MethodPost, "/orders/"+order.ID+"/items",
		`{"product_id": "`+seedDock+`", "quantity": 1}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d adding to closed order, got %d: %s", http.StatusConflict, rec.Code, rec.Body.String())
	}

	stockBefore := app.stockOf(t, seedMouse)
	itemID := order.Items[1].ID
	rec = app.do(t, http.MethodDelete, "/orders/"+order.ID+"/items/"+itemID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d removing item, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if err := json.NewDecoder(rec.Body).Decode(&order); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}
	if order.Total != 34900 {
		t.Fatalf("expected total 34900 after removal, got %d", order.Total)
	}
	if got := app.stockOf(t, seedMouse); got != stockBefore {
		t.Fatalf("expected mouse stock unchanged at %d after removal, got %d", stockBefore, got)
	}

	rec = app.do(t, http.MethodDelete, "/orders/"+order.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d deleting order, got %d: %s", http.StatusNoContent, rec.Code, rec.Body.String())
	}

	gone, err := app.orders.GetByID(ctx, order.ID)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got order=%v err=%v", gone, err)
	}

	var orphans int
	if err := app.db.QueryRow(`SELECT COUNT(*) FROM order_items WHERE order_id = $1`, order.ID).Scan(&orphans); err != nil {
		t.Fatalf("failed to count order items: %v", err)
	}
	if orphans != 0 {
		t.Fatalf("expected no orphaned items, got %d", orphans)
	}
}

func TestWishlistFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	app := newStorefront(t, pg.ConnStr)

	reqBody := `{
		"user_id": "` + seedUserID + `",
		"name": "Desk refresh",
		"product_ids": ["` + seedKeyboard + `", "` + seedMouse + `"]
	}`
	rec := app.do(t, http.MethodPost, "/wishlists", reqBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var list domain.Wishlist
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode wishlist: %v", err)
	}
	if len(list.ProductIDs) != 2 {
		t.Fatalf("expected 2 products, got %d", len(list.ProductIDs))
	}

	rec = app.do(t, http.MethodPost, "/wishlists", reqBody)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d for second wishlist, got %d: %s", http.StatusConflict, rec.Code, rec.Body.String())
	}

	rec = app.do(t, http.MethodPost, "/wishlists/"+list.ID+"/products/"+seedKeyboard, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d for duplicate product, got %d: %s", http.StatusConflict, rec.Code, rec.Body.String())
	}

	rec = app.do(t, http.MethodDelete, "/wishlists/"+list.ID+"/products/"+seedDock, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d removing absent product, got %d: %s", http.StatusNotFound, rec.Code, rec.Body.String())
	}

	rec = app.do(t, http.MethodPost, "/wishlists/"+list.ID+"/products/"+seedDock, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d adding product, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode wishlist: %v", err)
	}
	if len(list.ProductIDs) != 3 {
		t.Fatalf("expected 3 products, got %d", len(list.ProductIDs))
	}

	rec = app.do(t, http.MethodGet, "/wishlists", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d listing wishlists, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var lists []domain.Wishlist
	if err := json.NewDecoder(rec.Body).Decode(&lists); err != nil {
		t.Fatalf("failed to decode wishlists: %v", err)
	}
	if len(lists) != 1 {
		t.Fatalf("expected 1 wishlist, got %d", len(lists))
	}
	if len(lists[0].ProductIDs) != 3 {
		t.Fatalf("expected 3 products in listed wishlist, got %d", len(lists[0].ProductIDs))
	}
}

type emailCapture struct {
	mu     sync.Mutex
	emails []map[string]string
}

func (e *emailCapture) handler(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	e.emails = append(e.emails, req)
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"status":"sent"}`)
}

func (e *emailCapture) getEmails() []map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]map[string]string, len(e.emails))
	copy(result, e.emails)
	return result
}

func TestKafkaNotificationFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	brokers, cleanup := SetupKafka(ctx, t)
	defer cleanup()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	emailCap := &emailCapture{}
	emailMux := http.NewServeMux()
	emailMux.HandleFunc("POST /send", emailCap.handler)
	emailServer := httptest.NewServer(emailMux)
	defer emailServer.Close()

	notifierHandler := notifier.NewHandler(emailServer.URL, &http.Client{Timeout: 10 * time.Second}, logger)

	producer := messaging.NewProducer(brokers)
	defer func() { _ = producer.Close() }()

	event := domain.OrderCreatedEvent{
		OrderID:   "order-kafka-1",
		UserID:    seedUserID,
		Total:     34900,
		Timestamp: time.Now().UTC(),
	}
	if err := producer.Publish(ctx, domain.TopicOrderCreated, event.OrderID, event); err != nil {
		t.Fatalf("failed to publish event: %v", err)
	}

	consumer := messaging.NewConsumer(brokers, domain.TopicOrderCreated, "integration-test",
		messaging.WithStartOffset(kafkago.FirstOffset))
	defer func() { _ = consumer.Close() }()

	consumeCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()

	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(consumeCtx, func(ctx context.Context, payload []byte) error {
			err := notifierHandler.HandleOrderCreated(ctx, payload)
			stopConsumer()
			return err
		})
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("consumer failed: %v", err)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event consumption")
	}

	emails := emailCap.getEmails()
	if len(emails) != 1 {
		t.Fatalf("expected 1 email, got %d", len(emails))
	}
	if !strings.Contains(emails[0]["subject"], "Order received") {
		t.Fatalf("expected order received email, got subject: %s", emails[0]["subject"])
	}
	if !strings.Contains(emails[0]["subject"], event.OrderID) {
		t.Fatalf("expected subject to contain order ID %s, got: %s", event.OrderID, emails[0]["subject"])
	}
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/vicentepr/storefront/internal/catalog"
	"github.com/vicentepr/storefront/internal/directory"
	"github.com/vicentepr/storefront/internal/inventory"
	"github.com/vicentepr/storefront/internal/messaging"
	"github.com/vicentepr/storefront/internal/orders"
	"github.com/vicentepr/storefront/internal/telemetry"
	"github.com/vicentepr/storefront/internal/wishlists"
)

const (
	serviceName    = "storefront"
	serviceVersion = "0.1.0"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var producer *messaging.Producer
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers != "" {
		producer = messaging.NewProducer(strings.Split(kafkaBrokers, ","))
		defer func() { _ = producer.Close() }()
	}

	products := catalog.NewProductRepository(db)
	users := directory.NewUserRepository(db)
	addresses := directory.NewAddressRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	wishlistRepo := wishlists.NewWishlistRepository(db)

	guard := inventory.NewGuard(products, logger)

	// a nil *Producer assigned to the interface would not compare equal to nil
	var events orders.EventPublisher
	if producer != nil {
		events = producer
	}

	orderService, err := orders.NewService(orderRepo, users, addresses, guard, events, logger)
	if err != nil {
		logger.Error("failed to create order service", "error", err)
		os.Exit(1)
	}
	orderHandler := orders.NewHandler(orderService, logger)

	wishlistService := wishlists.NewService(wishlistRepo, products, users, logger)
	wishlistHandler := wishlists.NewHandler(wishlistService, logger)

	productHandler := catalog.NewHandler(products, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(orderHandler.HandleList))
	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(orderHandler.HandleCreate))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleGet))
	mux.HandleFunc("PATCH /orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleUpdate))
	mux.HandleFunc("DELETE /orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleDelete))
	mux.HandleFunc("POST /orders/{id}/items", telemetry.WithHTTPRoute(orderHandler.HandleAddItem))
	mux.HandleFunc("DELETE /orders/{id}/items/{itemId}", telemetry.WithHTTPRoute(orderHandler.HandleRemoveItem))

	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(productHandler.HandleList))
	mux.HandleFunc("POST /products", telemetry.WithHTTPRoute(productHandler.HandleSave))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(productHandler.HandleGet))

	mux.HandleFunc("GET /wishlists", telemetry.WithHTTPRoute(wishlistHandler.HandleList))
	mux.HandleFunc("POST /wishlists", telemetry.WithHTTPRoute(wishlistHandler.HandleCreate))
	mux.HandleFunc("GET /wishlists/{id}", telemetry.WithHTTPRoute(wishlistHandler.HandleGet))
	mux.HandleFunc("PUT /wishlists/{id}", telemetry.WithHTTPRoute(wishlistHandler.HandleUpdate))
	mux.HandleFunc("DELETE /wishlists/{id}", telemetry.WithHTTPRoute(wishlistHandler.HandleDelete))
	mux.HandleFunc("POST /wishlists/{id}/products/{productId}", telemetry.WithHTTPRoute(wishlistHandler.HandleAddProduct))
	mux.HandleFunc("DELETE /wishlists/{id}/products/{productId}", telemetry.WithHTTPRoute(wishlistHandler.HandleRemoveProduct))
	mux.HandleFunc("GET /users/{userId}/wishlist", telemetry.WithHTTPRoute(wishlistHandler.HandleGetByUser))

	mux.Handle("GET /metrics", metricsHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting storefront service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

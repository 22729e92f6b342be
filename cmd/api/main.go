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
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pharmadepot/storefront/internal/cart"
	"github.com/pharmadepot/storefront/internal/catalog"
	"github.com/pharmadepot/storefront/internal/checkout"
	"github.com/pharmadepot/storefront/internal/identity"
	"github.com/pharmadepot/storefront/internal/messaging"
	"github.com/pharmadepot/storefront/internal/notification"
	"github.com/pharmadepot/storefront/internal/orders"
	"github.com/pharmadepot/storefront/internal/telemetry"
)

const serviceVersion = "0.1.0"

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "storefront-api", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("storefront-api", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

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

	var productCache catalog.ProductCache
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		productCache = catalog.NewRedisCache(redis.NewClient(&redis.Options{Addr: redisAddr}))
	}

	catalogService := catalog.NewService(catalog.NewProductRepository(db), productCache, logger)
	catalogHandler := catalog.NewHandler(catalogService, logger)

	cartService := cart.NewService(cart.NewRepository(db), logger)
	cartHandler := cart.NewHandler(cartService, logger)

	orderRepo := orders.NewRepository(db)
	orderHandler := orders.NewHandler(orderRepo, logger)

	checkoutService, err := checkout.NewService(db, orderRepo, logger)
	if err != nil {
		logger.Error("failed to create checkout service", "error", err)
		os.Exit(1)
	}
	checkoutHandler := checkout.NewHandler(checkoutService, logger)

	pollerCtx, stopPoller := context.WithCancel(ctx)
	defer stopPoller()

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		logger.Warn("KAFKA_BROKERS not set, notification outbox will not be drained")
	} else {
		producer := messaging.NewProducer(strings.Split(kafkaBrokers, ","), "notification.requested")
		defer func() { _ = producer.Close() }()

		poller := notification.NewPoller(notification.NewOutboxRepository(db), producer, logger)
		go poller.Run(pollerCtx)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(catalogHandler.HandleList))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleGet))
	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(cartHandler.HandleGet))
	mux.HandleFunc("POST /cart/items", telemetry.WithHTTPRoute(cartHandler.HandleAddItem))
	mux.HandleFunc("PATCH /cart/items/{productId}", telemetry.WithHTTPRoute(cartHandler.HandleUpdateQuantity))
	mux.HandleFunc("DELETE /cart/items/{productId}", telemetry.WithHTTPRoute(cartHandler.HandleRemoveItem))
	mux.HandleFunc("DELETE /cart", telemetry.WithHTTPRoute(cartHandler.HandleClear))
	mux.HandleFunc("POST /checkout", telemetry.WithHTTPRoute(checkoutHandler.HandleCheckout))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(orderHandler.HandleListMine))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleGet))
	mux.HandleFunc("GET /admin/orders", telemetry.WithHTTPRoute(orderHandler.HandleAdminList))
	mux.HandleFunc("PATCH /admin/orders/{id}/status", telemetry.WithHTTPRoute(orderHandler.HandleUpdateStatus))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(identity.Middleware(mux), "storefront-api",
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
		logger.Info("starting storefront api", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	stopPoller()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

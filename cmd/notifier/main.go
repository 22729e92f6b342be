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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pharmadepot/storefront/internal/messaging"
	"github.com/pharmadepot/storefront/internal/notification"
	"github.com/pharmadepot/storefront/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "storefront-notifier", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	adminOrderURL := os.Getenv("ADMIN_ORDER_MAIL_URL")
	if adminOrderURL == "" {
		logger.Error("ADMIN_ORDER_MAIL_URL environment variable is required")
		os.Exit(1)
	}

	customerOrderURL := os.Getenv("CUSTOMER_ORDER_MAIL_URL")
	if customerOrderURL == "" {
		logger.Error("CUSTOMER_ORDER_MAIL_URL environment variable is required")
		os.Exit(1)
	}

	customerStatusURL := os.Getenv("CUSTOMER_STATUS_MAIL_URL")
	if customerStatusURL == "" {
		logger.Error("CUSTOMER_STATUS_MAIL_URL environment variable is required")
		os.Exit(1)
	}

	consumer := messaging.NewConsumer(strings.Split(kafkaBrokers, ","), "notification.requested", "storefront-notifier")
	defer func() { _ = consumer.Close() }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	deliverer := notification.NewDeliverer(adminOrderURL, customerOrderURL, customerStatusURL, httpClient, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting notifier", "brokers", kafkaBrokers)

	if err := consumer.Consume(runCtx, deliverer.Handle); err != nil {
		if runCtx.Err() == context.Canceled {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}

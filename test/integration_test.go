//go:build integration

package test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/pharmadepot/storefront/internal/cart"
	"github.com/pharmadepot/storefront/internal/checkout"
	"github.com/pharmadepot/storefront/internal/domain"
	"github.com/pharmadepot/storefront/internal/identity"
	"github.com/pharmadepot/storefront/internal/messaging"
	"github.com/pharmadepot/storefront/internal/notification"
	"github.com/pharmadepot/storefront/internal/orders"
)

// seeded by migrations
const (
	productAmoxicillin = "5f0c5a74-0c2e-4b5d-9a41-1d2c9e3f8a01" // 100.00, bulk 85.00 @ 10
	productIbuprofen   = "5f0c5a74-0c2e-4b5d-9a41-1d2c9e3f8a02" // 25.00, no bulk tier
)

func buyer() identity.Identity {
	return identity.Identity{
		UserID:  "buyer-1",
		Email:   "purchasing@westside-clinic.example",
		Company: "Westside Clinic",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCartMergeOnAdd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := OpenDB(t, pg.ConnStr)

	svc := cart.NewService(cart.NewRepository(db), discardLogger())

	if _, err := svc.AddItem(ctx, "buyer-1", productAmoxicillin, 2); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	c, err := svc.AddItem(ctx, "buyer-1", productAmoxicillin, 2)
	if err != nil {
		t.Fatalf("second add failed: %v", err)
	}

	if len(c.Lines) != 1 {
		t.Fatalf("expected 1 merged line, got %d", len(c.Lines))
	}
	if c.Lines[0].Quantity != 4 {
		t.Errorf("expected merged quantity 4, got %d", c.Lines[0].Quantity)
	}
	// 4 units is below the bulk threshold of 10
	if got := c.Total(); got != 40000 {
		t.Errorf("expected total 40000, got %d", got)
	}
}

func TestCheckoutFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := OpenDB(t, pg.ConnStr)

	logger := discardLogger()
	cartSvc := cart.NewService(cart.NewRepository(db), logger)
	orderRepo := orders.NewRepository(db)
	checkoutSvc, err := checkout.NewService(db, orderRepo, logger)
	if err != nil {
		t.Fatalf("failed to create checkout service: %v", err)
	}

	if _, err := cartSvc.AddItem(ctx, "buyer-1", productAmoxicillin, 10); err != nil {
		t.Fatalf("failed to add amoxicillin: %v", err)
	}
	if _, err := cartSvc.AddItem(ctx, "buyer-1", productIbuprofen, 3); err != nil {
		t.Fatalf("failed to add ibuprofen: %v", err)
	}

	order, created, err := checkoutSvc.Checkout(ctx, buyer(), checkout.Request{
		ShippingAddress: "12 Harbor Rd",
		PaymentMethod:   domain.PaymentBankTransfer,
		Notes:           "deliver to dock 4",
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if !created {
		t.Fatal("expected a freshly created order")
	}

	// 10 x 85.00 (bulk tier) + 3 x 25.00 = 925.00
	if order.Total != 92500 {
		t.Errorf("expected total 92500, got %d", order.Total)
	}
	if order.Status != domain.OrderStatusPending {
		t.Errorf("expected status pending, got %s", order.Status)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 order items, got %d", len(order.Items))
	}

	var itemsSum int64
	for _, item := range order.Items {
		itemsSum += item.Subtotal()
	}
	if itemsSum != order.Total {
		t.Errorf("order total %d does not equal items sum %d", order.Total, itemsSum)
	}

	// later price edits must not touch the snapshot
	if _, err := db.ExecContext(ctx, `UPDATE products SET unit_price = 99999, bulk_price = 99999 WHERE id = $1`, productAmoxicillin); err != nil {
		t.Fatalf("failed to edit product price: %v", err)
	}
	fetched, err := orderRepo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to fetch order: %v", err)
	}
	if fetched.Total != 92500 {
		t.Errorf("expected snapshot total 92500 after price edit, got %d", fetched.Total)
	}

	// checkout clears the cart
	c, err := cartSvc.Get(ctx, "buyer-1")
	if err != nil {
		t.Fatalf("failed to load cart: %v", err)
	}
	if len(c.Lines) != 0 {
		t.Errorf("expected empty cart after checkout, got %d lines", len(c.Lines))
	}

	// the order-created notification committed with the order
	var outboxCount int
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notification_outbox WHERE aggregate_id = $1 AND kind = 'order.created'
	`, order.ID).Scan(&outboxCount)
	if err != nil {
		t.Fatalf("failed to count outbox rows: %v", err)
	}
	if outboxCount != 1 {
		t.Errorf("expected 1 order-created outbox row, got %d", outboxCount)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := OpenDB(t, pg.ConnStr)

	orderRepo := orders.NewRepository(db)
	checkoutSvc, err := checkout.NewService(db, orderRepo, discardLogger())
	if err != nil {
		t.Fatalf("failed to create checkout service: %v", err)
	}

	_, _, err = checkoutSvc.Checkout(ctx, buyer(), checkout.Request{
		ShippingAddress: "12 Harbor Rd",
		PaymentMethod:   domain.PaymentCrypto,
	})
	if err != domain.ErrEmptyCart {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}

	// no half-created order may be left behind
	var orderCount int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&orderCount); err != nil {
		t.Fatalf("failed to count orders: %v", err)
	}
	if orderCount != 0 {
		t.Errorf("expected 0 orders, got %d", orderCount)
	}
}

func TestCheckoutTokenReplay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := OpenDB(t, pg.ConnStr)

	logger := discardLogger()
	cartSvc := cart.NewService(cart.NewRepository(db), logger)
	orderRepo := orders.NewRepository(db)
	checkoutSvc, err := checkout.NewService(db, orderRepo, logger)
	if err != nil {
		t.Fatalf("failed to create checkout service: %v", err)
	}

	if _, err := cartSvc.AddItem(ctx, "buyer-1", productIbuprofen, 3); err != nil {
		t.Fatalf("failed to add item: %v", err)
	}

	req := checkout.Request{
		ShippingAddress: "12 Harbor Rd",
		PaymentMethod:   domain.PaymentCorporateInvoice,
		Token:           "ck-7181f2",
	}

	first, created, err := checkoutSvc.Checkout(ctx, buyer(), req)
	if err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}
	if !created {
		t.Fatal("expected first checkout to create an order")
	}

	second, created, err := checkoutSvc.Checkout(ctx, buyer(), req)
	if err != nil {
		t.Fatalf("replayed checkout failed: %v", err)
	}
	if created {
		t.Error("expected replay to resume, not create")
	}
	if second.ID != first.ID {
		t.Errorf("expected replay to return order %s, got %s", first.ID, second.ID)
	}

	var outboxCount int
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notification_outbox WHERE kind = 'order.created'
	`).Scan(&outboxCount)
	if err != nil {
		t.Fatalf("failed to count outbox rows: %v", err)
	}
	if outboxCount != 1 {
		t.Errorf("expected 1 order-created outbox row after replay, got %d", outboxCount)
	}
}

func TestOrderStatusWorkflow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := OpenDB(t, pg.ConnStr)

	logger := discardLogger()
	cartSvc := cart.NewService(cart.NewRepository(db), logger)
	orderRepo := orders.NewRepository(db)
	checkoutSvc, err := checkout.NewService(db, orderRepo, logger)
	if err != nil {
		t.Fatalf("failed to create checkout service: %v", err)
	}

	if _, err := cartSvc.AddItem(ctx, "buyer-1", productIbuprofen, 1); err != nil {
		t.Fatalf("failed to add item: %v", err)
	}
	order, _, err := checkoutSvc.Checkout(ctx, buyer(), checkout.Request{
		ShippingAddress: "12 Harbor Rd",
		PaymentMethod:   domain.PaymentBankTransfer,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	updated, err := orderRepo.UpdateStatus(ctx, order.ID, domain.OrderStatusProcessing)
	if err != nil {
		t.Fatalf("pending->processing failed: %v", err)
	}
	if updated.Status != domain.OrderStatusProcessing {
		t.Errorf("expected status processing, got %s", updated.Status)
	}

	if _, err := orderRepo.UpdateStatus(ctx, order.ID, domain.OrderStatusShipped); err != nil {
		t.Fatalf("processing->shipped failed: %v", err)
	}

	if _, err := orderRepo.UpdateStatus(ctx, order.ID, domain.OrderStatusProcessing); err != domain.ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition for shipped->processing, got %v", err)
	}

	// every committed transition queued exactly one customer notification
	rows, err := db.QueryContext(ctx, `
		SELECT payload FROM notification_outbox
		WHERE aggregate_id = $1 AND kind = 'status.changed'
		ORDER BY created_at
	`, order.ID)
	if err != nil {
		t.Fatalf("failed to query outbox: %v", err)
	}
	defer rows.Close()

	var statuses []string
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			t.Fatalf("failed to scan outbox payload: %v", err)
		}
		var envelope notification.Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			t.Fatalf("failed to decode envelope: %v", err)
		}
		var p notification.StatusChangedPayload
		if err := json.Unmarshal(envelope.Payload, &p); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		if p.CustomerEmail != "purchasing@westside-clinic.example" {
			t.Errorf("unexpected customer email %q", p.CustomerEmail)
		}
		statuses = append(statuses, p.NewStatus)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("outbox rows error: %v", err)
	}

	if len(statuses) != 2 || statuses[0] != "processing" || statuses[1] != "shipped" {
		t.Errorf("expected status notifications [processing shipped], got %v", statuses)
	}
}

// TestNotificationPipeline drives one notification through the whole
// chain: outbox row -> poller -> kafka -> consumer -> mail endpoint.
func TestNotificationPipeline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := OpenDB(t, pg.ConnStr)

	brokers, cleanupKafka := SetupKafka(ctx, t)
	defer cleanupKafka()

	logger := discardLogger()
	cartSvc := cart.NewService(cart.NewRepository(db), logger)
	orderRepo := orders.NewRepository(db)
	checkoutSvc, err := checkout.NewService(db, orderRepo, logger)
	if err != nil {
		t.Fatalf("failed to create checkout service: %v", err)
	}

	var mu sync.Mutex
	delivered := map[string]int{}
	mailEndpoint := func(name string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			delivered[name]++
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
	}
	adminSrv := mailEndpoint("admin")
	defer adminSrv.Close()
	customerSrv := mailEndpoint("customer")
	defer customerSrv.Close()

	producer := messaging.NewProducer(brokers, "notification.requested")
	defer producer.Close()
	poller := notification.NewPoller(notification.NewOutboxRepository(db), producer, logger)

	pollCtx, stopPoller := context.WithCancel(ctx)
	defer stopPoller()
	go poller.Run(pollCtx)

	consumer := messaging.NewConsumer(brokers, "notification.requested", "storefront-notifier",
		messaging.WithStartOffset(kafka.FirstOffset))
	defer consumer.Close()

	deliverer := notification.NewDeliverer(adminSrv.URL, customerSrv.URL, customerSrv.URL, http.DefaultClient, logger)

	consumeCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	go func() {
		_ = consumer.Consume(consumeCtx, deliverer.Handle)
	}()

	if _, err := cartSvc.AddItem(ctx, "buyer-1", productAmoxicillin, 10); err != nil {
		t.Fatalf("failed to add item: %v", err)
	}
	if _, _, err := checkoutSvc.Checkout(ctx, buyer(), checkout.Request{
		ShippingAddress: "12 Harbor Rd",
		PaymentMethod:   domain.PaymentBankTransfer,
	}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	deadline := time.Now().Add(90 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		adminCount, customerCount := delivered["admin"], delivered["customer"]
		mu.Unlock()
		if adminCount >= 1 && customerCount >= 1 {
			return
		}
		time.Sleep(500 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	t.Fatalf("notification never delivered: admin=%d customer=%d", delivered["admin"], delivered["customer"])
}

package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
)

// Deliverer performs the HTTP delivery of drained notifications to the
// external mail endpoints. Delivery is best effort: failures are logged
// and the message is consumed regardless, so a broken mail endpoint can
// never wedge the topic.
type Deliverer struct {
	adminOrderURL     string
	customerOrderURL  string
	customerStatusURL string
	httpClient        *http.Client
	logger            *slog.Logger
}

func NewDeliverer(adminOrderURL, customerOrderURL, customerStatusURL string, client *http.Client, logger *slog.Logger) *Deliverer {
	return &Deliverer{
		adminOrderURL:     adminOrderURL,
		customerOrderURL:  customerOrderURL,
		customerStatusURL: customerStatusURL,
		httpClient:        client,
		logger:            logger,
	}
}

// Handle processes one message from the notification topic.
func (d *Deliverer) Handle(ctx context.Context, payload []byte) error {
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		d.logger.Error("dropping malformed notification message", "error", err)
		return nil
	}

	switch envelope.Kind {
	case KindOrderCreated:
		d.deliverOrderCreated(ctx, envelope.Payload)
	case KindStatusChanged:
		d.deliverStatusChanged(ctx, envelope.Payload)
	default:
		d.logger.Warn("dropping notification with unknown kind", "kind", envelope.Kind)
	}

	return nil
}

// deliverOrderCreated fans out to the admin and customer endpoints in
// parallel; each delivery succeeds or fails on its own.
func (d *Deliverer) deliverOrderCreated(ctx context.Context, payload json.RawMessage) {
	var p OrderCreatedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		d.logger.Error("dropping malformed order-created payload", "error", err)
		return
	}

	targets := []struct {
		name string
		url  string
	}{
		{"admin", d.adminOrderURL},
		{"customer", d.customerOrderURL},
	}

	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.post(ctx, target.url, payload); err != nil {
				d.logger.Error("order-created delivery failed", "error", err, "recipient", target.name, "order_id", p.OrderID)
				return
			}
			d.logger.Info("order-created notification delivered", "recipient", target.name, "order_id", p.OrderID)
		}()
	}
	wg.Wait()
}

func (d *Deliverer) deliverStatusChanged(ctx context.Context, payload json.RawMessage) {
	var p StatusChangedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		d.logger.Error("dropping malformed status-changed payload", "error", err)
		return
	}

	if err := d.post(ctx, d.customerStatusURL, payload); err != nil {
		d.logger.Error("status-changed delivery failed", "error", err, "order_id", p.OrderID, "status", p.NewStatus)
		return
	}

	d.logger.Info("status-changed notification delivered", "order_id", p.OrderID, "status", p.NewStatus)
}

func (d *Deliverer) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("mail endpoint returned status %d", resp.StatusCode)
	}

	return nil
}

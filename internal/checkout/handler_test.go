package checkout

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pharmadepot/storefront/internal/domain"
	"github.com/pharmadepot/storefront/internal/identity"
)

type fakeCheckouter struct {
	order   *domain.Order
	created bool
	err     error
	gotReq  Request
}

func (f *fakeCheckouter) Checkout(_ context.Context, _ identity.Identity, req Request) (*domain.Order, bool, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, false, f.err
	}
	return f.order, f.created, nil
}

func serve(svc Checkouter, req *http.Request) *httptest.ResponseRecorder {
	handler := NewHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.HandleFunc("POST /checkout", handler.HandleCheckout)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func authedCheckout(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
	return req.WithContext(identity.WithIdentity(req.Context(), identity.Identity{
		UserID:  "buyer-1",
		Email:   "buyer@clinic.example",
		Company: "Westside Clinic",
	}))
}

func TestHandler_HandleCheckout(t *testing.T) {
	t.Run("created order responds 201", func(t *testing.T) {
		svc := &fakeCheckouter{
			order:   &domain.Order{ID: "order-1", Total: 92500, Status: domain.OrderStatusPending},
			created: true,
		}

		rec := serve(svc, authedCheckout(`{"shipping_address":"12 Harbor Rd","payment_method":"bank_transfer","notes":"dock 4"}`))

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var order domain.Order
		if err := json.Unmarshal(rec.Body.Bytes(), &order); err != nil {
			t.Fatalf("failed to decode order: %v", err)
		}
		if order.Total != 92500 {
			t.Errorf("expected total 92500, got %d", order.Total)
		}
		if svc.gotReq.PaymentMethod != domain.PaymentBankTransfer {
			t.Errorf("expected payment method bank_transfer, got %s", svc.gotReq.PaymentMethod)
		}
	})

	t.Run("token replay responds 200", func(t *testing.T) {
		svc := &fakeCheckouter{
			order:   &domain.Order{ID: "order-1", Total: 92500},
			created: false,
		}

		rec := serve(svc, authedCheckout(`{"shipping_address":"12 Harbor Rd","payment_method":"crypto","checkout_token":"tok-1"}`))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if svc.gotReq.Token != "tok-1" {
			t.Errorf("expected token tok-1, got %q", svc.gotReq.Token)
		}
	})

	t.Run("empty cart responds 422", func(t *testing.T) {
		svc := &fakeCheckouter{err: domain.ErrEmptyCart}

		rec := serve(svc, authedCheckout(`{"shipping_address":"12 Harbor Rd","payment_method":"crypto"}`))

		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", rec.Code)
		}
	})

	t.Run("missing fields respond 400", func(t *testing.T) {
		svc := &fakeCheckouter{err: domain.ErrMissingField}

		rec := serve(svc, authedCheckout(`{"payment_method":"cash"}`))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("unauthenticated responds 401", func(t *testing.T) {
		svc := &fakeCheckouter{}

		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{}`))
		rec := serve(svc, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", rec.Code)
		}
	})
}

package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pharmadepot/storefront/internal/domain"
	"github.com/pharmadepot/storefront/internal/identity"
)

// Checkouter is the service port the handler talks to.
type Checkouter interface {
	Checkout(ctx context.Context, id identity.Identity, req Request) (*domain.Order, bool, error)
}

type Handler struct {
	service Checkouter
	logger  *slog.Logger
}

func NewHandler(service Checkouter, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type checkoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
	Notes           string `json:"notes"`
	CheckoutToken   string `json:"checkout_token"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok || id.UserID == "" {
		h.writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, created, err := h.service.Checkout(r.Context(), id, Request{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   domain.PaymentMethod(req.PaymentMethod),
		Notes:           req.Notes,
		Token:           req.CheckoutToken,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthenticated):
			h.writeError(w, http.StatusUnauthorized, "sign in required")
		case errors.Is(err, domain.ErrEmptyCart):
			h.writeError(w, http.StatusUnprocessableEntity, "cart is empty")
		case errors.Is(err, domain.ErrMissingField):
			h.writeError(w, http.StatusBadRequest, "shipping address and a valid payment method are required")
		default:
			h.logger.Error("checkout failed", "error", err, "user_id", id.UserID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}

	h.writeJSON(w, status, order)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pharmadepot/storefront/internal/domain"
	"github.com/pharmadepot/storefront/internal/identity"
)

// OrderStore is what the handler needs from the order repository.
type OrderStore interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, newStatus domain.OrderStatus) (*domain.Order, error)
}

type Handler struct {
	store  OrderStore
	logger *slog.Logger
}

func NewHandler(store OrderStore, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// HandleListMine returns the calling buyer's order history.
func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok || id.UserID == "" {
		h.writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}

	orders, err := h.store.ListByUser(r.Context(), id.UserID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "user_id", id.UserID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

// HandleGet returns one order; buyers can only see their own, admins can
// see any.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok || id.UserID == "" {
		h.writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}

	orderID := r.PathValue("id")
	if orderID == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.store.GetByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("failed to get order", "error", err, "order_id", orderID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !id.Admin && order.UserID != id.UserID {
		// hide existence from non-owners
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

// HandleAdminList returns every order for the back-office.
func (h *Handler) HandleAdminList(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	orders, err := h.store.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

// HandleUpdateStatus drives the admin status workflow.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	orderID := r.PathValue("id")
	if orderID == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.store.UpdateStatus(r.Context(), orderID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			h.writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, domain.ErrInvalidStatus):
			h.writeError(w, http.StatusBadRequest, "unknown status")
		case errors.Is(err, domain.ErrInvalidTransition):
			h.writeError(w, http.StatusConflict, "status transition not allowed")
		default:
			h.logger.Error("failed to update order status", "error", err, "order_id", orderID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	id, ok := identity.FromContext(r.Context())
	if !ok || id.UserID == "" {
		h.writeError(w, http.StatusUnauthorized, "sign in required")
		return false
	}
	if !id.Admin {
		h.writeError(w, http.StatusForbidden, "admin access required")
		return false
	}
	return true
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

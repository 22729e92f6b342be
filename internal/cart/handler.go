package cart

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pharmadepot/storefront/internal/domain"
	"github.com/pharmadepot/storefront/internal/identity"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// cartResponse is the cart plus the derived figures the storefront
// renders next to it.
type cartResponse struct {
	*domain.Cart
	Total     int64 `json:"total"`
	ItemCount int   `json:"item_count"`
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	c, err := h.service.Get(r.Context(), userID)
	if err != nil {
		h.respondError(w, err, "failed to load cart")
		return
	}

	h.writeCart(w, http.StatusOK, c)
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product_id")
		return
	}

	c, err := h.service.AddItem(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(w, err, "failed to add cart item")
		return
	}

	h.writeCart(w, http.StatusOK, c)
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	productID := r.PathValue("productId")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.service.UpdateQuantity(r.Context(), userID, productID, req.Quantity)
	if err != nil {
		h.respondError(w, err, "failed to update cart quantity")
		return
	}

	h.writeCart(w, http.StatusOK, c)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	productID := r.PathValue("productId")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	c, err := h.service.RemoveItem(r.Context(), userID, productID)
	if err != nil {
		h.respondError(w, err, "failed to remove cart item")
		return
	}

	h.writeCart(w, http.StatusOK, c)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.Clear(r.Context(), userID); err != nil {
		h.respondError(w, err, "failed to clear cart")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireIdentity(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := identity.FromContext(r.Context())
	if !ok || id.UserID == "" {
		h.writeError(w, http.StatusUnauthorized, "sign in required")
		return "", false
	}
	return id.UserID, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		h.writeError(w, http.StatusUnauthorized, "sign in required")
	case errors.Is(err, domain.ErrInvalidQuantity):
		h.writeError(w, http.StatusBadRequest, "quantity must be at least 1")
	case errors.Is(err, domain.ErrProductNotFound):
		h.writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, domain.ErrCartLineNotFound):
		h.writeError(w, http.StatusNotFound, "cart line not found")
	default:
		h.logger.Error(logMsg, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeCart(w http.ResponseWriter, status int, c *domain.Cart) {
	h.writeJSON(w, status, cartResponse{
		Cart:      c,
		Total:     c.Total(),
		ItemCount: c.ItemCount(),
	})
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

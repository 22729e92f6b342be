// Package mailer is a local stand-in for the hosted mail-sending
// functions the storefront notifies. It logs what it would send and
// answers 200, with an artificial delivery delay.
package mailer

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/pharmadepot/storefront/internal/notification"
)

type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleAdminOrder(w http.ResponseWriter, r *http.Request) {
	var p notification.OrderCreatedPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.simulateDelivery()
	h.logger.Info("admin order email sent",
		"order_id", p.OrderID, "company", p.CompanyName, "total", p.OrderTotal, "items", len(p.Items))
	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
}

func (h *Handler) HandleCustomerOrder(w http.ResponseWriter, r *http.Request) {
	var p notification.OrderCreatedPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.simulateDelivery()
	h.logger.Info("customer confirmation email sent",
		"order_id", p.OrderID, "to", p.CustomerEmail, "total", p.OrderTotal)
	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
}

func (h *Handler) HandleCustomerStatus(w http.ResponseWriter, r *http.Request) {
	var p notification.StatusChangedPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.simulateDelivery()
	h.logger.Info("customer status email sent",
		"order_id", p.OrderID, "to", p.CustomerEmail, "status", p.NewStatus)
	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
}

func (h *Handler) simulateDelivery() {
	time.Sleep(time.Duration(50+rand.Intn(151)) * time.Millisecond)
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

package handler

import (
	"net/http"

	"partshop/internal/model"
	"partshop/internal/service"

	"github.com/rs/zerolog"
)

// OrderHandler handles the caller's orders.
type OrderHandler struct {
	service service.OrderService
	logger  zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(service service.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger.With().Str("handler", "order").Logger(),
	}
}

// Create handles POST /api/orders with caller-priced items.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), uid, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// Checkout handles POST /api/orders/checkout.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.Checkout(r.Context(), uid, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// List handles GET /api/orders?status=&limit=&offset=.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	status, err := statusFilter(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	orders, err := h.service.ListOrders(r.Context(), uid, status, limit, offset)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// GetByID handles GET /api/orders/{orderID}.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	orderID, err := uuidParam(r, "orderID")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.GetOrder(r.Context(), uid, orderID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Complete handles POST /api/orders/{orderID}/complete.
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	orderID, err := uuidParam(r, "orderID")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.CompleteOrder(r.Context(), uid, orderID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

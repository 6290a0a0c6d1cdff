package handler

import (
	"net/http"
	"strings"

	"partshop/internal/model"
	"partshop/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AdminOrderHandler handles back-office order management.
type AdminOrderHandler struct {
	service service.AdminOrderService
	logger  zerolog.Logger
}

// NewAdminOrderHandler creates a new admin order handler.
func NewAdminOrderHandler(service service.AdminOrderService, logger zerolog.Logger) *AdminOrderHandler {
	return &AdminOrderHandler{
		service: service,
		logger:  logger.With().Str("handler", "admin_order").Logger(),
	}
}

// List handles GET /api/admin/orders?userId=&status=&limit=&offset=.
func (h *AdminOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter model.OrderFilter

	if raw := strings.TrimSpace(r.URL.Query().Get("userId")); raw != "" {
		uid, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, r, badRequest(model.ErrCodeValidation, "invalid userId parameter"), h.logger)
			return
		}
		filter.UserID = &uid
	}

	status, err := statusFilter(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	filter.Status = status

	if filter.Limit, filter.Offset, err = pagination(r); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	orders, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// GetByID handles GET /api/admin/orders/{orderID}.
func (h *AdminOrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "orderID")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// RemoveItem handles DELETE /api/admin/orders/{orderID}/items/{itemID}.
func (h *AdminOrderHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	orderID, itemID, ok := h.orderItemParams(w, r)
	if !ok {
		return
	}

	order, err := h.service.RemoveOrderItem(r.Context(), orderID, itemID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// UpdateItem handles PUT /api/admin/orders/{orderID}/items/{itemID}.
func (h *AdminOrderHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	orderID, itemID, ok := h.orderItemParams(w, r)
	if !ok {
		return
	}

	var req model.UpdateOrderItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.UpdateItemQuantity(r.Context(), orderID, itemID, req.Quantity)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// UpdateStatus handles PUT /api/admin/orders/{orderID}/status.
func (h *AdminOrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "orderID")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.UpdateOrderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), orderID, req.Status)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *AdminOrderHandler) orderItemParams(w http.ResponseWriter, r *http.Request) (orderID, itemID uuid.UUID, ok bool) {
	var err error
	if orderID, err = uuidParam(r, "orderID"); err != nil {
		writeError(w, r, err, h.logger)
		return uuid.Nil, uuid.Nil, false
	}
	if itemID, err = uuidParam(r, "itemID"); err != nil {
		writeError(w, r, err, h.logger)
		return uuid.Nil, uuid.Nil, false
	}
	return orderID, itemID, true
}

package handler

import (
	"net/http"

	"partshop/internal/model"
	"partshop/internal/service"

	"github.com/rs/zerolog"
)

// CartHandler handles the caller's cart.
type CartHandler struct {
	service service.CartService
	logger  zerolog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(service service.CartService, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		logger:  logger.With().Str("handler", "cart").Logger(),
	}
}

// List handles GET /api/cart.
func (h *CartHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.List(r.Context(), uid)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// AddItem handles POST /api/cart/items.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.AddCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	line, err := h.service.AddItem(r.Context(), uid, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, line)
}

// UpdateItem handles PUT /api/cart/items/{itemID}. A quantity of zero or less
// removes the line and answers 204.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	itemID, err := uuidParam(r, "itemID")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.UpdateCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	line, err := h.service.UpdateQuantity(r.Context(), uid, itemID, *req.Quantity)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if line == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, line)
}

// RemoveItem handles DELETE /api/cart/items/{itemID}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	itemID, err := uuidParam(r, "itemID")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	if err := h.service.RemoveItem(r.Context(), uid, itemID); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

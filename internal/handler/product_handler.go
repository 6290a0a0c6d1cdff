package handler

import (
	"net/http"
	"strings"

	"partshop/internal/model"
	"partshop/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ProductHandler handles catalogue HTTP requests.
type ProductHandler struct {
	service service.ProductService
	logger  zerolog.Logger
}

// NewProductHandler creates a new product handler.
func NewProductHandler(service service.ProductService, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger.With().Str("handler", "product").Logger(),
	}
}

// GetAll handles GET /api/products. An X-User-ID header prices the page for that user.
func (h *ProductHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	uid, err := optionalUserID(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	products, err := h.service.GetAll(r.Context(), uid, limit, offset)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, products)
}

// GetByID handles GET /api/products/{id}.
func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSpace(chi.URLParam(r, "id"))
	if productID == "" {
		writeError(w, r, badRequest(model.ErrCodeMissingField, "product ID is required"), h.logger)
		return
	}

	uid, err := optionalUserID(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	product, err := h.service.GetByID(r.Context(), uid, productID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if product == nil {
		writeError(w, r, model.ErrProductNotFound, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

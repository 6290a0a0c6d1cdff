package router

import (
	"net/http"

	"partshop/internal/config"
	"partshop/internal/handler"
	"partshop/internal/metrics"
	"partshop/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Health     *handler.HealthHandler
	Product    *handler.ProductHandler
	Cart       *handler.CartHandler
	Order      *handler.OrderHandler
	AdminOrder *handler.AdminOrderHandler
}

// New creates a new HTTP router with all routes and middleware configured.
// /health and /metrics are served without authentication.
func New(
	h Handlers,
	auth config.AuthConfig,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	logger zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Order: Recovery -> RequestID -> Logging -> Metrics -> CORS
	r.Use(
		middleware.Recovery(logger),
		middleware.RequestID,
		middleware.Logging(logger),
		middleware.Metrics(m),
		middleware.CORS,
	)

	r.Get("/health", h.Health.Health)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(auth.APIKey, logger))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Product.GetAll)
			r.Get("/{id}", h.Product.GetByID)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.List)
			r.Post("/items", h.Cart.AddItem)
			r.Put("/items/{itemID}", h.Cart.UpdateItem)
			r.Delete("/items/{itemID}", h.Cart.RemoveItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.Order.List)
			r.Post("/", h.Order.Create)
			r.Post("/checkout", h.Order.Checkout)
			r.Get("/{orderID}", h.Order.GetByID)
			r.Post("/{orderID}/complete", h.Order.Complete)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminAuth(auth.AdminAPIKey, logger))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.AdminOrder.List)
				r.Get("/{orderID}", h.AdminOrder.GetByID)
				r.Put("/{orderID}/status", h.AdminOrder.UpdateStatus)
				r.Put("/{orderID}/items/{itemID}", h.AdminOrder.UpdateItem)
				r.Delete("/{orderID}/items/{itemID}", h.AdminOrder.RemoveItem)
			})
		})
	})

	return r
}

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"partshop/internal/config"
	"partshop/internal/events"
	"partshop/internal/handler"
	"partshop/internal/metrics"
	"partshop/internal/middleware"
	"partshop/internal/model"
	"partshop/internal/repository"
	"partshop/internal/router"
	"partshop/internal/service"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey   = "test-api-key"
	testAdminKey = "test-admin-key"
)

func setupTestServer(t *testing.T, testDB *TestDB) http.Handler {
	t.Helper()

	logger := zerolog.Nop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	productRepo := repository.NewProductRepository(testDB.DB, logger)
	cartRepo := repository.NewCartRepository(testDB.DB, logger)
	orderRepo := repository.NewOrderRepository(testDB.DB, logger)
	userRepo := repository.NewUserRepository(testDB.DB, logger)

	ordersCfg := config.OrdersConfig{Currency: config.DefaultCurrency}

	productService := service.NewProductService(productRepo, userRepo, true, logger)
	cartService := service.NewCartService(testDB.DB, cartRepo, productRepo, userRepo, m, logger)
	orderService := service.NewOrderService(testDB.DB, orderRepo, cartRepo, userRepo, events.NopPublisher{}, m, ordersCfg, logger)
	adminOrderService := service.NewAdminOrderService(testDB.DB, orderRepo, events.NopPublisher{}, m, false, logger)

	return router.New(
		router.Handlers{
			Health:     handler.NewHealthHandler(testDB.DB, logger),
			Product:    handler.NewProductHandler(productService, logger),
			Cart:       handler.NewCartHandler(cartService, logger),
			Order:      handler.NewOrderHandler(orderService, logger),
			AdminOrder: handler.NewAdminOrderHandler(adminOrderService, logger),
		},
		config.AuthConfig{APIKey: testAPIKey, AdminAPIKey: testAdminKey},
		m,
		reg,
		logger,
	)
}

type apiCall struct {
	method string
	path   string
	user   *uuid.UUID
	admin  bool
	body   any
}

func do(t *testing.T, server http.Handler, c apiCall) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(c.body))
	}

	req := httptest.NewRequest(c.method, c.path, &body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.APIKeyHeader, testAPIKey)
	if c.user != nil {
		req.Header.Set(middleware.UserIDHeader, c.user.String())
	}
	if c.admin {
		req.Header.Set(middleware.AdminKeyHeader, testAdminKey)
	}

	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestProductAPI_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	server := setupTestServer(t, testDB)

	CleanupDB(t, testDB.Pool)
	SeedCatalog(t, testDB.Pool)

	t.Run("anonymous caller sees sale prices", func(t *testing.T) {
		w := do(t, server, apiCall{method: http.MethodGet, path: "/api/products"})
		require.Equal(t, http.StatusOK, w.Code)

		products := decode[[]model.ProductView](t, w)
		require.Len(t, products, 3)

		byID := map[string]model.ProductView{}
		for _, p := range products {
			byID[p.ID] = p
		}
		assert.True(t, dec("144").Equal(byID["P001"].EffectivePrice))
		assert.True(t, dec("50").Equal(byID["P002"].EffectivePrice))
		assert.True(t, dec("120").Equal(byID["P003"].EffectivePrice), "sale above base is ignored")
	})

	t.Run("discount wins over sale price", func(t *testing.T) {
		user := SeedUser(t, testDB.Pool, 10)

		w := do(t, server, apiCall{method: http.MethodGet, path: "/api/products/P001", user: &user})
		require.Equal(t, http.StatusOK, w.Code)

		product := decode[model.ProductView](t, w)
		assert.True(t, dec("162").Equal(product.EffectivePrice))
	})

	t.Run("pagination", func(t *testing.T) {
		w := do(t, server, apiCall{method: http.MethodGet, path: "/api/products?limit=2&offset=0"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]model.ProductView](t, w), 2)
	})

	t.Run("unknown product returns 404", func(t *testing.T) {
		w := do(t, server, apiCall{method: http.MethodGet, path: "/api/products/P999"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing API key returns 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		w := httptest.NewRecorder()
		server.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("health without API key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		server.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestCartAPI_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	server := setupTestServer(t, testDB)

	t.Run("repeated adds merge into one line", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		SeedCatalog(t, testDB.Pool)
		user := SeedUser(t, testDB.Pool, 0)

		w := do(t, server, apiCall{method: http.MethodPost, path: "/api/cart/items", user: &user,
			body: map[string]any{"productId": "P001", "quantity": 1}})
		require.Equal(t, http.StatusCreated, w.Code)

		w = do(t, server, apiCall{method: http.MethodPost, path: "/api/cart/items", user: &user,
			body: map[string]any{"sku": "FORK-1200", "quantity": 2}})
		require.Equal(t, http.StatusCreated, w.Code)

		w = do(t, server, apiCall{method: http.MethodGet, path: "/api/cart", user: &user})
		require.Equal(t, http.StatusOK, w.Code)

		cart := decode[model.CartView](t, w)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, 3, cart.Items[0].Quantity)
		assert.True(t, dec("144").Equal(cart.Items[0].EffectivePrice))
		assert.True(t, dec("540").Equal(cart.TotalPrice))
		assert.True(t, dec("432").Equal(cart.TotalSalePrice))
		assert.True(t, dec("108").Equal(cart.Savings))
	})

	t.Run("quantity zero removes the line", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		SeedCatalog(t, testDB.Pool)
		user := SeedUser(t, testDB.Pool, 0)

		w := do(t, server, apiCall{method: http.MethodPost, path: "/api/cart/items", user: &user,
			body: map[string]any{"productId": "P002"}})
		require.Equal(t, http.StatusCreated, w.Code)
		line := decode[model.CartLineView](t, w)

		w = do(t, server, apiCall{method: http.MethodPut, path: "/api/cart/items/" + line.ID.String(), user: &user,
			body: map[string]any{"quantity": 0}})
		require.Equal(t, http.StatusNoContent, w.Code)

		w = do(t, server, apiCall{method: http.MethodGet, path: "/api/cart", user: &user})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decode[model.CartView](t, w).Items)
	})

	t.Run("unknown product is rejected", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		SeedCatalog(t, testDB.Pool)
		user := SeedUser(t, testDB.Pool, 0)

		w := do(t, server, apiCall{method: http.MethodPost, path: "/api/cart/items", user: &user,
			body: map[string]any{"productId": "P999"}})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("concurrent adds keep a single line", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		SeedCatalog(t, testDB.Pool)
		user := SeedUser(t, testDB.Pool, 0)

		const workers = 8
		var wg sync.WaitGroup
		codes := make([]int, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				w := do(t, server, apiCall{method: http.MethodPost, path: "/api/cart/items", user: &user,
					body: map[string]any{"productId": "P002", "quantity": 1}})
				codes[i] = w.Code
			}(i)
		}
		wg.Wait()

		for _, code := range codes {
			assert.Equal(t, http.StatusCreated, code)
		}

		var rows, quantity int
		err := testDB.Pool.QueryRow(context.Background(),
			`SELECT COUNT(*), COALESCE(SUM(quantity), 0) FROM cart_items WHERE user_id = $1`, user).
			Scan(&rows, &quantity)
		require.NoError(t, err)
		assert.Equal(t, 1, rows)
		assert.Equal(t, workers, quantity)
	})
}

func TestOrderAPI_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	server := setupTestServer(t, testDB)

	createBody := func(orderNumber string) map[string]any {
		return map[string]any{
			"orderNumber": orderNumber,
			"items": []map[string]any{
				{"name": "Fork 1200mm", "sku": "FORK-1200", "quantity": 2, "price": "100.00", "totalPrice": "200.00"},
				{"name": "Mast chain", "sku": "CHAIN-10", "quantity": 1, "price": "50.00", "totalPrice": "50.00"},
			},
			"totalAmount": "250.00",
		}
	}

	t.Run("admin item removal recomputes the total", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		user := SeedUser(t, testDB.Pool, 0)

		w := do(t, server, apiCall{method: http.MethodPost, path: "/api/orders", user: &user, body: createBody("PS-D-1")})
		require.Equal(t, http.StatusCreated, w.Code)
		order := decode[model.Order](t, w)
		assert.True(t, dec("250").Equal(order.TotalAmount))
		assert.Equal(t, model.StatusPending, order.Status)
		require.Len(t, order.Items, 2)

		var chainID uuid.UUID
		for _, item := range order.Items {
			if item.SKU == "CHAIN-10" {
				chainID = item.ID
			}
		}
		require.NotEqual(t, uuid.Nil, chainID)

		w = do(t, server, apiCall{method: http.MethodDelete, admin: true,
			path: fmt.Sprintf("/api/admin/orders/%s/items/%s", order.ID, chainID)})
		require.Equal(t, http.StatusOK, w.Code)
		updated := decode[model.Order](t, w)
		assert.True(t, dec("200").Equal(updated.TotalAmount))
		assert.Len(t, updated.Items, 1)
	})

	t.Run("duplicate order number conflicts", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		user := SeedUser(t, testDB.Pool, 0)

		w := do(t, server, apiCall{method: http.MethodPost, path: "/api/orders", user: &user, body: createBody("PS-DUP")})
		require.Equal(t, http.StatusCreated, w.Code)

		w = do(t, server, apiCall{method: http.MethodPost, path: "/api/orders", user: &user, body: createBody("PS-DUP")})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("mismatched total is rejected", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		user := SeedUser(t, testDB.Pool, 0)

		body := createBody("PS-BAD")
		body["totalAmount"] = "999.00"
		w := do(t, server, apiCall{method: http.MethodPost, path: "/api/orders", user: &user, body: body})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, model.ErrCodeInvalidOrderPayload, decode[model.ErrorResponse](t, w).Error)
	})

	t.Run("checkout then complete clears the cart", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		SeedCatalog(t, testDB.Pool)
		user := SeedUser(t, testDB.Pool, 20)

		for _, add := range []map[string]any{
			{"productId": "P001", "quantity": 1},
			{"productId": "P002", "quantity": 2},
		} {
			w := do(t, server, apiCall{method: http.MethodPost, path: "/api/cart/items", user: &user, body: add})
			require.Equal(t, http.StatusCreated, w.Code)
		}

		w := do(t, server, apiCall{method: http.MethodPost, path: "/api/orders/checkout", user: &user,
			body: map[string]any{"orderNumber": "PS-CHK-1"}})
		require.Equal(t, http.StatusCreated, w.Code)
		order := decode[model.Order](t, w)
		// 180 * 0.8 + 2 * (50 * 0.8)
		assert.True(t, dec("224").Equal(order.TotalAmount))

		// The snapshot survives a catalogue price change.
		_, err := testDB.Pool.Exec(context.Background(), `UPDATE products SET base_price = 999 WHERE id = 'P001'`)
		require.NoError(t, err)

		w = do(t, server, apiCall{method: http.MethodPost, path: "/api/orders/" + order.ID.String() + "/complete", user: &user})
		require.Equal(t, http.StatusOK, w.Code)
		completed := decode[model.Order](t, w)
		assert.Equal(t, model.StatusConfirmed, completed.Status)
		assert.True(t, dec("224").Equal(completed.TotalAmount))

		w = do(t, server, apiCall{method: http.MethodGet, path: "/api/cart", user: &user})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decode[model.CartView](t, w).Items)
	})

	t.Run("complete after admin confirmation still clears the cart once", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		SeedCatalog(t, testDB.Pool)
		user := SeedUser(t, testDB.Pool, 0)

		w := do(t, server, apiCall{method: http.MethodPost, path: "/api/cart/items", user: &user,
			body: map[string]any{"productId": "P002", "quantity": 1}})
		require.Equal(t, http.StatusCreated, w.Code)

		w = do(t, server, apiCall{method: http.MethodPost, path: "/api/orders/checkout", user: &user,
			body: map[string]any{"orderNumber": "PS-CHK-2"}})
		require.Equal(t, http.StatusCreated, w.Code)
		order := decode[model.Order](t, w)

		w = do(t, server, apiCall{method: http.MethodPut, admin: true,
			path: "/api/admin/orders/" + order.ID.String() + "/status", body: map[string]any{"status": "confirmed"}})
		require.Equal(t, http.StatusOK, w.Code)

		completePath := "/api/orders/" + order.ID.String() + "/complete"
		w = do(t, server, apiCall{method: http.MethodPost, path: completePath, user: &user})
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotNil(t, decode[model.Order](t, w).CompletedAt)

		w = do(t, server, apiCall{method: http.MethodGet, path: "/api/cart", user: &user})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decode[model.CartView](t, w).Items)

		// A repeated complete must not touch a cart filled afterwards.
		w = do(t, server, apiCall{method: http.MethodPost, path: "/api/cart/items", user: &user,
			body: map[string]any{"productId": "P001", "quantity": 1}})
		require.Equal(t, http.StatusCreated, w.Code)

		w = do(t, server, apiCall{method: http.MethodPost, path: completePath, user: &user})
		require.Equal(t, http.StatusOK, w.Code)

		w = do(t, server, apiCall{method: http.MethodGet, path: "/api/cart", user: &user})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[model.CartView](t, w).Items, 1)
	})

	t.Run("orders are private to their owner", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		owner := SeedUser(t, testDB.Pool, 0)
		other := SeedUser(t, testDB.Pool, 0)

		w := do(t, server, apiCall{method: http.MethodPost, path: "/api/orders", user: &owner, body: createBody("PS-OWN")})
		require.Equal(t, http.StatusCreated, w.Code)
		order := decode[model.Order](t, w)

		w = do(t, server, apiCall{method: http.MethodGet, path: "/api/orders/" + order.ID.String(), user: &other})
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = do(t, server, apiCall{method: http.MethodGet, path: "/api/orders/" + order.ID.String(), user: &owner})
		assert.Equal(t, http.StatusOK, w.Code)

		w = do(t, server, apiCall{method: http.MethodGet, path: "/api/orders", user: &other})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decode[model.OrderList](t, w).Orders)
	})

	t.Run("admin status update and listing", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		user := SeedUser(t, testDB.Pool, 0)

		w := do(t, server, apiCall{method: http.MethodPost, path: "/api/orders", user: &user, body: createBody("PS-ST-1")})
		require.Equal(t, http.StatusCreated, w.Code)
		order := decode[model.Order](t, w)

		w = do(t, server, apiCall{method: http.MethodPut, admin: true,
			path: "/api/admin/orders/" + order.ID.String() + "/status", body: map[string]any{"status": "shipped"}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, model.StatusShipped, decode[model.Order](t, w).Status)

		w = do(t, server, apiCall{method: http.MethodGet, admin: true, path: "/api/admin/orders?status=shipped"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[model.OrderList](t, w).Orders, 1)

		w = do(t, server, apiCall{method: http.MethodGet, path: "/api/admin/orders"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("concurrent item edits keep the total consistent", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		user := SeedUser(t, testDB.Pool, 0)

		w := do(t, server, apiCall{method: http.MethodPost, path: "/api/orders", user: &user, body: createBody("PS-CONC")})
		require.Equal(t, http.StatusCreated, w.Code)
		order := decode[model.Order](t, w)

		var wg sync.WaitGroup
		for i := 0; i < 6; i++ {
			item := order.Items[i%len(order.Items)]
			wg.Add(1)
			go func(itemID uuid.UUID, qty int) {
				defer wg.Done()
				do(t, server, apiCall{method: http.MethodPut, admin: true,
					path: fmt.Sprintf("/api/admin/orders/%s/items/%s", order.ID, itemID),
					body: map[string]any{"quantity": qty}})
			}(item.ID, i+1)
		}
		wg.Wait()

		var total, sum decimal.Decimal
		err := testDB.Pool.QueryRow(context.Background(), `
			SELECT o.total_amount, COALESCE(SUM(oi.total_price), 0)
			FROM orders o LEFT JOIN order_items oi ON oi.order_id = o.id
			WHERE o.id = $1
			GROUP BY o.total_amount
		`, order.ID).Scan(&total, &sum)
		require.NoError(t, err)
		assert.True(t, total.Equal(sum), "total %s != items %s", total, sum)
	})
}

func TestCORS_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	server := setupTestServer(t, testDB)

	t.Run("OPTIONS request returns CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
		w := httptest.NewRecorder()

		server.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "GET")
	})
}

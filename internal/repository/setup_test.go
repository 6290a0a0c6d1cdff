package repository

import (
	"context"
	"testing"
	"time"

	"partshop/internal/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts PostgreSQL, applies the migrations and returns a DB wrapper.
func setupTestDB(t *testing.T) (*DB, func()) {
	return setupTestDBWithPool(t, 0)
}

// setupTestDBWithPool is setupTestDB with a custom pool size (0 keeps the driver default).
func setupTestDBWithPool(t *testing.T, maxConns int32) (*DB, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
		poolConfig.MinConns = 0
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err)

	require.NoError(t, database.Migrate(ctx, pool, "up", zerolog.Nop()))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return NewDB(pool, 2*time.Second, zerolog.Nop()), cleanup
}

type seedProduct struct {
	ID       string
	Name     string
	SKU      string
	Artikul  string
	Base     string
	Sale     *string
	Category string
}

func strPtr(s string) *string { return &s }

func seedProducts(t *testing.T, db *DB, products ...seedProduct) {
	t.Helper()
	ctx := context.Background()

	for _, p := range products {
		var categoryID *int64
		if p.Category != "" {
			var id int64
			err := db.Pool().QueryRow(ctx, `
				INSERT INTO categories (name) VALUES ($1)
				ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
				RETURNING id
			`, p.Category).Scan(&id)
			require.NoError(t, err)
			categoryID = &id
		}

		_, err := db.Pool().Exec(ctx, `
			INSERT INTO products (id, name, sku, artikul, base_price, sale_price, stock, category_id)
			VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, 10, $7)
		`, p.ID, p.Name, p.SKU, p.Artikul, p.Base, p.Sale, categoryID)
		require.NoError(t, err)
	}
}

func seedUser(t *testing.T, db *DB, discount int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Pool().Exec(context.Background(),
		`INSERT INTO users (id, discount_percentage) VALUES ($1, $2)`, id, discount)
	require.NoError(t, err)
	return id
}

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"partshop/internal/database"
	"partshop/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	DB        *repository.DB
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container, applies the migrations and
// returns a ready connection pool.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		t.Fatalf("failed to parse connection string: %v", err)
	}
	poolConfig.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	if err := database.Migrate(ctx, pool, "up", zerolog.Nop()); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		DB:        repository.NewDB(pool, 5*time.Second, zerolog.Nop()),
		ConnStr:   connStr,
	}
}

// SeedCatalog inserts the forklift parts used across the tests:
//
//	FORK-1200  base 180, sale 144
//	CHAIN-10   base 50
//	SEAT-01    base 120, sale 130 (not a real sale)
func SeedCatalog(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	var categoryID int64
	err := pool.QueryRow(ctx, `
		INSERT INTO categories (name) VALUES ('Forks')
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`).Scan(&categoryID)
	if err != nil {
		t.Fatalf("failed to seed category: %v", err)
	}

	products := []struct {
		id    string
		name  string
		sku   string
		base  string
		sale  *string
		catID *int64
	}{
		{"P001", "Fork 1200mm", "FORK-1200", "180.00", strPtr("144.00"), &categoryID},
		{"P002", "Mast chain", "CHAIN-10", "50.00", nil, nil},
		{"P003", "Operator seat", "SEAT-01", "120.00", strPtr("130.00"), nil},
	}

	for _, p := range products {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, name, sku, base_price, sale_price, stock, category_id)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric, 100, $6)
		`, p.id, p.name, p.sku, p.base, p.sale, p.catID)
		if err != nil {
			t.Fatalf("failed to seed product %s: %v", p.id, err)
		}
	}
}

// SeedUser inserts a user with the given discount percentage.
func SeedUser(t *testing.T, pool *pgxpool.Pool, discount int) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, discount_percentage) VALUES ($1, $2)`, id, discount)
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return id
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	tables := []string{"order_items", "orders", "cart_items", "users", "products", "categories"}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}

func strPtr(s string) *string { return &s }

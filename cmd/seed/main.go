package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"partshop/internal/config"
	"partshop/internal/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

// Sample forklift parts for local development.
var sampleProducts = []struct {
	id, name, sku, artikul, category string
	base                             string
	sale                             *string
}{
	{"FK-1200", "Fork 1200mm Class II", "FORK-1200", "70-1200-2", "Forks", "180.00", strPtr("144.00")},
	{"FK-1500", "Fork 1500mm Class III", "FORK-1500", "70-1500-3", "Forks", "240.00", nil},
	{"CH-LH1044", "Mast leaf chain LH1044", "CHAIN-LH1044", "LH1044", "Chains", "50.00", nil},
	{"SEAT-MSG65", "Operator seat MSG65", "SEAT-MSG65", "MSG65", "Cabin", "120.00", strPtr("99.90")},
	{"FLT-HYD-10", "Hydraulic filter", "FILTER-HYD-10", "HF-10", "Filters", "18.40", nil},
}

func strPtr(s string) *string { return &s }

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	users := flag.Int("users", 3, "number of sample users to create (discounts 0, 10, 20, ...)")
	flag.Parse()

	dbCfg, logCfg, err := config.LoadDatabase()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := config.NewLogger(logCfg)

	ctx := context.Background()
	pool, err := database.NewPool(ctx, dbCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	batch := &pgx.Batch{}
	for _, p := range sampleProducts {
		batch.Queue(`
			INSERT INTO categories (name) VALUES ($1)
			ON CONFLICT (name) DO NOTHING
		`, p.category)
		batch.Queue(`
			INSERT INTO products (id, name, sku, artikul, base_price, sale_price, stock, category_id)
			VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, 50, (SELECT id FROM categories WHERE name = $7))
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				base_price = EXCLUDED.base_price,
				sale_price = EXCLUDED.sale_price
		`, p.id, p.name, p.sku, p.artikul, p.base, p.sale, p.category)
	}

	userIDs := make([]uuid.UUID, *users)
	for i := range userIDs {
		userIDs[i] = uuid.New()
		batch.Queue(`INSERT INTO users (id, discount_percentage) VALUES ($1, $2)`, userIDs[i], min(i*10, 100))
	}

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("failed to execute seed statement %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit seed data: %w", err)
	}

	logger.Info().Int("products", len(sampleProducts)).Int("users", len(userIDs)).Msg("seed data loaded")
	for i, id := range userIDs {
		fmt.Printf("user %s discount %d%%\n", id, min(i*10, 100))
	}
	return nil
}

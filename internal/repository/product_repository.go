package repository

import (
	"context"
	"errors"
	"fmt"

	"partshop/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const productColumns = `
	p.id, p.name, p.sku, p.artikul, p.base_price, p.sale_price, p.stock,
	p.category_id, COALESCE(c.name, ''), p.created_at
`

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	db     *DB
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db *DB, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		db:     db,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

func scanProduct(row pgx.Row, p *model.Product) error {
	return row.Scan(
		&p.ID,
		&p.Name,
		&p.SKU,
		&p.Artikul,
		&p.BasePrice,
		&p.SalePrice,
		&p.Stock,
		&p.CategoryID,
		&p.CategoryName,
		&p.CreatedAt,
	)
}

// GetAll retrieves products with pagination support.
func (r *productRepository) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	query := `SELECT` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		ORDER BY p.name, p.id
		LIMIT $1 OFFSET $2
	`

	products := []model.Product{}
	err := r.db.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query, limit, offset)
		if err != nil {
			return fmt.Errorf("failed to query products: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var p model.Product
			if err := scanProduct(rows, &p); err != nil {
				return fmt.Errorf("failed to scan product: %w", err)
			}
			products = append(products, p)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating products: %w", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to list products")
		return nil, classify(err)
	}

	return products, nil
}

// GetByID retrieves a single product by its ID.
func (r *productRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	query := `SELECT` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1
	`

	p, err := r.getOne(ctx, query, id)
	if err != nil {
		r.logger.Error().Err(err).Str("product_id", id).Msg("failed to query product")
		return nil, err
	}
	if p == nil {
		r.logger.Debug().Str("product_id", id).Msg("product not found")
	}
	return p, nil
}

// GetBySKU retrieves a single product by SKU, falling back to artikul.
func (r *productRepository) GetBySKU(ctx context.Context, sku string) (*model.Product, error) {
	query := `SELECT` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.sku = $1 OR p.artikul = $1
		ORDER BY (p.sku = $1) DESC, p.id
		LIMIT 1
	`

	p, err := r.getOne(ctx, query, sku)
	if err != nil {
		r.logger.Error().Err(err).Str("sku", sku).Msg("failed to query product by sku")
		return nil, err
	}
	if p == nil {
		r.logger.Debug().Str("sku", sku).Msg("product not found")
	}
	return p, nil
}

func (r *productRepository) getOne(ctx context.Context, query string, arg string) (*model.Product, error) {
	var (
		p     model.Product
		found bool
	)
	err := r.db.withConn(ctx, func(conn *pgxpool.Conn) error {
		if err := scanProduct(conn.QueryRow(ctx, query, arg), &p); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("failed to query product: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !found {
		return nil, nil
	}
	return &p, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"partshop/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const cartItemColumns = `
	ci.id, ci.user_id, ci.product_id, ci.quantity, ci.base_price, ci.sale_price,
	ci.total_price, ci.total_sale_price, ci.created_at, ci.updated_at
`

// cartRepository implements the CartRepository interface using PostgreSQL.
type cartRepository struct {
	db     *DB
	logger zerolog.Logger
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(db *DB, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		db:     db,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

func scanCartItem(row pgx.Row, extra ...any) (*model.CartItem, error) {
	var item model.CartItem
	dest := []any{
		&item.ID,
		&item.UserID,
		&item.ProductID,
		&item.Quantity,
		&item.BasePrice,
		&item.SalePrice,
		&item.TotalPrice,
		&item.TotalSalePrice,
		&item.CreatedAt,
		&item.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &item, nil
}

func scanCartLine(row pgx.Row) (*model.CartLine, error) {
	var p model.Product
	item, err := scanCartItem(row,
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
	if err != nil {
		return nil, err
	}
	return &model.CartLine{CartItem: *item, Product: p}, nil
}

// Upsert inserts a line for (userID, productID) or adds quantity to the existing one.
// The snapshot base price of an existing line is kept.
func (r *cartRepository) Upsert(ctx context.Context, tx pgx.Tx, item *model.CartItem) (*model.CartItem, error) {
	query := `
		INSERT INTO cart_items AS ci (
			id, user_id, product_id, quantity, base_price, sale_price,
			total_price, total_sale_price, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = ci.quantity + EXCLUDED.quantity,
			updated_at = EXCLUDED.updated_at
		RETURNING` + cartItemColumns

	saved, err := scanCartItem(tx.QueryRow(ctx, query,
		item.ID,
		item.UserID,
		item.ProductID,
		item.Quantity,
		item.BasePrice,
		item.SalePrice,
		item.TotalPrice,
		item.TotalSalePrice,
		item.CreatedAt,
	))
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("user_id", item.UserID.String()).
			Str("product_id", item.ProductID).
			Msg("failed to upsert cart item")
		return nil, classify(fmt.Errorf("failed to upsert cart item: %w", err))
	}

	r.logger.Debug().
		Str("cart_item_id", saved.ID.String()).
		Int("quantity", saved.Quantity).
		Msg("cart item upserted")

	return saved, nil
}

// GetForUpdate locks the user's cart line and returns it joined with its product,
// or nil if it does not exist.
func (r *cartRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, userID, itemID uuid.UUID) (*model.CartLine, error) {
	query := `SELECT` + cartItemColumns + `,` + productColumns + `
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE ci.id = $1 AND ci.user_id = $2
		FOR UPDATE OF ci
	`

	line, err := scanCartLine(tx.QueryRow(ctx, query, itemID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("cart_item_id", itemID.String()).Msg("failed to lock cart item")
		return nil, classify(fmt.Errorf("failed to lock cart item: %w", err))
	}
	return line, nil
}

// UpdatePricing writes quantity and the derived price columns of a line.
func (r *cartRepository) UpdatePricing(ctx context.Context, tx pgx.Tx, item *model.CartItem) error {
	query := `
		UPDATE cart_items
		SET quantity = $2, sale_price = $3, total_price = $4, total_sale_price = $5, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := tx.Exec(ctx, query, item.ID, item.Quantity, item.SalePrice, item.TotalPrice, item.TotalSalePrice)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_item_id", item.ID.String()).Msg("failed to update cart item")
		return classify(fmt.Errorf("failed to update cart item: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return model.ErrCartItemNotFound
	}
	return nil
}

// Delete removes the user's cart line. It reports whether a row was removed.
func (r *cartRepository) Delete(ctx context.Context, userID, itemID uuid.UUID) (bool, error) {
	query := `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`

	var deleted bool
	err := r.db.withConn(ctx, func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, query, itemID, userID)
		if err != nil {
			return fmt.Errorf("failed to delete cart item: %w", err)
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		r.logger.Error().Err(err).Str("cart_item_id", itemID.String()).Msg("failed to delete cart item")
		return false, classify(err)
	}
	return deleted, nil
}

// DeleteInTx removes the user's cart line within tx.
func (r *cartRepository) DeleteInTx(ctx context.Context, tx pgx.Tx, userID, itemID uuid.UUID) error {
	query := `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`

	if _, err := tx.Exec(ctx, query, itemID, userID); err != nil {
		r.logger.Error().Err(err).Str("cart_item_id", itemID.String()).Msg("failed to delete cart item")
		return classify(fmt.Errorf("failed to delete cart item: %w", err))
	}
	return nil
}

// ClearByUser removes every cart line of the user within tx.
func (r *cartRepository) ClearByUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int64, error) {
	tag, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to clear cart")
		return 0, classify(fmt.Errorf("failed to clear cart: %w", err))
	}
	return tag.RowsAffected(), nil
}

// ListByUser returns the user's lines joined with their products, oldest first.
func (r *cartRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.CartLine, error) {
	query := `SELECT` + cartItemColumns + `,` + productColumns + `
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE ci.user_id = $1
		ORDER BY ci.created_at, ci.id
	`

	lines := []model.CartLine{}
	err := r.db.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query, userID)
		if err != nil {
			return fmt.Errorf("failed to query cart: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			line, err := scanCartLine(rows)
			if err != nil {
				return fmt.Errorf("failed to scan cart item: %w", err)
			}
			lines = append(lines, *line)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating cart items: %w", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to list cart")
		return nil, classify(err)
	}

	return lines, nil
}

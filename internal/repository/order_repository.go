package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"partshop/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	orderColumns = `
		o.id, o.order_number, o.user_id, o.status, o.total_amount, o.currency,
		o.notes, o.created_at, o.updated_at, o.completed_at
	`
	orderItemColumns = `
		id, order_id, product_id, name, sku, category_name, quantity, price, total_price
	`
)

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	db     *DB
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(db *DB, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		db:     db,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.Status,
		&o.TotalAmount,
		&o.Currency,
		&o.Notes,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Items = []model.OrderItem{}
	return &o, nil
}

func scanOrderItem(row pgx.Row) (*model.OrderItem, error) {
	var item model.OrderItem
	err := row.Scan(
		&item.ID,
		&item.OrderID,
		&item.ProductID,
		&item.Name,
		&item.SKU,
		&item.CategoryName,
		&item.Quantity,
		&item.Price,
		&item.TotalPrice,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateOrder inserts a new order within the provided transaction.
func (r *orderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		INSERT INTO orders (id, order_number, user_id, status, total_amount, currency, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := tx.Exec(ctx, query,
		order.ID,
		order.OrderNumber,
		order.UserID,
		order.Status,
		order.TotalAmount,
		order.Currency,
		order.Notes,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		err = classify(err)
		if errors.Is(err, model.ErrDuplicateOrderNumber) {
			r.logger.Warn().Str("order_number", order.OrderNumber).Msg("duplicate order number")
			return err
		}
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Msg("order created successfully")

	return nil
}

// CreateOrderItems inserts multiple order items within the provided transaction.
func (r *orderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (` + orderItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(query,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.Name,
			item.SKU,
			item.CategoryName,
			item.Quantity,
			item.Price,
			item.TotalPrice,
		)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(items); i++ {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", items[i].OrderID.String()).
				Str("name", items[i].Name).
				Msg("failed to create order item")
			return classify(fmt.Errorf("failed to create order item: %w", err))
		}
	}

	r.logger.Debug().
		Int("count", len(items)).
		Msg("order items created successfully")

	return nil
}

// LockOrder locks the order row and returns it without items, or nil if missing.
func (r *orderRepository) LockOrder(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	query := `SELECT` + orderColumns + `FROM orders o WHERE o.id = $1 FOR UPDATE`

	order, err := scanOrder(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to lock order")
		return nil, classify(fmt.Errorf("failed to lock order: %w", err))
	}
	return order, nil
}

// GetItemForUpdate locks and returns an item of the order, or nil if it is not in the order.
func (r *orderRepository) GetItemForUpdate(ctx context.Context, tx pgx.Tx, orderID, itemID uuid.UUID) (*model.OrderItem, error) {
	query := `SELECT` + orderItemColumns + `
		FROM order_items
		WHERE id = $1 AND order_id = $2
		FOR UPDATE
	`

	item, err := scanOrderItem(tx.QueryRow(ctx, query, itemID, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().
			Err(err).
			Str("order_id", orderID.String()).
			Str("item_id", itemID.String()).
			Msg("failed to lock order item")
		return nil, classify(fmt.Errorf("failed to lock order item: %w", err))
	}
	return item, nil
}

// DeleteItem removes an item from the order.
func (r *orderRepository) DeleteItem(ctx context.Context, tx pgx.Tx, orderID, itemID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM order_items WHERE id = $1 AND order_id = $2`, itemID, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to delete order item")
		return classify(fmt.Errorf("failed to delete order item: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return model.ErrItemNotFound
	}
	return nil
}

// UpdateItemQuantity sets quantity and total price of an order item.
func (r *orderRepository) UpdateItemQuantity(
	ctx context.Context,
	tx pgx.Tx,
	orderID, itemID uuid.UUID,
	quantity int,
	totalPrice decimal.Decimal,
) error {
	query := `
		UPDATE order_items
		SET quantity = $3, total_price = $4
		WHERE id = $1 AND order_id = $2
	`

	tag, err := tx.Exec(ctx, query, itemID, orderID, quantity, totalPrice)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to update order item")
		return classify(fmt.Errorf("failed to update order item: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return model.ErrItemNotFound
	}
	return nil
}

// RecomputeTotal sets the order total to the sum of its item totals and returns it.
func (r *orderRepository) RecomputeTotal(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (decimal.Decimal, error) {
	query := `
		UPDATE orders
		SET total_amount = COALESCE(
				(SELECT SUM(total_price) FROM order_items WHERE order_id = $1), 0
			),
			updated_at = NOW()
		WHERE id = $1
		RETURNING total_amount
	`

	var total decimal.Decimal
	if err := tx.QueryRow(ctx, query, orderID).Scan(&total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, model.ErrOrderNotFound
		}
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to recompute order total")
		return decimal.Zero, classify(fmt.Errorf("failed to recompute order total: %w", err))
	}

	r.logger.Debug().
		Str("order_id", orderID.String()).
		Str("total_amount", total.StringFixed(2)).
		Msg("order total recomputed")

	return total, nil
}

// UpdateStatus sets status and updated_at only.
func (r *orderRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status model.OrderStatus) error {
	tag, err := tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, orderID, status)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to update order status")
		return classify(fmt.Errorf("failed to update order status: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}
	return nil
}

// MarkCompleted records the customer's completion of the order and returns its time.
func (r *orderRepository) MarkCompleted(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (time.Time, error) {
	query := `
		UPDATE orders
		SET completed_at = NOW(), updated_at = NOW()
		WHERE id = $1
		RETURNING completed_at
	`

	var completedAt time.Time
	if err := tx.QueryRow(ctx, query, orderID).Scan(&completedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, model.ErrOrderNotFound
		}
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to mark order completed")
		return time.Time{}, classify(fmt.Errorf("failed to mark order completed: %w", err))
	}
	return completedAt, nil
}

// ListItems returns the order's items as seen by tx.
func (r *orderRepository) ListItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]model.OrderItem, error) {
	byOrder, err := r.loadItems(ctx, tx, []uuid.UUID{orderID})
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to list order items")
		return nil, classify(err)
	}
	if items, ok := byOrder[orderID]; ok {
		return items, nil
	}
	return []model.OrderItem{}, nil
}

// GetByID retrieves an order by its ID along with its items, or nil if missing.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order *model.Order
	err := r.db.withConn(ctx, func(conn *pgxpool.Conn) error {
		o, err := scanOrder(conn.QueryRow(ctx, `SELECT`+orderColumns+`FROM orders o WHERE o.id = $1`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("failed to query order: %w", err)
		}

		byOrder, err := r.loadItems(ctx, conn, []uuid.UUID{o.ID})
		if err != nil {
			return err
		}
		o.Items = byOrder[o.ID]
		if o.Items == nil {
			o.Items = []model.OrderItem{}
		}
		order = o
		return nil
	})
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, classify(err)
	}
	if order == nil {
		r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
	}
	return order, nil
}

// List returns orders matching filter, newest first, with their items.
func (r *orderRepository) List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	var (
		conds []string
		args  []any
	)
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conds = append(conds, fmt.Sprintf("o.user_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("o.status = $%d", len(args)))
	}

	query := `SELECT` + orderColumns + `FROM orders o`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY o.created_at DESC, o.id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	orders := []model.Order{}
	err := r.db.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query orders: %w", err)
		}

		var ids []uuid.UUID
		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan order: %w", err)
			}
			orders = append(orders, *o)
			ids = append(ids, o.ID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating orders: %w", err)
		}

		if len(ids) == 0 {
			return nil
		}

		byOrder, err := r.loadItems(ctx, conn, ids)
		if err != nil {
			return err
		}
		for i := range orders {
			if items, ok := byOrder[orders[i].ID]; ok {
				orders[i].Items = items
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to list orders")
		return nil, classify(err)
	}

	return orders, nil
}

// querier is satisfied by both pooled connections and transactions.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *orderRepository) loadItems(ctx context.Context, q querier, orderIDs []uuid.UUID) (map[uuid.UUID][]model.OrderItem, error) {
	query := `SELECT` + orderItemColumns + `
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, name, id
	`

	rows, err := q.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[uuid.UUID][]model.OrderItem, len(orderIDs))
	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		byOrder[item.OrderID] = append(byOrder[item.OrderID], *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return byOrder, nil
}

package repository

import (
	"context"
	"time"

	"partshop/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ProductRepository defines the interface for product data access operations.
// Lookups return (nil, nil) when nothing matches.
type ProductRepository interface {
	// GetAll retrieves products with pagination support.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by its ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetBySKU retrieves a single product by SKU, falling back to artikul.
	GetBySKU(ctx context.Context, sku string) (*model.Product, error)
}

// UserRepository reads pricing attributes of customer accounts.
type UserRepository interface {
	// GetDiscount returns the user's discount percentage, 0 for unknown users.
	GetDiscount(ctx context.Context, userID uuid.UUID) (int, error)
}

// CartRepository defines the interface for cart line storage.
type CartRepository interface {
	// Upsert inserts a line for (userID, productID) or adds quantity to the existing one.
	// The returned row is locked by tx.
	Upsert(ctx context.Context, tx pgx.Tx, item *model.CartItem) (*model.CartItem, error)

	// GetForUpdate locks the user's cart line and returns it with its product, or nil if it does not exist.
	GetForUpdate(ctx context.Context, tx pgx.Tx, userID, itemID uuid.UUID) (*model.CartLine, error)

	// UpdatePricing writes quantity and the derived price columns of a line.
	UpdatePricing(ctx context.Context, tx pgx.Tx, item *model.CartItem) error

	// Delete removes the user's cart line. It reports whether a row was removed.
	Delete(ctx context.Context, userID, itemID uuid.UUID) (bool, error)

	// DeleteInTx removes the user's cart line within tx.
	DeleteInTx(ctx context.Context, tx pgx.Tx, userID, itemID uuid.UUID) error

	// ClearByUser removes every cart line of the user within tx.
	ClearByUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int64, error)

	// ListByUser returns the user's lines joined with their products.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.CartLine, error)
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// CreateOrder inserts a new order within the provided transaction.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderItems inserts multiple order items within the provided transaction.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// LockOrder locks the order row and returns it without items, or nil if missing.
	LockOrder(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error)

	// GetItemForUpdate locks and returns an item of the order, or nil if it is not in the order.
	GetItemForUpdate(ctx context.Context, tx pgx.Tx, orderID, itemID uuid.UUID) (*model.OrderItem, error)

	// DeleteItem removes an item from the order.
	DeleteItem(ctx context.Context, tx pgx.Tx, orderID, itemID uuid.UUID) error

	// UpdateItemQuantity sets quantity and total price of an order item.
	UpdateItemQuantity(ctx context.Context, tx pgx.Tx, orderID, itemID uuid.UUID, quantity int, totalPrice decimal.Decimal) error

	// RecomputeTotal sets the order total to the sum of its item totals and returns it.
	RecomputeTotal(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (decimal.Decimal, error)

	// UpdateStatus sets status and updated_at only.
	UpdateStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status model.OrderStatus) error

	// MarkCompleted records the customer's completion of the order and returns its time.
	MarkCompleted(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (time.Time, error)

	// ListItems returns the order's items as seen by tx.
	ListItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]model.OrderItem, error)

	// GetByID retrieves an order by its ID along with its items, or nil if missing.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// List returns orders matching filter, newest first, with their items.
	List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)
}

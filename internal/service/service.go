package service

import (
	"context"

	"partshop/internal/model"

	"github.com/google/uuid"
)

// ProductService defines catalogue browsing operations.
type ProductService interface {
	// GetAll retrieves products with pagination. When userID is set each product
	// carries the price that user would pay.
	GetAll(ctx context.Context, userID *uuid.UUID, limit, offset int) ([]model.ProductView, error)

	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, userID *uuid.UUID, id string) (*model.ProductView, error)
}

// CartService defines operations on a user's cart.
type CartService interface {
	// List returns the cart priced against the user's current discount.
	List(ctx context.Context, userID uuid.UUID) (*model.CartView, error)

	// AddItem adds a product by id or SKU, merging with an existing line.
	AddItem(ctx context.Context, userID uuid.UUID, req *model.AddCartItemRequest) (*model.CartLineView, error)

	// UpdateQuantity sets a line quantity. A quantity of zero or less removes the
	// line and returns nil.
	UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*model.CartLineView, error)

	// RemoveItem deletes a line. Removing a missing line is not an error.
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
}

// OrderService defines customer-facing order operations.
type OrderService interface {
	// CreateOrder snapshots caller-priced items into a new pending order.
	CreateOrder(ctx context.Context, userID uuid.UUID, req *model.CreateOrderRequest) (*model.Order, error)

	// Checkout prices the user's cart and snapshots it into a new pending order.
	Checkout(ctx context.Context, userID uuid.UUID, req *model.CheckoutRequest) (*model.Order, error)

	// CompleteOrder confirms a pending order and clears the user's cart.
	CompleteOrder(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error)

	// GetOrder retrieves one of the user's orders.
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error)

	// ListOrders pages through the user's orders, newest first.
	ListOrders(ctx context.Context, userID uuid.UUID, status *model.OrderStatus, limit, offset int) (*model.OrderList, error)
}

// AdminOrderService defines back-office order operations. Every mutation keeps the
// order total equal to the sum of its item totals.
type AdminOrderService interface {
	RemoveOrderItem(ctx context.Context, orderID, itemID uuid.UUID) (*model.Order, error)
	UpdateItemQuantity(ctx context.Context, orderID, itemID uuid.UUID, quantity int) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status string) (*model.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error)
	ListOrders(ctx context.Context, filter model.OrderFilter) (*model.OrderList, error)
}

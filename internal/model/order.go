package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

// forward-only graph used when strict transitions are enabled
var allowedTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

// ParseOrderStatus converts raw input into a known status.
func ParseOrderStatus(s string) (OrderStatus, error) {
	candidate := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range orderStatuses {
		if st == candidate {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

// IsTerminal reports whether no further transitions are possible from s.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether s may move to next under the forward-only graph.
// Setting the current status again is always allowed. Terminal statuses go nowhere.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Order represents a customer order.
type Order struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OrderNumber string          `json:"orderNumber" db:"order_number"`
	UserID      uuid.UUID       `json:"userId" db:"user_id"`
	Status      OrderStatus     `json:"status" db:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount" db:"total_amount"`
	Currency    string          `json:"currency" db:"currency"`
	Notes       *string         `json:"notes,omitempty" db:"notes"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
	CompletedAt *time.Time      `json:"completedAt,omitempty" db:"completed_at"`
	Items       []OrderItem     `json:"items"`
}

// OrderItem is a frozen line of an order. ProductID is informational only.
type OrderItem struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OrderID      uuid.UUID       `json:"orderId" db:"order_id"`
	ProductID    *string         `json:"productId,omitempty" db:"product_id"`
	Name         string          `json:"name" db:"name"`
	SKU          string          `json:"sku" db:"sku"`
	CategoryName string          `json:"categoryName" db:"category_name"`
	Quantity     int             `json:"quantity" db:"quantity"`
	Price        decimal.Decimal `json:"price" db:"price"`
	TotalPrice   decimal.Decimal `json:"totalPrice" db:"total_price"`
}

// PricedItem is one line handed to the snapshotter with its price already decided.
type PricedItem struct {
	ProductID    *string         `json:"productId,omitempty"`
	Name         string          `json:"name" validate:"required"`
	SKU          string          `json:"sku"`
	CategoryName string          `json:"categoryName"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
}

// CreateOrderRequest represents the request payload for creating an order.
type CreateOrderRequest struct {
	OrderNumber string           `json:"orderNumber" validate:"required,max=64"`
	Items       []PricedItem     `json:"items" validate:"required,min=1,dive"`
	TotalAmount *decimal.Decimal `json:"totalAmount,omitempty"`
	Notes       *string          `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// CheckoutRequest asks the server to price the caller's cart into a new order.
type CheckoutRequest struct {
	OrderNumber string  `json:"orderNumber" validate:"required,max=64"`
	Notes       *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// UpdateOrderItemRequest changes the quantity of an order line.
type UpdateOrderItemRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateOrderStatusRequest moves an order to another status.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// OrderFilter narrows order listings. A nil UserID lists every user's orders.
type OrderFilter struct {
	UserID *uuid.UUID
	Status *OrderStatus
	Limit  int
	Offset int
}

// OrderList is a page of orders.
type OrderList struct {
	Orders []Order `json:"orders"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

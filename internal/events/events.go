// Package events publishes order lifecycle notifications.
package events

import (
	"context"
	"time"

	"partshop/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names an order lifecycle event.
type EventType string

const (
	OrderCreated       EventType = "order.created"
	OrderCompleted     EventType = "order.completed"
	OrderStatusChanged EventType = "order.status_changed"
	OrderItemsChanged  EventType = "order.items_changed"
)

// OrderEvent is the payload published for every order lifecycle change.
type OrderEvent struct {
	ID             uuid.UUID         `json:"id"`
	Type           EventType         `json:"type"`
	OrderID        uuid.UUID         `json:"orderId"`
	OrderNumber    string            `json:"orderNumber"`
	UserID         uuid.UUID         `json:"userId"`
	Status         model.OrderStatus `json:"status"`
	PreviousStatus model.OrderStatus `json:"previousStatus,omitempty"`
	TotalAmount    decimal.Decimal   `json:"totalAmount"`
	Currency       string            `json:"currency"`
	ItemCount      int               `json:"itemCount"`
	OccurredAt     time.Time         `json:"occurredAt"`
}

// NewOrderEvent builds an event describing order as it is now.
func NewOrderEvent(t EventType, order *model.Order) OrderEvent {
	return OrderEvent{
		ID:          uuid.New(),
		Type:        t,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		ItemCount:   len(order.Items),
		OccurredAt:  time.Now().UTC(),
	}
}

// Publisher delivers order events. Callers publish only after the change is committed.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, OrderEvent) error { return nil }
func (NopPublisher) Close() error                              { return nil }

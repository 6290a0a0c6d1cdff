package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"partshop/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func sampleOrder() *model.Order {
	return &model.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD-42",
		UserID:      uuid.New(),
		Status:      model.StatusConfirmed,
		TotalAmount: decimal.RequireFromString("250.00"),
		Currency:    "RUB",
		Items:       []model.OrderItem{{}, {}},
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := newKafkaPublisher(w, zerolog.Nop())

	order := sampleOrder()
	event := NewOrderEvent(OrderStatusChanged, order)
	event.PreviousStatus = model.StatusPending

	require.NoError(t, p.Publish(context.Background(), event))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, order.ID.String(), string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "order.status_changed", string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "order.status_changed", decoded["type"])
	assert.Equal(t, "ORD-42", decoded["orderNumber"])
	assert.Equal(t, "confirmed", decoded["status"])
	assert.Equal(t, "pending", decoded["previousStatus"])
	assert.Equal(t, "250", decoded["totalAmount"])
	assert.Equal(t, float64(2), decoded["itemCount"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := newKafkaPublisher(w, zerolog.Nop())

	err := p.Publish(context.Background(), NewOrderEvent(OrderCreated, sampleOrder()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order.created")
	assert.Contains(t, err.Error(), "broker down")
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), NewOrderEvent(OrderCreated, sampleOrder())))
	assert.NoError(t, p.Close())
}

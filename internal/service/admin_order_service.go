package service

import (
	"context"
	"fmt"
	"time"

	"partshop/internal/events"
	"partshop/internal/metrics"
	"partshop/internal/model"
	"partshop/internal/pricing"
	"partshop/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// adminOrderService implements AdminOrderService.
type adminOrderService struct {
	db                repository.Transactor
	orderRepo         repository.OrderRepository
	publisher         events.Publisher
	retry             *retrier
	metrics           *metrics.Metrics
	strictTransitions bool
	logger            zerolog.Logger
}

// NewAdminOrderService creates a new admin order service. With strictTransitions set,
// status changes must follow the forward-only lifecycle.
func NewAdminOrderService(
	db repository.Transactor,
	orderRepo repository.OrderRepository,
	publisher events.Publisher,
	m *metrics.Metrics,
	strictTransitions bool,
	logger zerolog.Logger,
) AdminOrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	logger = logger.With().Str("service", "admin_order").Logger()
	return &adminOrderService{
		db:                db,
		orderRepo:         orderRepo,
		publisher:         publisher,
		retry:             newRetrier(defaultRetryDelay, m, logger),
		metrics:           m,
		strictTransitions: strictTransitions,
		logger:            logger,
	}
}

// RemoveOrderItem deletes an item and recomputes the order total.
func (s *adminOrderService) RemoveOrderItem(ctx context.Context, orderID, itemID uuid.UUID) (*model.Order, error) {
	order, err := s.mutate(ctx, "remove_order_item", orderID, func(tx pgx.Tx) error {
		return s.orderRepo.DeleteItem(ctx, tx, orderID, itemID)
	})
	if err != nil {
		return nil, s.mutationError(err, orderID, itemID, "failed to remove order item")
	}

	s.metrics.IncOrder("item_removed")
	publish(ctx, s.publisher, s.logger, events.NewOrderEvent(events.OrderItemsChanged, order))

	s.logger.Info().
		Str("order_id", orderID.String()).
		Str("item_id", itemID.String()).
		Str("total_amount", order.TotalAmount.StringFixed(2)).
		Msg("order item removed")

	return order, nil
}

// UpdateItemQuantity sets an item's quantity, re-totals it at its stored unit price
// and recomputes the order total.
func (s *adminOrderService) UpdateItemQuantity(ctx context.Context, orderID, itemID uuid.UUID, quantity int) (*model.Order, error) {
	if quantity < 1 {
		s.logger.Warn().Str("order_id", orderID.String()).Int("quantity", quantity).Msg("invalid quantity")
		return nil, model.ErrInvalidQuantity
	}

	order, err := s.mutate(ctx, "update_order_item", orderID, func(tx pgx.Tx) error {
		item, err := s.orderRepo.GetItemForUpdate(ctx, tx, orderID, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return model.ErrItemNotFound
		}
		total := pricing.LineTotal(item.Price, quantity)
		return s.orderRepo.UpdateItemQuantity(ctx, tx, orderID, itemID, quantity, total)
	})
	if err != nil {
		return nil, s.mutationError(err, orderID, itemID, "failed to update order item")
	}

	s.metrics.IncOrder("item_updated")
	publish(ctx, s.publisher, s.logger, events.NewOrderEvent(events.OrderItemsChanged, order))

	s.logger.Info().
		Str("order_id", orderID.String()).
		Str("item_id", itemID.String()).
		Int("quantity", quantity).
		Str("total_amount", order.TotalAmount.StringFixed(2)).
		Msg("order item quantity updated")

	return order, nil
}

// mutate locks the order, applies change and recomputes the total in one transaction.
// The returned order reflects the committed state.
func (s *adminOrderService) mutate(
	ctx context.Context,
	op string,
	orderID uuid.UUID,
	change func(tx pgx.Tx) error,
) (*model.Order, error) {
	return withRetry(ctx, s.retry, op, func() (*model.Order, error) {
		var order *model.Order
		err := runInTx(ctx, s.db, s.logger, func(tx pgx.Tx) error {
			var err error
			order, err = s.orderRepo.LockOrder(ctx, tx, orderID)
			if err != nil {
				return err
			}
			if order == nil {
				return model.ErrOrderNotFound
			}

			if err = change(tx); err != nil {
				return err
			}

			if order.TotalAmount, err = s.orderRepo.RecomputeTotal(ctx, tx, orderID); err != nil {
				return err
			}
			order.Items, err = s.orderRepo.ListItems(ctx, tx, orderID)
			return err
		})
		return order, err
	})
}

// UpdateOrderStatus moves the order to status. Only status and updated_at change.
func (s *adminOrderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, raw string) (*model.Order, error) {
	status, err := model.ParseOrderStatus(raw)
	if err != nil {
		s.logger.Warn().Str("order_id", orderID.String()).Str("status", raw).Msg("unknown order status")
		return nil, err
	}

	var previous model.OrderStatus
	order, err := withRetry(ctx, s.retry, "update_order_status", func() (*model.Order, error) {
		var order *model.Order
		err := runInTx(ctx, s.db, s.logger, func(tx pgx.Tx) error {
			var err error
			order, err = s.orderRepo.LockOrder(ctx, tx, orderID)
			if err != nil {
				return err
			}
			if order == nil {
				return model.ErrOrderNotFound
			}

			previous = order.Status
			if s.strictTransitions && !previous.CanTransitionTo(status) {
				return model.ErrIllegalStatusTransition
			}
			if previous != status {
				if err := s.orderRepo.UpdateStatus(ctx, tx, orderID, status); err != nil {
					return err
				}
				order.Status = status
				order.UpdatedAt = time.Now().UTC()
			}

			order.Items, err = s.orderRepo.ListItems(ctx, tx, orderID)
			return err
		})
		return order, err
	})
	if err != nil {
		if model.KindOf(err) == model.KindInternal {
			s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to update order status")
		} else {
			s.logger.Warn().
				Err(err).
				Str("order_id", orderID.String()).
				Str("status", string(status)).
				Msg("order status update rejected")
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if previous == status {
		return order, nil
	}

	s.metrics.IncOrder("status_changed")
	event := events.NewOrderEvent(events.OrderStatusChanged, order)
	event.PreviousStatus = previous
	publish(ctx, s.publisher, s.logger, event)

	s.logger.Info().
		Str("order_id", orderID.String()).
		Str("from", string(previous)).
		Str("to", string(status)).
		Msg("order status updated")

	return order, nil
}

// GetOrder retrieves any order by ID.
func (s *adminOrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	order, err := withRetry(ctx, s.retry, "get_order", func() (*model.Order, error) {
		return s.orderRepo.GetByID(ctx, orderID)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

// ListOrders pages through orders of every user matching filter.
func (s *adminOrderService) ListOrders(ctx context.Context, filter model.OrderFilter) (*model.OrderList, error) {
	return listOrders(ctx, s.orderRepo, s.retry, s.metrics, s.logger, filter)
}

func (s *adminOrderService) mutationError(err error, orderID, itemID uuid.UUID, msg string) error {
	level := zerolog.ErrorLevel
	if model.KindOf(err) != model.KindInternal {
		level = zerolog.WarnLevel
	}
	s.logger.WithLevel(level).Err(err).
		Str("order_id", orderID.String()).
		Str("item_id", itemID.String()).
		Msg(msg)
	return fmt.Errorf("%s: %w", msg, err)
}

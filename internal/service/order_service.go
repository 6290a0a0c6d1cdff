package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"partshop/internal/config"
	"partshop/internal/events"
	"partshop/internal/metrics"
	"partshop/internal/model"
	"partshop/internal/pricing"
	"partshop/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// amountTolerance is how far a caller-supplied total may drift from the computed one.
var amountTolerance = decimal.RequireFromString("0.01")

// orderService implements OrderService.
type orderService struct {
	db        repository.Transactor
	orderRepo repository.OrderRepository
	cartRepo  repository.CartRepository
	userRepo  repository.UserRepository
	publisher events.Publisher
	retry     *retrier
	metrics   *metrics.Metrics
	currency  string
	logger    zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	db repository.Transactor,
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	userRepo repository.UserRepository,
	publisher events.Publisher,
	m *metrics.Metrics,
	cfg config.OrdersConfig,
	logger zerolog.Logger,
) OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	currency := cfg.Currency
	if currency == "" {
		currency = config.DefaultCurrency
	}
	logger = logger.With().Str("service", "order").Logger()
	return &orderService{
		db:        db,
		orderRepo: orderRepo,
		cartRepo:  cartRepo,
		userRepo:  userRepo,
		publisher: publisher,
		retry:     newRetrier(defaultRetryDelay, m, logger),
		metrics:   m,
		currency:  currency,
		logger:    logger,
	}
}

// CreateOrder snapshots caller-priced items into a new pending order. Prices are
// taken as given; totals must agree with them within one cent.
func (s *orderService) CreateOrder(ctx context.Context, userID uuid.UUID, req *model.CreateOrderRequest) (*model.Order, error) {
	if req == nil {
		return nil, model.ErrEmptyOrder
	}

	items, total, err := s.validateItems(req.Items)
	if err != nil {
		return nil, err
	}

	if req.TotalAmount != nil && req.TotalAmount.Sub(total).Abs().GreaterThan(amountTolerance) {
		s.logger.Warn().
			Str("user_id", userID.String()).
			Str("total_amount", req.TotalAmount.StringFixed(2)).
			Str("items_total", total.StringFixed(2)).
			Msg("order total does not match items")
		return nil, model.ErrInvalidOrderPayload
	}

	return s.create(ctx, userID, req.OrderNumber, items, total, req.Notes)
}

// Checkout prices the user's current cart and snapshots it into a new pending order.
// The cart is left untouched until the order is completed.
func (s *orderService) Checkout(ctx context.Context, userID uuid.UUID, req *model.CheckoutRequest) (*model.Order, error) {
	if req == nil {
		return nil, model.InvalidInput("orderNumber is required")
	}

	lines, err := withRetry(ctx, s.retry, "checkout", func() ([]model.CartLine, error) {
		return s.cartRepo.ListByUser(ctx, userID)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to read cart for checkout")
		return nil, fmt.Errorf("failed to checkout: %w", err)
	}
	if len(lines) == 0 {
		s.logger.Warn().Str("user_id", userID.String()).Msg("checkout of empty cart")
		return nil, model.ErrEmptyOrder
	}

	discount, err := withRetry(ctx, s.retry, "get_discount", func() (int, error) {
		return s.userRepo.GetDiscount(ctx, userID)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to get user discount")
		return nil, fmt.Errorf("failed to checkout: %w", err)
	}

	priced := make([]model.PricedItem, len(lines))
	for i, line := range lines {
		unit := pricing.ResolvePrice(line.BasePrice, line.Product.SalePrice, discount)
		productID := line.ProductID
		priced[i] = model.PricedItem{
			ProductID:    &productID,
			Name:         line.Product.Name,
			SKU:          line.Product.SKU,
			CategoryName: line.Product.CategoryName,
			Quantity:     line.Quantity,
			Price:        unit,
			TotalPrice:   pricing.LineTotal(unit, line.Quantity),
		}
	}

	items, total, err := s.validateItems(priced)
	if err != nil {
		return nil, err
	}

	return s.create(ctx, userID, req.OrderNumber, items, total, req.Notes)
}

func (s *orderService) create(
	ctx context.Context,
	userID uuid.UUID,
	orderNumber string,
	items []model.OrderItem,
	total decimal.Decimal,
	notes *string,
) (*model.Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, model.InvalidInput("orderNumber is required")
	}

	now := time.Now().UTC()
	order := &model.Order{
		ID:          uuid.New(),
		OrderNumber: orderNumber,
		UserID:      userID,
		Status:      model.StatusPending,
		TotalAmount: total,
		Currency:    s.currency,
		Notes:       notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i := range items {
		items[i].ID = uuid.New()
		items[i].OrderID = order.ID
	}

	_, err := withRetry(ctx, s.retry, "create_order", func() (struct{}, error) {
		return struct{}{}, runInTx(ctx, s.db, s.logger, func(tx pgx.Tx) error {
			if err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
				return err
			}
			return s.orderRepo.CreateOrderItems(ctx, tx, items)
		})
	})
	if err != nil {
		if model.KindOf(err) == model.KindConflict {
			s.logger.Warn().
				Str("user_id", userID.String()).
				Str("order_number", orderNumber).
				Msg("order number already used")
			return nil, err
		}
		s.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Int("item_count", len(items)).
			Msg("failed to create order")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	order.Items = items

	s.metrics.IncOrder("created")
	s.metrics.AddOrderAmount(order.Currency, order.TotalAmount.InexactFloat64())
	publish(ctx, s.publisher, s.logger, events.NewOrderEvent(events.OrderCreated, order))

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("user_id", userID.String()).
		Int("item_count", len(items)).
		Str("total_amount", order.TotalAmount.StringFixed(2)).
		Msg("order created successfully")

	return order, nil
}

// CompleteOrder records the customer's completion of an order. The first call
// clears the user's cart and confirms the order if it is still pending, all in one
// transaction. Later calls change nothing.
func (s *orderService) CompleteOrder(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error) {
	var (
		previous model.OrderStatus
		first    bool
		cleared  int64
	)

	order, err := withRetry(ctx, s.retry, "complete_order", func() (*model.Order, error) {
		var order *model.Order
		err := runInTx(ctx, s.db, s.logger, func(tx pgx.Tx) error {
			var err error
			order, err = s.orderRepo.LockOrder(ctx, tx, orderID)
			if err != nil {
				return err
			}
			if order == nil || order.UserID != userID {
				return model.ErrOrderNotFound
			}

			previous = order.Status
			first = order.CompletedAt == nil
			if first {
				if order.Status == model.StatusCancelled {
					return model.ErrIllegalStatusTransition
				}
				if order.Status == model.StatusPending {
					if err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, model.StatusConfirmed); err != nil {
						return err
					}
					order.Status = model.StatusConfirmed
				}

				completedAt, err := s.orderRepo.MarkCompleted(ctx, tx, order.ID)
				if err != nil {
					return err
				}
				order.CompletedAt = &completedAt
				order.UpdatedAt = completedAt

				if cleared, err = s.cartRepo.ClearByUser(ctx, tx, userID); err != nil {
					return err
				}
			}

			order.Items, err = s.orderRepo.ListItems(ctx, tx, order.ID)
			return err
		})
		return order, err
	})
	if err != nil {
		level := zerolog.ErrorLevel
		if model.KindOf(err) != model.KindInternal {
			level = zerolog.WarnLevel
		}
		s.logger.WithLevel(level).Err(err).
			Str("user_id", userID.String()).
			Str("order_id", orderID.String()).
			Msg("failed to complete order")
		return nil, fmt.Errorf("failed to complete order: %w", err)
	}

	if !first {
		s.logger.Debug().
			Str("order_id", order.ID.String()).
			Str("status", string(order.Status)).
			Msg("order already completed")
		return order, nil
	}

	s.metrics.IncOrder("completed")
	event := events.NewOrderEvent(events.OrderCompleted, order)
	event.PreviousStatus = previous
	publish(ctx, s.publisher, s.logger, event)

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("user_id", userID.String()).
		Str("status", string(order.Status)).
		Int64("cart_lines_cleared", cleared).
		Msg("order completed")

	return order, nil
}

// GetOrder retrieves one of the user's orders. Orders of other users are reported
// as not found.
func (s *orderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error) {
	order, err := withRetry(ctx, s.retry, "get_order", func() (*model.Order, error) {
		return s.orderRepo.GetByID(ctx, orderID)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil || order.UserID != userID {
		s.logger.Debug().Str("order_id", orderID.String()).Str("user_id", userID.String()).Msg("order not found")
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

// ListOrders pages through the user's orders. When the store cannot be reached the
// page is reported empty.
func (s *orderService) ListOrders(
	ctx context.Context,
	userID uuid.UUID,
	status *model.OrderStatus,
	limit, offset int,
) (*model.OrderList, error) {
	return listOrders(ctx, s.orderRepo, s.retry, s.metrics, s.logger, model.OrderFilter{
		UserID: &userID,
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
}

// validateItems checks caller-priced items and converts them to order lines.
// A supplied line total is only checked; the stored total is always price × quantity.
func (s *orderService) validateItems(priced []model.PricedItem) ([]model.OrderItem, decimal.Decimal, error) {
	if len(priced) == 0 {
		return nil, decimal.Zero, model.ErrEmptyOrder
	}

	items := make([]model.OrderItem, len(priced))
	total := decimal.Zero
	for i, p := range priced {
		if p.Quantity < 1 {
			s.logger.Warn().Int("item_index", i).Int("quantity", p.Quantity).Msg("invalid quantity")
			return nil, decimal.Zero, model.ErrInvalidQuantity
		}
		if strings.TrimSpace(p.Name) == "" {
			return nil, decimal.Zero, model.InvalidInput(fmt.Sprintf("item %d: name is required", i))
		}
		if p.Price.IsNegative() || p.TotalPrice.IsNegative() {
			return nil, decimal.Zero, model.InvalidInput(fmt.Sprintf("item %d: prices must not be negative", i))
		}
		if !p.Price.Equal(p.Price.Round(2)) {
			s.logger.Warn().Int("item_index", i).Str("price", p.Price.String()).Msg("price has more than two decimals")
			return nil, decimal.Zero, model.InvalidInput(fmt.Sprintf("item %d: price must have at most two decimal places", i))
		}

		lineTotal := pricing.LineTotal(p.Price, p.Quantity)
		if !p.TotalPrice.IsZero() && p.TotalPrice.Sub(lineTotal).Abs().GreaterThan(amountTolerance) {
			s.logger.Warn().
				Int("item_index", i).
				Str("price", p.Price.StringFixed(2)).
				Int("quantity", p.Quantity).
				Str("total_price", p.TotalPrice.StringFixed(2)).
				Msg("item total does not match price and quantity")
			return nil, decimal.Zero, model.ErrInvalidOrderPayload
		}

		items[i] = model.OrderItem{
			ProductID:    p.ProductID,
			Name:         p.Name,
			SKU:          p.SKU,
			CategoryName: p.CategoryName,
			Quantity:     p.Quantity,
			Price:        p.Price,
			TotalPrice:   lineTotal,
		}
		total = total.Add(lineTotal)
	}

	return items, total, nil
}

func listOrders(
	ctx context.Context,
	repo repository.OrderRepository,
	retry *retrier,
	m *metrics.Metrics,
	logger zerolog.Logger,
	filter model.OrderFilter,
) (*model.OrderList, error) {
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)

	orders, err := withRetry(ctx, retry, "list_orders", func() ([]model.Order, error) {
		return repo.List(ctx, filter)
	})
	if err != nil {
		if !repository.IsUnavailable(err) {
			logger.Error().Err(err).Msg("failed to list orders")
			return nil, fmt.Errorf("failed to list orders: %w", err)
		}
		logger.Warn().Err(err).Msg("store unavailable, returning empty order list")
		m.IncDegradedRead("list_orders")
		orders = []model.Order{}
	}

	return &model.OrderList{
		Orders: orders,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

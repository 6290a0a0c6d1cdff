package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"partshop/internal/metrics"
	"partshop/internal/model"
	"partshop/internal/pricing"
	"partshop/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// cartService implements CartService.
type cartService struct {
	db          repository.Transactor
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	retry       *retrier
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(
	db repository.Transactor,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	m *metrics.Metrics,
	logger zerolog.Logger,
) CartService {
	logger = logger.With().Str("service", "cart").Logger()
	return &cartService{
		db:          db,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		retry:       newRetrier(defaultRetryDelay, m, logger),
		metrics:     m,
		logger:      logger,
	}
}

// List returns the cart priced against the user's current discount. When the store
// cannot be reached the cart is reported empty.
func (s *cartService) List(ctx context.Context, userID uuid.UUID) (*model.CartView, error) {
	discount, err := s.discount(ctx, userID)
	if err != nil {
		return s.degrade(userID, err)
	}

	lines, err := withRetry(ctx, s.retry, "list_cart", func() ([]model.CartLine, error) {
		return s.cartRepo.ListByUser(ctx, userID)
	})
	if err != nil {
		return s.degrade(userID, err)
	}

	view := model.EmptyCart()
	for i := range lines {
		line := priceLine(&lines[i], discount)
		view.Items = append(view.Items, line)
		view.TotalItems += line.Quantity
		view.TotalPrice = view.TotalPrice.Add(line.TotalPrice)
		view.TotalSalePrice = view.TotalSalePrice.Add(line.TotalSalePrice)
	}
	view.Savings = decimal.Max(decimal.Zero, view.TotalPrice.Sub(view.TotalSalePrice))

	s.logger.Debug().
		Str("user_id", userID.String()).
		Int("lines", len(view.Items)).
		Int("discount", discount).
		Msg("cart listed")

	return view, nil
}

func (s *cartService) degrade(userID uuid.UUID, err error) (*model.CartView, error) {
	if !repository.IsUnavailable(err) {
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to list cart")
		return nil, fmt.Errorf("failed to list cart: %w", err)
	}
	s.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("store unavailable, returning empty cart")
	s.metrics.IncDegradedRead("list_cart")
	return model.EmptyCart(), nil
}

// AddItem adds a product to the cart. A repeated add of the same product merges into
// the existing line and keeps its original base price.
func (s *cartService) AddItem(ctx context.Context, userID uuid.UUID, req *model.AddCartItemRequest) (*model.CartLineView, error) {
	if req == nil {
		return nil, model.InvalidInput("request body is required")
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity < 1 {
		s.logger.Warn().Str("user_id", userID.String()).Int("quantity", quantity).Msg("invalid quantity")
		return nil, model.ErrInvalidQuantity
	}

	product, err := s.findProduct(ctx, req)
	if err != nil {
		return nil, err
	}

	discount, err := s.discount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	line, err := withRetry(ctx, s.retry, "add_cart_item", func() (*model.CartLine, error) {
		var line *model.CartLine
		err := runInTx(ctx, s.db, s.logger, func(tx pgx.Tx) error {
			now := time.Now().UTC()
			effective := pricing.ResolvePrice(product.BasePrice, product.SalePrice, discount)
			saved, err := s.cartRepo.Upsert(ctx, tx, &model.CartItem{
				ID:             uuid.New(),
				UserID:         userID,
				ProductID:      product.ID,
				Quantity:       quantity,
				BasePrice:      product.BasePrice,
				SalePrice:      decimal.NewNullDecimal(effective),
				TotalPrice:     pricing.LineTotal(product.BasePrice, quantity),
				TotalSalePrice: pricing.LineTotal(effective, quantity),
				CreatedAt:      now,
			})
			if err != nil {
				return err
			}

			line = &model.CartLine{CartItem: *saved, Product: *product}
			return s.reprice(ctx, tx, line, discount)
		})
		return line, err
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID.String()).
			Str("product_id", product.ID).
			Msg("failed to add cart item")
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	s.metrics.IncCartMutation("add")
	s.logger.Info().
		Str("user_id", userID.String()).
		Str("product_id", product.ID).
		Str("cart_item_id", line.ID.String()).
		Int("quantity", line.Quantity).
		Msg("cart item added")

	view := priceLine(line, discount)
	return &view, nil
}

// UpdateQuantity sets the quantity of a line and re-prices it against the user's
// current discount. A quantity of zero or less removes the line.
func (s *cartService) UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*model.CartLineView, error) {
	if quantity <= 0 {
		_, err := withRetry(ctx, s.retry, "remove_cart_item", func() (struct{}, error) {
			return struct{}{}, runInTx(ctx, s.db, s.logger, func(tx pgx.Tx) error {
				line, err := s.cartRepo.GetForUpdate(ctx, tx, userID, itemID)
				if err != nil {
					return err
				}
				if line == nil {
					return model.ErrCartItemNotFound
				}
				return s.cartRepo.DeleteInTx(ctx, tx, userID, itemID)
			})
		})
		if err != nil {
			return nil, s.mutationError(err, userID, itemID, "failed to remove cart item")
		}

		s.metrics.IncCartMutation("remove")
		s.logger.Info().
			Str("user_id", userID.String()).
			Str("cart_item_id", itemID.String()).
			Msg("cart item removed by zero quantity")
		return nil, nil
	}

	discount, err := s.discount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}

	line, err := withRetry(ctx, s.retry, "update_cart_item", func() (*model.CartLine, error) {
		var line *model.CartLine
		err := runInTx(ctx, s.db, s.logger, func(tx pgx.Tx) error {
			var err error
			line, err = s.cartRepo.GetForUpdate(ctx, tx, userID, itemID)
			if err != nil {
				return err
			}
			if line == nil {
				return model.ErrCartItemNotFound
			}
			line.Quantity = quantity
			return s.reprice(ctx, tx, line, discount)
		})
		return line, err
	})
	if err != nil {
		return nil, s.mutationError(err, userID, itemID, "failed to update cart item")
	}

	s.metrics.IncCartMutation("update")
	s.logger.Info().
		Str("user_id", userID.String()).
		Str("cart_item_id", itemID.String()).
		Int("quantity", quantity).
		Msg("cart item updated")

	view := priceLine(line, discount)
	return &view, nil
}

// RemoveItem deletes a line. Removing a missing line is not an error.
func (s *cartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	deleted, err := withRetry(ctx, s.retry, "remove_cart_item", func() (bool, error) {
		return s.cartRepo.Delete(ctx, userID, itemID)
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID.String()).
			Str("cart_item_id", itemID.String()).
			Msg("failed to remove cart item")
		return fmt.Errorf("failed to remove cart item: %w", err)
	}

	if deleted {
		s.metrics.IncCartMutation("remove")
	}
	s.logger.Debug().
		Str("user_id", userID.String()).
		Str("cart_item_id", itemID.String()).
		Bool("deleted", deleted).
		Msg("cart item remove handled")

	return nil
}

func (s *cartService) findProduct(ctx context.Context, req *model.AddCartItemRequest) (*model.Product, error) {
	productID := strings.TrimSpace(req.ProductID)
	sku := strings.TrimSpace(req.SKU)

	var (
		product *model.Product
		err     error
	)
	switch {
	case productID != "":
		product, err = withRetry(ctx, s.retry, "get_product", func() (*model.Product, error) {
			return s.productRepo.GetByID(ctx, productID)
		})
	case sku != "":
		product, err = withRetry(ctx, s.retry, "get_product", func() (*model.Product, error) {
			return s.productRepo.GetBySKU(ctx, sku)
		})
	default:
		return nil, model.InvalidInput("productId or sku is required")
	}
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", productID).Str("sku", sku).Msg("failed to look up product")
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		s.logger.Debug().Str("product_id", productID).Str("sku", sku).Msg("product not found")
		return nil, model.ErrProductNotFound
	}
	return product, nil
}

func (s *cartService) discount(ctx context.Context, userID uuid.UUID) (int, error) {
	return withRetry(ctx, s.retry, "get_discount", func() (int, error) {
		return s.userRepo.GetDiscount(ctx, userID)
	})
}

// reprice recomputes the derived price columns of line and stores them.
func (s *cartService) reprice(ctx context.Context, tx pgx.Tx, line *model.CartLine, discount int) error {
	effective := pricing.ResolvePrice(line.BasePrice, line.Product.SalePrice, discount)
	line.SalePrice = decimal.NewNullDecimal(effective)
	line.TotalPrice = pricing.LineTotal(line.BasePrice, line.Quantity)
	line.TotalSalePrice = pricing.LineTotal(effective, line.Quantity)
	return s.cartRepo.UpdatePricing(ctx, tx, &line.CartItem)
}

func (s *cartService) mutationError(err error, userID, itemID uuid.UUID, msg string) error {
	level := zerolog.ErrorLevel
	if model.KindOf(err) == model.KindNotFound {
		level = zerolog.WarnLevel
	}
	s.logger.WithLevel(level).Err(err).
		Str("user_id", userID.String()).
		Str("cart_item_id", itemID.String()).
		Msg(msg)
	return fmt.Errorf("%s: %w", msg, err)
}

// priceLine resolves the line against discount using its snapshot base price.
func priceLine(line *model.CartLine, discount int) model.CartLineView {
	effective := pricing.ResolvePrice(line.BasePrice, line.Product.SalePrice, discount)
	return model.CartLineView{
		ID:             line.ID,
		ProductID:      line.ProductID,
		Name:           line.Product.Name,
		SKU:            line.Product.SKU,
		CategoryName:   line.Product.CategoryName,
		Quantity:       line.Quantity,
		BasePrice:      line.BasePrice,
		EffectivePrice: effective,
		TotalPrice:     pricing.LineTotal(line.BasePrice, line.Quantity),
		TotalSalePrice: pricing.LineTotal(effective, line.Quantity),
	}
}

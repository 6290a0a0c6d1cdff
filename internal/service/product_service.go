package service

import (
	"context"
	"fmt"

	"partshop/internal/model"
	"partshop/internal/pricing"
	"partshop/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// productService implements ProductService.
type productService struct {
	productRepo  repository.ProductRepository
	userRepo     repository.UserRepository
	flagBadSales bool
	logger       zerolog.Logger
}

// NewProductService creates a new product service. With flagBadSales set, products
// whose sale price is not below their base price are reported in the log.
func NewProductService(
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	flagBadSales bool,
	logger zerolog.Logger,
) ProductService {
	return &productService{
		productRepo:  productRepo,
		userRepo:     userRepo,
		flagBadSales: flagBadSales,
		logger:       logger.With().Str("service", "product").Logger(),
	}
}

// GetAll retrieves all products with pagination.
func (s *productService) GetAll(ctx context.Context, userID *uuid.UUID, limit, offset int) ([]model.ProductView, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	discount, err := s.discount(ctx, userID)
	if err != nil {
		return nil, err
	}

	products, err := s.productRepo.GetAll(ctx, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to get all products")
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	views := make([]model.ProductView, len(products))
	for i := range products {
		views[i] = s.view(&products[i], discount)
	}

	s.logger.Debug().
		Int("count", len(views)).
		Int("limit", limit).
		Int("offset", offset).
		Msg("retrieved products")

	return views, nil
}

// GetByID retrieves a single product by ID.
func (s *productService) GetByID(ctx context.Context, userID *uuid.UUID, id string) (*model.ProductView, error) {
	if id == "" {
		s.logger.Warn().Msg("product ID is empty")
		return nil, model.ErrProductNotFound
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("failed to get product by ID")
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if product == nil {
		s.logger.Debug().Str("product_id", id).Msg("product not found")
		return nil, model.ErrProductNotFound
	}

	discount, err := s.discount(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := s.view(product, discount)
	return &view, nil
}

func (s *productService) discount(ctx context.Context, userID *uuid.UUID) (int, error) {
	if userID == nil {
		return 0, nil
	}
	discount, err := s.userRepo.GetDiscount(ctx, *userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to get user discount")
		return 0, fmt.Errorf("failed to get user discount: %w", err)
	}
	return discount, nil
}

func (s *productService) view(p *model.Product, discount int) model.ProductView {
	if s.flagBadSales && p.SalePrice.Valid && !pricing.HasValidSale(p.BasePrice, p.SalePrice) {
		s.logger.Warn().
			Str("product_id", p.ID).
			Str("base_price", p.BasePrice.StringFixed(2)).
			Str("sale_price", p.SalePrice.Decimal.StringFixed(2)).
			Msg("sale price is not below base price and is ignored")
	}
	return model.ProductView{
		Product:        *p,
		EffectivePrice: pricing.ResolvePrice(p.BasePrice, p.SalePrice, discount),
	}
}

package cache

import (
	"context"
	"encoding/json"
	"time"

	"partshop/internal/model"
	"partshop/internal/repository"

	"github.com/rs/zerolog"
)

// productRepository is a read-through cache in front of a ProductRepository.
// Only single-product lookups are cached; misses are not.
type productRepository struct {
	next   repository.ProductRepository
	store  Store
	ttl    time.Duration
	logger zerolog.Logger
}

// NewProductRepository wraps next with a read-through cache.
func NewProductRepository(next repository.ProductRepository, store Store, ttl time.Duration, logger zerolog.Logger) repository.ProductRepository {
	return &productRepository{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger.With().Str("cache", "product").Logger(),
	}
}

// GetAll is not cached.
func (r *productRepository) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	return r.next.GetAll(ctx, limit, offset)
}

// GetByID retrieves a product through the cache.
func (r *productRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	return r.readThrough(ctx, Key("product", "id", id), func() (*model.Product, error) {
		return r.next.GetByID(ctx, id)
	})
}

// GetBySKU retrieves a product through the cache.
func (r *productRepository) GetBySKU(ctx context.Context, sku string) (*model.Product, error) {
	return r.readThrough(ctx, Key("product", "sku", sku), func() (*model.Product, error) {
		return r.next.GetBySKU(ctx, sku)
	})
}

// readThrough treats cache failures as misses so the store never blocks catalogue reads.
func (r *productRepository) readThrough(ctx context.Context, key string, load func() (*model.Product, error)) (*model.Product, error) {
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
	if ok {
		var p model.Product
		if err := json.Unmarshal(raw, &p); err == nil {
			r.logger.Debug().Str("key", key).Msg("cache hit")
			return &p, nil
		}
		r.logger.Warn().Str("key", key).Msg("discarding undecodable cache entry")
		_ = r.store.Delete(ctx, key)
	}

	p, err := load()
	if err != nil || p == nil {
		return p, err
	}

	encoded, err := json.Marshal(p)
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("failed to encode product for cache")
		return p, nil
	}
	if err := r.store.Set(ctx, key, encoded, r.ttl); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}

	return p, nil
}

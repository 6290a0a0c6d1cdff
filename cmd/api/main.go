package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"partshop/internal/cache"
	"partshop/internal/config"
	"partshop/internal/database"
	"partshop/internal/events"
	"partshop/internal/handler"
	"partshop/internal/metrics"
	"partshop/internal/repository"
	"partshop/internal/router"
	"partshop/internal/service"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting partshop API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool, "up", logger); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	db := repository.NewDB(pool, cfg.Database.AcquireTimeoutDuration(), logger)
	cartRepo := repository.NewCartRepository(db, logger)
	orderRepo := repository.NewOrderRepository(db, logger)
	userRepo := repository.NewUserRepository(db, logger)

	productRepo, closeCache, err := newProductRepository(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	publisher := newPublisher(cfg.Kafka, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	productService := service.NewProductService(productRepo, userRepo, cfg.Orders.EnforceSaleBelowBase, logger)
	cartService := service.NewCartService(db, cartRepo, productRepo, userRepo, m, logger)
	orderService := service.NewOrderService(db, orderRepo, cartRepo, userRepo, publisher, m, cfg.Orders, logger)
	adminOrderService := service.NewAdminOrderService(db, orderRepo, publisher, m, cfg.Orders.StrictStatusTransitions, logger)

	mux := router.New(
		router.Handlers{
			Health:     handler.NewHealthHandler(db, logger),
			Product:    handler.NewProductHandler(productService, logger),
			Cart:       handler.NewCartHandler(cartService, logger),
			Order:      handler.NewOrderHandler(orderService, logger),
			AdminOrder: handler.NewAdminOrderHandler(adminOrderService, logger),
		},
		cfg.Auth,
		m,
		reg,
		logger,
	)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// newProductRepository wraps the product repository in the configured cache backend.
// The returned func releases the cache.
func newProductRepository(
	ctx context.Context,
	cfg *config.Config,
	db *repository.DB,
	logger zerolog.Logger,
) (repository.ProductRepository, func(), error) {
	base := repository.NewProductRepository(db, logger)

	var store cache.Store
	switch cfg.Cache.Backend {
	case config.CacheBackendNone:
		logger.Info().Msg("product cache disabled")
		return base, func() {}, nil
	case config.CacheBackendRedis:
		redisStore, err := cache.NewRedisStore(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis cache: %w", err)
		}
		store = redisStore
	default:
		store = cache.NewMemoryStore()
	}

	logger.Info().
		Str("backend", cfg.Cache.Backend).
		Dur("ttl", cfg.Cache.TTL).
		Msg("product cache enabled")

	closeFn := func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close product cache")
		}
	}
	return cache.NewProductRepository(base, store, cfg.Cache.TTL, logger), closeFn, nil
}

func newPublisher(cfg config.KafkaConfig, logger zerolog.Logger) events.Publisher {
	if !cfg.Enabled {
		logger.Info().Msg("order events disabled")
		return events.NopPublisher{}
	}
	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("publishing order events to kafka")
	return events.NewKafkaPublisher(cfg, logger)
}

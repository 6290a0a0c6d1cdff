package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"partshop/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DefaultAcquireTimeout bounds how long an operation waits for a pooled connection.
const DefaultAcquireTimeout = 5 * time.Second

// Transactor starts database transactions.
type Transactor interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

// DB wraps the connection pool so every operation acquires its connection under a
// bounded wait. It is created once at startup and shared by all repositories.
type DB struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
	logger         zerolog.Logger
}

// NewDB wraps pool. A non-positive acquireTimeout falls back to DefaultAcquireTimeout.
func NewDB(pool *pgxpool.Pool, acquireTimeout time.Duration, logger zerolog.Logger) *DB {
	if acquireTimeout <= 0 {
		acquireTimeout = DefaultAcquireTimeout
	}
	return &DB{
		pool:           pool,
		acquireTimeout: acquireTimeout,
		logger:         logger.With().Str("component", "db").Logger(),
	}
}

// Pool exposes the underlying pool for migrations and health checks.
func (d *DB) Pool() *pgxpool.Pool {
	return d.pool
}

// BeginTx starts a new database transaction.
func (d *DB) BeginTx(ctx context.Context) (pgx.Tx, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, d.acquireTimeout)
	defer cancel()

	tx, err := d.pool.Begin(acquireCtx)
	if err != nil {
		err = d.acquireError(ctx, acquireCtx, err)
		d.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, err
	}
	return tx, nil
}

// withConn runs fn on a pooled connection acquired under the acquire timeout.
func (d *DB) withConn(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	acquireCtx, cancel := context.WithTimeout(ctx, d.acquireTimeout)
	conn, err := d.pool.Acquire(acquireCtx)
	if err != nil {
		err = d.acquireError(ctx, acquireCtx, err)
		cancel()
		d.logger.Error().Err(err).Msg("failed to acquire connection")
		return err
	}
	cancel()
	defer conn.Release()

	return fn(conn)
}

// Ping verifies that a connection can be acquired and used.
func (d *DB) Ping(ctx context.Context) error {
	return d.withConn(ctx, func(conn *pgxpool.Conn) error {
		return conn.Ping(ctx)
	})
}

// acquireError maps an acquire failure caused by our own deadline to ErrResourceExhausted.
func (d *DB) acquireError(parent, acquireCtx context.Context, err error) error {
	if parent.Err() == nil && errors.Is(acquireCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("failed to acquire connection within %s: %w", d.acquireTimeout, model.ErrResourceExhausted)
	}
	return classify(fmt.Errorf("failed to acquire connection: %w", err))
}

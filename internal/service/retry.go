package service

import (
	"context"
	"fmt"
	"time"

	"partshop/internal/events"
	"partshop/internal/metrics"
	"partshop/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	defaultRetryDelay = 50 * time.Millisecond

	defaultPageLimit = 20
	maxPageLimit     = 100
)

// retrier runs an operation again once when it fails with a transient store error.
type retrier struct {
	delay   time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func newRetrier(delay time.Duration, m *metrics.Metrics, logger zerolog.Logger) *retrier {
	return &retrier{delay: delay, metrics: m, logger: logger}
}

func withRetry[T any](ctx context.Context, r *retrier, op string, fn func() (T, error)) (T, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.delay), 1),
		ctx,
	)

	return backoff.RetryNotifyWithData(func() (T, error) {
		v, err := fn()
		if err != nil && !repository.IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, policy, func(err error, wait time.Duration) {
		r.metrics.IncRetry(op)
		r.logger.Warn().
			Err(err).
			Str("operation", op).
			Dur("wait", wait).
			Msg("transient store error, retrying")
	})
}

// runInTx calls fn inside a transaction, committing when fn succeeds.
func runInTx(ctx context.Context, db repository.Transactor, logger zerolog.Logger, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// publish sends an event for a committed change. Delivery failures are logged only.
func publish(ctx context.Context, p events.Publisher, logger zerolog.Logger, event events.OrderEvent) {
	if err := p.Publish(context.WithoutCancel(ctx), event); err != nil {
		logger.Error().
			Err(err).
			Str("event_type", string(event.Type)).
			Str("order_id", event.OrderID.String()).
			Msg("failed to publish order event")
	}
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

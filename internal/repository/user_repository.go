package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type userRepository struct {
	db     *DB
	logger zerolog.Logger
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db *DB, logger zerolog.Logger) UserRepository {
	return &userRepository{
		db:     db,
		logger: logger.With().Str("repository", "user").Logger(),
	}
}

// GetDiscount returns the user's discount percentage. Accounts live outside this
// service, so an unknown user simply has no discount.
func (r *userRepository) GetDiscount(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `SELECT discount_percentage FROM users WHERE id = $1`

	var discount int
	err := r.db.withConn(ctx, func(conn *pgxpool.Conn) error {
		err := conn.QueryRow(ctx, query, userID).Scan(&discount)
		if errors.Is(err, pgx.ErrNoRows) {
			discount = 0
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to query user discount: %w", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to get user discount")
		return 0, classify(err)
	}

	return discount, nil
}

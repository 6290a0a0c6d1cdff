package repository

import (
	"errors"
	"fmt"
	"strings"

	"partshop/internal/model"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes the repositories react to.
const (
	pgUniqueViolation      = "23505"
	pgTooManyConnections   = "53300"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgInvalidSQLStatement  = "26000"
	pgAdminShutdown        = "57P01"
	pgConnectionClassCode  = "08"

	orderNumberConstraint = "orders_order_number_key"
)

// classify converts driver errors into domain errors where a classification exists.
// Unclassified errors are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgTooManyConnections:
			return fmt.Errorf("%s: %w", err.Error(), model.ErrResourceExhausted)
		case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == orderNumberConstraint:
			return model.ErrDuplicateOrderNumber
		}
	}

	return err
}

// IsTransient reports whether err is a driver failure worth retrying once.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var de *model.DomainError
	if errors.As(err, &de) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgInvalidSQLStatement, pgAdminShutdown:
			return true
		}
		return strings.HasPrefix(pgErr.Code, pgConnectionClassCode)
	}

	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

// IsUnavailable reports whether err means the store could not be reached or used right now.
// Reads degrade to empty results on these.
func IsUnavailable(err error) bool {
	return IsTransient(err) || model.KindOf(err) == model.KindResourceExhausted
}

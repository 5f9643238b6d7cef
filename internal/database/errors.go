package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"project-workspace-api/internal/response"
)

// ErrTransient marks store errors worth retrying.
var ErrTransient = errors.New("transient store error")

// Retryable marks err as transient so the unit of work re-runs the transaction.
func Retryable(err error) error {
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsUniqueViolation reports whether err came from a unique constraint on either dialect.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ClassifyError maps driver errors onto the application error taxonomy.
// AppErrors pass through untouched; transient errors keep the ErrTransient marker.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *response.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if IsTransient(err) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NewNotFoundError("resource not found", "")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return response.NewTimeoutError()
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPostgres(pgErr, err)
	}
	return classifySQLite(err)
}

func classifyPostgres(pgErr *pgconn.PgError, err error) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return response.NewAppError(response.ErrCodeConflict, "duplicate record", pgErr.ConstraintName)
	case pgerrcode.ForeignKeyViolation:
		return response.NewValidationError("referenced record does not exist", pgErr.ConstraintName)
	case pgerrcode.CheckViolation, pgerrcode.NotNullViolation, pgerrcode.InvalidTextRepresentation:
		return response.NewValidationError("value rejected by the store", pgErr.ConstraintName)
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
		return Retryable(err)
	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.CannotConnectNow,
		pgerrcode.SQLClientUnableToEstablishSQLConnection,
		pgerrcode.AdminShutdown,
		pgerrcode.TooManyConnections:
		return Retryable(err)
	case pgerrcode.QueryCanceled:
		return response.NewTimeoutError()
	default:
		return fmt.Errorf("postgres error [%s]: %s: %w", pgErr.Code, pgErr.Message, err)
	}
}

func classifySQLite(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return response.NewAppError(response.ErrCodeConflict, "duplicate record", strings.TrimPrefix(msg, "UNIQUE constraint failed: "))
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return response.NewValidationError("referenced record does not exist", "")
	case strings.Contains(msg, "NOT NULL constraint failed"), strings.Contains(msg, "CHECK constraint failed"):
		return response.NewValidationError("value rejected by the store", msg)
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "database table is locked"):
		return Retryable(err)
	default:
		return err
	}
}

package shared

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrValidation matches every ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrStockInsufficient matches every StockInsufficientError.
	ErrStockInsufficient = errors.New("insufficient stock")
	// ErrNotFound matches every NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrStorage matches every StorageError.
	ErrStorage = errors.New("storage failure")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when no user is attached to the session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the session user lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports malformed or missing input. Nothing is written when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// StockInsufficientError names the item whose on-hand quantity cannot cover a request.
type StockInsufficientError struct {
	Item      string
	Requested int64
	Available int64
}

func (e *StockInsufficientError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d", e.Item, e.Requested, e.Available)
}

// Is matches ErrStockInsufficient.
func (e *StockInsufficientError) Is(target error) bool { return target == ErrStockInsufficient }

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(entity, key string) error {
	return &NotFoundError{Entity: entity, Key: key}
}

// StorageError wraps a persistence failure. The operation must be treated as not committed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is matches ErrStorage.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Storage classifies err for op. Domain errors and context cancellation pass through,
// unique and check violations become validation errors, missing foreign key parents become
// not-found errors and everything else becomes a StorageError.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrStockInsufficient), errors.Is(err, ErrStorage),
		errors.Is(err, ErrIdempotencyConflict),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return Invalid(pgErr.ConstraintName, "already exists")
		case "23514":
			return Invalid(pgErr.ConstraintName, "violates check constraint")
		case "23503":
			// Inserts naming a missing parent report it as not found; deletes of a
			// referenced parent are refused as invalid.
			if strings.HasPrefix(pgErr.Message, "update or delete") {
				return Invalid(pgErr.ConstraintName, "still referenced")
			}
			return NotFound(referencedEntity(pgErr), pgErr.Detail)
		}
	}
	return &StorageError{Op: op, Err: err}
}

// referencedEntity names the parent table of a foreign key failure, falling back to the constraint.
func referencedEntity(pgErr *pgconn.PgError) string {
	const marker = `in table "`
	if i := strings.LastIndex(pgErr.Detail, marker); i >= 0 {
		rest := pgErr.Detail[i+len(marker):]
		if j := strings.IndexByte(rest, '"'); j > 0 {
			return rest[:j]
		}
	}
	return pgErr.ConstraintName
}

// IsNoRows reports whether err is pgx.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

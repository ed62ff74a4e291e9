package aggregates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrValidation indicates caller input validation failure.
	ErrValidation = errors.New("validation")
	// ErrNotFound indicates the target row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a unique or optimistic-concurrency conflict.
	ErrConflict = errors.New("conflict")
	// ErrRetryable indicates a transient failure worth retrying.
	ErrRetryable = errors.New("retryable")
)

func ValidationError(msg string) error {
	return errors.Join(ErrValidation, errors.New(strings.TrimSpace(msg)))
}

func ConflictError(msg string) error {
	return errors.Join(ErrConflict, errors.New(strings.TrimSpace(msg)))
}

// Classify tags a persistence error with one of the sentinels above so
// callers can branch with errors.Is. Already-tagged errors pass through.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrRetryable} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	wrap := func(sentinel error) error {
		return errors.Join(sentinel, fmt.Errorf("%s: %w", op, err))
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return wrap(ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return wrap(ErrConflict)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return wrap(ErrRetryable)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return wrap(ErrConflict) // unique_violation
		case "40001", "40P01", "55P03":
			return wrap(ErrRetryable) // serialization/deadlock/lock_not_available
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "unique constraint failed"):
		return wrap(ErrConflict)
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "deadlock"):
		return wrap(ErrRetryable)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

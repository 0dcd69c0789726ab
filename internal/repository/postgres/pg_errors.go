package postgresrepo

import (
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	pgconn5 "github.com/jackc/pgx/v5/pgconn"
	"github.com/kirinyoku/washq/internal/repository"
)

func pgCode(err error) string {
	var pge5 *pgconn5.PgError
	if errors.As(err, &pge5) {
		return pge5.Code
	}

	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		return pge.Code
	}

	return ""
}

// IsRetryable reports serialization failures and deadlocks.
func IsRetryable(err error) bool {
	switch pgCode(err) {
	case "40001", "40P01":
		return true
	}
	return false
}

func translateDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}

	switch pgCode(err) {
	case "23505":
		return repository.ErrConflict
	case "23503":
		return repository.ErrNotFound
	case "23514":
		return fmt.Errorf("%w: %v", repository.ErrCheckViolation, err)
	}

	return err
}

// wrapDBErr maps common DB errors to repository-level errors and wraps them
// with the provided operation name.
func wrapDBErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s:%w", op, translateDBErr(err))
}

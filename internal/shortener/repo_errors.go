package shortener

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sundayezeilo/shortlinks/internal/errx"
)

const (
	pgUniqueViolation         = "23505"
	shortCodeUniqueConstraint = "links_short_code_unique"
)

func isShortCodeUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgUniqueViolation &&
		pgErr.ConstraintName == shortCodeUniqueConstraint
}

// mapRepoError classifies a store error. Only the short code uniqueness
// violation becomes a Conflict; other failures are Internal.
func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)

	case isShortCodeUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)

	default:
		return errx.E(op, errx.Internal, err)
	}
}

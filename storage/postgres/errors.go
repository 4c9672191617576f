package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/poiesic/catalogsync/storage"
)

// ErrDimensionMismatch is returned by Open when the embedding column width
// differs from the configured dimensionality.
var ErrDimensionMismatch = errors.New("embedding column dimension mismatch")

const sqlStateUniqueViolation = "23505"

// translate maps driver errors onto storage sentinels, keeping the original
// error in the chain.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation {
		return fmt.Errorf("%w: %s: %w", storage.ErrDuplicateKey, pgErr.ConstraintName, err)
	}
	return err
}

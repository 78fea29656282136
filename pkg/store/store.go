// Package store is the transactional adapter over the relational model. It
// is the source of truth: every invariant the coordinator relies on is
// backed here by a unique constraint, a partial unique index, or a
// conditional single-statement UPDATE.
package store

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

// Storage-level error kinds. The services layer translates these into its
// own taxonomy.
var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("row not found")

	// ErrConflict is returned when an insert violates a unique constraint.
	ErrConflict = errors.New("unique constraint violation")
)

// Store provides typed access to the relational model.
type Store struct {
	db *sqlx.DB
}

// New wraps an sqlx database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// translate maps driver errors to the storage error kinds.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

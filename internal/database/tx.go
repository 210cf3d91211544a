package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/multierr"
)

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx, so repository methods
// can run inside or outside a transaction.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// WithTx runs fn in a transaction, committing when fn returns nil and
// rolling back otherwise.
func WithTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return multierr.Append(err, fmt.Errorf("failed to roll back transaction: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// forUpdate returns the row-locking suffix for drivers that support it.
// SQLite serialises writers on its single connection.
func forUpdate(q Querier) string {
	if q.DriverName() == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}

// lockKey takes a transaction-scoped advisory lock on postgres. Used where
// the rows to lock may not exist yet.
func lockKey(ctx context.Context, q Querier, key string) error {
	if q.DriverName() != "postgres" {
		return nil
	}
	if _, err := q.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
		return fmt.Errorf("failed to take advisory lock %q: %w", key, err)
	}
	return nil
}

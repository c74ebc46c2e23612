package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
)

// WithTx runs fn inside a transaction and commits when fn succeeds. A
// failed rollback is joined onto the error from fn.
func WithTx[T any](ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) (T, error)) (result T, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	out, err := fn(tx)
	if err != nil {
		return result, err
	}
	if err = tx.Commit(); err != nil {
		return result, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

// LockKey serializes writers on key for the rest of the transaction with
// pg_advisory_xact_lock. Commit or rollback releases it.
func LockKey(ctx context.Context, e Executor, key string) error {
	if _, err := e.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", HashKey(key)); err != nil {
		return fmt.Errorf("advisory lock %q: %w", key, err)
	}
	return nil
}

// HashKey folds key into the bigint space of PostgreSQL advisory locks.
func HashKey(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}

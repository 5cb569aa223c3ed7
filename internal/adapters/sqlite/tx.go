package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mattn/go-sqlite3"
)

const (
	lockRetryInitial = 20 * time.Millisecond
	lockRetryMax     = 2 * time.Second
)

// isLocked reports whether err is SQLite refusing the write because another
// connection holds the lock.
func isLocked(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

// withTx runs fn in a transaction and commits it. A transaction that fails
// because the database is locked is rolled back and retried from the start
// with exponential backoff; any other error is returned as is.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = lockRetryInitial
	policy.MaxElapsedTime = lockRetryMax

	return backoff.Retry(func() error {
		err := runTx(ctx, db, fn)
		if err == nil || isLocked(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(policy, ctx))
}

func runTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

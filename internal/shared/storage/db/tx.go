package db

import (
	"context"
	"database/sql"
	"fmt"
)

// InTx runs fn inside a transaction, committing on success and rolling back on
// error or panic.
func InTx(ctx context.Context, database *sql.DB, opts *sql.TxOptions, fn func(*sql.Tx) error) (err error) {
	tx, err := database.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Healthy pings the database; a nil handle is reported healthy so memory-backed
// dev runs pass readiness checks.
func Healthy(ctx context.Context, database *sql.DB) error {
	if database == nil {
		return nil
	}
	return database.PingContext(ctx)
}

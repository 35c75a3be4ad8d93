// Package dbx holds the small database/sql abstractions shared by both
// storage engines: a handle interface satisfied by *sql.DB and *sql.Tx, and a
// helper that runs one mutation inside a transaction.
package dbx

import (
	"context"
	"database/sql"
)

// Handle is the subset of database/sql the repositories use. Both *sql.DB and
// *sql.Tx satisfy it, so a repository works unchanged inside a transaction.
type Handle interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InTx begins a transaction, runs fn against it, and commits on success or
// rolls back on error/panic. Every storage mutation goes through here so a
// partial write is never visible to concurrent readers.
func InTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx Handle) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Executor runs statements. It is implemented by the pool and by *Tx.
type Executor interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Tx is an explicit transaction handle. Tables bound to it with With issue
// every statement, including secondary loads, on the same transaction.
type Tx struct {
	db    *DB
	sqlTx *sql.Tx
}

// DB returns the database the transaction was started on.
func (tx *Tx) DB() *DB { return tx.db }

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	start := time.Now()
	err := tx.sqlTx.Commit()
	tx.db.logSQL(nil, "COMMIT", time.Since(start))
	if err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error {
	start := time.Now()
	err := tx.sqlTx.Rollback()
	tx.db.logSQL(nil, "ROLLBACK", time.Since(start))
	if err != nil {
		return fmt.Errorf("transaction rollback failed: %w", err)
	}
	return nil
}

// QueryContext executes a query that returns rows, typically a SELECT.
func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := tx.sqlTx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transaction query failed: %w", err)
	}
	return rows, nil
}

// ExecContext executes a query that doesn't return rows, such as an INSERT or UPDATE.
func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := tx.sqlTx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transaction exec failed: %w", err)
	}
	return res, nil
}

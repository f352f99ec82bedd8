package pool

import (
	"context"
	"database/sql"
	"time"
)

// Pool is the connection pool statements are issued against outside of a
// transaction. Each call acquires a connection and releases it when done.
type Pool interface {
	Close() error
	SetMaxOpenConns(n int)
	SetMaxIdleConns(n int)
	SetConnMaxLifetime(d time.Duration)
	PingContext(ctx context.Context) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	Stats() sql.DBStats
}

// StdPool is an implementation of Pool using the standard library's *sql.DB.
type StdPool struct {
	*sql.DB
}

// NewStdPool creates a new StdPool wrapping the given *sql.DB.
func NewStdPool(db *sql.DB) *StdPool {
	return &StdPool{db}
}

// Configure applies the non-zero limits to p.
func Configure(p Pool, maxOpen, maxIdle int, lifetime time.Duration) {
	if maxOpen > 0 {
		p.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		p.SetMaxIdleConns(maxIdle)
	}
	if lifetime > 0 {
		p.SetConnMaxLifetime(lifetime)
	}
}

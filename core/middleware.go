package core

import (
	"context"
	"database/sql"
)

// Component is the base interface for all KORMite components/middleware.
type Component interface {
	Name() string
	Init(db *DB) error
	Shutdown() error
}

// Operation names the kind of statement being executed.
type Operation string

const (
	OpSelect Operation = "select"
	OpCount  Operation = "count"
	OpInsert Operation = "insert"
	OpUpsert Operation = "upsert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpDDL    Operation = "ddl"
)

// Statement is one rendered statement on its way to the database.
type Statement struct {
	Op    Operation
	Table string
	SQL   string
	Args  []any
	// Query is set for statements that return a result set.
	Query bool
	// Fields are attached to the SQL log line of the statement.
	Fields map[string]any
}

// ExecResult is the outcome of executing a Statement. Rows is set for
// queries and must be closed by the caller.
type ExecResult struct {
	RowsAffected int64
	LastInsertID int64
	Rows         *sql.Rows
}

// Handler executes a statement, usually by calling the next middleware.
type Handler func(ctx context.Context, stmt *Statement) (*ExecResult, error)

// Middleware intercepts every statement executed through a DB.
type Middleware interface {
	Component
	Process(ctx context.Context, stmt *Statement, next Handler) (*ExecResult, error)
}

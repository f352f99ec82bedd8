package core

import (
	"context"
	"time"
)

// run sends stmt through the middleware chain and executes it on exec.
func (db *DB) run(ctx context.Context, exec Executor, stmt *Statement) (*ExecResult, error) {
	h := func(ctx context.Context, stmt *Statement) (*ExecResult, error) {
		start := time.Now()
		defer func() { db.logSQL(stmt.Fields, stmt.SQL, time.Since(start), stmt.Args...) }()

		if stmt.Query {
			rows, err := exec.QueryContext(ctx, stmt.SQL, stmt.Args...)
			if err != nil {
				return nil, err
			}
			return &ExecResult{Rows: rows}, nil
		}
		res, err := exec.ExecContext(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return nil, err
		}
		out := &ExecResult{}
		// Not every driver reports both.
		out.RowsAffected, _ = res.RowsAffected()
		out.LastInsertID, _ = res.LastInsertId()
		return out, nil
	}
	for i := len(db.middlewares) - 1; i >= 0; i-- {
		m, next := db.middlewares[i], h
		h = func(ctx context.Context, stmt *Statement) (*ExecResult, error) {
			return m.Process(ctx, stmt, next)
		}
	}
	return h(ctx, stmt)
}

// cursor is the forward-only row source results are decoded from: live
// *sql.Rows or a cached snapshot.
type cursor interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// scanRow reads the current row into generic values.
func scanRow(c cursor, n int) ([]any, error) {
	row := make([]any, n)
	dest := make([]any, n)
	for i := range row {
		dest[i] = &row[i]
	}
	if err := c.Scan(dest...); err != nil {
		return nil, err
	}
	return row, nil
}

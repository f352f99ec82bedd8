package core

import (
	"context"
	"strings"

	"github.com/MineKing9534/KORMite-sub000/schema"
)

// TableSchema is implemented by every Table.
type TableSchema interface {
	Schema() *schema.Table
}

// Create creates the given tables if they do not exist, in order.
func (db *DB) Create(ctx context.Context, tables ...TableSchema) error {
	for _, t := range tables {
		if err := db.create(ctx, db.pool, t.Schema()); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) create(ctx context.Context, exec Executor, t *schema.Table) error {
	sql, err := db.dialect.CreateTableSQL(t)
	if err != nil {
		return err
	}
	if _, err := db.run(ctx, exec, &Statement{Op: OpDDL, Table: t.Name, SQL: sql}); err != nil {
		return err
	}
	db.checkColumns(ctx, exec, t)
	return nil
}

// checkColumns compares the live columns of t with its schema. Mismatches
// are logged, never returned: the table may predate a schema change.
func (db *DB) checkColumns(ctx context.Context, exec Executor, t *schema.Table) {
	sql, args := db.dialect.ColumnsSQL(t.Name)
	res, err := db.run(ctx, exec, &Statement{Op: OpDDL, Table: t.Name, SQL: sql, Args: args, Query: true})
	if err != nil || res == nil || res.Rows == nil {
		db.logger.Warn("cannot read columns of %s: %v", t.Name, err)
		return
	}
	defer res.Rows.Close()
	live, err := db.dialect.ParseColumns(res.Rows)
	if err != nil {
		db.logger.Warn("cannot read columns of %s: %v", t.Name, err)
		return
	}

	have := make(map[string]bool, len(live))
	for _, name := range live {
		have[strings.ToLower(name)] = true
	}
	var missing []string
	stored := t.StoredColumns()
	for _, c := range stored {
		if !have[strings.ToLower(c.Name())] {
			missing = append(missing, c.Name())
		}
	}
	if len(missing) > 0 || len(live) != len(stored) {
		db.logger.Warn("table %s has %d columns, schema declares %d; missing: %s",
			t.Name, len(live), len(stored), strings.Join(missing, ", "))
	}
}

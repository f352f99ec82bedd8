package core

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/MineKing9534/KORMite-sub000/dialect"
	"github.com/MineKing9534/KORMite-sub000/expr"
	"github.com/MineKing9534/KORMite-sub000/schema"
	"github.com/MineKing9534/KORMite-sub000/validator"
)

// Result is the outcome of a write. A unique or not-null constraint failure
// is reported through Violation with a nil error; every other failure is
// returned as an error.
type Result[T any] struct {
	Value     T
	Affected  int64
	Violation dialect.Violation
}

// OK reports whether the write did not violate a constraint.
func (r Result[T]) OK() bool { return r.Violation == dialect.ViolationNone }

func (r Result[T]) UniqueViolation() bool  { return r.Violation == dialect.ViolationUnique }
func (r Result[T]) NotNullViolation() bool { return r.Violation == dialect.ViolationNotNull }

// violation splits a failed write into a classified constraint violation or
// an error to propagate.
func (db *DB) violation(err error) (dialect.Violation, error) {
	switch v := db.dialect.Classify(err); v {
	case dialect.ViolationUnique, dialect.ViolationNotNull:
		db.logger.Debug("constraint violation (%s): %v", v, err)
		return v, nil
	}
	return dialect.ViolationOther, err
}

func (t *Table[T]) entity(obj *T) (reflect.Value, error) {
	if obj == nil {
		return reflect.Value{}, ErrNilEntity
	}
	return reflect.ValueOf(obj).Elem(), nil
}

func (t *Table[T]) writeContext() *expr.Context {
	c := expr.NewContext(t.schema, t.db.dialect)
	c.Qualify = false
	c.AllowJoins = false
	return c
}

func bindColumn(c *expr.Context, col schema.Column, entity reflect.Value) (string, error) {
	wire, err := col.Mapper().Encode(col.Table().Registry(), col.Field(), col.Get(entity))
	if err != nil {
		return "", fmt.Errorf("kormite: encode %s: %w", col, err)
	}
	return expr.Param(wire).Build(c, col)
}

func (t *Table[T]) returning(c *expr.Context) string {
	cols := t.schema.StoredColumns()
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = c.Quote(col.Name())
	}
	return " RETURNING " + strings.Join(names, ", ")
}

// keyWhere matches the row holding the key values of entity.
func (t *Table[T]) keyWhere(entity reflect.Value) expr.Where {
	var ws []expr.Where
	for _, k := range t.schema.Keys() {
		ws = append(ws, expr.Property(k.FieldName()).Eq(k.Get(entity).Interface()))
	}
	return expr.AllOf(ws...)
}

// keepReferences copies the reference fields of the written entity into the
// persisted copy, which only holds key stubs for them.
func (t *Table[T]) keepReferences(from, to reflect.Value) {
	for _, c := range t.schema.Columns() {
		if c.RefKind() != schema.RefNone {
			c.Set(to, c.Get(from))
		}
	}
}

// readBack reads the rows of a RETURNING statement.
func (t *Table[T]) readBack(ctx context.Context, stmt *Statement, input reflect.Value) (*T, int64, error) {
	res, err := t.db.run(ctx, t.exec, stmt)
	if err != nil {
		return nil, 0, err
	}
	if res == nil || res.Rows == nil {
		return nil, 0, fmt.Errorf("kormite: %s on %s returned no result set", stmt.Op, t.schema.Name)
	}
	defer res.Rows.Close()
	cols, err := res.Rows.Columns()
	if err != nil {
		return nil, 0, err
	}
	rd := newReader(cols)
	var first *T
	var n int64
	for res.Rows.Next() {
		if rd.row, err = scanRow(res.Rows, len(cols)); err != nil {
			return nil, 0, err
		}
		v, _, err := rd.read(t.schema, "")
		if err != nil {
			return nil, 0, err
		}
		if first == nil {
			t.keepReferences(input, v.Elem())
			first = v.Interface().(*T)
		}
		n++
	}
	if err := res.Rows.Err(); err != nil {
		return nil, 0, err
	}
	return first, n, nil
}

// reselect reads the row holding the key values of entity without joins.
func (t *Table[T]) reselect(ctx context.Context, entity reflect.Value) (*T, error) {
	sel := newSelection(t.db, t.exec, t.schema)
	sel.joins = false
	sel.where = t.keyWhere(entity)
	sel.limit = 1
	rows, err := sel.collect(ctx)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	t.keepReferences(entity, rows[0].Elem())
	return rows[0].Interface().(*T), nil
}

// Insert writes obj as a new row. Autogenerated columns holding their zero
// value are left to the database. The returned value is the row as stored.
func (t *Table[T]) Insert(ctx context.Context, obj *T) (Result[*T], error) {
	return t.insert(ctx, obj, false)
}

// Upsert inserts obj or, when a row with the same key exists, overwrites
// every non-key column of it.
func (t *Table[T]) Upsert(ctx context.Context, obj *T) (Result[*T], error) {
	return t.insert(ctx, obj, true)
}

func (t *Table[T]) insert(ctx context.Context, obj *T, upsert bool) (Result[*T], error) {
	entity, err := t.entity(obj)
	if err != nil {
		return Result[*T]{}, err
	}
	if h, ok := any(obj).(BeforeInserter); ok {
		if err := h.BeforeInsert(); err != nil {
			return Result[*T]{}, err
		}
	}
	if err := validator.Check(obj); err != nil {
		return Result[*T]{}, err
	}

	c := t.writeContext()
	d := t.db.dialect
	var names, values, update []string
	autoOmitted := false
	for _, col := range t.schema.StoredColumns() {
		if col.Field().Auto && col.Get(entity).IsZero() {
			autoOmitted = autoOmitted || col.IsKey()
			continue
		}
		ph, err := bindColumn(c, col, entity)
		if err != nil {
			return Result[*T]{}, err
		}
		names = append(names, c.Quote(col.Name()))
		values = append(values, ph)
		if !col.IsKey() {
			update = append(update, c.Quote(col.Name()))
		}
	}

	var b strings.Builder
	b.WriteString("INSERT INTO " + c.Quote(t.schema.Name))
	switch {
	case len(names) > 0:
		b.WriteString(" (" + strings.Join(names, ", ") + ") VALUES (" + strings.Join(values, ", ") + ")")
	case d.Name() == "mysql":
		b.WriteString(" () VALUES ()")
	default:
		b.WriteString(" DEFAULT VALUES")
	}
	op := OpInsert
	if upsert {
		op = OpUpsert
		conflict := make([]string, len(t.schema.Keys()))
		for i, k := range t.schema.Keys() {
			conflict[i] = c.Quote(k.Name())
		}
		b.WriteString(" " + d.UpsertSQL(conflict, update))
	}

	var out Result[*T]
	stmt := &Statement{Op: op, Table: t.schema.Name, Args: c.Args()}
	if d.Returning() {
		b.WriteString(t.returning(c))
		stmt.SQL, stmt.Query = b.String(), true
		out.Value, out.Affected, err = t.readBack(ctx, stmt, entity)
	} else {
		stmt.SQL = b.String()
		out.Value, out.Affected, err = t.insertAndReselect(ctx, stmt, entity, autoOmitted)
	}
	if err != nil {
		out.Violation, err = t.db.violation(err)
		return out, err
	}

	t.db.invalidate(ctx, t.schema.Name)
	if out.Value != nil {
		if h, ok := any(out.Value).(AfterInserter); ok {
			if err := h.AfterInsert(); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

// insertAndReselect runs an INSERT on a backend without RETURNING and reads
// the stored row back by key.
func (t *Table[T]) insertAndReselect(ctx context.Context, stmt *Statement, entity reflect.Value, autoOmitted bool) (*T, int64, error) {
	res, err := t.db.run(ctx, t.exec, stmt)
	if err != nil {
		return nil, 0, err
	}
	key := reflect.New(entity.Type()).Elem()
	key.Set(entity)
	if autoOmitted {
		k, err := t.schema.Key()
		if err != nil {
			return nil, 0, err
		}
		kv := reflect.ValueOf(res.LastInsertID)
		if !kv.Type().ConvertibleTo(k.Field().Type) {
			return nil, 0, fmt.Errorf("kormite: generated key %d does not fit %s", res.LastInsertID, k.Field().Type)
		}
		k.Set(key, kv.Convert(k.Field().Type))
	}
	v, err := t.reselect(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	affected := res.RowsAffected
	if affected > 1 {
		// MySQL reports 2 for an upsert that updated an existing row.
		affected = 1
	}
	return v, affected, nil
}

// Update overwrites every non-key column of the row identified by the key
// values of obj. When no such row exists the result has a nil Value and
// Affected is 0.
func (t *Table[T]) Update(ctx context.Context, obj *T) (Result[*T], error) {
	entity, err := t.entity(obj)
	if err != nil {
		return Result[*T]{}, err
	}
	if len(t.schema.Keys()) == 0 {
		return Result[*T]{}, fmt.Errorf("%w: table %s has no key", ErrIllegalUpdateTarget, t.schema.Name)
	}
	if h, ok := any(obj).(BeforeUpdater); ok {
		if err := h.BeforeUpdate(); err != nil {
			return Result[*T]{}, err
		}
	}
	if err := validator.Check(obj); err != nil {
		return Result[*T]{}, err
	}

	c := t.writeContext()
	var sets []string
	for _, col := range t.schema.StoredColumns() {
		if col.IsKey() {
			continue
		}
		ph, err := bindColumn(c, col, entity)
		if err != nil {
			return Result[*T]{}, err
		}
		sets = append(sets, c.Quote(col.Name())+" = "+ph)
	}
	if len(sets) == 0 {
		return Result[*T]{}, fmt.Errorf("%w: table %s has no columns besides its key", ErrIllegalUpdateTarget, t.schema.Name)
	}
	where, err := t.keyWhere(entity).Build(c, nil)
	if err != nil {
		return Result[*T]{}, err
	}

	sql := "UPDATE " + c.Quote(t.schema.Name) + " SET " + strings.Join(sets, ", ") + " WHERE " + where
	stmt := &Statement{Op: OpUpdate, Table: t.schema.Name, Args: c.Args()}
	var out Result[*T]
	if t.db.dialect.Returning() {
		stmt.SQL, stmt.Query = sql+t.returning(c), true
		out.Value, out.Affected, err = t.readBack(ctx, stmt, entity)
	} else {
		stmt.SQL = sql
		out.Value, out.Affected, err = t.updateAndReselect(ctx, stmt, entity)
	}
	if err != nil {
		out.Violation, err = t.db.violation(err)
		return out, err
	}

	t.db.invalidate(ctx, t.schema.Name)
	if out.Value != nil {
		if h, ok := any(out.Value).(AfterUpdater); ok {
			if err := h.AfterUpdate(); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

// updateAndReselect runs an UPDATE on a backend without RETURNING. Affected
// counts the matched row, since MySQL only reports changed rows.
func (t *Table[T]) updateAndReselect(ctx context.Context, stmt *Statement, entity reflect.Value) (*T, int64, error) {
	if _, err := t.db.run(ctx, t.exec, stmt); err != nil {
		return nil, 0, err
	}
	v, err := t.reselect(ctx, entity)
	if err != nil || v == nil {
		return nil, 0, err
	}
	return v, 1, nil
}

// UpdateWhere assigns sets on every row matching where and reports the
// number of rows affected. Assigning a key column, a column of a joined
// table or a column that is not stored fails with ErrIllegalUpdateTarget,
// and a condition crossing a reference fails with ErrJoinNotAllowed, both
// before anything is executed.
func (t *Table[T]) UpdateWhere(ctx context.Context, where expr.Where, sets ...expr.Assignment) (Result[int64], error) {
	if len(sets) == 0 {
		return Result[int64]{}, fmt.Errorf("%w: nothing to assign", ErrIllegalUpdateTarget)
	}
	c := t.writeContext()
	parts := make([]string, len(sets))
	for i, a := range sets {
		path := a.Target.Path()
		if strings.Contains(path, "->") {
			return Result[int64]{}, &IllegalUpdateTargetError{Path: path, Reason: "column belongs to a joined table, update that table instead"}
		}
		ref, err := c.Resolve(path)
		if err != nil {
			return Result[int64]{}, err
		}
		col := ref.Column
		switch {
		case col.IsKey():
			return Result[int64]{}, &IllegalUpdateTargetError{Path: path, Reason: "key columns cannot be updated"}
		case !col.Stored() || col.JSONPath() != nil:
			return Result[int64]{}, &IllegalUpdateTargetError{Path: path, Reason: "column is not stored"}
		}
		v, err := a.Value.Build(c, col)
		if err != nil {
			return Result[int64]{}, err
		}
		parts[i] = c.Quote(col.Name()) + " = " + v
	}
	cond, err := where.Build(c, nil)
	if err != nil {
		return Result[int64]{}, err
	}

	sql := "UPDATE " + c.Quote(t.schema.Name) + " SET " + strings.Join(parts, ", ")
	if cond != "" {
		sql += " WHERE " + cond
	}
	res, err := t.db.run(ctx, t.exec, &Statement{Op: OpUpdate, Table: t.schema.Name, SQL: sql, Args: c.Args()})
	if err != nil {
		var out Result[int64]
		out.Violation, err = t.db.violation(err)
		return out, err
	}
	t.db.invalidate(ctx, t.schema.Name)
	return Result[int64]{Value: res.RowsAffected, Affected: res.RowsAffected}, nil
}

// Delete removes every row matching where and returns how many were
// removed. Conditions crossing a reference fail with ErrJoinNotAllowed.
func (t *Table[T]) Delete(ctx context.Context, where expr.Where) (int64, error) {
	c := t.writeContext()
	cond, err := where.Build(c, nil)
	if err != nil {
		return 0, err
	}
	sql := "DELETE FROM " + c.Quote(t.schema.Name)
	if cond != "" {
		sql += " WHERE " + cond
	}
	res, err := t.db.run(ctx, t.exec, &Statement{Op: OpDelete, Table: t.schema.Name, SQL: sql, Args: c.Args()})
	if err != nil {
		return 0, err
	}
	t.db.invalidate(ctx, t.schema.Name)
	return res.RowsAffected, nil
}

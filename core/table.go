package core

import (
	"context"
	"fmt"
	"reflect"

	"github.com/MineKing9534/KORMite-sub000/expr"
	"github.com/MineKing9534/KORMite-sub000/schema"
)

type tableOptions struct {
	name       string
	descriptor *schema.Descriptor
}

// TableOption configures Register.
type TableOption func(*tableOptions)

// Name overrides the table name chosen by the naming policy.
func Name(name string) TableOption {
	return func(o *tableOptions) { o.name = name }
}

// WithDescriptor registers a hand-built descriptor instead of reading the
// struct tags of T.
func WithDescriptor(d *schema.Descriptor) TableOption {
	return func(o *tableOptions) { o.descriptor = d }
}

// Table gives typed access to the rows of one entity type. Tables are safe
// for concurrent use; the queries they create are not.
type Table[T any] struct {
	db     *DB
	exec   Executor
	schema *schema.Table
}

// Register builds the schema of T in the DB's registry. Referenced entity
// types must be registered first; a type may reference itself.
func Register[T any](db *DB, opts ...TableOption) (*Table[T], error) {
	var o tableOptions
	for _, opt := range opts {
		opt(&o)
	}
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: entity type must be a struct, got %s", schema.ErrInvalidEntity, typ)
	}

	d := o.descriptor
	if d == nil {
		var err error
		if d, err = schema.Describe(typ); err != nil {
			return nil, err
		}
	}
	if d.Type != typ {
		return nil, fmt.Errorf("%w: descriptor describes %s, not %s", schema.ErrInvalidEntity, d.Type, typ)
	}

	t, err := db.registry.Build(d, o.name)
	if err != nil {
		return nil, err
	}
	db.logger.Debug("registered table %s for %s", t.Name, typ)
	return &Table[T]{db: db, exec: db.pool, schema: t}, nil
}

// Of returns the table of an already registered entity type.
func Of[T any](db *DB) (*Table[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	t, ok := db.registry.TableOf(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, typ)
	}
	return &Table[T]{db: db, exec: db.pool, schema: t}, nil
}

// Schema returns the table structure.
func (t *Table[T]) Schema() *schema.Table { return t.schema }

// With returns a copy of the table bound to tx. A nil tx binds the pool.
func (t *Table[T]) With(tx *Tx) *Table[T] {
	c := *t
	c.exec = t.db.pool
	if tx != nil {
		c.exec = tx
	}
	return &c
}

// Select starts a query over the table.
func (t *Table[T]) Select() *Query[T] {
	return &Query[T]{sel: newSelection(t.db, t.exec, t.schema)}
}

// Find returns the entity with the given key.
func (t *Table[T]) Find(ctx context.Context, key any) (*T, error) {
	k, err := t.schema.Key()
	if err != nil {
		return nil, err
	}
	return t.Select().Where(expr.Property(k.FieldName()).Eq(key)).First(ctx)
}

// Count returns the number of rows matching where.
func (t *Table[T]) Count(ctx context.Context, where expr.Where) (int64, error) {
	return t.Select().Where(where).Count(ctx)
}

// Create creates the table if it does not exist and checks the live
// columns against the schema.
func (t *Table[T]) Create(ctx context.Context) error {
	return t.db.create(ctx, t.exec, t.schema)
}

package core

import (
	"context"
	"reflect"

	"github.com/MineKing9534/KORMite-sub000/expr"
	"github.com/MineKing9534/KORMite-sub000/schema"
)

// preloadBatch bounds the number of keys bound in one secondary select.
const preloadBatch = 500

// preload replaces the key stubs held by the reference array columns of
// entities with the referenced rows. Every column costs one select per
// batch of distinct keys. Elements whose row no longer exists become nil;
// order and duplicates are kept.
func (s *selection) preload(ctx context.Context, entities []reflect.Value) error {
	if len(entities) == 0 {
		return nil
	}
	set, err := s.chosen()
	if err != nil {
		return err
	}
	for _, col := range s.table.Columns() {
		if col.RefKind() != schema.RefMany || (set != nil && !set[col]) {
			continue
		}
		if err := s.preloadColumn(ctx, col, entities); err != nil {
			return err
		}
	}
	return nil
}

func (s *selection) preloadColumn(ctx context.Context, col *schema.DirectColumn, entities []reflect.Value) error {
	target := col.Reference()
	key, err := target.Key()
	if err != nil {
		return err
	}

	seen := make(map[any]bool)
	var keys []any
	eachStub(col, entities, func(stub reflect.Value) {
		k := key.Get(stub.Elem()).Interface()
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	})
	if len(keys) == 0 {
		return nil
	}

	loaded := make(map[any]reflect.Value, len(keys))
	for start := 0; start < len(keys); start += preloadBatch {
		end := min(start+preloadBatch, len(keys))
		sub := newSelection(s.db, s.exec, target)
		sub.depth = s.depth - 1
		sub.where = expr.Property(key.FieldName()).In(keys[start:end]...)
		rows, err := sub.collect(ctx)
		if err != nil {
			return err
		}
		for _, row := range rows {
			loaded[key.Get(row.Elem()).Interface()] = row
		}
	}

	eachStub(col, entities, func(stub reflect.Value) {
		if row, ok := loaded[key.Get(stub.Elem()).Interface()]; ok {
			stub.Set(row)
		} else {
			stub.Set(reflect.Zero(stub.Type()))
		}
	})
	return nil
}

// eachStub calls fn with every non-nil element of the array column col of
// each entity. fn may replace the element.
func eachStub(col *schema.DirectColumn, entities []reflect.Value, fn func(reflect.Value)) {
	for _, e := range entities {
		arr := col.Get(e.Elem())
		for i := 0; i < arr.Len(); i++ {
			if el := arr.Index(i); !el.IsNil() {
				fn(el)
			}
		}
	}
}

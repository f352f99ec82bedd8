package core

import (
	"context"
	"reflect"

	"github.com/MineKing9534/KORMite-sub000/schema"
)

// resultSet walks the rows of an entity selection. When the root table has
// reference array columns to hydrate it reads every row first, so the
// secondary loads run once for the whole set.
type resultSet struct {
	sel *selection
	ctx context.Context
	cur cursor
	rd  *reader

	buffered bool
	buf      []reflect.Value
	current  reflect.Value
	closed   bool
	err      error
}

func (rs *resultSet) next() bool {
	if rs.closed || rs.err != nil {
		return false
	}
	if !rs.buffered && rs.sel.hydrates() {
		rs.buffered = true
		if rs.err = rs.fill(); rs.err != nil {
			_ = rs.close()
			return false
		}
	}
	if rs.buffered {
		if len(rs.buf) == 0 {
			_ = rs.close()
			return false
		}
		rs.current, rs.buf = rs.buf[0], rs.buf[1:]
		return true
	}

	v, ok, err := rs.decode()
	if err != nil || !ok {
		rs.err = err
		_ = rs.close()
		return false
	}
	if rs.err = afterFind(v); rs.err != nil {
		_ = rs.close()
		return false
	}
	rs.current = v
	return true
}

// decode reads the next row of the cursor.
func (rs *resultSet) decode() (reflect.Value, bool, error) {
	if !rs.cur.Next() {
		return reflect.Value{}, false, rs.cur.Err()
	}
	row, err := scanRow(rs.cur, len(rs.rd.index))
	if err != nil {
		return reflect.Value{}, false, err
	}
	rs.rd.row = row
	v, _, err := rs.rd.read(rs.sel.table, "")
	if err != nil {
		return reflect.Value{}, false, err
	}
	return v, true, nil
}

// fill drains the cursor, releases it and hydrates the buffered entities.
func (rs *resultSet) fill() error {
	for {
		v, ok, err := rs.decode()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		rs.buf = append(rs.buf, v)
	}
	if err := rs.cur.Close(); err != nil {
		return err
	}
	if err := rs.sel.preload(rs.ctx, rs.buf); err != nil {
		return err
	}
	for _, v := range rs.buf {
		if err := afterFind(v); err != nil {
			return err
		}
	}
	return nil
}

// close releases the cursor. It is safe to call more than once.
func (rs *resultSet) close() error {
	if rs.closed {
		return nil
	}
	rs.closed = true
	rs.buf = nil
	return rs.cur.Close()
}

func afterFind(v reflect.Value) error {
	if h, ok := v.Interface().(AfterFinder); ok {
		return h.AfterFind()
	}
	return nil
}

// hydrates reports whether entities read by s carry reference arrays that
// are loaded by a secondary select.
func (s *selection) hydrates() bool {
	if !s.joins || s.depth <= 0 {
		return false
	}
	set, err := s.chosen()
	if err != nil {
		return false
	}
	for _, c := range s.table.Columns() {
		if c.RefKind() == schema.RefMany && (set == nil || set[c]) {
			return true
		}
	}
	return false
}

// Rows is a forward-only, single-pass iterator over query results. It is
// not safe for concurrent use.
type Rows[T any] struct {
	rs *resultSet
}

// Next advances to the next entity. It returns false when the rows are
// exhausted or an error occurred; the cursor is released in both cases.
func (r *Rows[T]) Next() bool { return r.rs.next() }

// Value returns the current entity.
func (r *Rows[T]) Value() *T { return r.rs.current.Interface().(*T) }

// Err returns the error that ended iteration, if any.
func (r *Rows[T]) Err() error { return r.rs.err }

// Close releases the cursor. Closing twice is a no-op.
func (r *Rows[T]) Close() error { return r.rs.close() }

package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/MineKing9534/KORMite-sub000/expr"
	"github.com/MineKing9534/KORMite-sub000/schema"
)

// selection is the untyped state of a SELECT. Query wraps it for callers;
// secondary loads use it directly.
type selection struct {
	db      *DB
	exec    Executor
	table   *schema.Table
	where   expr.Where
	orders  []expr.Order
	limit   int
	offset  int
	columns []string
	depth   int
	joins   bool
	ttl     time.Duration
	used    bool
	err     error
}

func newSelection(db *DB, exec Executor, t *schema.Table) *selection {
	return &selection{
		db:     db,
		exec:   exec,
		table:  t,
		limit:  -1,
		offset: -1,
		depth:  db.depth,
		joins:  true,
	}
}

// begin marks the selection executed. A selection runs once.
func (s *selection) begin() error {
	if s.err != nil {
		return s.err
	}
	if s.used {
		return ErrQueryUsed
	}
	s.used = true
	return nil
}

// chosen returns the direct columns restricted by Columns, always including
// the keys. A nil map selects everything.
func (s *selection) chosen() (map[*schema.DirectColumn]bool, error) {
	if len(s.columns) == 0 {
		return nil, nil
	}
	set := make(map[*schema.DirectColumn]bool)
	for _, k := range s.table.Keys() {
		set[k] = true
	}
	for _, name := range s.columns {
		c, err := s.table.Column(name)
		if err != nil {
			return nil, err
		}
		set[c] = true
	}
	return set, nil
}

// projectEntities lists every stored column of the root table and, up to
// the join depth, of the tables reached through to-one references. Each
// column is labelled with its join path so reader can find it.
func (s *selection) projectEntities(c *expr.Context) ([]string, error) {
	set, err := s.chosen()
	if err != nil {
		return nil, err
	}
	var cols []string
	var walk func(t *schema.Table, j *expr.Join, depth int)
	walk = func(t *schema.Table, j *expr.Join, depth int) {
		path := ""
		if j != nil {
			path = j.Path
		}
		for _, col := range t.StoredColumns() {
			if j == nil && set != nil && !set[col.Root()] {
				continue
			}
			l := label(path, col.Name())
			if err == nil {
				err = c.CheckIdentifier(l)
			}
			cols = append(cols, c.Alias(j)+"."+c.Quote(col.Name())+" AS "+c.Quote(l))
		}
		if !s.joins || depth >= s.depth {
			return
		}
		for _, col := range t.Columns() {
			if col.RefKind() != schema.RefOne || !col.Stored() {
				continue
			}
			if j == nil && set != nil && !set[col] {
				continue
			}
			walk(col.Reference(), c.JoinColumn(j, col), depth+1)
		}
	}
	walk(s.table, nil, 0)
	if err != nil {
		return nil, err
	}
	return cols, nil
}

// render builds the SELECT statement. tail controls whether order, limit
// and offset are appended.
func (s *selection) render(project func(c *expr.Context) ([]string, error), tail bool) (string, *expr.Context, error) {
	c := expr.NewContext(s.table, s.db.dialect)
	c.AllowJoins = s.joins

	proj, err := project(c)
	if err != nil {
		return "", nil, err
	}
	where, err := s.where.Build(c, nil)
	if err != nil {
		return "", nil, err
	}
	var orders []string
	if tail {
		for _, o := range s.orders {
			part, err := o.Build(c)
			if err != nil {
				return "", nil, err
			}
			orders = append(orders, part)
		}
	}
	joins, err := c.JoinSQL()
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(proj, ", "))
	b.WriteString(" FROM ")
	b.WriteString(c.Quote(s.table.Name))
	b.WriteString(joins)
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	if len(orders) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(orders, ", "))
	}
	if tail {
		switch {
		case s.limit >= 0:
			b.WriteString(" LIMIT " + strconv.Itoa(s.limit))
		case s.offset > 0:
			b.WriteString(" LIMIT " + s.db.dialect.NoLimit())
		}
		if s.offset > 0 {
			b.WriteString(" OFFSET " + strconv.Itoa(s.offset))
		}
	}
	return b.String(), c, nil
}

// open executes a rendered SELECT, going through the cache when the
// selection asked for it.
func (s *selection) open(ctx context.Context, op Operation, sql string, args []any) (cursor, error) {
	key := ""
	if s.ttl > 0 && s.db.cache != nil {
		key = cacheKey(s.table.Name, sql, args)
		b, ok, err := s.db.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.db.logger.Warn("cache get %s failed: %v", key, err)
		case ok:
			snap, err := unmarshalSnapshot(b)
			if err == nil {
				s.db.logger.Debug("cache hit %s", key)
				return snap, nil
			}
			s.db.logger.Warn("cache entry %s is corrupt: %v", key, err)
		}
	}

	res, err := s.db.run(ctx, s.exec, &Statement{Op: op, Table: s.table.Name, SQL: sql, Args: args, Query: true})
	if err != nil {
		return nil, err
	}
	if res == nil || res.Rows == nil {
		return nil, fmt.Errorf("kormite: %s on %s returned no result set", op, s.table.Name)
	}
	if key == "" {
		return res.Rows, nil
	}

	snap, err := drain(res.Rows)
	if err != nil {
		return nil, err
	}
	if b, err := snap.marshal(); err != nil {
		s.db.logger.Warn("cache encode %s failed: %v", key, err)
	} else if err := s.db.cache.Set(ctx, key, b, s.ttl); err != nil {
		s.db.logger.Warn("cache set %s failed: %v", key, err)
	}
	return snap, nil
}

// iterate executes the selection and returns its entity result set.
func (s *selection) iterate(ctx context.Context) (*resultSet, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	sql, c, err := s.render(s.projectEntities, true)
	if err != nil {
		return nil, err
	}
	cur, err := s.open(ctx, OpSelect, sql, c.Args())
	if err != nil {
		return nil, err
	}
	cols, err := cur.Columns()
	if err != nil {
		_ = cur.Close()
		return nil, err
	}
	return &resultSet{sel: s, ctx: ctx, cur: cur, rd: newReader(cols)}, nil
}

// collect executes the selection and reads every entity.
func (s *selection) collect(ctx context.Context) ([]reflect.Value, error) {
	rs, err := s.iterate(ctx)
	if err != nil {
		return nil, err
	}
	defer rs.close()
	var out []reflect.Value
	for rs.next() {
		out = append(out, rs.current)
	}
	return out, rs.err
}

// values executes the selection projecting n alone and decodes each value
// into typ.
func (s *selection) values(ctx context.Context, op Operation, n expr.Node, typ reflect.Type, tail bool) ([]reflect.Value, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	var owner schema.Column
	sql, c, err := s.render(func(c *expr.Context) ([]string, error) {
		part, err := n.Build(c, nil)
		if err != nil {
			return nil, err
		}
		owner = n.Owner(c)
		return []string{part + " AS " + c.Quote("value")}, nil
	}, tail)
	if err != nil {
		return nil, err
	}

	cur, err := s.open(ctx, op, sql, c.Args())
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	r := s.table.Registry()
	f := &schema.Field{Name: "value", Type: typ, Nullable: true}
	var m schema.Mapper
	if owner != nil && owner.Mapper() != nil && owner.Field().Type == typ {
		f, m = owner.Field(), owner.Mapper()
	} else if m, err = r.Resolve(f); err != nil {
		return nil, err
	}

	var out []reflect.Value
	for cur.Next() {
		row, err := scanRow(cur, 1)
		if err != nil {
			return nil, err
		}
		v, err := m.Decode(r, f, row[0])
		if err != nil {
			return nil, fmt.Errorf("kormite: decode value: %w", err)
		}
		out = append(out, v)
	}
	return out, cur.Err()
}

var int64Type = reflect.TypeOf(int64(0))

func (s *selection) count(ctx context.Context) (int64, error) {
	vs, err := s.values(ctx, OpCount, expr.CountAll(), int64Type, false)
	if err != nil {
		return 0, err
	}
	if len(vs) == 0 {
		return 0, nil
	}
	return vs[0].Int(), nil
}

// Query is a single-use SELECT over the entities of one table. Builder
// methods return the query for chaining; a terminal method executes it.
type Query[T any] struct {
	sel *selection
}

// Where narrows the query. Successive calls are joined with AND.
func (q *Query[T]) Where(w expr.Where) *Query[T] {
	q.sel.where = q.sel.where.And(w)
	return q
}

// OrderBy appends order terms.
func (q *Query[T]) OrderBy(orders ...expr.Order) *Query[T] {
	q.sel.orders = append(q.sel.orders, orders...)
	return q
}

func (q *Query[T]) Limit(n int) *Query[T] {
	q.sel.limit = n
	return q
}

func (q *Query[T]) Offset(n int) *Query[T] {
	q.sel.offset = n
	return q
}

// Columns restricts the root columns read to the named ones. Key columns
// are always read.
func (q *Query[T]) Columns(names ...string) *Query[T] {
	q.sel.columns = append(q.sel.columns, names...)
	return q
}

// Depth sets how many levels of to-one references are joined. References
// beyond it decode as stubs holding only their key.
func (q *Query[T]) Depth(n int) *Query[T] {
	if n < 0 {
		q.sel.err = fmt.Errorf("kormite: negative join depth %d", n)
	}
	q.sel.depth = n
	return q
}

// NoJoins disables automatic joins. References decode as key stubs and
// conditions crossing references fail with ErrJoinNotAllowed.
func (q *Query[T]) NoJoins() *Query[T] {
	q.sel.joins = false
	return q
}

// Cache serves the query from the DB cache when possible and stores the
// result for ttl otherwise. Without a cache installed it does nothing.
func (q *Query[T]) Cache(ttl time.Duration) *Query[T] {
	q.sel.ttl = ttl
	return q
}

// SQL renders the query without executing it.
func (q *Query[T]) SQL() (string, []any, error) {
	if q.sel.err != nil {
		return "", nil, q.sel.err
	}
	sql, c, err := q.sel.render(q.sel.projectEntities, true)
	if err != nil {
		return "", nil, err
	}
	return sql, c.Args(), nil
}

// Iter executes the query and returns a lazy row iterator. The caller must
// Close it unless it is drained.
func (q *Query[T]) Iter(ctx context.Context) (*Rows[T], error) {
	rs, err := q.sel.iterate(ctx)
	if err != nil {
		return nil, err
	}
	return &Rows[T]{rs: rs}, nil
}

// All executes the query and returns every entity.
func (q *Query[T]) All(ctx context.Context) ([]*T, error) {
	rows, err := q.Iter(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*T
	for rows.Next() {
		out = append(out, rows.Value())
	}
	return out, rows.Err()
}

// First returns the first entity, or ErrRecordNotFound.
func (q *Query[T]) First(ctx context.Context) (*T, error) {
	q.sel.limit = 1
	all, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrRecordNotFound
	}
	return all[0], nil
}

// Count returns the number of matching rows. Order, limit and offset are
// ignored.
func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	return q.sel.count(ctx)
}

// Values executes q projecting n instead of entities and decodes one V per
// row. When n resolves to a column of type V, that column's mapper decodes
// it; otherwise the mapper V resolves to does.
func Values[V, T any](ctx context.Context, q *Query[T], n expr.Node) ([]V, error) {
	typ := reflect.TypeOf((*V)(nil)).Elem()
	vs, err := q.sel.values(ctx, OpSelect, n, typ, true)
	if err != nil {
		return nil, err
	}
	out := make([]V, len(vs))
	for i, v := range vs {
		if v.IsValid() {
			reflect.ValueOf(&out[i]).Elem().Set(v)
		}
	}
	return out, nil
}

// IsNotFound reports whether err is ErrRecordNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrRecordNotFound) }

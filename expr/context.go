package expr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MineKing9534/KORMite-sub000/dialect"
	"github.com/MineKing9534/KORMite-sub000/schema"
)

// ErrJoinNotAllowed is returned when a property path crosses a reference in
// a statement that cannot carry joins.
var ErrJoinNotAllowed = errors.New("kormite: joins are not allowed in this statement")

// ErrIdentifierTooLong is returned when a generated alias or result label
// exceeds what the backend keeps intact.
var ErrIdentifierTooLong = errors.New("kormite: identifier too long")

// Join is one LEFT JOIN of the join graph, identified by its path of
// reference column names from the root table.
type Join struct {
	Path   string
	Alias  string
	Table  *schema.Table
	Column schema.Column
	Parent *Join
	Depth  int
}

// Ref is a resolved property path: the column and the join it is read from.
// Join is nil for columns of the root table.
type Ref struct {
	Column schema.Column
	Join   *Join
}

// Context carries the state of one statement rendering: the root table, the
// dialect, the bound parameters and the join graph discovered so far.
type Context struct {
	Table   *schema.Table
	Dialect dialect.Dialect
	// Qualify prefixes every column with its table alias.
	Qualify bool
	// AllowJoins permits property paths to cross references.
	AllowJoins bool

	args    []any
	named   map[string]any
	ids     map[binding]int
	encoded map[uint64]int
	joins   []*Join
	byPath  map[string]*Join
	numbers bool
}

// NewContext returns a context rendering against t, with qualification and
// joins enabled.
func NewContext(t *schema.Table, d dialect.Dialect) *Context {
	return &Context{
		Table:      t,
		Dialect:    d,
		Qualify:    true,
		AllowJoins: true,
		named:      make(map[string]any),
		ids:        make(map[binding]int),
		encoded:    make(map[uint64]int),
		byPath:     make(map[string]*Join),
		numbers:    d.Placeholder(1) != d.Placeholder(2),
	}
}

// Args returns the bound parameters in placeholder order.
func (c *Context) Args() []any { return c.args }

// Named returns the bound parameters keyed by the identity of the node that
// bound them.
func (c *Context) Named() map[string]any { return c.named }

// Joins returns the join graph, parents before children.
func (c *Context) Joins() []*Join { return c.joins }

// Registry returns the mapper registry of the root table.
func (c *Context) Registry() *schema.Registry { return c.Table.Registry() }

func (c *Context) Quote(name string) string { return c.Dialect.Quote(name) }

// binding identifies one encoding of a node: the node and the column its
// value was encoded for.
type binding struct {
	id  uint64
	col schema.Column
}

// Bind records a parameter under a node identity and returns its placeholder.
// col is the column v was encoded for. With numbered placeholders a node
// bound twice for the same column reuses its first number; bound for another
// column it gets a new one, since the encodings may differ.
func (c *Context) Bind(id uint64, col schema.Column, v any) string {
	key := binding{id: id, col: col}
	if pos, ok := c.ids[key]; ok && c.numbers {
		return c.Dialect.Placeholder(pos)
	}
	if _, ok := c.ids[key]; !ok {
		name := fmt.Sprintf("p%d", id)
		if n := c.encoded[id]; n > 0 {
			name = fmt.Sprintf("p%d_%d", id, n)
		}
		c.encoded[id]++
		c.named[name] = v
	}
	c.args = append(c.args, v)
	c.ids[key] = len(c.args)
	return c.Dialect.Placeholder(len(c.args))
}

// Resolve parses a property path. "." descends into a sub-column, "->"
// crosses a to-one reference into the referenced table.
func (c *Context) Resolve(path string) (*Ref, error) {
	table := c.Table
	var join *Join
	hops := strings.Split(path, "->")
	for i, hop := range hops {
		parts := strings.Split(strings.TrimSpace(hop), ".")
		if parts[0] == "" {
			return nil, &schema.IllegalPathError{Path: path, Reason: "empty segment"}
		}
		direct, err := table.Column(parts[0])
		if err != nil {
			return nil, err
		}
		var col schema.Column = direct
		for _, p := range parts[1:] {
			if col, err = col.Child(p); err != nil {
				return nil, err
			}
		}
		if i == len(hops)-1 {
			return &Ref{Column: col, Join: join}, nil
		}
		if col.RefKind() != schema.RefOne {
			return nil, &schema.IllegalPathError{Path: path, Reason: fmt.Sprintf("%s is not a reference", hop)}
		}
		if !c.AllowJoins {
			return nil, fmt.Errorf("%w: %s", ErrJoinNotAllowed, path)
		}
		join = c.JoinColumn(join, col)
		table = col.Reference()
	}
	return nil, &schema.IllegalPathError{Path: path, Reason: "empty path"}
}

// JoinColumn returns the join through reference column col of parent (nil
// for the root table), adding it to the graph on first use.
func (c *Context) JoinColumn(parent *Join, col schema.Column) *Join {
	path := col.Name()
	depth := 1
	if parent != nil {
		path = parent.Path + "->" + path
		depth = parent.Depth + 1
	}
	if j, ok := c.byPath[path]; ok {
		return j
	}
	j := &Join{
		Path:   path,
		Alias:  c.Table.Name + "->" + path,
		Table:  col.Reference(),
		Column: col,
		Parent: parent,
		Depth:  depth,
	}
	c.byPath[path] = j
	c.joins = append(c.joins, j)
	return j
}

// Alias returns the quoted alias of a join, or of the root table for nil.
func (c *Context) Alias(j *Join) string {
	if j == nil {
		return c.Quote(c.Table.Name)
	}
	return c.Quote(j.Alias)
}

// CheckIdentifier fails when the backend would truncate name. Truncated
// aliases and labels can collide and be read back as the wrong column.
func (c *Context) CheckIdentifier(name string) error {
	if limit := c.Dialect.MaxIdentifier(); limit > 0 && len(name) > limit {
		return fmt.Errorf("%w: %q is %d bytes, %s keeps %d", ErrIdentifierTooLong, name, len(name), c.Dialect.Name(), limit)
	}
	return nil
}

// ColumnSQL renders a resolved column reference.
func (c *Context) ColumnSQL(ref *Ref) (string, error) {
	col := ref.Column
	if path := col.JSONPath(); path != nil {
		doc := col
		for doc.JSONPath() != nil {
			doc = doc.Parent()
		}
		return c.Dialect.JSONExtract(c.qualified(ref.Join, doc.Name()), path), nil
	}
	if !col.Stored() {
		return "", &schema.IllegalPathError{Path: col.FieldName(), Reason: "column is not stored, address one of its sub-columns"}
	}
	return c.qualified(ref.Join, col.Name()), nil
}

func (c *Context) qualified(j *Join, name string) string {
	if j == nil && !c.Qualify {
		return c.Quote(name)
	}
	return c.Alias(j) + "." + c.Quote(name)
}

// JoinSQL renders the LEFT JOIN clauses of the join graph.
func (c *Context) JoinSQL() (string, error) {
	var b strings.Builder
	for _, j := range c.joins {
		if err := c.CheckIdentifier(j.Alias); err != nil {
			return "", err
		}
		key, err := j.Table.Key()
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, " LEFT JOIN %s AS %s ON %s.%s = %s.%s",
			c.Quote(j.Table.Name), c.Alias(j),
			c.Alias(j), c.Quote(key.Name()),
			c.Alias(j.Parent), c.Quote(j.Column.Name()),
		)
	}
	return b.String(), nil
}

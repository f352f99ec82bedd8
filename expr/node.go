package expr

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/MineKing9534/KORMite-sub000/schema"
)

// Node is an SQL-producing expression. Nodes are immutable; rendering is
// deferred until a Context supplies the table they are resolved against.
type Node interface {
	// Build renders the node. hint is the column a value node should encode
	// itself for, usually the owner of the opposite operand.
	Build(c *Context, hint schema.Column) (string, error)
	// Owner returns the column the node ultimately resolves to, or nil.
	Owner(c *Context) schema.Column
}

var nextID atomic.Uint64

type value struct {
	id uint64
	v  any
}

// Value returns a node binding v as a parameter. v is encoded with the mapper
// of the column on the other side of the expression it is used in; a value
// used against several columns is bound once per column.
func Value(v any) Node {
	return &value{id: nextID.Add(1), v: v}
}

func (n *value) Build(c *Context, hint schema.Column) (string, error) {
	wire, err := encode(c, hint, n.v)
	if err != nil {
		return "", err
	}
	return c.Bind(n.id, hint, wire), nil
}

func (n *value) Owner(*Context) schema.Column { return nil }

func encode(c *Context, hint schema.Column, v any) (any, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		return valuer.Value()
	}
	if hint == nil {
		return c.Registry().EncodeAny(v)
	}
	return schema.EncodeValue(hint, v)
}

type param struct {
	id uint64
	v  any
}

// Param returns a node binding an already encoded driver value as is.
func Param(v any) Node {
	return &param{id: nextID.Add(1), v: v}
}

func (n *param) Build(c *Context, _ schema.Column) (string, error) {
	return c.Bind(n.id, nil, n.v), nil
}

func (n *param) Owner(*Context) schema.Column { return nil }

type element struct {
	id uint64
	v  any
}

func (n *element) Build(c *Context, hint schema.Column) (string, error) {
	if hint == nil {
		return "", fmt.Errorf("kormite: array element %v has no array column to encode for", n.v)
	}
	wire, err := schema.EncodeElement(hint, n.v)
	if err != nil {
		return "", err
	}
	return c.Bind(n.id, hint, wire), nil
}

func (n *element) Owner(*Context) schema.Column { return nil }

type unsafe string

// Unsafe returns a node rendering text verbatim. The text is not checked or
// escaped.
func Unsafe(text string) Node { return unsafe(text) }

func (n unsafe) Build(*Context, schema.Column) (string, error) { return string(n), nil }
func (n unsafe) Owner(*Context) schema.Column                  { return nil }

// Prop is a property path reference such as "title", "location.shelf" or
// "author->publisher->name".
type Prop struct {
	path string
}

// Property returns a node referencing the column at path.
func Property(path string) *Prop { return &Prop{path: path} }

func (p *Prop) Path() string { return p.path }

func (p *Prop) Build(c *Context, _ schema.Column) (string, error) {
	ref, err := c.Resolve(p.path)
	if err != nil {
		return "", err
	}
	return c.ColumnSQL(ref)
}

func (p *Prop) Owner(c *Context) schema.Column {
	ref, err := c.Resolve(p.path)
	if err != nil {
		return nil
	}
	return ref.Column
}

func (p *Prop) Eq(v any) Where {
	if v == nil {
		return IsNull(p)
	}
	return Eq(p, toNode(v))
}

func (p *Prop) NotEq(v any) Where {
	if v == nil {
		return NotNull(p)
	}
	return NotEq(p, toNode(v))
}

func (p *Prop) Gt(v any) Where           { return Gt(p, toNode(v)) }
func (p *Prop) Ge(v any) Where           { return Ge(p, toNode(v)) }
func (p *Prop) Lt(v any) Where           { return Lt(p, toNode(v)) }
func (p *Prop) Le(v any) Where           { return Le(p, toNode(v)) }
func (p *Prop) Like(pattern any) Where   { return Like(p, toNode(pattern)) }
func (p *Prop) In(vs ...any) Where       { return In(p, vs...) }
func (p *Prop) Between(lo, hi any) Where { return Between(p, toNode(lo), toNode(hi)) }
func (p *Prop) IsNull() Where            { return IsNull(p) }
func (p *Prop) NotNull() Where           { return NotNull(p) }
func (p *Prop) Contains(v any) Where     { return Contains(p, v) }
func (p *Prop) Asc() Order               { return Asc(p) }
func (p *Prop) Desc() Order              { return Desc(p) }

func toNode(v any) Node {
	if n, ok := v.(Node); ok {
		return n
	}
	return Value(v)
}

type list struct {
	nodes []Node
}

// List renders nodes as a parenthesized, comma separated list.
func List(nodes ...Node) Node { return &list{nodes: nodes} }

func (n *list) Build(c *Context, hint schema.Column) (string, error) {
	parts, err := buildAll(c, hint, n.nodes)
	if err != nil {
		return "", err
	}
	return "(" + strings.Join(parts, ", ") + ")", nil
}

func (n *list) Owner(c *Context) schema.Column { return firstOwner(c, n.nodes) }

type concat struct {
	nodes []Node
}

// Concat renders nodes one after another, separated by a space. Nested
// concatenations are flattened.
func Concat(nodes ...Node) Node {
	var flat []Node
	for _, n := range nodes {
		if cn, ok := n.(*concat); ok {
			flat = append(flat, cn.nodes...)
			continue
		}
		flat = append(flat, n)
	}
	return &concat{nodes: flat}
}

func (n *concat) Build(c *Context, hint schema.Column) (string, error) {
	if hint == nil {
		hint = n.Owner(c)
	}
	parts, err := buildAll(c, hint, n.nodes)
	if err != nil {
		return "", err
	}
	return strings.Join(parts, " "), nil
}

func (n *concat) Owner(c *Context) schema.Column { return firstOwner(c, n.nodes) }

type function struct {
	name string
	args []Node
}

// Func renders name(args...). The owner is the owner of the first argument.
func Func(name string, args ...Node) Node { return &function{name: name, args: args} }

func (n *function) Build(c *Context, hint schema.Column) (string, error) {
	if owner := n.Owner(c); owner != nil {
		hint = owner
	}
	parts, err := buildAll(c, hint, n.args)
	if err != nil {
		return "", err
	}
	return n.name + "(" + strings.Join(parts, ", ") + ")", nil
}

func (n *function) Owner(c *Context) schema.Column {
	if len(n.args) == 0 {
		return nil
	}
	return n.args[0].Owner(c)
}

func Count(n Node) Node { return Func("COUNT", n) }
func Lower(n Node) Node { return Func("LOWER", n) }
func Upper(n Node) Node { return Func("UPPER", n) }
func Max(n Node) Node   { return Func("MAX", n) }
func Min(n Node) Node   { return Func("MIN", n) }

// CountAll renders COUNT(*).
func CountAll() Node { return Unsafe("COUNT(*)") }

func buildAll(c *Context, hint schema.Column, nodes []Node) ([]string, error) {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		s, err := n.Build(c, hint)
		if err != nil {
			return nil, err
		}
		parts[i] = s
	}
	return parts, nil
}

func firstOwner(c *Context, nodes []Node) schema.Column {
	for _, n := range nodes {
		if o := n.Owner(c); o != nil {
			return o
		}
	}
	return nil
}

// Order is one ORDER BY term.
type Order struct {
	node Node
	desc bool
}

func Asc(n Node) Order  { return Order{node: n} }
func Desc(n Node) Order { return Order{node: n, desc: true} }

func (o Order) Build(c *Context) (string, error) {
	s, err := o.node.Build(c, nil)
	if err != nil {
		return "", err
	}
	if o.desc {
		return s + " DESC", nil
	}
	return s + " ASC", nil
}

// Assignment is one "column = value" pair of a partial update.
type Assignment struct {
	Target *Prop
	Value  Node
}

// Set returns an assignment of v to the column at path. v may be a Node.
func Set(path string, v any) Assignment {
	return Assignment{Target: Property(path), Value: toNode(v)}
}

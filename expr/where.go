package expr

import (
	"strings"

	"github.com/MineKing9534/KORMite-sub000/schema"
)

// Where is a boolean condition. The zero value is the empty condition: it
// renders nothing and leaves any conjunction or disjunction it joins
// unchanged.
type Where struct {
	node Node
}

// Cond wraps a boolean node as a condition.
func Cond(n Node) Where { return Where{node: n} }

// Empty reports whether w is the empty condition.
func (w Where) Empty() bool { return w.node == nil }

func (w Where) Build(c *Context, hint schema.Column) (string, error) {
	if w.node == nil {
		return "", nil
	}
	return w.node.Build(c, hint)
}

func (w Where) Owner(c *Context) schema.Column {
	if w.node == nil {
		return nil
	}
	return w.node.Owner(c)
}

func (w Where) And(o Where) Where { return AllOf(w, o) }
func (w Where) Or(o Where) Where  { return AnyOf(w, o) }

// AllOf joins conditions with AND. Empty conditions are skipped; zero
// conditions yield the empty condition.
func AllOf(ws ...Where) Where { return group("AND", ws) }

// AnyOf joins conditions with OR. Empty conditions are skipped; zero
// conditions yield the empty condition.
func AnyOf(ws ...Where) Where { return group("OR", ws) }

func group(op string, ws []Where) Where {
	var parts []Node
	for _, w := range ws {
		if !w.Empty() {
			parts = append(parts, w.node)
		}
	}
	switch len(parts) {
	case 0:
		return Where{}
	case 1:
		return Where{node: parts[0]}
	}
	return Where{node: &junction{op: op, parts: parts}}
}

type junction struct {
	op    string
	parts []Node
}

func (n *junction) Build(c *Context, _ schema.Column) (string, error) {
	parts := make([]string, len(n.parts))
	for i, p := range n.parts {
		s, err := p.Build(c, nil)
		if err != nil {
			return "", err
		}
		parts[i] = "(" + s + ")"
	}
	return strings.Join(parts, " "+n.op+" "), nil
}

func (n *junction) Owner(*Context) schema.Column { return nil }

// False is a condition no row satisfies.
func False() Where { return Where{node: Unsafe("1 = 0")} }

// Not negates w. The negation of the empty condition is False.
func Not(w Where) Where {
	if w.Empty() {
		return False()
	}
	return Where{node: &prefix{op: "NOT", node: w.node}}
}

type prefix struct {
	op   string
	node Node
}

func (n *prefix) Build(c *Context, hint schema.Column) (string, error) {
	s, err := n.node.Build(c, hint)
	if err != nil {
		return "", err
	}
	return n.op + " (" + s + ")", nil
}

func (n *prefix) Owner(*Context) schema.Column { return nil }

type binary struct {
	op          string
	left, right Node
}

// Build renders both operands with the owner of whichever side has one, so
// a value on either side is encoded for the column it is compared with.
func (n *binary) Build(c *Context, _ schema.Column) (string, error) {
	hint := n.left.Owner(c)
	if hint == nil {
		hint = n.right.Owner(c)
	}
	l, err := n.left.Build(c, hint)
	if err != nil {
		return "", err
	}
	r, err := n.right.Build(c, hint)
	if err != nil {
		return "", err
	}
	return l + " " + n.op + " " + r, nil
}

func (n *binary) Owner(*Context) schema.Column { return nil }

func op(o string, l, r Node) Where { return Where{node: &binary{op: o, left: l, right: r}} }

func Eq(l, r Node) Where    { return op("=", l, r) }
func NotEq(l, r Node) Where { return op("<>", l, r) }
func Gt(l, r Node) Where    { return op(">", l, r) }
func Ge(l, r Node) Where    { return op(">=", l, r) }
func Lt(l, r Node) Where    { return op("<", l, r) }
func Le(l, r Node) Where    { return op("<=", l, r) }
func Like(l, r Node) Where  { return op("LIKE", l, r) }

// In matches l against values. Elements may be nodes. An empty list matches
// nothing.
func In(l Node, values ...any) Where {
	if len(values) == 0 {
		return False()
	}
	nodes := make([]Node, len(values))
	for i, v := range values {
		nodes[i] = toNode(v)
	}
	return op("IN", l, List(nodes...))
}

// Between matches lo <= n <= hi.
func Between(n, lo, hi Node) Where {
	return op("BETWEEN", n, Concat(lo, Unsafe("AND"), hi))
}

type postfix struct {
	op   string
	node Node
}

func (n *postfix) Build(c *Context, hint schema.Column) (string, error) {
	s, err := n.node.Build(c, hint)
	if err != nil {
		return "", err
	}
	return s + " " + n.op, nil
}

func (n *postfix) Owner(*Context) schema.Column { return nil }

func IsNull(n Node) Where  { return Where{node: &postfix{op: "IS NULL", node: n}} }
func NotNull(n Node) Where { return Where{node: &postfix{op: "IS NOT NULL", node: n}} }

type contains struct {
	array Node
	elem  *element
}

// Contains matches rows whose array column holds v. v is encoded with the
// column's element mapper; for reference arrays it may be an entity or a
// bare key.
func Contains(array Node, v any) Where {
	return Where{node: &contains{array: array, elem: &element{id: nextID.Add(1), v: v}}}
}

func (n *contains) Build(c *Context, _ schema.Column) (string, error) {
	owner := n.array.Owner(c)
	arr, err := n.array.Build(c, owner)
	if err != nil {
		return "", err
	}
	v, err := n.elem.Build(c, owner)
	if err != nil {
		return "", err
	}
	return c.Dialect.ArrayContains(arr, v), nil
}

func (n *contains) Owner(*Context) schema.Column { return nil }

package schema

import (
	"reflect"
	"strings"
)

// RefKind tells whether a column references rows of another table.
type RefKind int

const (
	RefNone RefKind = iota
	// RefOne columns store the key of a single target row.
	RefOne
	// RefMany columns store an array of target keys.
	RefMany
)

// Column is the common view of direct and virtual columns.
type Column interface {
	// Name is the storage name.
	Name() string
	// FieldName is the code-level name used in property paths.
	FieldName() string
	Field() *Field
	Table() *Table
	// Mapper is nil for JSON sub-path columns.
	Mapper() Mapper
	DataType() (DataType, error)
	// Parent is nil for direct columns.
	Parent() Column
	Root() *DirectColumn
	Children() []*VirtualColumn
	// Child resolves a named sub-column for "." path segments.
	Child(name string) (Column, error)
	Stored() bool
	IsKey() bool
	Reference() *Table
	RefKind() RefKind
	// JSONPath is the document path of a JSON sub-path column, nil otherwise.
	JSONPath() []string
	// Get reads the column value from an entity struct value.
	Get(entity reflect.Value) reflect.Value
	// Set writes v into an entity struct value. Read-only columns ignore it.
	Set(entity reflect.Value, v reflect.Value)
}

// DirectColumn corresponds to one declared entity field.
type DirectColumn struct {
	table    *Table
	field    *Field
	name     string
	mapper   Mapper
	children []*VirtualColumn
	ref      *Table
	refKind  RefKind
	stored   bool
}

func (c *DirectColumn) Name() string               { return c.name }
func (c *DirectColumn) FieldName() string          { return c.field.Name }
func (c *DirectColumn) Field() *Field              { return c.field }
func (c *DirectColumn) Table() *Table              { return c.table }
func (c *DirectColumn) Mapper() Mapper             { return c.mapper }
func (c *DirectColumn) Parent() Column             { return nil }
func (c *DirectColumn) Root() *DirectColumn        { return c }
func (c *DirectColumn) Children() []*VirtualColumn { return c.children }
func (c *DirectColumn) Stored() bool               { return c.stored }
func (c *DirectColumn) IsKey() bool                { return c.field.Key }
func (c *DirectColumn) Reference() *Table          { return c.ref }
func (c *DirectColumn) RefKind() RefKind           { return c.refKind }
func (c *DirectColumn) JSONPath() []string         { return nil }

func (c *DirectColumn) DataType() (DataType, error) {
	return c.mapper.DataType(c.table.registry, c.field)
}

// SetStored marks whether the column is persisted as its own storage column.
func (c *DirectColumn) SetStored(stored bool) { c.stored = stored }

// SetReference records the table whose rows the column points at.
func (c *DirectColumn) SetReference(t *Table, kind RefKind) {
	c.ref = t
	c.refKind = kind
}

// AddChild attaches a virtual sub-column.
func (c *DirectColumn) AddChild(v *VirtualColumn) { c.children = append(c.children, v) }

func (c *DirectColumn) Child(name string) (Column, error) {
	return child(c, c.children, name)
}

func (c *DirectColumn) Get(entity reflect.Value) reflect.Value {
	return entity.FieldByIndex(c.field.Index)
}

func (c *DirectColumn) Set(entity reflect.Value, v reflect.Value) {
	setValue(entity.FieldByIndex(c.field.Index), v)
}

func (c *DirectColumn) String() string { return c.table.Name + "." + c.name }

// VirtualColumn is a column derived from a parent column: a persisted
// composite part, or a read-only JSON sub-path.
type VirtualColumn struct {
	parent   Column
	field    *Field
	name     string
	mapper   Mapper
	stored   bool
	path     []string
	children []*VirtualColumn
}

// NewVirtualColumn creates a persisted sub-column. f.Index is relative to the
// value held by parent.
func NewVirtualColumn(parent Column, f *Field, name string, m Mapper) *VirtualColumn {
	return &VirtualColumn{
		parent: parent,
		field:  f,
		name:   name,
		mapper: m,
		stored: true,
	}
}

// NewPathColumn creates a read-only sub-column addressing key name inside
// the JSON document held by parent.
func NewPathColumn(parent Column, name string) *VirtualColumn {
	path := append(append([]string(nil), parent.JSONPath()...), name)
	return &VirtualColumn{
		parent: parent,
		field:  &Field{Name: name, Type: anyType, Nullable: true},
		name:   parent.Name() + "." + name,
		path:   path,
	}
}

func (c *VirtualColumn) Name() string               { return c.name }
func (c *VirtualColumn) FieldName() string          { return c.field.Name }
func (c *VirtualColumn) Field() *Field              { return c.field }
func (c *VirtualColumn) Table() *Table              { return c.parent.Table() }
func (c *VirtualColumn) Mapper() Mapper             { return c.mapper }
func (c *VirtualColumn) Parent() Column             { return c.parent }
func (c *VirtualColumn) Root() *DirectColumn        { return c.parent.Root() }
func (c *VirtualColumn) Children() []*VirtualColumn { return c.children }
func (c *VirtualColumn) Stored() bool               { return c.stored }
func (c *VirtualColumn) IsKey() bool                { return false }
func (c *VirtualColumn) Reference() *Table          { return nil }
func (c *VirtualColumn) RefKind() RefKind           { return RefNone }
func (c *VirtualColumn) JSONPath() []string         { return c.path }

func (c *VirtualColumn) DataType() (DataType, error) {
	if c.mapper == nil {
		return TypeJSON, nil
	}
	return c.mapper.DataType(c.Table().registry, c.field)
}

// AddChild attaches a nested virtual sub-column.
func (c *VirtualColumn) AddChild(v *VirtualColumn) { c.children = append(c.children, v) }

func (c *VirtualColumn) Child(name string) (Column, error) {
	if c.path != nil {
		return NewPathColumn(c, name), nil
	}
	return child(c, c.children, name)
}

func (c *VirtualColumn) Get(entity reflect.Value) reflect.Value {
	if c.path != nil {
		return reflect.Value{}
	}
	owner := c.parent.Get(entity)
	for owner.Kind() == reflect.Ptr {
		if owner.IsNil() {
			return reflect.Zero(c.field.Type)
		}
		owner = owner.Elem()
	}
	return owner.FieldByIndex(c.field.Index)
}

func (c *VirtualColumn) Set(entity reflect.Value, v reflect.Value) {
	if c.path != nil {
		return
	}
	owner := c.parent.Get(entity)
	if owner.Kind() == reflect.Ptr {
		if owner.IsNil() {
			owner.Set(reflect.New(owner.Type().Elem()))
		}
		owner = owner.Elem()
	}
	setValue(owner.FieldByIndex(c.field.Index), v)
}

func (c *VirtualColumn) String() string { return c.Table().Name + "." + c.name }

func child(c Column, children []*VirtualColumn, name string) (Column, error) {
	for _, v := range children {
		if v.field.Name == name || v.name == name || strings.EqualFold(v.field.Name, name) {
			return v, nil
		}
	}
	if d, ok := c.Mapper().(Descender); ok {
		return d.Descend(c.Table().registry, c, name)
	}
	if len(children) == 0 {
		return nil, &IllegalPathError{Path: c.FieldName() + "." + name, Reason: "column has no sub-columns"}
	}
	return nil, &ColumnNotFoundError{Table: c.Table().Name, Name: c.FieldName() + "." + name}
}

func setValue(dst, v reflect.Value) {
	if !v.IsValid() {
		dst.Set(reflect.Zero(dst.Type()))
		return
	}
	if v.Type() != dst.Type() && v.Type().ConvertibleTo(dst.Type()) {
		v = v.Convert(dst.Type())
	}
	dst.Set(v)
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

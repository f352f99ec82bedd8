package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Table is the runtime schema of one entity type.
type Table struct {
	Name string
	Type reflect.Type

	registry *Registry
	columns  []*DirectColumn
	keys     []*DirectColumn
	byName   map[string]*DirectColumn
}

// Registry returns the registry the table was built in.
func (t *Table) Registry() *Registry { return t.registry }

// Columns returns the direct columns, key columns first.
func (t *Table) Columns() []*DirectColumn { return t.columns }

// Keys returns the key columns.
func (t *Table) Keys() []*DirectColumn { return t.keys }

// Key returns the single key column.
func (t *Table) Key() (*DirectColumn, error) {
	if len(t.keys) != 1 {
		return nil, fmt.Errorf("%w: table %s has %d key columns", ErrMultiKeyReference, t.Name, len(t.keys))
	}
	return t.keys[0], nil
}

// Column looks up a direct column by field name or storage name.
func (t *Table) Column(name string) (*DirectColumn, error) {
	if c, ok := t.byName[name]; ok {
		return c, nil
	}
	for _, c := range t.columns {
		if strings.EqualFold(c.field.Name, name) {
			return c, nil
		}
	}
	return nil, &ColumnNotFoundError{Table: t.Name, Name: name}
}

// StoredColumns flattens the column tree to the columns that exist in
// storage, in declaration order with composite parts in place of their parent.
func (t *Table) StoredColumns() []Column {
	var out []Column
	var walk func(c Column)
	walk = func(c Column) {
		if c.Stored() {
			out = append(out, c)
		}
		for _, v := range c.Children() {
			walk(v)
		}
	}
	for _, c := range t.columns {
		walk(c)
	}
	return out
}

// UniqueGroups returns the unique constraints declared on the table. Columns
// sharing a group name form one composite constraint; a group of "-" makes
// the column unique on its own.
func (t *Table) UniqueGroups() [][]Column {
	var groups [][]Column
	index := make(map[string]int)
	for _, c := range t.StoredColumns() {
		g := c.Field().Unique
		if g == "" {
			continue
		}
		if g == "-" {
			groups = append(groups, []Column{c})
			continue
		}
		i, ok := index[g]
		if !ok {
			i = len(groups)
			index[g] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], c)
	}
	return groups
}

// New allocates a zero entity and returns the pointer to it.
func (t *Table) New() reflect.Value { return reflect.New(t.Type) }

// KeyOf returns the key value of an entity struct value.
func (t *Table) KeyOf(entity reflect.Value) (reflect.Value, error) {
	k, err := t.Key()
	if err != nil {
		return reflect.Value{}, err
	}
	for entity.Kind() == reflect.Ptr {
		if entity.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil %s", ErrInvalidEntity, t.Type)
		}
		entity = entity.Elem()
	}
	return k.Get(entity), nil
}

func (t *Table) String() string { return t.Name }

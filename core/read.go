package core

import (
	"fmt"
	"reflect"

	"github.com/MineKing9534/KORMite-sub000/schema"
)

// label is the result column name of column name read through join path.
// Root columns keep their own name.
func label(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "->" + name
}

// reader decodes the current row of a result set into entities. Columns are
// matched by label, so a reader can decode any projection that labels its
// columns the way projectEntities does.
type reader struct {
	index map[string]int
	row   []any
}

func newReader(columns []string) *reader {
	rd := &reader{index: make(map[string]int, len(columns))}
	for i, c := range columns {
		rd.index[c] = i
	}
	return rd
}

// read decodes the entity of t projected under path. ok is false when the
// row holds no such entity: a joined key column that is NULL ends the
// branch, leaving the reference unset.
func (rd *reader) read(t *schema.Table, path string) (reflect.Value, bool, error) {
	if path != "" {
		for _, k := range t.Keys() {
			if i, ok := rd.index[label(path, k.Name())]; ok && rd.row[i] == nil {
				return reflect.Value{}, false, nil
			}
		}
	}
	obj := t.New()
	for _, c := range t.Columns() {
		if err := rd.column(obj.Elem(), c, path); err != nil {
			return reflect.Value{}, false, err
		}
	}
	return obj, true, nil
}

func (rd *reader) column(entity reflect.Value, c schema.Column, path string) error {
	if !c.Stored() {
		for _, v := range c.Children() {
			if err := rd.column(entity, v, path); err != nil {
				return err
			}
		}
		return nil
	}

	if c.RefKind() == schema.RefOne {
		sub := joinPath(path, c.Name())
		if key, err := c.Reference().Key(); err == nil {
			if _, joined := rd.index[label(sub, key.Name())]; joined {
				v, ok, err := rd.read(c.Reference(), sub)
				if err != nil {
					return err
				}
				if ok {
					c.Set(entity, v)
				}
				return nil
			}
		}
	}

	i, ok := rd.index[label(path, c.Name())]
	if !ok {
		return nil
	}
	v, err := c.Mapper().Decode(c.Table().Registry(), c.Field(), rd.row[i])
	if err != nil {
		return fmt.Errorf("kormite: decode %s: %w", c, err)
	}
	c.Set(entity, v)
	return nil
}

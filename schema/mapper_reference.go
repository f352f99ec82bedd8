package schema

import (
	"fmt"
	"reflect"
)

// compositeMapper flattens a struct field tagged composite into one stored
// sub-column per exported struct field, named "<column>_<sub>". The parent
// itself is not stored.
type compositeMapper struct{}

func (compositeMapper) Accepts(_ *Registry, f *Field) bool {
	return f.Composite && f.Type.Kind() == reflect.Struct
}

func (compositeMapper) DataType(*Registry, *Field) (DataType, error) { return TypeNone, nil }

func (compositeMapper) Initialize(r *Registry, c *DirectColumn) error {
	c.SetStored(false)
	return addParts(r, c, c.Name(), c.Field().Type)
}

func addParts(r *Registry, parent interface {
	Column
	AddChild(*VirtualColumn)
}, prefix string, typ reflect.Type) error {
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := ParseTag(sf.Tag.Get(TagName))
		if tag.Skip {
			continue
		}
		name := tag.Column
		if name == "" {
			name = r.Naming().Column(sf.Name)
		}
		f := &Field{
			Name:      sf.Name,
			Type:      sf.Type,
			Index:     sf.Index,
			Unique:    tag.Unique,
			Nullable:  parent.Field().Nullable || tag.Null,
			Size:      tag.Size,
			DBType:    tag.Type,
			Default:   tag.Default,
			JSON:      tag.JSON,
			Binary:    tag.Binary,
			Composite: tag.Composite,
		}
		m, err := r.Resolve(f)
		if err != nil {
			return err
		}
		v := NewVirtualColumn(parent, f, prefix+"_"+name, m)
		if f.Composite {
			v.stored = false
			if err := addParts(r, v, v.name, f.Type); err != nil {
				return err
			}
		}
		parent.AddChild(v)
	}
	return nil
}

func (compositeMapper) Encode(_ *Registry, f *Field, _ reflect.Value) (any, error) {
	return nil, &IllegalPathError{Path: f.Name, Reason: "composite values are stored through their sub-columns"}
}

func (compositeMapper) Decode(_ *Registry, f *Field, _ any) (reflect.Value, error) {
	return reflect.Value{}, &IllegalPathError{Path: f.Name, Reason: "composite values are read through their sub-columns"}
}

// referenceMapper stores a *T field tagged ref as the key of the referenced
// row. Decoding yields a stub holding only the key; the query layer replaces
// it with the joined row.
type referenceMapper struct{}

func (referenceMapper) Accepts(_ *Registry, f *Field) bool {
	return f.Ref && f.Type.Kind() == reflect.Ptr && f.Type.Elem().Kind() == reflect.Struct
}

func (referenceMapper) Initialize(r *Registry, c *DirectColumn) error {
	target, err := referenceTarget(r, c, c.Field().Type)
	if err != nil {
		return err
	}
	c.SetReference(target, RefOne)
	return nil
}

func referenceTarget(r *Registry, c Column, typ reflect.Type) (*Table, error) {
	target, ok := r.TableOf(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotRegistered, typ)
	}
	if n := len(target.Keys()); n != 1 {
		return nil, &MultiKeyReferenceError{Column: c.Name(), Target: target.Name, Keys: n}
	}
	return target, nil
}

func targetKey(r *Registry, typ reflect.Type) (*DirectColumn, Mapper, error) {
	target, ok := r.TableOf(typ)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrTableNotRegistered, typ)
	}
	key, err := target.Key()
	if err != nil {
		return nil, nil, err
	}
	m, err := r.Resolve(key.Field())
	if err != nil {
		return nil, nil, err
	}
	return key, m, nil
}

func (referenceMapper) DataType(r *Registry, f *Field) (DataType, error) {
	key, m, err := targetKey(r, f.Type)
	if err != nil {
		return TypeNone, err
	}
	return m.DataType(r, key.Field())
}

func (referenceMapper) Encode(r *Registry, f *Field, v reflect.Value) (any, error) {
	if v.IsNil() {
		return nil, nil
	}
	key, m, err := targetKey(r, f.Type)
	if err != nil {
		return nil, err
	}
	return m.Encode(r, key.Field(), key.Get(v.Elem()))
}

func (referenceMapper) Decode(r *Registry, f *Field, src any) (reflect.Value, error) {
	if src == nil {
		return reflect.Zero(f.Type), nil
	}
	key, m, err := targetKey(r, f.Type)
	if err != nil {
		return reflect.Value{}, err
	}
	kv, err := m.Decode(r, key.Field(), src)
	if err != nil {
		return reflect.Value{}, err
	}
	stub := reflect.New(f.Type.Elem())
	key.Set(stub.Elem(), kv)
	return stub, nil
}

// referenceArrayMapper stores a []*T field tagged ref as an array of keys.
// Decoded elements are key-only stubs, or nil where the stored element is
// NULL.
type referenceArrayMapper struct{}

func (referenceArrayMapper) Accepts(_ *Registry, f *Field) bool {
	if !f.Ref || f.Type.Kind() != reflect.Slice {
		return false
	}
	e := f.Type.Elem()
	return e.Kind() == reflect.Ptr && e.Elem().Kind() == reflect.Struct
}

func (referenceArrayMapper) Initialize(r *Registry, c *DirectColumn) error {
	target, err := referenceTarget(r, c, c.Field().Type.Elem())
	if err != nil {
		return err
	}
	c.SetReference(target, RefMany)
	return nil
}

func (referenceArrayMapper) Element(_ *Registry, f *Field) (Mapper, *Field, error) {
	return referenceMapper{}, f.Elem(), nil
}

func (referenceArrayMapper) DataType(r *Registry, f *Field) (DataType, error) {
	dt, err := referenceMapper{}.DataType(r, f.Elem())
	if err != nil {
		return TypeNone, err
	}
	return dt.Array(), nil
}

func (referenceArrayMapper) Encode(r *Registry, f *Field, v reflect.Value) (any, error) {
	if v.IsNil() {
		return nil, nil
	}
	return encodeElements(r, referenceMapper{}, f.Elem(), v)
}

func (referenceArrayMapper) Decode(r *Registry, f *Field, src any) (reflect.Value, error) {
	return decodeElements(r, referenceMapper{}, f, f.Elem(), src)
}

package schema

import (
	"fmt"
	"reflect"
)

// Field is the context a mapper is resolved against: one entity field with
// its declared type and flags, or a derived element/pointee of such a field.
type Field struct {
	// Name is the code-level field name.
	Name string
	// Column overrides the storage name chosen by the naming policy.
	Column string
	Type   reflect.Type
	// Index is the reflect index path inside the owning struct. Derived fields
	// (array elements, pointees) have no index.
	Index []int

	Key       bool
	Auto      bool
	Unique    string
	Nullable  bool
	Size      int
	DBType    string
	Default   string
	Ref       bool
	JSON      bool
	Binary    bool
	Composite bool
}

// Elem returns the field context of the elements of a slice or array field.
func (f *Field) Elem() *Field {
	return &Field{
		Name:     f.Name + "[]",
		Type:     f.Type.Elem(),
		Ref:      f.Ref,
		Nullable: true,
	}
}

// Deref returns the field context of the pointee of a pointer field.
func (f *Field) Deref() *Field {
	c := *f
	c.Type = f.Type.Elem()
	c.Index = nil
	return &c
}

func (f *Field) String() string {
	return fmt.Sprintf("%s %s", f.Name, f.Type)
}

// Descriptor is the statically declared shape of one entity: its struct type
// and the ordered list of fields that become columns.
type Descriptor struct {
	Type   reflect.Type
	Fields []*Field
}

// Describe builds a Descriptor from the exported fields of a struct and their
// kormite tags. sample may be a struct value or a pointer to one.
func Describe(sample any) (*Descriptor, error) {
	if sample == nil {
		return nil, fmt.Errorf("%w: value is nil", ErrInvalidEntity)
	}
	typ := reflect.TypeOf(sample)
	if t, ok := sample.(reflect.Type); ok {
		typ = t
	}
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: must be a struct or pointer to struct, got %s", ErrInvalidEntity, typ.Kind())
	}

	d := &Descriptor{Type: typ}
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := ParseTag(sf.Tag.Get(TagName))
		if tag.Skip {
			continue
		}

		f := &Field{
			Name:      sf.Name,
			Column:    tag.Column,
			Type:      sf.Type,
			Index:     sf.Index,
			Key:       tag.Key,
			Auto:      tag.Auto,
			Unique:    tag.Unique,
			Size:      tag.Size,
			DBType:    tag.Type,
			Default:   tag.Default,
			Ref:       tag.Ref,
			JSON:      tag.JSON,
			Binary:    tag.Binary,
			Composite: tag.Composite,
		}
		switch sf.Type.Kind() {
		case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface:
			f.Nullable = true
		}
		if tag.Null {
			f.Nullable = true
		}
		if tag.NotNull || tag.Key {
			f.Nullable = false
		}
		d.Fields = append(d.Fields, f)
	}
	return d, nil
}

package schema

import (
	"fmt"
	"reflect"
)

// EncodeValue encodes an arbitrary Go value as if it were held by column c.
// Values of the column's own type go through its mapper; a bare key value
// compared against a reference column goes through the target key's mapper;
// numeric and string values are converted to the column type first. Anything
// else, and any value compared against a JSON sub-path, is encoded by the
// mapper its own type resolves to.
func EncodeValue(c Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if c == nil {
		return encodeByType(defaultRegistry, rv)
	}
	r := c.Table().Registry()
	if c.Mapper() == nil {
		return encodeByType(r, rv)
	}
	f := c.Field()

	if rv.Type() == f.Type || rv.Type().AssignableTo(f.Type) {
		converted := reflect.New(f.Type).Elem()
		converted.Set(rv)
		return c.Mapper().Encode(r, f, converted)
	}
	if c.RefKind() == RefOne {
		key, err := c.Reference().Key()
		if err != nil {
			return nil, err
		}
		return EncodeValue(key, v)
	}
	if convertible(rv.Type(), f.Type) {
		return c.Mapper().Encode(r, f, rv.Convert(f.Type))
	}
	return encodeByType(r, rv)
}

// EncodeElement encodes v as one element of the array column c.
func EncodeElement(c Column, v any) (any, error) {
	em, ok := c.Mapper().(ElementMapper)
	if !ok {
		return nil, &IllegalPathError{Path: c.FieldName(), Reason: "column is not an array"}
	}
	r := c.Table().Registry()
	m, ef, err := em.Element(r, c.Field())
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(ef.Type) {
		converted := reflect.New(ef.Type).Elem()
		converted.Set(rv)
		return m.Encode(r, ef, converted)
	}
	if c.RefKind() == RefMany {
		key, err := c.Reference().Key()
		if err != nil {
			return nil, err
		}
		return EncodeValue(key, v)
	}
	if convertible(rv.Type(), ef.Type) {
		return m.Encode(r, ef, rv.Convert(ef.Type))
	}
	return encodeByType(r, rv)
}

// EncodeAny encodes v with the mapper its own type resolves to.
func (r *Registry) EncodeAny(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return encodeByType(r, reflect.ValueOf(v))
}

func encodeByType(r *Registry, rv reflect.Value) (any, error) {
	f := &Field{Name: "value", Type: rv.Type(), Nullable: true}
	m, err := r.Resolve(f)
	if err != nil {
		return nil, fmt.Errorf("kormite: cannot encode %T: %w", rv.Interface(), err)
	}
	return m.Encode(r, f, rv)
}

func convertible(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	return numeric(from.Kind()) && numeric(to.Kind()) ||
		from.Kind() == reflect.String && to.Kind() == reflect.String
}

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

var defaultRegistry = NewRegistry()

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

func marshalJSON(f *Field, v reflect.Value) (any, error) {
	if isNilable(v) && v.IsNil() {
		return nil, nil
	}
	b, err := json.Marshal(v.Interface())
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return string(b), nil
}

func unmarshalJSON(f *Field, src any) (reflect.Value, error) {
	if src == nil {
		return reflect.Zero(f.Type), nil
	}
	b, err := asBytes(src)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
	}
	p := reflect.New(f.Type)
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(p.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return p.Elem(), nil
}

func isNilable(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return true
	}
	return false
}

// objectMapper is the fallback for structs, maps and interfaces without a
// more specific mapper: the value is stored as JSON text.
type objectMapper struct{}

func (objectMapper) Accepts(_ *Registry, f *Field) bool {
	if f.Ref || f.Composite || f.Binary {
		return false
	}
	switch f.Type.Kind() {
	case reflect.Struct, reflect.Map, reflect.Interface:
		return true
	}
	return false
}

func (objectMapper) DataType(*Registry, *Field) (DataType, error) { return TypeText, nil }

func (objectMapper) Encode(_ *Registry, f *Field, v reflect.Value) (any, error) {
	return marshalJSON(f, v)
}

func (objectMapper) Decode(_ *Registry, f *Field, src any) (reflect.Value, error) {
	return unmarshalJSON(f, src)
}

// jsonMapper stores fields tagged json as a JSON document and lets property
// paths descend into the document's keys.
type jsonMapper struct{}

func (jsonMapper) Accepts(_ *Registry, f *Field) bool {
	return f.JSON && !f.Ref && !f.Binary
}

func (jsonMapper) DataType(*Registry, *Field) (DataType, error) { return TypeJSON, nil }

func (jsonMapper) Encode(_ *Registry, f *Field, v reflect.Value) (any, error) {
	return marshalJSON(f, v)
}

func (jsonMapper) Decode(_ *Registry, f *Field, src any) (reflect.Value, error) {
	return unmarshalJSON(f, src)
}

func (jsonMapper) Descend(_ *Registry, parent Column, name string) (Column, error) {
	return NewPathColumn(parent, jsonKey(parent.Field().Type, name)), nil
}

// jsonKey maps a Go field name to the key encoding/json writes for it.
func jsonKey(typ reflect.Type, name string) string {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return name
	}
	sf, ok := typ.FieldByName(name)
	if !ok {
		return name
	}
	tag, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if tag == "" || tag == "-" {
		return name
	}
	return tag
}

// binaryMapper stores fields tagged binary as a msgpack blob.
type binaryMapper struct{}

func (binaryMapper) Accepts(_ *Registry, f *Field) bool {
	return f.Binary && !f.Ref
}

func (binaryMapper) DataType(*Registry, *Field) (DataType, error) { return TypeBytes, nil }

func (binaryMapper) Encode(_ *Registry, f *Field, v reflect.Value) (any, error) {
	if isNilable(v) && v.IsNil() {
		return nil, nil
	}
	b, err := msgpack.Marshal(v.Interface())
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return b, nil
}

func (binaryMapper) Decode(_ *Registry, f *Field, src any) (reflect.Value, error) {
	if src == nil {
		return reflect.Zero(f.Type), nil
	}
	b, err := asBytes(src)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
	}
	p := reflect.New(f.Type)
	if err := msgpack.Unmarshal(b, p.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return p.Elem(), nil
}

var uuidType = reflect.TypeOf(uuid.UUID{})

// uuidMapper stores uuid.UUID in its canonical text form, or natively where
// the backend has a uuid type.
type uuidMapper struct{}

func (uuidMapper) Accepts(_ *Registry, f *Field) bool {
	return plain(f) && f.Type == uuidType
}

func (uuidMapper) DataType(*Registry, *Field) (DataType, error) { return TypeUUID, nil }

func (uuidMapper) Encode(_ *Registry, _ *Field, v reflect.Value) (any, error) {
	return v.Interface().(uuid.UUID).String(), nil
}

func (uuidMapper) Decode(_ *Registry, f *Field, src any) (reflect.Value, error) {
	if src == nil {
		return reflect.ValueOf(uuid.Nil), nil
	}
	var (
		id  uuid.UUID
		err error
	)
	switch v := src.(type) {
	case []byte:
		if len(v) == 16 {
			id, err = uuid.FromBytes(v)
		} else {
			id, err = uuid.ParseBytes(v)
		}
	case string:
		id, err = uuid.Parse(v)
	default:
		err = fmt.Errorf("kormite: cannot convert %T to uuid", src)
	}
	if err != nil {
		return reflect.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return reflect.ValueOf(id), nil
}

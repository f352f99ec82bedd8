package schema

import (
	"fmt"
	"math"
	"reflect"
	"time"
)

var (
	timeType  = reflect.TypeOf(time.Time{})
	bytesType = reflect.TypeOf([]byte(nil))
)

func plain(f *Field) bool {
	return !f.Ref && !f.JSON && !f.Binary && !f.Composite
}

// pointerMapper handles *T by delegating to whichever mapper accepts T.
// A nil pointer is stored as NULL.
type pointerMapper struct{}

func (pointerMapper) Accepts(r *Registry, f *Field) bool {
	if f.Type.Kind() != reflect.Ptr || f.Ref {
		return false
	}
	return r.Accepts(f.Deref())
}

func (pointerMapper) DataType(r *Registry, f *Field) (DataType, error) {
	m, err := r.Resolve(f.Deref())
	if err != nil {
		return TypeNone, err
	}
	return m.DataType(r, f.Deref())
}

func (pointerMapper) Encode(r *Registry, f *Field, v reflect.Value) (any, error) {
	if v.IsNil() {
		return nil, nil
	}
	return r.Encode(f.Deref(), v.Elem())
}

func (pointerMapper) Decode(r *Registry, f *Field, src any) (reflect.Value, error) {
	if src == nil {
		return reflect.Zero(f.Type), nil
	}
	inner, err := r.Decode(f.Deref(), src)
	if err != nil {
		return reflect.Value{}, err
	}
	p := reflect.New(f.Type.Elem())
	setValue(p.Elem(), inner)
	return p, nil
}

// primitiveMapper covers booleans, integers, floats and strings, including
// named types over them.
type primitiveMapper struct{}

func (primitiveMapper) Accepts(_ *Registry, f *Field) bool {
	if !plain(f) {
		return false
	}
	switch f.Type.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func (primitiveMapper) DataType(_ *Registry, f *Field) (DataType, error) {
	switch f.Type.Kind() {
	case reflect.Bool:
		return TypeBoolean, nil
	case reflect.Int8, reflect.Int16, reflect.Uint8:
		return TypeSmallInt, nil
	case reflect.Int32, reflect.Uint16:
		return TypeInteger, nil
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return TypeBigInt, nil
	case reflect.Float32:
		return TypeReal, nil
	case reflect.Float64:
		return TypeDouble, nil
	case reflect.String:
		return TypeText, nil
	}
	return TypeNone, fmt.Errorf("kormite: %s is not a primitive", f.Type)
}

func (primitiveMapper) Encode(_ *Registry, f *Field, v reflect.Value) (any, error) {
	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("kormite: field %s: %d overflows int64", f.Name, u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.String:
		return v.String(), nil
	}
	return nil, fmt.Errorf("kormite: field %s: cannot encode %s", f.Name, v.Type())
}

func (primitiveMapper) Decode(_ *Registry, f *Field, src any) (reflect.Value, error) {
	out := reflect.New(f.Type).Elem()
	if src == nil {
		return out, nil
	}
	var err error
	switch f.Type.Kind() {
	case reflect.Bool:
		var b bool
		b, err = asBool(src)
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		n, err = asInt64(src)
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		n, err = asUint64(src)
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		var n float64
		n, err = asFloat64(src)
		out.SetFloat(n)
	case reflect.String:
		var s string
		s, err = asString(src)
		out.SetString(s)
	}
	if err != nil {
		return reflect.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return out, nil
}

// bytesMapper stores []byte as a binary column.
type bytesMapper struct{}

func (bytesMapper) Accepts(_ *Registry, f *Field) bool {
	return plain(f) && f.Type.Kind() == reflect.Slice && f.Type.Elem().Kind() == reflect.Uint8
}

func (bytesMapper) DataType(*Registry, *Field) (DataType, error) { return TypeBytes, nil }

func (bytesMapper) Encode(_ *Registry, _ *Field, v reflect.Value) (any, error) {
	if v.IsNil() {
		return nil, nil
	}
	return append([]byte(nil), v.Bytes()...), nil
}

func (bytesMapper) Decode(_ *Registry, f *Field, src any) (reflect.Value, error) {
	if src == nil {
		return reflect.Zero(f.Type), nil
	}
	b, err := asBytes(src)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return reflect.ValueOf(b).Convert(f.Type), nil
}

// timeMapper stores time.Time as a timestamp.
type timeMapper struct{}

func (timeMapper) Accepts(_ *Registry, f *Field) bool {
	return plain(f) && f.Type == timeType
}

func (timeMapper) DataType(*Registry, *Field) (DataType, error) { return TypeTimestamp, nil }

func (timeMapper) Encode(_ *Registry, _ *Field, v reflect.Value) (any, error) {
	return v.Interface().(time.Time).UTC(), nil
}

func (timeMapper) Decode(_ *Registry, f *Field, src any) (reflect.Value, error) {
	if src == nil {
		return reflect.ValueOf(time.Time{}), nil
	}
	t, err := asTime(src)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return reflect.ValueOf(t), nil
}

// Enum is implemented by integer types that should be stored by name.
// EnumNames returns the names indexed by value.
type Enum interface {
	EnumNames() []string
}

var enumType = reflect.TypeOf((*Enum)(nil)).Elem()

// enumMapper stores Enum values as their name.
type enumMapper struct{}

func (enumMapper) Accepts(_ *Registry, f *Field) bool {
	if !plain(f) || !f.Type.Implements(enumType) {
		return false
	}
	switch f.Type.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func (enumMapper) DataType(*Registry, *Field) (DataType, error) { return TypeText, nil }

func (enumMapper) Encode(_ *Registry, f *Field, v reflect.Value) (any, error) {
	names := v.Interface().(Enum).EnumNames()
	i := v.Int()
	if i < 0 || int(i) >= len(names) {
		return nil, fmt.Errorf("kormite: field %s: enum value %d out of range", f.Name, i)
	}
	return names[i], nil
}

func (enumMapper) Decode(_ *Registry, f *Field, src any) (reflect.Value, error) {
	out := reflect.New(f.Type).Elem()
	if src == nil {
		return out, nil
	}
	s, err := asString(src)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
	}
	for i, name := range out.Interface().(Enum).EnumNames() {
		if name == s {
			out.SetInt(int64(i))
			return out, nil
		}
	}
	return reflect.Value{}, fmt.Errorf("kormite: field %s: unknown enum name %q", f.Name, s)
}

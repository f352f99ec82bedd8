package schema

import (
	"bytes"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/lib/pq"
)

// EncodeArray packs already encoded element values into one column value:
// a native array where the backend supports it, JSON text otherwise.
func (r *Registry) EncodeArray(elems []any) (any, error) {
	if elems == nil {
		return nil, nil
	}
	if r.features.NativeArrays {
		return pq.Array(elems).Value()
	}
	b, err := json.Marshal(elems)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// DecodeArray is the inverse of EncodeArray. NULL elements come back as nil.
func (r *Registry) DecodeArray(src any) ([]any, error) {
	if src == nil {
		return nil, nil
	}
	if r.features.NativeArrays {
		var ns []sql.NullString
		if err := (pq.GenericArray{A: &ns}).Scan(src); err != nil {
			return nil, err
		}
		out := make([]any, len(ns))
		for i, n := range ns {
			if n.Valid {
				out[i] = n.String
			}
		}
		return out, nil
	}
	b, err := asBytes(src)
	if err != nil {
		return nil, err
	}
	var out []any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

// arrayMapper stores slices element by element through the element mapper,
// which is looked up when each value is converted.
type arrayMapper struct{}

func (arrayMapper) Accepts(r *Registry, f *Field) bool {
	if !plain(f) || f.Type.Kind() != reflect.Slice || f.Type.Elem().Kind() == reflect.Uint8 {
		return false
	}
	return r.Accepts(f.Elem())
}

func (arrayMapper) Element(r *Registry, f *Field) (Mapper, *Field, error) {
	ef := f.Elem()
	m, err := r.Resolve(ef)
	return m, ef, err
}

func (a arrayMapper) DataType(r *Registry, f *Field) (DataType, error) {
	m, ef, err := a.Element(r, f)
	if err != nil {
		return TypeNone, err
	}
	dt, err := m.DataType(r, ef)
	if err != nil {
		return TypeNone, err
	}
	return dt.Array(), nil
}

func (a arrayMapper) Encode(r *Registry, f *Field, v reflect.Value) (any, error) {
	if v.IsNil() {
		return nil, nil
	}
	m, ef, err := a.Element(r, f)
	if err != nil {
		return nil, err
	}
	return encodeElements(r, m, ef, v)
}

func (a arrayMapper) Decode(r *Registry, f *Field, src any) (reflect.Value, error) {
	m, ef, err := a.Element(r, f)
	if err != nil {
		return reflect.Value{}, err
	}
	return decodeElements(r, m, f, ef, src)
}

func encodeElements(r *Registry, m Mapper, ef *Field, v reflect.Value) (any, error) {
	elems := make([]any, v.Len())
	for i := range elems {
		e, err := m.Encode(r, ef, v.Index(i))
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		elems[i] = e
	}
	return r.EncodeArray(elems)
}

func decodeElements(r *Registry, m Mapper, f, ef *Field, src any) (reflect.Value, error) {
	if src == nil {
		return reflect.Zero(f.Type), nil
	}
	wires, err := r.DecodeArray(src)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
	}
	// JSON text carries binary elements as base64 strings.
	binary := false
	if !r.features.NativeArrays {
		dt, err := m.DataType(r, ef)
		if err != nil {
			return reflect.Value{}, err
		}
		binary = dt == TypeBytes
	}
	out := reflect.MakeSlice(f.Type, len(wires), len(wires))
	for i, w := range wires {
		if s, ok := w.(string); ok && binary {
			if w, err = base64.StdEncoding.DecodeString(s); err != nil {
				return reflect.Value{}, fmt.Errorf("field %s index %d: %w", f.Name, i, err)
			}
		}
		e, err := m.Decode(r, ef, w)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("field %s index %d: %w", f.Name, i, err)
		}
		setValue(out.Index(i), e)
	}
	return out, nil
}

package schema

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/MineKing9534/KORMite-sub000/logger"
)

// Mapper converts between one family of application values and their wire
// representation. Accepts must be a pure predicate over the field context.
type Mapper interface {
	Accepts(r *Registry, f *Field) bool
	DataType(r *Registry, f *Field) (DataType, error)
	// Encode turns v, a value of f.Type, into a value the driver can bind.
	Encode(r *Registry, f *Field, v reflect.Value) (any, error)
	// Decode turns a scanned wire value into a value of f.Type. A nil src
	// decodes to the zero value.
	Decode(r *Registry, f *Field, src any) (reflect.Value, error)
}

// Initializer is implemented by mappers that need to act once their column
// exists: attach virtual children, record a reference target, and so on.
// Initialize runs once per column, in column order, after every direct
// column of the table has been created.
type Initializer interface {
	Initialize(r *Registry, c *DirectColumn) error
}

// Descender is implemented by mappers whose values expose named sub-values
// that are not declared up front, such as JSON documents.
type Descender interface {
	Descend(r *Registry, parent Column, name string) (Column, error)
}

// ElementMapper is implemented by array mappers to expose the mapper and
// field context of their elements.
type ElementMapper interface {
	Element(r *Registry, f *Field) (Mapper, *Field, error)
}

// Features describes the storage capabilities of the backend a registry is
// configured for.
type Features struct {
	NativeArrays bool
	NativeUUID   bool
	NativeJSON   bool
}

// Registry is the per-connection configuration object: the ordered mapper
// list, the table registry, backend features and the naming policy.
//
// Registration is expected to happen during setup. Concurrent reads are safe;
// registering mappers or tables while queries run is not supported.
type Registry struct {
	mappers  []Mapper
	tables   map[reflect.Type]*Table
	names    map[string]*Table
	order    []*Table
	features Features
	naming   NamingPolicy
	log      logger.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithNaming sets the naming policy used for tables and columns.
func WithNaming(n NamingPolicy) Option {
	return func(r *Registry) { r.naming = n }
}

// WithFeatures sets the backend features.
func WithFeatures(f Features) Option {
	return func(r *Registry) { r.features = f }
}

// WithLogger sets the logger used for registry diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// NewRegistry returns a registry preloaded with the built-in mappers.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tables: make(map[reflect.Type]*Table),
		names:  make(map[string]*Table),
		naming: SnakeCase,
		log:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Register(DefaultMappers()...)
	return r
}

// DefaultMappers returns the built-in mappers in priority order, lowest first.
func DefaultMappers() []Mapper {
	return []Mapper{
		pointerMapper{},
		objectMapper{},
		primitiveMapper{},
		bytesMapper{},
		timeMapper{},
		enumMapper{},
		uuidMapper{},
		arrayMapper{},
		jsonMapper{},
		binaryMapper{},
		compositeMapper{},
		referenceMapper{},
		referenceArrayMapper{},
	}
}

// Register appends mappers. Later registrations take priority over earlier
// ones when several accept the same field.
func (r *Registry) Register(ms ...Mapper) {
	r.mappers = append(r.mappers, ms...)
}

// Resolve returns the most recently registered mapper accepting f.
func (r *Registry) Resolve(f *Field) (Mapper, error) {
	for i := len(r.mappers) - 1; i >= 0; i-- {
		if r.mappers[i].Accepts(r, f) {
			return r.mappers[i], nil
		}
	}
	return nil, &NoMapperError{Field: f.Name, Type: f.Type}
}

// Candidates returns every mapper accepting f, highest priority first.
func (r *Registry) Candidates(f *Field) []Mapper {
	var out []Mapper
	for i := len(r.mappers) - 1; i >= 0; i-- {
		if r.mappers[i].Accepts(r, f) {
			out = append(out, r.mappers[i])
		}
	}
	return out
}

// Accepts reports whether any mapper accepts f.
func (r *Registry) Accepts(f *Field) bool {
	_, err := r.Resolve(f)
	return err == nil
}

func (r *Registry) Features() Features    { return r.features }
func (r *Registry) Naming() NamingPolicy  { return r.naming }
func (r *Registry) Logger() logger.Logger { return r.log }

// Tables returns the registered tables in registration order.
func (r *Registry) Tables() []*Table { return append([]*Table(nil), r.order...) }

// Table returns the table registered under a storage name.
func (r *Registry) Table(name string) (*Table, bool) {
	t, ok := r.names[name]
	return t, ok
}

// TableOf returns the table registered for an entity type. Pointer types are
// dereferenced.
func (r *Registry) TableOf(typ reflect.Type) (*Table, bool) {
	for typ != nil && typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	t, ok := r.tables[typ]
	return t, ok
}

// Encode resolves a mapper for f and encodes v with it.
func (r *Registry) Encode(f *Field, v reflect.Value) (any, error) {
	m, err := r.Resolve(f)
	if err != nil {
		return nil, err
	}
	return m.Encode(r, f, v)
}

// Decode resolves a mapper for f and decodes src with it.
func (r *Registry) Decode(f *Field, src any) (reflect.Value, error) {
	m, err := r.Resolve(f)
	if err != nil {
		return reflect.Value{}, err
	}
	return m.Decode(r, f, src)
}

// Build turns a descriptor into a Table and registers it. An empty name is
// derived from the struct name through the naming policy.
func (r *Registry) Build(d *Descriptor, name string) (*Table, error) {
	if name == "" {
		name = r.naming.Table(d.Type.Name())
	}
	if _, ok := r.names[name]; ok {
		return nil, fmt.Errorf("kormite: table %s already registered", name)
	}
	if _, ok := r.tables[d.Type]; ok {
		return nil, fmt.Errorf("kormite: type %s already registered", d.Type)
	}

	t := &Table{
		Name:     name,
		Type:     d.Type,
		registry: r,
		byName:   make(map[string]*DirectColumn),
	}

	for _, f := range d.Fields {
		m, err := r.Resolve(f)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		if cands := r.Candidates(f); len(cands) > 1 {
			r.log.Debug("table %s field %s: %d mappers accept %s, using %T", name, f.Name, len(cands), f.Type, m)
		}
		colName := f.Column
		if colName == "" {
			colName = r.naming.Column(f.Name)
		}
		t.columns = append(t.columns, &DirectColumn{
			table:  t,
			field:  f,
			name:   colName,
			mapper: m,
			stored: true,
		})
	}
	if len(t.columns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTable, name)
	}

	sort.SliceStable(t.columns, func(i, j int) bool {
		return t.columns[i].field.Key && !t.columns[j].field.Key
	})
	for _, c := range t.columns {
		if c.field.Key {
			t.keys = append(t.keys, c)
		}
		t.byName[c.field.Name] = c
		t.byName[c.name] = c
	}

	// Registered before initialization so self references resolve.
	r.tables[d.Type] = t
	r.names[name] = t
	r.order = append(r.order, t)

	for _, c := range t.columns {
		in, ok := c.mapper.(Initializer)
		if !ok {
			continue
		}
		if err := in.Initialize(r, c); err != nil {
			r.unregister(t)
			return nil, fmt.Errorf("table %s column %s: %w", name, c.name, err)
		}
	}
	for _, k := range t.keys {
		if !k.stored || k.refKind == RefMany {
			r.unregister(t)
			return nil, fmt.Errorf("kormite: table %s: key column %s must be a single stored column", name, k.name)
		}
	}
	return t, nil
}

func (r *Registry) unregister(t *Table) {
	delete(r.tables, t.Type)
	delete(r.names, t.Name)
	for i, o := range r.order {
		if o == t {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

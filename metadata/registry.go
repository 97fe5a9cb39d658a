package metadata

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Registry stores entity and column metadata keyed by Go type identity.
// It is written once at startup and read concurrently afterwards.
type Registry struct {
	mu       sync.RWMutex
	entities map[reflect.Type]EntityMetadata
	columns  map[reflect.Type][]ColumnMetadata
	order    []reflect.Type
}

// Declaration pairs an entity with its columns. Type is nil for entities declared
// outside Go code, such as in a YAML file.
type Declaration struct {
	Type    reflect.Type
	Entity  EntityMetadata
	Columns []ColumnMetadata
}

// Default is the process-wide registry used by the generic helpers
var Default = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[reflect.Type]EntityMetadata),
		columns:  make(map[reflect.Type][]ColumnMetadata),
	}
}

// RegisterEntity stores the entity metadata for t. Registering the same type again
// overwrites the previous metadata.
func (r *Registry) RegisterEntity(t reflect.Type, meta EntityMetadata) error {
	if t == nil {
		return fmt.Errorf("%w: nil entity type", ErrInvalidMetadata)
	}
	if err := meta.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.track(t)
	r.entities[t] = meta.clone()
	return nil
}

// LookupEntity returns the entity metadata registered for t
func (r *Registry) LookupEntity(t reflect.Type) (EntityMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.entities[t]
	if !ok {
		return EntityMetadata{}, false
	}
	return meta.clone(), true
}

// AddColumn appends a column to the type's column list, keeping declaration order
func (r *Registry) AddColumn(t reflect.Type, col ColumnMetadata) error {
	if t == nil {
		return fmt.Errorf("%w: nil entity type", ErrInvalidMetadata)
	}
	if err := validateColumn(col); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.columns[t] {
		if existing.PhysicalName == col.PhysicalName {
			return fmt.Errorf("%w: %s column %q is mapped twice", ErrInvalidMetadata, t, col.PhysicalName)
		}
	}
	r.track(t)
	r.columns[t] = append(r.columns[t], cloneColumns([]ColumnMetadata{col})...)
	return nil
}

// RegisterColumns replaces the column list of t
func (r *Registry) RegisterColumns(t reflect.Type, cols ...ColumnMetadata) error {
	if t == nil {
		return fmt.Errorf("%w: nil entity type", ErrInvalidMetadata)
	}
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if err := validateColumn(c); err != nil {
			return err
		}
		if seen[c.PhysicalName] {
			return fmt.Errorf("%w: %s column %q is mapped twice", ErrInvalidMetadata, t, c.PhysicalName)
		}
		seen[c.PhysicalName] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.track(t)
	r.columns[t] = cloneColumns(cols)
	return nil
}

// LookupColumns returns the columns of t in declaration order
func (r *Registry) LookupColumns(t reflect.Type) ([]ColumnMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cols, ok := r.columns[t]
	if !ok {
		return nil, false
	}
	return cloneColumns(cols), true
}

// Register stores entity and columns together after checking that every key is a column
func (r *Registry) Register(t reflect.Type, meta EntityMetadata, cols ...ColumnMetadata) error {
	if err := meta.Validate(); err != nil {
		return err
	}
	if err := ValidateColumns(meta, cols); err != nil {
		return err
	}
	if err := r.RegisterEntity(t, meta); err != nil {
		return err
	}
	return r.RegisterColumns(t, cols...)
}

// Declaration returns the entity and columns of t, or ErrMetadataNotFound
func (r *Registry) Declaration(t reflect.Type) (Declaration, error) {
	meta, ok := r.LookupEntity(t)
	if !ok {
		return Declaration{}, fmt.Errorf("%w: no entity registered for %v", ErrMetadataNotFound, t)
	}
	cols, ok := r.LookupColumns(t)
	if !ok || len(cols) == 0 {
		return Declaration{}, fmt.Errorf("%w: no columns registered for %v", ErrMetadataNotFound, t)
	}
	return Declaration{Type: t, Entity: meta, Columns: cols}, nil
}

// Entities returns the registered entity types in first-registration order
func (r *Registry) Entities() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]reflect.Type, 0, len(r.order))
	for _, t := range r.order {
		if _, ok := r.entities[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Declarations returns every type that has both entity and column metadata
func (r *Registry) Declarations() []Declaration {
	var out []Declaration
	for _, t := range r.Entities() {
		if d, err := r.Declaration(t); err == nil {
			out = append(out, d)
		}
	}
	return out
}

// Reset removes all metadata. Intended for test isolation.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities = make(map[reflect.Type]EntityMetadata)
	r.columns = make(map[reflect.Type][]ColumnMetadata)
	r.order = nil
}

func (r *Registry) track(t reflect.Type) {
	if !slices.Contains(r.order, t) {
		r.order = append(r.order, t)
	}
}

// Register stores metadata for T in the Default registry
func Register[T any](meta EntityMetadata, cols ...ColumnMetadata) error {
	return Default.Register(reflect.TypeFor[T](), meta, cols...)
}

// MustRegister is like Register but panics on invalid metadata.
// It is meant for package initialization.
func MustRegister[T any](meta EntityMetadata, cols ...ColumnMetadata) {
	if err := Register[T](meta, cols...); err != nil {
		panic(err)
	}
}

// EntityFor returns the Default registry's entity metadata for T
func EntityFor[T any]() (EntityMetadata, bool) {
	return Default.LookupEntity(reflect.TypeFor[T]())
}

// ColumnsFor returns the Default registry's columns for T
func ColumnsFor[T any]() ([]ColumnMetadata, bool) {
	return Default.LookupColumns(reflect.TypeFor[T]())
}

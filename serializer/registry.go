// Package serializer converts column values between their program-side shape and
// the representation stored in Cassandra. Converters are looked up by column type
// and data type hint; an unmatched pair passes the value through unchanged.
package serializer

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"sync"
	"time"

	"github.com/axonops/cqlmapper/metadata"
)

// ErrConversion is returned when a registered converter rejects a value
var ErrConversion = errors.New("value conversion failed")

// Converter maps one representation of a column value to another
type Converter func(value any) (any, error)

type converterKey struct {
	colType metadata.ColumnType
	hint    metadata.DataTypeHint
}

// Registry holds serializers (program → storage) and deserializers (storage → program).
// It is safe for concurrent use.
type Registry struct {
	mu            sync.RWMutex
	serializers   map[converterKey]Converter
	deserializers map[converterKey]Converter
}

// NewRegistry creates a registry with no converters
func NewRegistry() *Registry {
	return &Registry{
		serializers:   make(map[converterKey]Converter),
		deserializers: make(map[converterKey]Converter),
	}
}

// RegisterSerializer sets the converter used when writing colType values with the given hint
func (r *Registry) RegisterSerializer(colType metadata.ColumnType, hint metadata.DataTypeHint, conv Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.serializers[converterKey{colType, hint}] = conv
}

// RegisterDeserializer sets the converter used when reading colType values with the given hint
func (r *Registry) RegisterDeserializer(colType metadata.ColumnType, hint metadata.DataTypeHint, conv Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deserializers[converterKey{colType, hint}] = conv
}

// Serialize converts value to its storage representation. When hint is empty it is
// inferred from the value. Nil values and unmatched pairs are returned unchanged.
func (r *Registry) Serialize(colType metadata.ColumnType, value any, hint metadata.DataTypeHint) (any, error) {
	if hint == metadata.HintNone {
		hint = InferHint(value)
	}
	return r.convert(r.serializers, colType, value, hint)
}

// Deserialize converts a stored value back to its program-side shape
func (r *Registry) Deserialize(colType metadata.ColumnType, value any, hint metadata.DataTypeHint) (any, error) {
	return r.convert(r.deserializers, colType, value, hint)
}

func (r *Registry) convert(table map[converterKey]Converter, colType metadata.ColumnType, value any, hint metadata.DataTypeHint) (any, error) {
	if value == nil {
		return nil, nil
	}

	r.mu.RLock()
	conv, ok := table[converterKey{colType, hint}]
	r.mu.RUnlock()
	if !ok {
		return value, nil
	}

	out, err := conv(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %w", ErrConversion, colType, hint, err)
	}
	return out, nil
}

var (
	timeType   = reflect.TypeFor[time.Time]()
	bigIntType = reflect.TypeFor[big.Int]()
	stringer   = reflect.TypeFor[fmt.Stringer]()
)

// InferHint derives a data type hint from a runtime value
func InferHint(value any) metadata.DataTypeHint {
	if value == nil {
		return metadata.HintNone
	}
	return HintForType(reflect.TypeOf(value))
}

// HintForType derives a data type hint from a Go type. Byte slices and
// interface types yield no hint.
func HintForType(t reflect.Type) metadata.DataTypeHint {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch {
	case t == timeType:
		return metadata.HintDate
	case t == bigIntType:
		return metadata.HintNumber
	}

	switch t.Kind() {
	case reflect.Bool:
		return metadata.HintBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return metadata.HintNumber
	case reflect.String:
		return metadata.HintString
	case reflect.Array:
		// uuid.UUID, gocql.UUID
		if t.Implements(stringer) {
			return metadata.HintString
		}
		return metadata.HintObject
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return metadata.HintNone
		}
		return metadata.HintObject
	case reflect.Map, reflect.Struct:
		return metadata.HintObject
	default:
		return metadata.HintNone
	}
}

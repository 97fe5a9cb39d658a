package repository

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/axonops/cqlmapper/metadata"
)

// TagName is the struct tag naming the logical column of a field. A value of
// "-" excludes the field from mapping.
const TagName = "cql"

type fieldBinding struct {
	index  []int
	name   string
	typ    reflect.Type
	column metadata.ColumnMetadata
}

type binding struct {
	mapped   []fieldBinding
	unmapped []fieldBinding // exported fields with no column
}

// bind matches the exported fields of t to columns by tag or case-insensitive
// logical name
func bind(t reflect.Type, cols []metadata.ColumnMetadata) (binding, error) {
	if t.Kind() != reflect.Struct {
		return binding{}, fmt.Errorf("%w: %v is not a struct type", metadata.ErrInvalidMetadata, t)
	}

	var b binding
	used := make(map[string]string, len(cols))
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous || throughPointer(t, f.Index) {
			continue
		}
		tag := f.Tag.Get(TagName)
		if tag == "-" {
			continue
		}
		name := f.Name
		if tag != "" {
			name = tag
		}

		col, ok := findColumn(cols, name, tag != "")
		if !ok {
			b.unmapped = append(b.unmapped, fieldBinding{index: f.Index, name: f.Name, typ: f.Type})
			continue
		}
		if prev, dup := used[col.LogicalName]; dup {
			return binding{}, fmt.Errorf("%w: fields %s and %s both map to column %q",
				metadata.ErrInvalidMetadata, prev, f.Name, col.LogicalName)
		}
		used[col.LogicalName] = f.Name
		b.mapped = append(b.mapped, fieldBinding{index: f.Index, name: f.Name, typ: f.Type, column: col})
	}
	return b, nil
}

func findColumn(cols []metadata.ColumnMetadata, name string, exact bool) (metadata.ColumnMetadata, bool) {
	for _, c := range cols {
		if c.LogicalName == name {
			return c, true
		}
	}
	if exact {
		return metadata.ColumnMetadata{}, false
	}
	for _, c := range cols {
		if strings.EqualFold(c.LogicalName, name) {
			return c, true
		}
	}
	return metadata.ColumnMetadata{}, false
}

// isNil reports whether v holds no value to write
func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// assign stores a deserialized value into a struct field
func assign(field reflect.Value, value any) error {
	if value == nil {
		return nil
	}
	if field.Kind() == reflect.Pointer {
		ptr := reflect.New(field.Type().Elem())
		if err := assign(ptr.Elem(), value); err != nil {
			return err
		}
		field.Set(ptr)
		return nil
	}

	if raw, ok := value.(json.RawMessage); ok && field.Type() != reflect.TypeOf(raw) {
		return json.Unmarshal(raw, field.Addr().Interface())
	}

	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Pointer && !v.IsNil() && v.Elem().Type().AssignableTo(field.Type()) {
		v = v.Elem()
	}
	switch {
	case v.Type().AssignableTo(field.Type()):
		field.Set(v)
		return nil
	case v.Kind() == reflect.Array && field.Kind() == reflect.Array && v.Type().ConvertibleTo(field.Type()):
		field.Set(v.Convert(field.Type()))
		return nil
	case sameFamily(v.Kind(), field.Kind()) && v.Type().ConvertibleTo(field.Type()):
		field.Set(v.Convert(field.Type()))
		return nil
	}

	// last resort: let encoding/json reconcile the shapes
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cannot assign %T to %v: %w", value, field.Type(), err)
	}
	if err := json.Unmarshal(data, field.Addr().Interface()); err != nil {
		return fmt.Errorf("cannot assign %T to %v: %w", value, field.Type(), err)
	}
	return nil
}

func sameFamily(a, b reflect.Kind) bool {
	return family(a) != 0 && family(a) == family(b)
}

func family(k reflect.Kind) int {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return 1
	case reflect.String:
		return 2
	case reflect.Bool:
		return 3
	default:
		return 0
	}
}

// throughPointer reports whether a promoted field is reached via an embedded pointer
func throughPointer(t reflect.Type, index []int) bool {
	for i := 1; i < len(index); i++ {
		if t.FieldByIndex(index[:i]).Type.Kind() == reflect.Pointer {
			return true
		}
	}
	return false
}

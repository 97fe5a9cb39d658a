package metadata

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var (
	// ErrMetadataNotFound is returned when a type has no registered entity or column metadata.
	ErrMetadataNotFound = errors.New("metadata not found")
	// ErrInvalidMetadata is returned when declared metadata breaks a key or naming invariant.
	ErrInvalidMetadata = errors.New("invalid metadata")
)

// ColumnType is a CQL column type
// https://docs.datastax.com/en/cql/3.3/cql/cql_reference/cql_data_types_c.html
type ColumnType string

const (
	Ascii     ColumnType = "ascii"
	BigInt    ColumnType = "bigint"
	Blob      ColumnType = "blob"
	Boolean   ColumnType = "boolean"
	Counter   ColumnType = "counter"
	Decimal   ColumnType = "decimal"
	Double    ColumnType = "double"
	Float     ColumnType = "float"
	Inet      ColumnType = "inet"
	Int       ColumnType = "int"
	Text      ColumnType = "text"
	Timestamp ColumnType = "timestamp"
	TimeUUID  ColumnType = "timeuuid"
	UUID      ColumnType = "uuid"
	Varchar   ColumnType = "varchar"
	Varint    ColumnType = "varint"
	List      ColumnType = "list"
	Map       ColumnType = "map"
	Set       ColumnType = "set"
)

var columnTypes = []ColumnType{
	Ascii, BigInt, Blob, Boolean, Counter, Decimal, Double, Float, Inet, Int,
	Text, Timestamp, TimeUUID, UUID, Varchar, Varint, List, Map, Set,
}

// IsCollection reports whether the type is list, map or set
func (c ColumnType) IsCollection() bool {
	return c == List || c == Map || c == Set
}

// Valid reports whether c is one of the supported column types
func (c ColumnType) Valid() bool {
	return slices.Contains(columnTypes, c)
}

// ParseColumnType parses a CQL type name such as "text", "Boolean" or "map<text, int>".
// Collection parameters are returned separately.
func ParseColumnType(s string) (ColumnType, []ColumnType, error) {
	s = strings.TrimSpace(s)
	base, rest, hasParams := strings.Cut(s, "<")
	ct := ColumnType(strings.ToLower(strings.TrimSpace(base)))
	if !ct.Valid() {
		return "", nil, fmt.Errorf("%w: unknown column type %q", ErrInvalidMetadata, s)
	}
	if !hasParams {
		return ct, nil, nil
	}
	if !ct.IsCollection() || !strings.HasSuffix(rest, ">") {
		return "", nil, fmt.Errorf("%w: malformed column type %q", ErrInvalidMetadata, s)
	}

	var params []ColumnType
	for _, part := range strings.Split(strings.TrimSuffix(rest, ">"), ",") {
		p := ColumnType(strings.ToLower(strings.TrimSpace(part)))
		if !p.Valid() || p.IsCollection() {
			return "", nil, fmt.Errorf("%w: unsupported collection element %q in %q", ErrInvalidMetadata, part, s)
		}
		params = append(params, p)
	}
	want := 1
	if ct == Map {
		want = 2
	}
	if len(params) != want {
		return "", nil, fmt.Errorf("%w: %s takes %d type parameter(s), got %d", ErrInvalidMetadata, ct, want, len(params))
	}
	return ct, params, nil
}

// DataTypeHint describes the program-side shape of a column value. It selects the
// converter used alongside the column type.
type DataTypeHint string

const (
	HintNone    DataTypeHint = ""
	HintString  DataTypeHint = "string"
	HintNumber  DataTypeHint = "number"
	HintDate    DataTypeHint = "date"
	HintObject  DataTypeHint = "object"
	HintBoolean DataTypeHint = "boolean"
)

// ParseDataTypeHint validates a hint name. The empty string is allowed.
func ParseDataTypeHint(s string) (DataTypeHint, error) {
	switch h := DataTypeHint(strings.ToLower(strings.TrimSpace(s))); h {
	case HintNone, HintString, HintNumber, HintDate, HintObject, HintBoolean:
		return h, nil
	default:
		return "", fmt.Errorf("%w: unknown data type hint %q", ErrInvalidMetadata, s)
	}
}

// ColumnMetadata maps one entity field to one table column
type ColumnMetadata struct {
	LogicalName  string // name used in program code and queries
	PhysicalName string // name stored in the table
	Type         ColumnType
	Params       []ColumnType // collection element types, e.g. map<text, int>
	Hint         DataTypeHint
}

// CQLType renders the column type as it appears in DDL
func (c ColumnMetadata) CQLType() string {
	if len(c.Params) == 0 {
		return string(c.Type)
	}
	params := make([]string, len(c.Params))
	for i, p := range c.Params {
		params[i] = string(p)
	}
	return fmt.Sprintf("%s<%s>", c.Type, strings.Join(params, ", "))
}

// MaterializedViewConfig describes a view re-keyed from the base table
type MaterializedViewConfig struct {
	Name           string
	PartitionKeys  []string
	ClusteringKeys []string
	Columns        []string // projected columns; defaults to the base table's first partition key
}

// Keys returns the view's partition keys followed by its clustering keys
func (v MaterializedViewConfig) Keys() []string {
	return concat(v.PartitionKeys, v.ClusteringKeys)
}

// EntityMetadata describes the table an entity type is stored in
type EntityMetadata struct {
	Keyspace          string
	Table             string
	PartitionKeys     []string
	ClusteringKeys    []string
	MaterializedViews []MaterializedViewConfig
}

// PrimaryKeys returns the partition keys followed by the clustering keys
func (e EntityMetadata) PrimaryKeys() []string {
	return concat(e.PartitionKeys, e.ClusteringKeys)
}

// QualifiedTable returns keyspace.table
func (e EntityMetadata) QualifiedTable() string {
	return e.Keyspace + "." + e.Table
}

// View returns the materialized view declared with the given name
func (e EntityMetadata) View(name string) (MaterializedViewConfig, bool) {
	for _, v := range e.MaterializedViews {
		if v.Name == name {
			return v, true
		}
	}
	return MaterializedViewConfig{}, false
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the key and naming invariants of the entity
func (e EntityMetadata) Validate() error {
	if !identifierPattern.MatchString(e.Keyspace) {
		return fmt.Errorf("%w: keyspace %q is not a valid identifier", ErrInvalidMetadata, e.Keyspace)
	}
	if !identifierPattern.MatchString(e.Table) {
		return fmt.Errorf("%w: table %q is not a valid identifier", ErrInvalidMetadata, e.Table)
	}
	if len(e.PartitionKeys) == 0 {
		return fmt.Errorf("%w: %s has no partition keys", ErrInvalidMetadata, e.QualifiedTable())
	}
	if err := checkKeys(e.QualifiedTable(), e.PartitionKeys, e.ClusteringKeys); err != nil {
		return err
	}

	primary := e.PrimaryKeys()
	views := make(map[string]bool, len(e.MaterializedViews))
	for _, v := range e.MaterializedViews {
		if !identifierPattern.MatchString(v.Name) {
			return fmt.Errorf("%w: materialized view %q is not a valid identifier", ErrInvalidMetadata, v.Name)
		}
		if views[v.Name] {
			return fmt.Errorf("%w: materialized view %q declared twice", ErrInvalidMetadata, v.Name)
		}
		views[v.Name] = true
		if len(v.PartitionKeys) == 0 {
			return fmt.Errorf("%w: materialized view %s has no partition keys", ErrInvalidMetadata, v.Name)
		}
		if err := checkKeys(v.Name, v.PartitionKeys, v.ClusteringKeys); err != nil {
			return err
		}
		for _, k := range v.Keys() {
			if !slices.Contains(primary, k) {
				return fmt.Errorf("%w: materialized view %s key %q is not a key of %s",
					ErrInvalidMetadata, v.Name, k, e.QualifiedTable())
			}
		}
	}
	return nil
}

func checkKeys(owner string, partition, clustering []string) error {
	seen := make(map[string]bool, len(partition)+len(clustering))
	for _, k := range concat(partition, clustering) {
		if k == "" {
			return fmt.Errorf("%w: %s has an empty key name", ErrInvalidMetadata, owner)
		}
		if seen[k] {
			return fmt.Errorf("%w: %s key %q is declared more than once", ErrInvalidMetadata, owner, k)
		}
		seen[k] = true
	}
	return nil
}

// ValidateColumns checks the column list against the entity: physical names are unique,
// types are known and every key names a declared, non-blob column.
func ValidateColumns(e EntityMetadata, cols []ColumnMetadata) error {
	logical := make(map[string]bool, len(cols))
	physical := make(map[string]bool, len(cols))
	for _, c := range cols {
		if err := validateColumn(c); err != nil {
			return err
		}
		if physical[c.PhysicalName] {
			return fmt.Errorf("%w: %s column %q is mapped twice", ErrInvalidMetadata, e.QualifiedTable(), c.PhysicalName)
		}
		physical[c.PhysicalName] = true
		logical[c.LogicalName] = true
	}
	for _, k := range e.PrimaryKeys() {
		if !logical[k] {
			return fmt.Errorf("%w: %s key %q has no column", ErrInvalidMetadata, e.QualifiedTable(), k)
		}
	}
	// key values are bound as text parameters, which a blob column would store verbatim
	for _, c := range cols {
		if c.Type == Blob && slices.Contains(e.PrimaryKeys(), c.LogicalName) {
			return fmt.Errorf("%w: %s key %q is a blob; blob keys are not supported", ErrInvalidMetadata, e.QualifiedTable(), c.LogicalName)
		}
	}
	return nil
}

func validateColumn(c ColumnMetadata) error {
	if c.LogicalName == "" {
		return fmt.Errorf("%w: column has no name", ErrInvalidMetadata)
	}
	if !identifierPattern.MatchString(c.PhysicalName) {
		return fmt.Errorf("%w: column %q has invalid physical name %q", ErrInvalidMetadata, c.LogicalName, c.PhysicalName)
	}
	if !c.Type.Valid() {
		return fmt.Errorf("%w: column %q has unknown type %q", ErrInvalidMetadata, c.LogicalName, c.Type)
	}
	if len(c.Params) > 0 && !c.Type.IsCollection() {
		return fmt.Errorf("%w: column %q type %s does not take parameters", ErrInvalidMetadata, c.LogicalName, c.Type)
	}
	return nil
}

// PhysicalNames maps logical key names to the physical column names in cols.
// Names without a column are returned unchanged.
func PhysicalNames(cols []ColumnMetadata, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n
		for _, c := range cols {
			if c.LogicalName == n {
				out[i] = c.PhysicalName
				break
			}
		}
	}
	return out
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func (e EntityMetadata) clone() EntityMetadata {
	out := e
	out.PartitionKeys = slices.Clone(e.PartitionKeys)
	out.ClusteringKeys = slices.Clone(e.ClusteringKeys)
	if e.MaterializedViews != nil {
		out.MaterializedViews = make([]MaterializedViewConfig, len(e.MaterializedViews))
		for i, v := range e.MaterializedViews {
			out.MaterializedViews[i] = MaterializedViewConfig{
				Name:           v.Name,
				PartitionKeys:  slices.Clone(v.PartitionKeys),
				ClusteringKeys: slices.Clone(v.ClusteringKeys),
				Columns:        slices.Clone(v.Columns),
			}
		}
	}
	return out
}

func cloneColumns(cols []ColumnMetadata) []ColumnMetadata {
	if cols == nil {
		return nil
	}
	out := make([]ColumnMetadata, len(cols))
	for i, c := range cols {
		out[i] = c
		out[i].Params = slices.Clone(c.Params)
	}
	return out
}

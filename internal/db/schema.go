package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/axonops/cqlmapper/metadata"
)

// ErrTableNotFound is returned when system_schema has no columns for a table or view
var ErrTableNotFound = errors.New("table not found")

// TableSchema represents a table's live schema information
type TableSchema struct {
	Keyspace       string
	TableName      string
	Columns        []ColumnSchema
	PartitionKeys  []string
	ClusteringKeys []string
}

// ColumnSchema represents a column's schema
type ColumnSchema struct {
	Name     string
	Type     string
	Kind     string // 'partition_key', 'clustering', 'regular', 'static'
	Position int    // Position for partition/clustering keys
}

// Column returns the named column, if present. Unquoted identifiers are stored
// lower-cased, so the lookup ignores case.
func (t *TableSchema) Column(name string) (ColumnSchema, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnSchema{}, false
}

// GetTableSchema reads a table or materialized view from system_schema.columns
func (s *Session) GetTableSchema(ctx context.Context, keyspace, table string) (*TableSchema, error) {
	iter := s.Query(`SELECT column_name, type, kind, position FROM system_schema.columns WHERE keyspace_name = ? AND table_name = ?`,
		keyspace, table).Consistency(s.consistency).IterContext(ctx)

	var cols []ColumnSchema
	var colName, colType, colKind string
	var position int
	for iter.Scan(&colName, &colType, &colKind, &position) {
		cols = append(cols, ColumnSchema{Name: colName, Type: colType, Kind: colKind, Position: position})
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to retrieve columns of %s.%s: %w", keyspace, table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s.%s", ErrTableNotFound, keyspace, table)
	}
	return newTableSchema(keyspace, table, cols), nil
}

// newTableSchema orders key columns by position; system_schema returns them by name
func newTableSchema(keyspace, table string, cols []ColumnSchema) *TableSchema {
	ts := &TableSchema{Keyspace: keyspace, TableName: table, Columns: cols}

	keys := slices.Clone(cols)
	slices.SortStableFunc(keys, func(a, b ColumnSchema) int { return a.Position - b.Position })
	for _, c := range keys {
		switch c.Kind {
		case "partition_key":
			ts.PartitionKeys = append(ts.PartitionKeys, c.Name)
		case "clustering":
			ts.ClusteringKeys = append(ts.ClusteringKeys, c.Name)
		}
	}
	return ts
}

// CompareTable lists the differences between a declaration and the live table.
// Extra live columns are not reported; only what the declaration needs.
func CompareTable(decl metadata.Declaration, live *TableSchema) []string {
	var drift []string
	name := decl.Entity.QualifiedTable()

	for _, col := range decl.Columns {
		lc, ok := live.Column(col.PhysicalName)
		if !ok {
			drift = append(drift, fmt.Sprintf("%s: missing column %s %s", name, col.PhysicalName, col.CQLType()))
			continue
		}
		if !sameType(lc.Type, col.CQLType()) {
			drift = append(drift, fmt.Sprintf("%s: column %s is %s, declared %s", name, col.PhysicalName, lc.Type, col.CQLType()))
		}
	}

	return append(drift, compareKeys(name, decl.Columns, decl.Entity.PartitionKeys, decl.Entity.ClusteringKeys, live)...)
}

func sameNames(a, b []string) bool {
	return slices.EqualFunc(a, b, strings.EqualFold)
}

// VerifyDeclaration checks the table and every materialized view of decl
// against the cluster. Missing tables are reported as drift, not errors.
func (s *Session) VerifyDeclaration(ctx context.Context, decl metadata.Declaration) ([]string, error) {
	live, err := s.GetTableSchema(ctx, decl.Entity.Keyspace, decl.Entity.Table)
	if errors.Is(err, ErrTableNotFound) {
		return []string{fmt.Sprintf("%s: table does not exist", decl.Entity.QualifiedTable())}, nil
	}
	if err != nil {
		return nil, err
	}
	drift := CompareTable(decl, live)

	for _, v := range decl.Entity.MaterializedViews {
		liveView, err := s.GetTableSchema(ctx, decl.Entity.Keyspace, v.Name)
		if errors.Is(err, ErrTableNotFound) {
			drift = append(drift, fmt.Sprintf("%s.%s: materialized view does not exist", decl.Entity.Keyspace, v.Name))
			continue
		}
		if err != nil {
			return nil, err
		}
		drift = append(drift, CompareView(decl, v, liveView)...)
	}
	return drift, nil
}

// CompareView lists key differences between a declared materialized view and the live one
func CompareView(decl metadata.Declaration, view metadata.MaterializedViewConfig, live *TableSchema) []string {
	return compareKeys(decl.Entity.Keyspace+"."+view.Name, decl.Columns, view.PartitionKeys, view.ClusteringKeys, live)
}

func compareKeys(name string, cols []metadata.ColumnMetadata, partitionKeys, clusteringKeys []string, live *TableSchema) []string {
	var drift []string
	partition := metadata.PhysicalNames(cols, partitionKeys)
	if !sameNames(partition, live.PartitionKeys) {
		drift = append(drift, fmt.Sprintf("%s: partition keys are %v, declared %v", name, live.PartitionKeys, partition))
	}
	clustering := metadata.PhysicalNames(cols, clusteringKeys)
	if !sameNames(clustering, live.ClusteringKeys) {
		drift = append(drift, fmt.Sprintf("%s: clustering keys are %v, declared %v", name, live.ClusteringKeys, clustering))
	}
	return drift
}

// varchar is stored in system_schema as text
var varcharAlias = regexp.MustCompile(`\bvarchar\b`)

// sameType compares CQL type strings ignoring case, spacing and the varchar alias,
// e.g. "map<text, int>" and "map<varchar,int>"
func sameType(live, declared string) bool {
	norm := func(s string) string {
		return varcharAlias.ReplaceAllString(strings.ToLower(strings.ReplaceAll(s, " ", "")), "text")
	}
	return norm(live) == norm(declared)
}


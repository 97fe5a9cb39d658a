// Package schema generates CQL DDL for registered entities: tables,
// materialized views and the keyspaces that hold them.
package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/axonops/cqlmapper/cql"
	"github.com/axonops/cqlmapper/metadata"
)

// GeneratePrimaryKeyClause renders PRIMARY KEY ((pk1, pk2)[, ck1, ck2]).
// The clustering segment is omitted when there are no clustering keys.
func GeneratePrimaryKeyClause(partitionKeys, clusteringKeys []string) string {
	clustering := ""
	if len(clusteringKeys) > 0 {
		clustering = ", " + strings.Join(clusteringKeys, ", ")
	}
	return fmt.Sprintf("PRIMARY KEY ((%s)%s)", strings.Join(partitionKeys, ", "), clustering)
}

// GenerateTableSchema renders CREATE TABLE IF NOT EXISTS with columns in declaration order
func GenerateTableSchema(entity metadata.EntityMetadata, columns []metadata.ColumnMetadata) string {
	defs := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		defs = append(defs, fmt.Sprintf("%s %s", c.PhysicalName, c.CQLType()))
	}
	defs = append(defs, GeneratePrimaryKeyClause(
		metadata.PhysicalNames(columns, entity.PartitionKeys),
		metadata.PhysicalNames(columns, entity.ClusteringKeys),
	))

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (%s);",
		entity.Keyspace, entity.Table, strings.Join(defs, ", "))
}

// GenerateMaterializedViewSchema renders CREATE MATERIALIZED VIEW for one view.
// Every view key is constrained with IS NOT NULL. Without explicit columns the
// view selects the base table's first partition key.
func GenerateMaterializedViewSchema(keyspace, baseTable string, baseTablePrimaryKeys []string, view metadata.MaterializedViewConfig) string {
	where := make([]string, 0, len(view.PartitionKeys)+len(view.ClusteringKeys))
	for _, k := range view.Keys() {
		where = append(where, k+" IS NOT NULL")
	}

	selected := view.Columns
	if len(selected) == 0 && len(baseTablePrimaryKeys) > 0 {
		selected = baseTablePrimaryKeys[:1]
	}

	return cql.NormalizeQueryText(fmt.Sprintf(`
		CREATE MATERIALIZED VIEW %s.%s AS
			SELECT %s FROM %s
			WHERE %s
			%s;`,
		keyspace, view.Name,
		strings.Join(selected, ", "), baseTable,
		strings.Join(where, " AND "),
		GeneratePrimaryKeyClause(view.PartitionKeys, view.ClusteringKeys)))
}

// Statements returns the table DDL followed by one statement per materialized view,
// in declaration order. View key and column names are translated to physical names.
func Statements(entity metadata.EntityMetadata, columns []metadata.ColumnMetadata) []string {
	stmts := []string{GenerateTableSchema(entity, columns)}
	primary := metadata.PhysicalNames(columns, entity.PrimaryKeys())
	for _, v := range entity.MaterializedViews {
		physical := metadata.MaterializedViewConfig{
			Name:           v.Name,
			PartitionKeys:  metadata.PhysicalNames(columns, v.PartitionKeys),
			ClusteringKeys: metadata.PhysicalNames(columns, v.ClusteringKeys),
		}
		if len(v.Columns) > 0 {
			physical.Columns = metadata.PhysicalNames(columns, v.Columns)
		}
		stmts = append(stmts, GenerateMaterializedViewSchema(entity.Keyspace, entity.QualifiedTable(), primary, physical))
	}
	return stmts
}

// GenerateSchema concatenates the table and view DDL, one statement per line
func GenerateSchema(entity metadata.EntityMetadata, columns []metadata.ColumnMetadata) string {
	return strings.Join(Statements(entity, columns), "\n") + "\n"
}

// GenerateSchemaForType looks the type up in reg and renders its DDL.
// It fails with metadata.ErrMetadataNotFound rather than emit partial DDL.
func GenerateSchemaForType(reg *metadata.Registry, t reflect.Type) (string, error) {
	decl, err := reg.Declaration(t)
	if err != nil {
		return "", err
	}
	return GenerateSchema(decl.Entity, decl.Columns), nil
}

// SchemaFor renders the DDL of T from the Default registry
func SchemaFor[T any]() (string, error) {
	return GenerateSchemaForType(metadata.Default, reflect.TypeFor[T]())
}

// GenerateKeyspaceSchema renders CREATE KEYSPACE IF NOT EXISTS with SimpleStrategy replication
func GenerateKeyspaceSchema(keyspace string, replicationFactor int) string {
	if replicationFactor < 1 {
		replicationFactor = 1
	}
	return fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = {'class': 'SimpleStrategy', 'replication_factor': %d};",
		keyspace, replicationFactor)
}

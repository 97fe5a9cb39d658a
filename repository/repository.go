// Package repository runs key-validated reads, inserts and deletes for one
// registered entity type against an Executor.
package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/axonops/cqlmapper/cql"
	"github.com/axonops/cqlmapper/internal/logger"
	"github.com/axonops/cqlmapper/keys"
	"github.com/axonops/cqlmapper/metadata"
	"github.com/axonops/cqlmapper/serializer"
)

// ErrUnmappedColumn is returned when an entity being written holds a value in a
// field that has no column metadata
var ErrUnmappedColumn = errors.New("unmapped column")

// Option configures a Repository
type Option func(*options)

type options struct {
	registry    *metadata.Registry
	serializers *serializer.Registry
}

// WithRegistry looks entity metadata up in reg instead of metadata.Default
func WithRegistry(reg *metadata.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithSerializers converts values with reg instead of serializer.Default()
func WithSerializers(reg *serializer.Registry) Option {
	return func(o *options) { o.serializers = reg }
}

// Repository maps values of T to rows of its registered table
type Repository[T any] struct {
	exec        Executor
	entity      metadata.EntityMetadata
	columns     []metadata.ColumnMetadata
	fields      binding
	serializers *serializer.Registry
}

// NewRepository binds T to its registered metadata. It fails with
// metadata.ErrMetadataNotFound when T has no entity or column metadata.
func NewRepository[T any](exec Executor, opts ...Option) (*Repository[T], error) {
	o := options{registry: metadata.Default, serializers: serializer.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if exec == nil {
		return nil, errors.New("repository requires an executor")
	}

	t := reflect.TypeFor[T]()
	decl, err := o.registry.Declaration(t)
	if err != nil {
		return nil, err
	}
	fields, err := bind(t, decl.Columns)
	if err != nil {
		return nil, err
	}

	return &Repository[T]{
		exec:        exec,
		entity:      decl.Entity,
		columns:     decl.Columns,
		fields:      fields,
		serializers: o.serializers,
	}, nil
}

// Entity returns the table metadata the repository was built from
func (r *Repository[T]) Entity() metadata.EntityMetadata {
	return r.entity
}

// GetFromPartition returns every row of the partition named by q. All partition
// keys must be supplied; otherwise a MissingPartitionKeys failure is returned and
// nothing is executed.
func (r *Repository[T]) GetFromPartition(ctx context.Context, q keys.Query) (Result[[]T], error) {
	kvs, failure := keys.ValidatePartitionKeys(q, r.entity.PartitionKeys)
	if failure != nil {
		return failed[[]T](failure), nil
	}
	return r.selectRows(ctx, r.entity.Table, kvs)
}

// GetByPrefix narrows a partition read with a left-to-right prefix of the
// clustering keys. Supplying no clustering keys reads the whole partition.
func (r *Repository[T]) GetByPrefix(ctx context.Context, q keys.Query) (Result[[]T], error) {
	return r.prefixSelect(ctx, r.entity.Table, r.entity.PartitionKeys, r.entity.ClusteringKeys, q)
}

// GetFromView reads through a materialized view, keyed by the view's own
// partition keys and an optional prefix of its clustering keys.
func (r *Repository[T]) GetFromView(ctx context.Context, view string, q keys.Query) (Result[[]T], error) {
	v, ok := r.entity.View(view)
	if !ok {
		return Result[[]T]{}, fmt.Errorf("%w: %s has no materialized view %q",
			metadata.ErrMetadataNotFound, r.entity.QualifiedTable(), view)
	}
	return r.prefixSelect(ctx, v.Name, v.PartitionKeys, v.ClusteringKeys, q)
}

func (r *Repository[T]) prefixSelect(ctx context.Context, table string, partition, clustering []string, q keys.Query) (Result[[]T], error) {
	kvs, failure := keys.ValidatePartitionKeys(q, partition)
	if failure != nil {
		return failed[[]T](failure), nil
	}
	prefix, failure := keys.ClusteringPrefix(q, clustering)
	if failure != nil {
		return failed[[]T](failure), nil
	}
	return r.selectRows(ctx, table, append(kvs, prefix...))
}

func (r *Repository[T]) selectRows(ctx context.Context, table string, kvs []keys.KeyValue) (Result[[]T], error) {
	kvs = r.physical(kvs)
	stmt := cql.BuildSelect(r.entity.Keyspace, table, cql.BuildWhereClause(kvs))
	rs, err := r.execute(ctx, stmt, cql.Params(kvs))
	if err != nil {
		return Result[[]T]{}, err
	}

	out := make([]T, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		entity, err := r.decode(row)
		if err != nil {
			return Result[[]T]{}, err
		}
		out = append(out, entity)
	}
	return succeeded(out), nil
}

// Insert writes entity as one JSON row. Nil pointer, map and slice fields are
// left out of the row.
func (r *Repository[T]) Insert(ctx context.Context, entity T) (T, error) {
	v := reflect.ValueOf(&entity).Elem()

	for _, f := range r.fields.unmapped {
		if !isNil(v.FieldByIndex(f.index)) {
			return entity, fmt.Errorf("%w: %s.%s has no column in %s",
				ErrUnmappedColumn, v.Type().Name(), f.name, r.entity.QualifiedTable())
		}
	}

	row := make(map[string]any, len(r.fields.mapped))
	for _, f := range r.fields.mapped {
		fv := v.FieldByIndex(f.index)
		if isNil(fv) {
			continue
		}
		stored, err := r.serializers.Serialize(f.column.Type, fv.Interface(), f.column.Hint)
		if err != nil {
			return entity, fmt.Errorf("failed to serialize %s: %w", f.column.LogicalName, err)
		}
		row[f.column.PhysicalName] = stored
	}

	stmt, params, err := cql.BuildInsert(r.entity.Keyspace, r.entity.Table, row)
	if err != nil {
		return entity, err
	}
	if _, err := r.execute(ctx, stmt, params); err != nil {
		return entity, err
	}
	return entity, nil
}

// DeleteOne removes the single row named by a full primary key. The partition
// keys are checked before the clustering keys. The returned value reports
// whether the row existed.
func (r *Repository[T]) DeleteOne(ctx context.Context, q keys.Query) (Result[bool], error) {
	partition, failure := keys.ValidatePartitionKeys(q, r.entity.PartitionKeys)
	if failure != nil {
		return failed[bool](failure), nil
	}
	clustering, failure := keys.ValidateClusteringKeys(q, r.entity.ClusteringKeys)
	if failure != nil {
		return failed[bool](failure), nil
	}

	kvs := r.physical(append(partition, clustering...))
	stmt := cql.BuildDeleteOne(r.entity.Keyspace, r.entity.Table, cql.BuildWhereClause(kvs))
	rs, err := r.execute(ctx, stmt, cql.Params(kvs))
	if err != nil {
		return Result[bool]{}, err
	}
	return succeeded(rs.Applied), nil
}

// DeleteMany removes every row under a partition, optionally narrowed by a
// clustering-key prefix. Clustering order is checked before the partition keys.
func (r *Repository[T]) DeleteMany(ctx context.Context, q keys.Query) (Result[struct{}], error) {
	prefix, failure := keys.ClusteringPrefix(q, r.entity.ClusteringKeys)
	if failure != nil {
		return failed[struct{}](failure), nil
	}
	partition, failure := keys.ValidatePartitionKeys(q, r.entity.PartitionKeys)
	if failure != nil {
		return failed[struct{}](failure), nil
	}

	kvs := r.physical(append(partition, prefix...))
	stmt := cql.BuildDeleteMany(r.entity.Keyspace, r.entity.Table, cql.BuildWhereClause(kvs))
	if _, err := r.execute(ctx, stmt, cql.Params(kvs)); err != nil {
		return Result[struct{}]{}, err
	}
	return succeeded(struct{}{}), nil
}

func (r *Repository[T]) execute(ctx context.Context, stmt string, params []string) (*ResultSet, error) {
	logger.DebugfToFile("Repository", "Executing %s with %d param(s)", stmt, len(params))
	rs, err := r.exec.Execute(ctx, stmt, params, ExecOptions{Prepare: true})
	if err != nil {
		logger.DebugfToFile("Repository", "Statement failed: %v", err)
		return nil, err
	}
	if rs == nil {
		rs = &ResultSet{}
	}
	return rs, nil
}

// physical rewrites logical key names to the column names used in statements
func (r *Repository[T]) physical(kvs []keys.KeyValue) []keys.KeyValue {
	names := make([]string, len(kvs))
	for i, kv := range kvs {
		names[i] = kv.Key
	}
	names = metadata.PhysicalNames(r.columns, names)

	out := slices.Clone(kvs)
	for i := range out {
		out[i].Key = names[i]
	}
	return out
}

// decode builds an entity from a row, looking columns up by their lower-cased
// physical name
func (r *Repository[T]) decode(row map[string]any) (T, error) {
	var entity T
	v := reflect.ValueOf(&entity).Elem()

	for _, f := range r.fields.mapped {
		raw, ok := row[strings.ToLower(f.column.PhysicalName)]
		if !ok {
			raw, ok = row[f.column.PhysicalName]
		}
		if !ok || raw == nil {
			continue
		}

		hint := f.column.Hint
		if hint == metadata.HintNone {
			hint = serializer.HintForType(f.typ)
		}
		value, err := r.serializers.Deserialize(f.column.Type, raw, hint)
		if err != nil {
			return entity, fmt.Errorf("failed to deserialize %s: %w", f.column.LogicalName, err)
		}
		if err := assign(v.FieldByIndex(f.index), value); err != nil {
			return entity, fmt.Errorf("failed to decode %s: %w", f.column.LogicalName, err)
		}
	}
	return entity, nil
}

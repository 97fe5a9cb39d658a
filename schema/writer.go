package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/axonops/cqlmapper/internal/logger"
	"github.com/axonops/cqlmapper/metadata"
)

// FileName returns the schema file name for an entity: <keyspace>.<table>.cql
func FileName(entity metadata.EntityMetadata) string {
	return fmt.Sprintf("%s.%s.cql", entity.Keyspace, entity.Table)
}

// WriteFiles writes one .cql file per declaration into dir and returns the paths
// in declaration order. Files are written concurrently; the first error wins.
func WriteFiles(ctx context.Context, dir string, decls []metadata.Declaration) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create schema directory %s: %w", dir, err)
	}

	paths := make([]string, len(decls))
	g, ctx := errgroup.WithContext(ctx)
	for i, d := range decls {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, FileName(d.Entity))
			if err := os.WriteFile(path, []byte(GenerateSchema(d.Entity, d.Columns)), 0o644); err != nil {
				return fmt.Errorf("failed to write schema for %s: %w", d.Entity.QualifiedTable(), err)
			}
			logger.DebugfToFile("Schema", "Wrote %s", path)
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// WriteRegistered writes schema files for every complete declaration in reg
func WriteRegistered(ctx context.Context, dir string, reg *metadata.Registry) ([]string, error) {
	return WriteFiles(ctx, dir, reg.Declarations())
}

package metadata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// declarationFile is the YAML layout accepted by LoadDeclarations:
//
//	naming: snake
//	entities:
//	  - keyspace: test
//	    table: complex_things
//	    partitionKeys: [accountId, solutionId, id]
//	    clusteringKeys: [message]
//	    columns:
//	      - {name: accountId, type: text}
//	      - {name: tags, type: "set<text>"}
//	    materializedViews:
//	      - {name: things_by_id, partitionKeys: [id], clusteringKeys: [accountId, solutionId, message]}
type declarationFile struct {
	Naming   string       `yaml:"naming"`
	Entities []entityDecl `yaml:"entities"`
}

type entityDecl struct {
	Keyspace          string       `yaml:"keyspace"`
	Table             string       `yaml:"table"`
	Naming            string       `yaml:"naming"`
	PartitionKeys     []string     `yaml:"partitionKeys"`
	ClusteringKeys    []string     `yaml:"clusteringKeys"`
	Columns           []columnDecl `yaml:"columns"`
	MaterializedViews []viewDecl   `yaml:"materializedViews"`
}

type columnDecl struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Hint     string `yaml:"hint"`
	Physical string `yaml:"physical"`
}

type viewDecl struct {
	Name           string   `yaml:"name"`
	PartitionKeys  []string `yaml:"partitionKeys"`
	ClusteringKeys []string `yaml:"clusteringKeys"`
	Columns        []string `yaml:"columns"`
}

// LoadDeclarations reads entity declarations from a YAML file
func LoadDeclarations(path string) ([]Declaration, error) {
	data, err := os.ReadFile(path) // #nosec G304 - declaration path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read declarations %s: %w", path, err)
	}
	decls, err := ParseDeclarations(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return decls, nil
}

// ParseDeclarations decodes and validates YAML entity declarations
func ParseDeclarations(data []byte) ([]Declaration, error) {
	var file declarationFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing declarations: %w", err)
	}

	decls := make([]Declaration, 0, len(file.Entities))
	for i, ed := range file.Entities {
		naming := ed.Naming
		if naming == "" {
			naming = file.Naming
		}
		strategy, err := NameStrategyByName(naming)
		if err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}

		entity := EntityMetadata{
			Keyspace:       ed.Keyspace,
			Table:          ed.Table,
			PartitionKeys:  ed.PartitionKeys,
			ClusteringKeys: ed.ClusteringKeys,
		}
		for _, vd := range ed.MaterializedViews {
			entity.MaterializedViews = append(entity.MaterializedViews, MaterializedViewConfig(vd))
		}
		if err := entity.Validate(); err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}

		cols := make([]ColumnMetadata, 0, len(ed.Columns))
		for _, cd := range ed.Columns {
			colType, params, err := ParseColumnType(cd.Type)
			if err != nil {
				return nil, fmt.Errorf("%s column %q: %w", entity.QualifiedTable(), cd.Name, err)
			}
			hint, err := ParseDataTypeHint(cd.Hint)
			if err != nil {
				return nil, fmt.Errorf("%s column %q: %w", entity.QualifiedTable(), cd.Name, err)
			}
			opts := []ColumnOption{WithNaming(strategy), WithHint(hint), WithParams(params...)}
			if cd.Physical != "" {
				opts = append(opts, WithPhysicalName(cd.Physical))
			}
			cols = append(cols, Column(cd.Name, colType, opts...))
		}
		if err := ValidateColumns(entity, cols); err != nil {
			return nil, err
		}

		decls = append(decls, Declaration{Entity: entity, Columns: cols})
	}
	return decls, nil
}

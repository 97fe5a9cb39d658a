package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/axonops/cqlmapper/internal/batch"
	"github.com/axonops/cqlmapper/internal/config"
	"github.com/axonops/cqlmapper/internal/db"
	"github.com/axonops/cqlmapper/internal/logger"
	"github.com/axonops/cqlmapper/metadata"
	"github.com/axonops/cqlmapper/schema"
)

// clusterSession is the part of db.Session the schema commands use
type clusterSession interface {
	ExecuteStatements(ctx context.Context, stmts []string) error
	VerifyDeclaration(ctx context.Context, decl metadata.Declaration) ([]string, error)
	Close()
}

// connect opens the session schema apply and verify run against. Tests replace it.
var connect = func(cfg *config.Config) (clusterSession, error) {
	return db.NewSession(cfg)
}

// ErrSchemaDrift is returned by schema verify when the cluster differs from the declarations
var ErrSchemaDrift = errors.New("schema drift detected")

func newSchemaCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Generate or apply CQL schemas from entity declarations",
	}
	cmd.AddCommand(newSchemaGenerateCmd(root))
	cmd.AddCommand(newSchemaPrintCmd())
	cmd.AddCommand(newSchemaApplyCmd(root))
	cmd.AddCommand(newSchemaVerifyCmd(root))
	return cmd
}

func newSchemaGenerateCmd(root *rootOptions) *cobra.Command {
	var file, out string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write one .cql file per declared entity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			decls, err := metadata.LoadDeclarations(file)
			if err != nil {
				return err
			}
			if out == "" {
				cfg, err := config.LoadConfig(root.configPath)
				if err != nil {
					return err
				}
				out = cfg.SchemaDir
			}

			paths, err := schema.WriteFiles(cmd.Context(), out, decls)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "entity declaration file (YAML)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory (default from config, \"schemas\")")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newSchemaPrintCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print the DDL of declared entities to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			decls, err := metadata.LoadDeclarations(file)
			if err != nil {
				return err
			}
			for _, d := range decls {
				fmt.Fprint(cmd.OutOrStdout(), schema.GenerateSchema(d.Entity, d.Columns))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "entity declaration file (YAML)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

type applyOptions struct {
	file       string
	cqlFile    string
	keyspaceRF int
	dryRun     bool
}

func newSchemaApplyCmd(root *rootOptions) *cobra.Command {
	opts := &applyOptions{}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create keyspaces, tables and views on the configured cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "entity declaration file (YAML)")
	cmd.Flags().StringVar(&opts.cqlFile, "cql", "", "CQL script to execute statement by statement")
	cmd.Flags().IntVar(&opts.keyspaceRF, "keyspace-rf", 0, "replication factor for created keyspaces (default from config)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the statements instead of executing them")
	cmd.MarkFlagsMutuallyExclusive("file", "cql")
	cmd.MarkFlagsOneRequired("file", "cql")
	return cmd
}

func runApply(cmd *cobra.Command, root *rootOptions, opts *applyOptions) error {
	cfg, err := config.LoadConfig(root.configPath)
	if err != nil {
		return err
	}
	if cfg.Debug {
		logger.SetDebugEnabled(true)
	}
	rf := cfg.ReplicationFactor
	if opts.keyspaceRF > 0 {
		rf = opts.keyspaceRF
	}

	var stmts []string
	if opts.file != "" {
		decls, err := metadata.LoadDeclarations(opts.file)
		if err != nil {
			return err
		}
		stmts = declarationStatements(decls, rf)
	} else {
		stmts, err = readCQLFile(opts.cqlFile)
		if err != nil {
			return err
		}
	}

	if opts.dryRun {
		for _, s := range stmts {
			fmt.Fprintln(cmd.OutOrStdout(), s)
		}
		return nil
	}

	session, err := connect(cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.ExecuteStatements(cmd.Context(), stmts); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Applied %d statements to %s:%d\n", len(stmts), cfg.Host, cfg.Port)
	return nil
}

func newSchemaVerifyCmd(root *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare declared entities with the tables on the cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			decls, err := metadata.LoadDeclarations(file)
			if err != nil {
				return err
			}
			cfg, err := config.LoadConfig(root.configPath)
			if err != nil {
				return err
			}

			session, err := connect(cfg)
			if err != nil {
				return err
			}
			defer session.Close()

			total := 0
			for _, d := range decls {
				drift, err := session.VerifyDeclaration(cmd.Context(), d)
				if err != nil {
					return err
				}
				for _, line := range drift {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				total += len(drift)
			}
			if total > 0 {
				return fmt.Errorf("%w: %d difference(s)", ErrSchemaDrift, total)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d entities match the cluster\n", len(decls))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "entity declaration file (YAML)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// declarationStatements returns one CREATE KEYSPACE per distinct keyspace, in
// first-seen order, followed by the table and view DDL of every declaration
func declarationStatements(decls []metadata.Declaration, rf int) []string {
	var stmts []string
	seen := make(map[string]bool)
	for _, d := range decls {
		if !seen[d.Entity.Keyspace] {
			seen[d.Entity.Keyspace] = true
			stmts = append(stmts, schema.GenerateKeyspaceSchema(d.Entity.Keyspace, rf))
		}
	}
	for _, d := range decls {
		stmts = append(stmts, schema.Statements(d.Entity, d.Columns)...)
	}
	return stmts
}

func readCQLFile(path string) ([]string, error) {
	data, err := os.ReadFile(path) // #nosec G304 - script path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	stmts, err := batch.SplitStatements(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.DebugfToFile("CLI", "Read %d statements from %s", len(stmts), path)
	return stmts, nil
}

// Package cli implements the cqlmapper command line: schema generation from
// entity declarations and applying the resulting DDL to a cluster.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/axonops/cqlmapper/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the root command and returns the process exit code
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type rootOptions struct {
	configPath string
	debug      bool
	logPath    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "cqlmapper",
		Short:         "Generate and apply Cassandra schemas for mapped entities",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logPath != "" {
				logger.SetLogPath(opts.logPath)
			}
			if opts.debug {
				logger.SetDebugEnabled(true)
				logger.DebugfToFile("CLI", "cqlmapper %s (%s): %s", version, commit, cmd.CommandPath())
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a JSON config file")
	cmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "append debug output to the debug log")
	cmd.PersistentFlags().StringVar(&opts.logPath, "log-file", "", "debug log location (default ./cqlmapper_debug.log)")

	cmd.AddCommand(newSchemaCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

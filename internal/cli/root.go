// Package cli provides the command-line interface for gtfsprep.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/gtfsprep/internal/cli/commands"
	"github.com/leapstack-labs/gtfsprep/internal/cli/config"
	"github.com/spf13/cobra"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gtfsprep",
		Short: "gtfsprep - GTFS sample data preparation",
		Long: `gtfsprep prepares sample GTFS schedule and vehicle position tables.

It installs a project environment from a requirements manifest, derives the
direction of travel between consecutive stops, and subsets every table down
to the trips of the selected operators that have real-time data.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			ctx := config.WithConfig(cmd.Context(), cfg)
			ctx = config.WithLogger(ctx, logger)
			cmd.SetContext(ctx)

			if configFile := config.GetConfigFileUsed(); configFile != "" {
				logger.Debug("using config file", "path", configFile)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Built with Go and DuckDB
`)

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./gtfsprep.yaml)")
	pf.String("project-dir", "", "Project directory (default: nearest directory with gtfsprep.yaml)")
	pf.String("input", "", "Folder holding the full input tables")
	pf.String("output-dir", "", "Folder the sample tables are written to")
	pf.String("date", "", "Analysis date (YYYY-MM-DD)")
	pf.StringSlice("operator", nil, "Operator names to keep (repeatable)")
	pf.String("manifest", "", "Path to the requirements manifest")
	pf.String("database", "", "Path to DuckDB database (empty for in-memory)")
	pf.String("state", "", "Path to state database")
	pf.String("env", "", "Environment name")
	pf.BoolP("verbose", "v", false, "Verbose output")
	pf.StringP("output", "o", "", "Output format (auto|text|markdown|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "markdown", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version, GitCommit, BuildDate))
	rootCmd.AddCommand(commands.NewInstallEnvCommand())
	rootCmd.AddCommand(commands.NewProcessDataCommand())
	rootCmd.AddCommand(commands.NewImportGTFSCommand())
	rootCmd.AddCommand(commands.NewImportVPCommand())
	rootCmd.AddCommand(commands.NewCheckMonotonicCommand())
	rootCmd.AddCommand(commands.NewTablesCommand())
	rootCmd.AddCommand(commands.NewRunsCommand())
	rootCmd.AddCommand(commands.NewPublishCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath  string
	catalogFlag string
	verbose     bool
	jsonOutput  bool

	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	buildVersion = version

	rootCmd := &cobra.Command{
		Use:   "akin",
		Short: "akinizer - workstation provisioner",
		Long: `akinizer brings a workstation to a known state from a catalog of phases.

Each phase installs, verifies or runs jobs for its targets, in series or in
parallel. Installs are idempotent: a target already present is left alone,
so re-running a catalog is always safe.

Features:
  - YAML or CUE catalogs with Starlark conditions
  - apt/brew, explicit commands or git packages
  - Rego policies checked before every target
  - Run history in a local SQLite journal`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "settings file path (default: .akinizerrc.yaml)")
	rootCmd.PersistentFlags().StringVar(&catalogFlag, "catalog", "", "catalog file, overriding the settings")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newGraphCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}

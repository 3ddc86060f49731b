package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "permafrost",
	Short: "Permafrost - archival eligibility and lifecycle reconciliation engine",
	Long: `Permafrost reconciles platform storage against its archival lifecycle policy.

Each pass runs in two phases:
  - Commit: archive everything marked on the previous run, after re-validating
    that it still exists, is still inactive, and has not been opted out.
  - Mark: sweep projects, staging directories and precision folders, record the
    newly eligible ones, and notify their owners with a grace window.

Between run dates it only posts a countdown when work is pending.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

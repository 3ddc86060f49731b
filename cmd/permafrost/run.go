package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"datalab-ops/permafrost/pkg/cli"
	"datalab-ops/permafrost/pkg/config"
	"datalab-ops/permafrost/pkg/reconciler"
	"datalab-ops/permafrost/pkg/statestore"
	"datalab-ops/permafrost/pkg/telemetry/logging"
	"datalab-ops/permafrost/pkg/telemetry/metrics"
)

var runFlags struct {
	date   string
	dryRun bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one reconciliation pass",
	Long: `Execute one commit/mark reconciliation pass.

On a run date the pass first commits the pending buckets from the previous
run, then marks the next round of eligible projects, directories and precision
folders and posts the owner digests. On any other day it posts a countdown if
work is pending, and otherwise does nothing.

Examples:
  # Run for today
  permafrost run

  # Replay a pass as if it were another date
  permafrost run --date 2026-09-01

  # Rehearse: evaluate and notify (to the debug channel), archive nothing
  permafrost run --dry-run`,
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.date, "date", "", "run as if today were this date (YYYY-MM-DD)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "suppress archival and tagging, reroute notifications")
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.dryRun {
		cfg.Archiver.DryRun = true
	}

	today := time.Now()
	if runFlags.date != "" {
		today, err = time.Parse("2006-01-02", runFlags.date)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", runFlags.date, err)
		}
	}

	if _, err := logging.Install(cfg.Telemetry.Logging); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	collector := metrics.NewCollector(cfg.Telemetry.Metrics)

	rec, store, err := buildReconciler(cfg, collector)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer store.Close()

	ctx := cli.SetupSignalHandler()
	if err := rec.Run(ctx, today); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// loadConfig reads the config file and applies global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err.Error())
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// buildReconciler wires the platform client, state store and notifier into a
// Reconciler. The caller owns the returned store and must close it.
func buildReconciler(cfg *config.Config, collector *metrics.Collector) (*reconciler.Reconciler, *statestore.SQLiteStore, error) {
	store, err := statestore.NewSQLiteStore(cfg.Archiver.StateDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open state store: %w", err)
	}

	rec, err := rebuildReconciler(cfg, store, collector)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return rec, store, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"datalab-ops/permafrost/pkg/cli"
	"datalab-ops/permafrost/pkg/config"
	"datalab-ops/permafrost/pkg/notify"
	"datalab-ops/permafrost/pkg/platform"
	"datalab-ops/permafrost/pkg/reconciler"
	"datalab-ops/permafrost/pkg/statestore"
	"datalab-ops/permafrost/pkg/telemetry/health"
	"datalab-ops/permafrost/pkg/telemetry/logging"
	"datalab-ops/permafrost/pkg/telemetry/metrics"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run on a cron schedule with config hot reload",
	Long: `Run the reconciler as a long-lived daemon.

The daemon triggers a reconciliation pass on the configured cron schedule,
serves Prometheus metrics on the configured listen address, and hot-reloads
the config file when it changes on disk. A change to the state database path
requires a restart.

Examples:
  # Run with the default config
  permafrost daemon

  # Run with a custom config
  permafrost daemon --config /etc/permafrost/config.yaml`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if _, err := logging.Install(cfg.Telemetry.Logging); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	collector := metrics.NewCollector(cfg.Telemetry.Metrics)

	rec, store, err := buildReconciler(cfg, collector)
	if err != nil {
		return cli.NewCommandError("daemon", err)
	}
	defer store.Close()

	ctx := cli.SetupSignalHandler()

	// Metrics and health endpoints.
	var metricsSrv *http.Server
	if cfg.Telemetry.Metrics.Enabled {
		checker := health.New(5 * time.Second)
		checker.Register("statestore", func(ctx context.Context) error {
			_, err := store.Load(ctx)
			return err
		})

		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		mux.HandleFunc("/health", checker.LivenessHandler())
		mux.HandleFunc("/ready", checker.ReadinessHandler())
		mux.HandleFunc("/version", health.VersionHandler(Version, GitCommit, BuildDate))
		metricsSrv = &http.Server{
			Addr:              cfg.Telemetry.Metrics.ListenAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("metrics endpoint listening", "address", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics endpoint failed", "error", err)
			}
		}()
		defer metricsSrv.Close()
	}

	// Reloads rebuild the client and notifier from the fresh config but keep
	// the open state store: pending entries must survive a config edit.
	rebuild := func() (*reconciler.Reconciler, error) {
		fresh, err := loadConfig()
		if err != nil {
			return nil, err
		}
		if fresh.Archiver.StateDBPath != cfg.Archiver.StateDBPath {
			return nil, fmt.Errorf("state_db_path changed from %q to %q: restart required",
				cfg.Archiver.StateDBPath, fresh.Archiver.StateDBPath)
		}
		return rebuildReconciler(fresh, store, collector)
	}

	fmt.Printf("Permafrost v%s\n", Version)
	fmt.Printf("✓ Configuration loaded from %s\n", cfgFile)
	fmt.Printf("✓ Schedule: %s (run days: %v)\n", cfg.Schedule.Cron, cfg.Schedule.RunDays)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics: http://%s/metrics\n", cfg.Telemetry.Metrics.ListenAddress)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	sched := reconciler.NewScheduler(cfgFile, rec, rebuild)
	if err := sched.Start(ctx); err != nil {
		return cli.NewCommandError("daemon", err)
	}
	fmt.Println("✓ Daemon stopped")
	return nil
}

// rebuildReconciler assembles a reconciler around an already open store.
func rebuildReconciler(cfg *config.Config, store statestore.Store, collector *metrics.Collector) (*reconciler.Reconciler, error) {
	client := platform.NewHTTPClient(platform.HTTPClientConfig{
		BaseURL:    cfg.Platform.BaseURL,
		Token:      cfg.Platform.Token,
		Org:        cfg.Platform.Org,
		Timeout:    time.Duration(cfg.Platform.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.Platform.MaxRetries,
		Recorder:   collector,
	})
	notifier := notify.NewSlackNotifier(notify.SlackConfig{
		Token:        cfg.Notify.Token,
		ByteBudget:   cfg.Notify.ByteBudget,
		Debug:        cfg.Archiver.DryRun,
		DebugChannel: cfg.Notify.DebugChannel,
	})
	return reconciler.New(cfg, client, store, notifier, collector)
}

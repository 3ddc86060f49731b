package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"datalab-ops/permafrost/pkg/cli"
	"datalab-ops/permafrost/pkg/statestore"
)

var statusFlags struct {
	format string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what is pending for the next commit",
	Long: `Show the pending-archival buckets recorded by the last mark phase.

Everything listed here will be re-validated and archived on the next run date
unless it has been removed, re-tagged or modified in the meantime.

Examples:
  # Human-readable summary
  permafrost status

  # Machine-readable output
  permafrost status --format json`,
	RunE: showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusFlags.format, "format", "text", "output format: text, json")
}

// bucketStatus is the status command's output shape.
type bucketStatus struct {
	Bucket  string   `json:"bucket"`
	Count   int      `json:"count"`
	Entries []string `json:"entries"`
}

func showStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := statestore.NewSQLiteStore(cfg.Archiver.StateDBPath)
	if err != nil {
		return cli.NewCommandError("status", fmt.Errorf("open state store: %w", err))
	}
	defer store.Close()

	state, err := store.Load(cmd.Context())
	if err != nil {
		return cli.NewCommandError("status", err)
	}

	buckets := make([]bucketStatus, 0, len(statestore.AllBuckets()))
	for _, b := range statestore.AllBuckets() {
		entries := state[b]
		buckets = append(buckets, bucketStatus{
			Bucket:  string(b),
			Count:   len(entries),
			Entries: entries,
		})
	}

	if statusFlags.format == string(cli.FormatJSON) {
		formatter := cli.NewFormatter(cli.FormatJSON)
		return formatter.FormatTo(os.Stdout, buckets)
	}

	if state.Empty() {
		fmt.Println("Nothing pending.")
		return nil
	}
	for _, b := range buckets {
		fmt.Printf("%s (%d pending)\n", b.Bucket, b.Count)
		for _, entry := range b.Entries {
			fmt.Printf("  %s\n", entry)
		}
	}
	return nil
}

package reconciler

import (
	"context"
	"fmt"
	"time"

	"datalab-ops/permafrost/pkg/eligibility"
	"datalab-ops/permafrost/pkg/notify"
	"datalab-ops/permafrost/pkg/platform"
)

// bundlePattern matches the run bundles produced by the sequencers.
const bundlePattern = `^run.*\.tar\.gz$`

// reportStaleBundles uploads a snippet listing every run bundle in the
// staging project untouched for the bundle threshold. Posted on the first
// run day of the month only; the list is informational and nothing is
// archived here.
func (r *Reconciler) reportStaleBundles(ctx context.Context, today time.Time) error {
	files, err := r.client.FindFiles(ctx, r.cfg.Platform.StagingProjectID, platform.FileFilter{
		NamePattern: bundlePattern,
	})
	if err != nil {
		return fmt.Errorf("failed to enumerate run bundles: %w", err)
	}

	months := r.cfg.Thresholds.BundleMonths
	var stale []platform.FileMeta
	for _, f := range files {
		if eligibility.OlderThan(months, f.Modified, today) {
			stale = append(stale, f)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	oldest, newest := stale[0].Modified, stale[0].Modified
	lines := make([]string, 0, len(stale))
	for _, f := range stale {
		if f.Modified.Before(oldest) {
			oldest = f.Modified
		}
		if f.Modified.After(newest) {
			newest = f.Modified
		}
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", f.ID, f.Folder, f.Name))
	}

	pretext := notify.BundleReport(months,
		oldest.Format("2006-01-02"), newest.Format("2006-01-02"))
	return r.notifier.UploadSnippet(ctx, r.cfg.Notify.AlertsChannel, pretext, "run_bundles.txt", lines)
}

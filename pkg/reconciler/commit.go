package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"datalab-ops/permafrost/pkg/bulk"
	"datalab-ops/permafrost/pkg/eligibility"
	"datalab-ops/permafrost/pkg/platform"
	"datalab-ops/permafrost/pkg/statestore"
)

// commitOutcome accumulates what the commit phase actually did, for the
// archived/failed logs and the summary digest.
type commitOutcome struct {
	archived []string
	failed   []string
}

// commit archives every pending bucket entry that still qualifies.
//
// Each entry is re-validated against current metadata first: resources
// deleted since the mark are dropped silently, and resources re-tagged or
// touched during the grace window are spared. Failures are collected per
// file and never abort the rest of the batch.
func (r *Reconciler) commit(ctx context.Context, logger *slog.Logger, today time.Time, state statestore.State) error {
	if r.metrics != nil {
		r.metrics.RecordRun("commit")
	}

	var outcome commitOutcome

	for _, projectID := range state[statestore.BucketProjects] {
		r.commitProject(ctx, logger, today, projectID, &outcome)
	}
	for _, entry := range state[statestore.BucketDirectories] {
		projectID, folder := statestore.SplitEntry(entry)
		r.commitFolder(ctx, logger, today, projectID, folder, r.cfg.Thresholds.ModifiedMonths, &outcome)
	}
	for _, entry := range state[statestore.BucketPrecisions] {
		projectID, folder := statestore.SplitEntry(entry)
		r.commitFolder(ctx, logger, today, projectID, folder, r.cfg.Thresholds.PrecisionMonths, &outcome)
	}

	if err := r.failedLog.Append(today, outcome.failed); err != nil {
		logger.Error("failed to write failed-archive log", "error", err)
	}
	if len(outcome.archived) > 0 {
		if err := r.archivedLog.Append(today, outcome.archived); err != nil {
			logger.Error("failed to write archived log", "error", err)
		}
		digest := r.formatter.ArchivedDigest(outcome.archived)
		if err := r.notifier.PostDigest(ctx, r.cfg.Notify.LogsChannel, digest); err != nil {
			logger.Error("failed to post archived summary", "error", err)
		}
	}

	logger.Info("commit phase finished",
		"archived", len(outcome.archived),
		"failed", len(outcome.failed),
	)

	if r.cfg.Archiver.DryRun {
		logger.Info("dry run, keeping buckets and skipping tag sweep")
		return nil
	}

	for _, bucket := range statestore.AllBuckets() {
		if err := r.store.Clear(ctx, bucket); err != nil {
			return fmt.Errorf("failed to clear bucket %s: %w", bucket, err)
		}
	}

	r.sweepStatusTags(ctx, logger)
	return nil
}

// commitProject re-validates one pending project and archives it whole.
func (r *Reconciler) commitProject(ctx context.Context, logger *slog.Logger, today time.Time, projectID string, outcome *commitOutcome) {
	meta, err := r.client.Describe(ctx, projectID)
	if err != nil {
		if platform.IsNotFound(err) {
			// Deleted since it was marked.
			logger.Info("pending project no longer exists", "project", projectID)
			return
		}
		logger.Error("failed to describe pending project", "project", projectID, "error", err)
		return
	}

	// A project marked two weeks ago may have been re-tagged since; the
	// opt-out always wins at commit time.
	if meta.HasTag(eligibility.TagNeverArchive) || meta.HasTag(eligibility.TagNoArchive) {
		logger.Info("pending project re-tagged, sparing it", "project", projectID, "name", meta.Name)
		return
	}

	if !meta.HasTag(eligibility.TagArchive) &&
		!eligibility.OlderThan(r.cfg.Thresholds.ModifiedMonths, meta.Modified, today) {
		logger.Info("pending project recently modified, sparing it", "project", projectID, "name", meta.Name)
		return
	}

	label := fmt.Sprintf("%s | %s", projectID, meta.Name)
	r.archiveScope(ctx, logger, projectID, "/", label, outcome)
}

// commitFolder re-validates one pending folder scope and archives it.
func (r *Reconciler) commitFolder(ctx context.Context, logger *slog.Logger, today time.Time, projectID, folder string, graceMonths int, outcome *commitOutcome) {
	scope := logger.With("project", projectID, "folder", folder)

	blocked, err := r.client.FindFiles(ctx, projectID, platform.FileFilter{
		Folder: folder,
		Tag:    eligibility.TagNeverArchive,
		Limit:  1,
	})
	if err != nil {
		scope.Error("failed to check never-archive tag", "error", err)
		return
	}
	if len(blocked) > 0 {
		scope.Info("folder contains never-archive file, sparing it")
		return
	}

	recent, err := r.client.FindFiles(ctx, projectID, platform.FileFilter{
		Folder:        folder,
		ModifiedAfter: today.AddDate(0, -graceMonths, 0),
		Limit:         1,
	})
	if err != nil {
		scope.Error("failed to check recent activity", "error", err)
		return
	}
	if len(recent) > 0 {
		scope.Info("folder recently modified, sparing it")
		return
	}

	optedOut, err := r.client.FindFiles(ctx, projectID, platform.FileFilter{
		Folder: folder,
		Tag:    eligibility.TagNoArchive,
		Limit:  1,
	})
	if err != nil {
		scope.Error("failed to check no-archive tag", "error", err)
		return
	}
	if len(optedOut) > 0 {
		scope.Info("folder re-tagged no-archive, sparing it")
		return
	}

	label := fmt.Sprintf("%s:%s", projectID, folder)
	r.archiveScope(ctx, scope, projectID, folder, label, outcome)
}

// archiveScope archives every file under folder in the project. When any
// file matches an exclusion pattern the scope is archived file by file,
// skipping the matches; otherwise one wholesale archive call is made, with
// a per-file fallback if the platform rejects it.
func (r *Reconciler) archiveScope(ctx context.Context, logger *slog.Logger, projectID, folder, label string, outcome *commitOutcome) {
	excluded, err := r.excludedFileIDs(ctx, projectID, folder)
	if err != nil {
		logger.Error("failed to resolve exclusion patterns", "error", err)
		return
	}

	if r.cfg.Archiver.DryRun {
		logger.Info("dry run, would archive scope", "scope", label, "excluded", len(excluded))
		return
	}

	if len(excluded) > 0 {
		logger.Info("scope has excluded files, archiving file by file", "excluded", len(excluded))
		r.archiveFileByFile(ctx, logger, projectID, folder, label, excluded, outcome)
		return
	}

	res, err := r.client.ArchiveScope(ctx, projectID, folder)
	if err != nil {
		// Mixed object classes in a scope can make the wholesale call fail
		// even though every file in it is archivable.
		logger.Info("wholesale archive failed, archiving file by file", "error", err)
		r.archiveFileByFile(ctx, logger, projectID, folder, label, nil, outcome)
		return
	}
	if r.metrics != nil {
		r.metrics.RecordArchived(res.Count)
	}
	if res.Count > 0 {
		outcome.archived = append(outcome.archived, fmt.Sprintf("%s | %d", label, res.Count))
	}
}

// excludedFileIDs returns the IDs of files in scope matching any exclusion
// pattern.
func (r *Reconciler) excludedFileIDs(ctx context.Context, projectID, folder string) (map[string]bool, error) {
	if len(r.excludes) == 0 {
		return nil, nil
	}

	excluded := make(map[string]bool)
	for _, re := range r.excludes {
		files, err := r.client.FindFiles(ctx, projectID, platform.FileFilter{
			NamePattern: re.String(),
			Folder:      folder,
		})
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			excluded[f.ID] = true
		}
	}
	if len(excluded) == 0 {
		return nil, nil
	}
	return excluded, nil
}

// archiveFileByFile archives every non-excluded file in scope through the
// worker pool, recording failures as data.
func (r *Reconciler) archiveFileByFile(ctx context.Context, logger *slog.Logger, projectID, folder, label string, excluded map[string]bool, outcome *commitOutcome) {
	files, err := r.client.FindFiles(ctx, projectID, platform.FileFilter{Folder: folder})
	if err != nil {
		logger.Error("failed to enumerate scope", "error", err)
		return
	}

	var fileIDs []string
	for _, f := range files {
		if excluded[f.ID] {
			continue
		}
		fileIDs = append(fileIDs, f.ID)
	}
	if len(fileIDs) == 0 {
		return
	}

	results := bulk.Run(ctx, r.cfg.Archiver.Workers, fileIDs, func(ctx context.Context, fileID string) error {
		return r.client.ArchiveFile(ctx, fileID, projectID)
	})

	archived := 0
	for _, res := range results {
		if res.Err == nil {
			archived++
			continue
		}
		logger.Error("failed to archive file", "file", res.Item, "error", res.Err)
		outcome.failed = append(outcome.failed, fmt.Sprintf("%s:%s", projectID, res.Item))
		if r.metrics != nil {
			r.metrics.RecordArchiveFailure()
		}
	}
	if r.metrics != nil {
		r.metrics.RecordArchived(archived)
	}
	if archived > 0 {
		outcome.archived = append(outcome.archived, fmt.Sprintf("%s | %d", label, archived))
	}
}

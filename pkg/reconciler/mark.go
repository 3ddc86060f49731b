package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"datalab-ops/permafrost/pkg/bulk"
	"datalab-ops/permafrost/pkg/eligibility"
	"datalab-ops/permafrost/pkg/notify"
	"datalab-ops/permafrost/pkg/platform"
	"datalab-ops/permafrost/pkg/statestore"
)

// markSummary accumulates everything the mark phase found, keyed by the
// digest it feeds.
type markSummary struct {
	projects   []string // bucket entries
	dirs       []string
	precisions []string

	tierALinks []string
	tierBItems []notify.OwnedItem
	dirLinks   []string
	precLinks  []string
	special    []string
	noArchive  []string
	never      []string
}

// projectCandidate carries one project through the evaluation pool.
type projectCandidate struct {
	meta     *platform.ProjectMeta
	decision eligibility.Decision
	err      error
}

// folderCandidate carries one folder sweep item through the pool. The
// threshold is only meaningful for staging directories.
type folderCandidate struct {
	projectID string
	folder    string
	threshold int
	files     []platform.FileMeta
	decision  eligibility.Decision
	err       error
}

// mark sweeps the platform for newly eligible resources, repopulates the
// buckets and posts the digests advertising the next run date.
func (r *Reconciler) mark(ctx context.Context, logger *slog.Logger, today time.Time) error {
	if r.metrics != nil {
		r.metrics.RecordRun("mark")
	}

	var summary markSummary

	// Decisions are made relative to the run date, which the CLI can
	// override for replays.
	eval := r.evaluator.WithClock(func() time.Time { return today })

	tierA, err := r.client.FindProjects(ctx, eligibility.PrefixTierA)
	if err != nil {
		return fmt.Errorf("failed to enumerate %s projects: %w", eligibility.PrefixTierA, err)
	}
	tierB, err := r.client.FindProjects(ctx, eligibility.PrefixTierB)
	if err != nil {
		return fmt.Errorf("failed to enumerate %s projects: %w", eligibility.PrefixTierB, err)
	}

	logger.Info("enumerated projects", "tier_a", len(tierA), "tier_b", len(tierB))

	projects := make([]platform.ProjectMeta, 0, len(tierA)+len(tierB))
	projects = append(projects, tierA...)
	projects = append(projects, tierB...)

	for _, c := range r.evaluateProjects(ctx, eval, projects) {
		r.fileProject(ctx, logger, c, &summary)
	}

	if err := r.markDirectories(ctx, logger, eval, today, projects, &summary); err != nil {
		logger.Error("staging directory sweep failed", "error", err)
	}
	if err := r.markPrecisions(ctx, logger, eval, &summary); err != nil {
		logger.Error("precision folder sweep failed", "error", err)
	}

	r.collectOptOutInfo(ctx, logger, projects, &summary)

	if r.cfg.Archiver.DryRun {
		logger.Info("dry run, not persisting buckets",
			"projects", len(summary.projects),
			"directories", len(summary.dirs),
			"precisions", len(summary.precisions),
		)
	} else {
		for bucket, entries := range map[statestore.Bucket][]string{
			statestore.BucketProjects:    summary.projects,
			statestore.BucketDirectories: summary.dirs,
			statestore.BucketPrecisions:  summary.precisions,
		} {
			if err := r.store.Replace(ctx, bucket, entries); err != nil {
				return fmt.Errorf("failed to persist bucket %s: %w", bucket, err)
			}
			if r.metrics != nil {
				r.metrics.RecordMarked(string(bucket), len(entries))
				r.metrics.SetPending(string(bucket), len(entries))
			}
		}
	}

	return r.postMarkDigests(ctx, logger, today, &summary)
}

// evaluateProjects fans project evaluation, including the remote live-file
// probe, across the worker pool. Candidates come back in enumeration order
// with per-item errors attached, so folding them stays deterministic.
func (r *Reconciler) evaluateProjects(ctx context.Context, eval *eligibility.Evaluator, projects []platform.ProjectMeta) []*projectCandidate {
	var candidates []*projectCandidate
	for i := range projects {
		if r.isProtectedProject(projects[i].ID) {
			continue
		}
		candidates = append(candidates, &projectCandidate{meta: &projects[i]})
	}

	results := bulk.Run(ctx, r.cfg.Archiver.Workers, candidates, func(ctx context.Context, c *projectCandidate) error {
		var err error
		c.decision, err = eval.EvaluateProject(c.meta, func() (bool, error) {
			live, err := r.client.FindFiles(ctx, c.meta.ID, platform.FileFilter{
				State: platform.StateLive,
				Limit: 1,
			})
			return len(live) > 0, err
		})
		return err
	})
	for _, res := range results {
		if res.Err != nil {
			res.Item.err = res.Err
		}
	}
	return candidates
}

// fileProject folds one evaluated project into the summary.
func (r *Reconciler) fileProject(ctx context.Context, logger *slog.Logger, c *projectCandidate, summary *markSummary) {
	if c.err != nil {
		logger.Error("project evaluation failed", "project", c.meta.ID, "error", c.err)
		return
	}

	switch c.decision.Verdict {
	case eligibility.VerdictSkip:
		return
	case eligibility.VerdictEscalate:
		// Stale opt-out: strip the tag so the next run treats it plainly,
		// and surface it prominently.
		if !r.cfg.Archiver.DryRun {
			if err := r.client.RemoveProjectTags(ctx, c.meta.ID, []string{eligibility.TagNoArchive}); err != nil {
				logger.Error("failed to remove stale no-archive tag", "project", c.meta.ID, "error", err)
			}
		}
		summary.special = append(summary.special, c.meta.Name)
	}

	summary.projects = append(summary.projects, c.meta.ID)
	if strings.HasPrefix(c.meta.Name, eligibility.PrefixTierA) {
		summary.tierALinks = append(summary.tierALinks, r.projectLink(c.meta))
	} else {
		summary.tierBItems = append(summary.tierBItems, notify.OwnedItem{
			Name:  r.projectLink(c.meta),
			Owner: c.meta.CreatedBy,
		})
	}
}

// isProtectedProject reports whether the project hosts the staging area or
// a precision area; those are archived per folder, never wholesale.
func (r *Reconciler) isProtectedProject(projectID string) bool {
	if projectID == r.cfg.Platform.StagingProjectID {
		return true
	}
	for _, id := range r.cfg.Platform.PrecisionProjectIDs {
		if projectID == id {
			return true
		}
	}
	return false
}

// markDirectories sweeps the staging area's run directories. A directory
// only qualifies when its parent sequencing project is itself old enough,
// resolved against the already-enumerated project lists.
func (r *Reconciler) markDirectories(ctx context.Context, logger *slog.Logger, eval *eligibility.Evaluator, today time.Time, projects []platform.ProjectMeta, summary *markSummary) error {
	stagingID := r.cfg.Platform.StagingProjectID

	dirs, err := r.stagingDirectories(ctx, stagingID)
	if err != nil {
		return err
	}
	logger.Info("enumerated staging directories", "count", len(dirs))

	var candidates []*folderCandidate
	for _, dir := range dirs {
		parent := parentProject(projects, dir)
		if parent == nil {
			continue
		}
		threshold := eval.ThresholdMonths(parent.Name)
		if !eligibility.OlderThan(threshold, parent.Modified, today) {
			continue
		}
		candidates = append(candidates, &folderCandidate{
			projectID: stagingID,
			folder:    dir,
			threshold: threshold,
		})
	}

	for _, c := range r.evaluateFolders(ctx, candidates, func(c *folderCandidate) eligibility.Decision {
		return eval.EvaluateDirectory(c.files, c.threshold)
	}) {
		if c.err != nil {
			logger.Error("failed to enumerate directory", "folder", c.folder, "error", c.err)
			continue
		}

		switch c.decision.Verdict {
		case eligibility.VerdictSkip:
			continue
		case eligibility.VerdictEscalate:
			r.stripFileOptOuts(ctx, logger, stagingID, c.files)
			summary.special = append(summary.special, fmt.Sprintf("%s in staging area", c.folder))
		}

		summary.dirs = append(summary.dirs, statestore.EntryKey(stagingID, c.folder))
		summary.dirLinks = append(summary.dirLinks, r.folderLink(stagingID, c.folder))
	}
	return nil
}

// evaluateFolders lists and evaluates folder contents through the worker
// pool. Candidates come back in input order with per-item errors attached.
func (r *Reconciler) evaluateFolders(ctx context.Context, candidates []*folderCandidate, decide func(*folderCandidate) eligibility.Decision) []*folderCandidate {
	results := bulk.Run(ctx, r.cfg.Archiver.Workers, candidates, func(ctx context.Context, c *folderCandidate) error {
		files, err := r.client.FindFiles(ctx, c.projectID, platform.FileFilter{Folder: c.folder})
		if err != nil {
			return err
		}
		c.files = files
		c.decision = decide(c)
		return nil
	})
	for _, res := range results {
		if res.Err != nil {
			res.Item.err = res.Err
		}
	}
	return candidates
}

// stagingDirectories lists the candidate run directories: the root of the
// staging project plus everything one level under /processed.
func (r *Reconciler) stagingDirectories(ctx context.Context, stagingID string) ([]string, error) {
	root, err := r.client.ListFolders(ctx, stagingID, "/")
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, dir := range root {
		if dir == "/processed" {
			continue
		}
		dirs = append(dirs, dir)
	}

	processed, err := r.client.ListFolders(ctx, stagingID, "/processed")
	if err != nil {
		if platform.IsNotFound(err) {
			return dirs, nil
		}
		return nil, err
	}
	return append(dirs, processed...), nil
}

// parentProject finds the sequencing project a staging directory was named
// after.
func parentProject(projects []platform.ProjectMeta, dir string) *platform.ProjectMeta {
	base := dir[strings.LastIndex(dir, "/")+1:]
	if base == "" {
		return nil
	}
	for i := range projects {
		name := projects[i].Name
		if idx := strings.Index(name, "_"); idx >= 0 && strings.HasPrefix(name[idx+1:], base) {
			return &projects[i]
		}
	}
	return nil
}

// markPrecisions sweeps the folders of every configured precision project.
func (r *Reconciler) markPrecisions(ctx context.Context, logger *slog.Logger, eval *eligibility.Evaluator, summary *markSummary) error {
	var candidates []*folderCandidate
	for _, projectID := range r.cfg.Platform.PrecisionProjectIDs {
		folders, err := r.client.ListFolders(ctx, projectID, "/")
		if err != nil {
			if platform.IsNotFound(err) {
				logger.Info("precision project not found, skipping", "project", projectID)
				continue
			}
			return err
		}
		for _, folder := range folders {
			candidates = append(candidates, &folderCandidate{projectID: projectID, folder: folder})
		}
	}

	for _, c := range r.evaluateFolders(ctx, candidates, func(c *folderCandidate) eligibility.Decision {
		return eval.EvaluatePrecisionFolder(c.files)
	}) {
		if c.err != nil {
			logger.Error("failed to enumerate precision folder",
				"project", c.projectID, "folder", c.folder, "error", c.err)
			continue
		}

		switch c.decision.Verdict {
		case eligibility.VerdictSkip:
			continue
		case eligibility.VerdictEscalate:
			r.stripFileOptOuts(ctx, logger, c.projectID, c.files)
			summary.special = append(summary.special, fmt.Sprintf("%s in %s", c.folder, c.projectID))
		}

		summary.precisions = append(summary.precisions, statestore.EntryKey(c.projectID, c.folder))
		summary.precLinks = append(summary.precLinks, r.folderLink(c.projectID, c.folder))
	}
	return nil
}

// stripFileOptOuts removes the stale no-archive tag from the opted-out
// files in scope.
func (r *Reconciler) stripFileOptOuts(ctx context.Context, logger *slog.Logger, projectID string, files []platform.FileMeta) {
	if r.cfg.Archiver.DryRun {
		return
	}
	results := bulk.Run(ctx, r.cfg.Archiver.Workers, eligibility.OptOutFiles(files),
		func(ctx context.Context, f platform.FileMeta) error {
			return r.client.RemoveFileTags(ctx, f.ID, projectID, []string{eligibility.TagNoArchive})
		})
	for _, res := range bulk.Failed(results) {
		logger.Error("failed to remove stale no-archive tag from file",
			"file", res.Item.ID, "project", projectID, "error", res.Err)
	}
}

// collectOptOutInfo gathers the informational no-archive / never-archive
// lists: tagged projects plus staging directories containing tagged files.
func (r *Reconciler) collectOptOutInfo(ctx context.Context, logger *slog.Logger, projects []platform.ProjectMeta, summary *markSummary) {
	for i := range projects {
		if projects[i].HasTag(eligibility.TagNoArchive) {
			summary.noArchive = append(summary.noArchive, projects[i].Name)
		}
		if projects[i].HasTag(eligibility.TagNeverArchive) {
			summary.never = append(summary.never, projects[i].Name)
		}
	}

	stagingID := r.cfg.Platform.StagingProjectID
	for tag, out := range map[string]*[]string{
		eligibility.TagNoArchive:    &summary.noArchive,
		eligibility.TagNeverArchive: &summary.never,
	} {
		files, err := r.client.FindFiles(ctx, stagingID, platform.FileFilter{Tag: tag})
		if err != nil {
			logger.Error("failed to collect tagged staging files", "tag", tag, "error", err)
			continue
		}
		seen := make(map[string]bool)
		for _, f := range files {
			dir := topLevelDir(f.Folder)
			if dir == "" || seen[dir] {
				continue
			}
			seen[dir] = true
			*out = append(*out, fmt.Sprintf("%s in staging area", dir))
		}
	}
}

// topLevelDir reduces a folder path to its run directory, so one tagged
// file deep in a run reports the run itself.
func topLevelDir(folder string) string {
	parts := strings.SplitN(strings.TrimPrefix(folder, "/"), "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return ""
	}
	if parts[0] == "processed" {
		if len(parts) < 2 {
			return ""
		}
		rest := strings.SplitN(parts[1], "/", 2)
		if rest[0] == "" {
			return ""
		}
		return "/processed/" + rest[0]
	}
	return "/" + parts[0]
}

// postMarkDigests delivers every non-empty digest to the alerts channel.
func (r *Reconciler) postMarkDigests(ctx context.Context, logger *slog.Logger, today time.Time, summary *markSummary) error {
	next := NextRunDate(today, r.cfg.Schedule.RunDays)
	channel := r.cfg.Notify.AlertsChannel

	sort.Strings(summary.special)

	digests := []struct {
		purpose string
		digest  notify.Digest
	}{
		{"tier_a", r.formatter.TierADigest(today, next, summary.tierALinks)},
		{"tier_b", r.formatter.TierBDigest(today, next, summary.tierBItems)},
		{"directories", r.formatter.DirectoryDigest(today, next, "staging area", summary.dirLinks)},
		{"precisions", r.formatter.PrecisionDigest(today, next, summary.precLinks)},
		{"special_notice", r.formatter.SpecialNoticeDigest(today, next, summary.special)},
		{"no_archive", r.formatter.NoArchiveDigest(today, summary.noArchive)},
		{"never_archive", r.formatter.NeverArchiveDigest(today, summary.never)},
	}

	for _, d := range digests {
		if d.digest.Empty() {
			continue
		}
		// Notification is best effort: the buckets are already persisted,
		// so one refused digest must not take down the rest or the run.
		if err := r.notifier.PostDigest(ctx, channel, d.digest); err != nil {
			logger.Error("failed to post digest", "purpose", d.purpose, "error", err)
			continue
		}
		if r.metrics != nil {
			r.metrics.RecordDigest(d.purpose)
		}
	}

	logger.Info("mark phase finished",
		"projects", len(summary.projects),
		"directories", len(summary.dirs),
		"precisions", len(summary.precisions),
		"special", len(summary.special),
	)
	return nil
}

package reconciler

import (
	"context"
	"log/slog"

	"datalab-ops/permafrost/pkg/eligibility"
	"datalab-ops/permafrost/pkg/platform"
)

// sweepStatusTags reconciles the fully/partial archived status tags with
// each project's actual archival state after a commit. Errors are logged
// and skipped; the tags are advisory and self-heal on the next run.
func (r *Reconciler) sweepStatusTags(ctx context.Context, logger *slog.Logger) {
	for _, prefix := range []string{eligibility.PrefixTierA, eligibility.PrefixTierB} {
		projects, err := r.client.FindProjects(ctx, prefix)
		if err != nil {
			logger.Error("tag sweep enumeration failed", "prefix", prefix, "error", err)
			continue
		}
		for i := range projects {
			r.sweepProjectTag(ctx, logger, &projects[i])
		}
	}
}

func (r *Reconciler) sweepProjectTag(ctx context.Context, logger *slog.Logger, meta *platform.ProjectMeta) {
	if meta.FullyArchived() {
		// Usage counters settle it without a file query.
		r.setStatusTag(ctx, logger, meta, eligibility.TagFullyArchived)
		return
	}

	live, err := r.hasFileInState(ctx, meta.ID, platform.StateLive)
	if err != nil {
		logger.Error("tag sweep state query failed", "project", meta.ID, "error", err)
		return
	}
	archived, err := r.hasFileInState(ctx, meta.ID, platform.StateArchived)
	if err != nil {
		logger.Error("tag sweep state query failed", "project", meta.ID, "error", err)
		return
	}

	switch {
	case !live && archived:
		r.setStatusTag(ctx, logger, meta, eligibility.TagFullyArchived)
	case live && archived:
		r.setStatusTag(ctx, logger, meta, eligibility.TagPartialArchived)
	}
	// All live: no status tag applies.
}

func (r *Reconciler) hasFileInState(ctx context.Context, projectID string, state platform.ArchivalState) (bool, error) {
	files, err := r.client.FindFiles(ctx, projectID, platform.FileFilter{State: state, Limit: 1})
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}

// setStatusTag makes want the project's only status tag.
func (r *Reconciler) setStatusTag(ctx context.Context, logger *slog.Logger, meta *platform.ProjectMeta, want string) {
	if meta.HasTag(want) && !meta.HasTag(otherStatusTag(want)) {
		return
	}

	if meta.HasTag(otherStatusTag(want)) {
		err := r.client.RemoveProjectTags(ctx, meta.ID,
			[]string{eligibility.TagFullyArchived, eligibility.TagPartialArchived})
		if err != nil {
			logger.Error("failed to reset status tags", "project", meta.ID, "error", err)
			return
		}
	}
	if err := r.client.AddProjectTags(ctx, meta.ID, []string{want}); err != nil {
		logger.Error("failed to add status tag", "project", meta.ID, "tag", want, "error", err)
	}
}

func otherStatusTag(tag string) string {
	if tag == eligibility.TagFullyArchived {
		return eligibility.TagPartialArchived
	}
	return eligibility.TagFullyArchived
}

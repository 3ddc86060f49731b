// Package reconciler drives the archival lifecycle: on every run date it
// commits the resources marked on the previous run date, then sweeps the
// platform for newly eligible resources and marks them for the next one.
// Between run dates it only posts a countdown while work is pending.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"datalab-ops/permafrost/pkg/config"
	"datalab-ops/permafrost/pkg/eligibility"
	"datalab-ops/permafrost/pkg/notify"
	"datalab-ops/permafrost/pkg/platform"
	"datalab-ops/permafrost/pkg/statestore"
	"datalab-ops/permafrost/pkg/telemetry/metrics"
)

// Reconciler owns one mark/commit cycle over the platform.
type Reconciler struct {
	cfg       *config.Config
	client    platform.Client
	store     statestore.Store
	notifier  notify.Notifier
	formatter *notify.Formatter
	evaluator *eligibility.Evaluator
	metrics   *metrics.Collector
	logger    *slog.Logger

	archivedLog *statestore.RunLog
	failedLog   *statestore.RunLog
	excludes    []*regexp.Regexp
}

// New creates a reconciler. The collector may be nil.
func New(cfg *config.Config, client platform.Client, store statestore.Store, notifier notify.Notifier, collector *metrics.Collector) (*Reconciler, error) {
	excludes := make([]*regexp.Regexp, 0, len(cfg.Archiver.ExcludePatterns))
	for _, pattern := range cfg.Archiver.ExcludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		excludes = append(excludes, re)
	}

	return &Reconciler{
		cfg:      cfg,
		client:   client,
		store:    store,
		notifier: notifier,
		formatter: &notify.Formatter{
			Mentions:     cfg.Notify.Mentions,
			GuidelineURL: cfg.Notify.GuidelineURL,
		},
		evaluator:   eligibility.NewEvaluator(cfg.Thresholds),
		metrics:     collector,
		logger:      slog.Default().With("component", "reconciler"),
		archivedLog: statestore.NewRunLog(cfg.Archiver.ArchivedLogPath),
		failedLog:   statestore.NewRunLog(cfg.Archiver.FailedLogPath),
		excludes:    excludes,
	}, nil
}

// Run executes one reconciliation for the given calendar date.
//
// On a non-run date it posts a countdown if any bucket holds pending work
// and otherwise stays silent. On a run date it verifies credentials,
// commits the pending buckets, then marks the next batch and notifies. An
// authentication failure alerts and aborts the whole run.
func (r *Reconciler) Run(ctx context.Context, today time.Time) error {
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	logger := r.logger.With("run_id", uuid.NewString(), "date", today.Format("2006-01-02"))

	state, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	if !IsRunDate(today, r.cfg.Schedule.RunDays) {
		if state.Empty() {
			logger.Info("not a run date and nothing pending")
			return nil
		}
		next := NextRunDate(today, r.cfg.Schedule.RunDays)
		logger.Info("not a run date, posting countdown", "next_run", next.Format("2006-01-02"))
		return r.notifier.PostMessage(ctx, r.cfg.Notify.AlertsChannel, notify.Countdown(today, next))
	}

	if _, err := r.client.WhoAmI(ctx); err != nil {
		logger.Error("platform authentication failed", "error", err)
		if notifyErr := r.notifier.PostMessage(ctx, r.cfg.Notify.AlertsChannel, notify.AuthFailure(err)); notifyErr != nil {
			logger.Error("failed to send auth alert", "error", notifyErr)
		}
		return fmt.Errorf("platform authentication failed: %w", err)
	}

	if today.Day() == firstRunDay(r.cfg.Schedule.RunDays) {
		if err := r.reportStaleBundles(ctx, today); err != nil {
			// The bundle report is informational; a failure must not block
			// the archival cycle.
			logger.Error("stale bundle report failed", "error", err)
		}
	}

	if !state.Empty() {
		logger.Info("starting commit phase", "pending", state.Total())
		if err := r.commit(ctx, logger, today, state); err != nil {
			return err
		}
	} else {
		logger.Info("no pending work, skipping commit phase")
	}

	logger.Info("starting mark phase")
	return r.mark(ctx, logger, today)
}

func firstRunDay(runDays []int) int {
	if len(runDays) == 0 {
		return 1
	}
	first := runDays[0]
	for _, day := range runDays[1:] {
		if day < first {
			first = day
		}
	}
	return first
}

// projectLink renders a clickable Slack link for a project, or the bare
// name when no URL prefix is configured.
func (r *Reconciler) projectLink(meta *platform.ProjectMeta) string {
	if r.cfg.Platform.URLPrefix == "" {
		return meta.Name
	}
	return fmt.Sprintf("<%s/%s/|%s>", r.cfg.Platform.URLPrefix, meta.TrimmedID(), meta.Name)
}

// folderLink renders a clickable Slack link for a folder within a project.
func (r *Reconciler) folderLink(projectID, folder string) string {
	if r.cfg.Platform.URLPrefix == "" {
		return folder
	}
	trimmed := platform.TrimProjectID(projectID)
	return fmt.Sprintf("<%s/%s/data%s|%s>", r.cfg.Platform.URLPrefix, trimmed, folder, folder)
}

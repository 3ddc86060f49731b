package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
)

// Scheduler runs the reconciler on a cron schedule and hot-swaps it when
// the config file changes on disk.
type Scheduler struct {
	cron       *cron.Cron
	logger     *slog.Logger
	configPath string
	rebuild    func() (*Reconciler, error)

	mu         sync.RWMutex
	reconciler *Reconciler
	running    bool
}

// NewScheduler creates a scheduler around an initial reconciler. rebuild is
// invoked on config changes and must return a reconciler built from the
// freshly loaded config.
func NewScheduler(configPath string, initial *Reconciler, rebuild func() (*Reconciler, error)) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		logger:     slog.Default().With("component", "reconciler.scheduler"),
		configPath: configPath,
		rebuild:    rebuild,
		reconciler: initial,
	}
}

// Start schedules the reconciler and blocks until the context is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	schedule := s.reconciler.cfg.Schedule.Cron
	s.running = true
	s.mu.Unlock()

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule run: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()
	// Watch the directory: editors and config mounts replace the file
	// instead of writing it in place.
	if err := watcher.Add(filepath.Dir(s.configPath)); err != nil {
		return fmt.Errorf("failed to watch config: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", schedule, "config", s.configPath)

	var debounce *time.Timer
	reloads := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			stopped := s.cron.Stop()
			<-stopped.Done()
			s.logger.Info("scheduler stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("config watcher closed")
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.configPath) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, func() {
				select {
				case reloads <- struct{}{}:
				default:
				}
			})

		case <-reloads:
			s.reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("config watcher closed")
			}
			s.logger.Error("config watcher error", "error", err)
		}
	}
}

// runOnce executes a reconciliation for the current date.
func (s *Scheduler) runOnce(ctx context.Context) {
	s.mu.RLock()
	rec := s.reconciler
	s.mu.RUnlock()

	if err := rec.Run(ctx, time.Now()); err != nil {
		s.logger.Error("scheduled run failed", "error", err)
	}
}

// reload rebuilds the reconciler from the config file, keeping the old one
// on failure.
func (s *Scheduler) reload() {
	rec, err := s.rebuild()
	if err != nil {
		s.logger.Error("config reload failed, keeping previous config", "error", err)
		return
	}

	s.mu.Lock()
	s.reconciler = rec
	s.mu.Unlock()
	s.logger.Info("config reloaded", "config", s.configPath)
}

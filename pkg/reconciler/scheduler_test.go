package reconciler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func schedulerFixture(t *testing.T, cron string) (*Scheduler, *Reconciler, string) {
	t.Helper()

	cfg := testConfig(t)
	cfg.Schedule.Cron = cron
	initial, _, _ := newTestReconciler(t, cfg, newFakeClient())

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("archiver: {}\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	sched := NewScheduler(configPath, initial, func() (*Reconciler, error) {
		return nil, errors.New("rebuild not configured")
	})
	return sched, initial, configPath
}

func TestScheduler_RejectsInvalidCron(t *testing.T) {
	sched, _, _ := schedulerFixture(t, "not a cron expression")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err == nil {
		t.Fatal("Start() accepted an invalid cron expression")
	}
}

func TestScheduler_RejectsDoubleStart(t *testing.T) {
	sched, _, _ := schedulerFixture(t, "0 6 * * *")

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		done <- sched.Start(ctx)
	}()
	<-started
	time.Sleep(50 * time.Millisecond)

	if err := sched.Start(ctx); err == nil {
		t.Error("second Start() did not fail")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v after cancellation", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancellation")
	}
}

func TestScheduler_ReloadSwapsReconciler(t *testing.T) {
	sched, initial, _ := schedulerFixture(t, "0 6 * * *")

	replacement, _, _ := newTestReconciler(t, testConfig(t), newFakeClient())
	sched.rebuild = func() (*Reconciler, error) { return replacement, nil }

	sched.reload()

	sched.mu.RLock()
	current := sched.reconciler
	sched.mu.RUnlock()
	if current != replacement {
		t.Error("reload() did not swap in the rebuilt reconciler")
	}
	if current == initial {
		t.Error("reload() kept the initial reconciler")
	}
}

func TestScheduler_ReloadKeepsOldOnFailure(t *testing.T) {
	sched, initial, _ := schedulerFixture(t, "0 6 * * *")

	sched.rebuild = func() (*Reconciler, error) {
		return nil, errors.New("bad config")
	}

	sched.reload()

	sched.mu.RLock()
	current := sched.reconciler
	sched.mu.RUnlock()
	if current != initial {
		t.Error("reload() replaced the reconciler despite a rebuild failure")
	}
}

package statestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func TestStore_AddLoadRemove(t *testing.T) {
	ctx := context.Background()

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			state, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if !state.Empty() {
				t.Fatalf("fresh store not empty: %v", state)
			}

			if err := store.Add(ctx, BucketProjects, "project-a1"); err != nil {
				t.Fatalf("Add() failed: %v", err)
			}
			if err := store.Add(ctx, BucketDirectories, EntryKey("project-s1", "/run_240101")); err != nil {
				t.Fatalf("Add() failed: %v", err)
			}
			// Duplicate add is a no-op.
			if err := store.Add(ctx, BucketProjects, "project-a1"); err != nil {
				t.Fatalf("duplicate Add() failed: %v", err)
			}

			state, err = store.Load(ctx)
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if got := len(state[BucketProjects]); got != 1 {
				t.Errorf("projects bucket has %d entries, want 1", got)
			}
			if got := state.Total(); got != 2 {
				t.Errorf("Total() = %d, want 2", got)
			}

			if err := store.Remove(ctx, BucketProjects, "project-a1"); err != nil {
				t.Fatalf("Remove() failed: %v", err)
			}
			// Removing again is a no-op.
			if err := store.Remove(ctx, BucketProjects, "project-a1"); err != nil {
				t.Fatalf("second Remove() failed: %v", err)
			}

			state, err = store.Load(ctx)
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if len(state[BucketProjects]) != 0 {
				t.Errorf("projects bucket not empty after remove: %v", state[BucketProjects])
			}
			if len(state[BucketDirectories]) != 1 {
				t.Errorf("directories bucket lost its entry: %v", state[BucketDirectories])
			}
		})
	}
}

func TestStore_ReplaceAndClear(t *testing.T) {
	ctx := context.Background()

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Add(ctx, BucketPrecisions, EntryKey("project-p1", "/old")); err != nil {
				t.Fatalf("Add() failed: %v", err)
			}

			entries := []string{
				EntryKey("project-p1", "/a"),
				EntryKey("project-p2", "/b"),
				EntryKey("project-p1", "/a"), // duplicate collapses
				"",                           // empty skipped
			}
			if err := store.Replace(ctx, BucketPrecisions, entries); err != nil {
				t.Fatalf("Replace() failed: %v", err)
			}

			state, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if got := len(state[BucketPrecisions]); got != 2 {
				t.Errorf("precisions bucket has %d entries, want 2: %v", got, state[BucketPrecisions])
			}

			if err := store.Clear(ctx, BucketPrecisions); err != nil {
				t.Fatalf("Clear() failed: %v", err)
			}
			state, err = store.Load(ctx)
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if !state.Empty() {
				t.Errorf("store not empty after clear: %v", state)
			}
		})
	}
}

func TestStore_RejectsUnknownBucket(t *testing.T) {
	ctx := context.Background()

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Add(ctx, Bucket("bogus"), "entry"); err == nil {
				t.Error("Add() accepted an unknown bucket")
			}
			if err := store.Replace(ctx, Bucket("bogus"), nil); err == nil {
				t.Error("Replace() accepted an unknown bucket")
			}
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "state.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	if err := store.Add(ctx, BucketProjects, "project-a1"); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	reopened, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	state, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got := state[BucketProjects]; len(got) != 1 || got[0] != "project-a1" {
		t.Errorf("reopened state = %v, want [project-a1]", got)
	}
}

func TestSQLiteStore_RecoversFromCorruptFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")
	if err := os.WriteFile(dbPath, []byte("this is not a database"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() on corrupt file failed: %v", err)
	}
	defer store.Close()

	state, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !state.Empty() {
		t.Errorf("recovered store not empty: %v", state)
	}

	if _, err := os.Stat(dbPath + ".corrupt"); err != nil {
		t.Errorf("corrupt file not preserved: %v", err)
	}
}

func TestEntryKeyRoundTrip(t *testing.T) {
	entry := EntryKey("project-s1", "/processed/run_240101")
	projectID, folder := SplitEntry(entry)
	if projectID != "project-s1" || folder != "/processed/run_240101" {
		t.Errorf("SplitEntry(%q) = (%q, %q)", entry, projectID, folder)
	}

	// Plain project entries carry no folder.
	projectID, folder = SplitEntry("project-a1")
	if projectID != "project-a1" || folder != "" {
		t.Errorf("SplitEntry(plain) = (%q, %q)", projectID, folder)
	}
}

func TestRunLog_AppendFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.txt")
	log := NewRunLog(path)

	day1 := time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC)
	day15 := time.Date(2026, 8, 15, 6, 0, 0, 0, time.UTC)

	if err := log.Append(day1, []string{"project-a1", "project-s1|/run_240101"}); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	// Empty appends write nothing, not even the header.
	if err := log.Append(day15, nil); err != nil {
		t.Fatalf("empty Append() failed: %v", err)
	}
	if err := log.Append(day15, []string{"project-b2"}); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "=== 2026-08-01 ===\nproject-a1\nproject-s1|/run_240101\n=== 2026-08-15 ===\nproject-b2\n"
	if string(data) != want {
		t.Errorf("log contents:\n%q\nwant:\n%q", data, want)
	}
}

package eligibility

import (
	"errors"
	"testing"
	"time"

	"datalab-ops/permafrost/pkg/config"
	"datalab-ops/permafrost/pkg/platform"
)

var testNow = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

func testEvaluator() *Evaluator {
	return NewEvaluator(config.ThresholdConfig{
		TierAMonths:       3,
		TierBMonths:       1,
		TierALongMonths:   6,
		TierALongSuffixes: []string{"CEN", "WES"},
		PrecisionMonths:   1,
		ModifiedMonths:    1,
	}).WithClock(func() time.Time { return testNow })
}

// monthsAgo returns a timestamp the given number of months (plus a day of
// slack) before the test clock.
func monthsAgo(months int) time.Time {
	return testNow.AddDate(0, -months, -1)
}

func liveProbe(live bool) func() (bool, error) {
	return func() (bool, error) { return live, nil }
}

func staleProject(name string, tags ...string) *platform.ProjectMeta {
	return &platform.ProjectMeta{
		ID:                "project-x1",
		Name:              name,
		Tags:              tags,
		Created:           monthsAgo(13),
		Modified:          monthsAgo(13),
		DataUsage:         10,
		ArchivedDataUsage: 2,
		CreatedBy:         "user-a",
	}
}

func TestEvaluateProject_NeverArchiveWinsOverEverything(t *testing.T) {
	e := testEvaluator()

	// never-archive beats the explicit archive tag, stale age and usage.
	meta := staleProject("002_240101_RUN", TagNeverArchive, TagArchive, TagNoArchive)

	d, err := e.EvaluateProject(meta, func() (bool, error) {
		t.Fatal("file probe called despite never-archive tag")
		return false, nil
	})
	if err != nil {
		t.Fatalf("EvaluateProject() failed: %v", err)
	}
	if d.Verdict != VerdictSkip || d.Reason != ReasonNever {
		t.Errorf("decision = %v, want skip(never)", d)
	}
}

func TestEvaluateProject_FullyArchivedSkipsWithoutEnumeration(t *testing.T) {
	e := testEvaluator()
	meta := staleProject("002_240101_RUN")
	meta.ArchivedDataUsage = meta.DataUsage

	d, err := e.EvaluateProject(meta, func() (bool, error) {
		t.Fatal("file probe called for a fully archived project")
		return false, nil
	})
	if err != nil {
		t.Fatalf("EvaluateProject() failed: %v", err)
	}
	if d.Verdict != VerdictSkip || d.Reason != ReasonAlreadyDone {
		t.Errorf("decision = %v, want skip(already-done)", d)
	}
}

func TestEvaluateProject_NoLiveFiles(t *testing.T) {
	e := testEvaluator()

	d, err := e.EvaluateProject(staleProject("002_240101_RUN"), liveProbe(false))
	if err != nil {
		t.Fatalf("EvaluateProject() failed: %v", err)
	}
	if d.Verdict != VerdictSkip || d.Reason != ReasonAlreadyDone {
		t.Errorf("decision = %v, want skip(already-done)", d)
	}
}

func TestEvaluateProject_ProbeErrorPropagates(t *testing.T) {
	e := testEvaluator()
	probeErr := errors.New("listing failed")

	_, err := e.EvaluateProject(staleProject("002_240101_RUN"), func() (bool, error) {
		return false, probeErr
	})
	if !errors.Is(err, probeErr) {
		t.Fatalf("EvaluateProject() error = %v, want %v", err, probeErr)
	}
}

func TestEvaluateProject_StaleOptOutEscalates(t *testing.T) {
	e := testEvaluator()

	// Tagged no-archive, last modified 400 days ago, well past the 3-month
	// Tier-A threshold: the opt-out is overridden.
	meta := staleProject("002_240101_RUN", TagNoArchive)
	meta.Created = testNow.AddDate(0, 0, -400)
	meta.Modified = testNow.AddDate(0, 0, -400)

	d, err := e.EvaluateProject(meta, liveProbe(true))
	if err != nil {
		t.Fatalf("EvaluateProject() failed: %v", err)
	}
	if d.Verdict != VerdictEscalate || d.Reason != ReasonStaleOptOut {
		t.Errorf("decision = %v, want escalate(stale-opt-out)", d)
	}
	if !d.ShouldArchive() {
		t.Error("escalation must still proceed to archive")
	}
}

func TestEvaluateProject_FreshOptOutRespected(t *testing.T) {
	e := testEvaluator()
	meta := staleProject("002_240101_RUN", TagNoArchive)
	meta.Modified = testNow.AddDate(0, 0, -3) // modified when tagged

	d, err := e.EvaluateProject(meta, liveProbe(true))
	if err != nil {
		t.Fatalf("EvaluateProject() failed: %v", err)
	}
	if d.Verdict != VerdictSkip || d.Reason != ReasonOptedOut {
		t.Errorf("decision = %v, want skip(opted-out)", d)
	}
}

func TestEvaluateProject_ArchiveTagBypassesAge(t *testing.T) {
	e := testEvaluator()
	meta := staleProject("002_240101_RUN", TagArchive)
	meta.Created = testNow.AddDate(0, 0, -10) // far too recent otherwise
	meta.Modified = monthsAgo(2)

	d, err := e.EvaluateProject(meta, liveProbe(true))
	if err != nil {
		t.Fatalf("EvaluateProject() failed: %v", err)
	}
	if d.Verdict != VerdictArchive || d.Reason != ReasonRequested {
		t.Errorf("decision = %v, want archive(requested)", d)
	}
}

func TestEvaluateProject_CategoryThresholds(t *testing.T) {
	e := testEvaluator()

	tests := []struct {
		name        string
		projectName string
		ageMonths   int
		want        Verdict
	}{
		{"tier A too recent", "002_240101_RUN", 2, VerdictSkip},
		{"tier A old enough", "002_240101_RUN", 4, VerdictArchive},
		{"tier B old enough", "003_analysis", 2, VerdictArchive},
		{"long suffix within long threshold", "002_240101_CEN", 4, VerdictSkip},
		{"long suffix past long threshold", "002_240101_WES", 7, VerdictArchive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := staleProject(tt.projectName)
			meta.Created = monthsAgo(tt.ageMonths)
			meta.Modified = monthsAgo(tt.ageMonths)

			d, err := e.EvaluateProject(meta, liveProbe(true))
			if err != nil {
				t.Fatalf("EvaluateProject() failed: %v", err)
			}
			if d.Verdict != tt.want {
				t.Errorf("decision = %v, want verdict %v", d, tt.want)
			}
		})
	}
}

func TestEvaluateProject_RecentlyModifiedGuard(t *testing.T) {
	e := testEvaluator()
	meta := staleProject("002_240101_RUN")
	meta.Modified = testNow.AddDate(0, 0, -3) // active last week

	d, err := e.EvaluateProject(meta, liveProbe(true))
	if err != nil {
		t.Fatalf("EvaluateProject() failed: %v", err)
	}
	if d.Verdict != VerdictSkip || d.Reason != ReasonTooRecent {
		t.Errorf("decision = %v, want skip(too-recent)", d)
	}
}

func file(state platform.ArchivalState, modified time.Time, tags ...string) platform.FileMeta {
	return platform.FileMeta{
		ID:            "file-x",
		Modified:      modified,
		Tags:          tags,
		ArchivalState: state,
	}
}

func TestEvaluateDirectory_FileLevelNeverArchiveBlocksScope(t *testing.T) {
	e := testEvaluator()
	files := []platform.FileMeta{
		file(platform.StateLive, monthsAgo(5)),
		file(platform.StateLive, monthsAgo(5), TagNeverArchive),
	}

	d := e.EvaluateDirectory(files, 3)
	if d.Verdict != VerdictSkip || d.Reason != ReasonNever {
		t.Errorf("decision = %v, want skip(never)", d)
	}
}

func TestEvaluateDirectory_AllArchived(t *testing.T) {
	e := testEvaluator()
	files := []platform.FileMeta{
		file(platform.StateArchived, monthsAgo(5)),
		file(platform.StateArchived, monthsAgo(7)),
	}

	d := e.EvaluateDirectory(files, 3)
	if d.Verdict != VerdictSkip || d.Reason != ReasonAlreadyDone {
		t.Errorf("decision = %v, want skip(already-done)", d)
	}
}

func TestEvaluateDirectory_Empty(t *testing.T) {
	e := testEvaluator()
	if d := e.EvaluateDirectory(nil, 3); d.Verdict != VerdictSkip || d.Reason != ReasonEmpty {
		t.Errorf("decision = %v, want skip(empty)", d)
	}
}

func TestEvaluateDirectory_OptOutStaleness(t *testing.T) {
	e := testEvaluator()

	stale := []platform.FileMeta{
		file(platform.StateLive, monthsAgo(5), TagNoArchive),
		file(platform.StateLive, monthsAgo(6)),
	}
	if d := e.EvaluateDirectory(stale, 3); d.Verdict != VerdictEscalate || d.Reason != ReasonStaleOptOut {
		t.Errorf("stale opt-out decision = %v, want escalate(stale-opt-out)", d)
	}

	fresh := []platform.FileMeta{
		file(platform.StateLive, monthsAgo(5), TagNoArchive),
		file(platform.StateLive, testNow.AddDate(0, 0, -5), TagNoArchive),
	}
	if d := e.EvaluateDirectory(fresh, 3); d.Verdict != VerdictSkip || d.Reason != ReasonOptedOut {
		t.Errorf("fresh opt-out decision = %v, want skip(opted-out)", d)
	}
}

func TestEvaluateDirectory_PlainArchive(t *testing.T) {
	e := testEvaluator()
	files := []platform.FileMeta{
		file(platform.StateLive, monthsAgo(5)),
		file(platform.StateArchived, monthsAgo(8)),
	}

	d := e.EvaluateDirectory(files, 3)
	if d.Verdict != VerdictArchive {
		t.Errorf("decision = %v, want archive", d)
	}
}

func TestEvaluatePrecisionFolder(t *testing.T) {
	e := testEvaluator()

	tests := []struct {
		name  string
		files []platform.FileMeta
		want  Decision
	}{
		{
			"empty folder",
			nil,
			Decision{VerdictSkip, ReasonEmpty},
		},
		{
			"all archived",
			[]platform.FileMeta{file(platform.StateArchived, monthsAgo(4))},
			Decision{VerdictSkip, ReasonAlreadyDone},
		},
		{
			"latest live file too recent",
			[]platform.FileMeta{
				file(platform.StateLive, monthsAgo(4)),
				file(platform.StateLive, testNow.AddDate(0, 0, -2)),
			},
			Decision{VerdictSkip, ReasonTooRecent},
		},
		{
			"all live files stale",
			[]platform.FileMeta{
				file(platform.StateLive, monthsAgo(4)),
				file(platform.StateLive, monthsAgo(2)),
			},
			Decision{VerdictArchive, ReasonOldEnough},
		},
		{
			"never-archive blocks folder",
			[]platform.FileMeta{
				file(platform.StateLive, monthsAgo(4), TagNeverArchive),
			},
			Decision{VerdictSkip, ReasonNever},
		},
		{
			"stale opt-out escalates",
			[]platform.FileMeta{
				file(platform.StateLive, monthsAgo(4), TagNoArchive),
			},
			Decision{VerdictEscalate, ReasonStaleOptOut},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if d := e.EvaluatePrecisionFolder(tt.files); d != tt.want {
				t.Errorf("decision = %v, want %v", d, tt.want)
			}
		})
	}
}

func TestOlderThan(t *testing.T) {
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	if !OlderThan(3, now.AddDate(0, -4, 0), now) {
		t.Error("4 months ago should be older than 3 months")
	}
	if OlderThan(3, now.AddDate(0, -2, 0), now) {
		t.Error("2 months ago should not be older than 3 months")
	}
	// Boundary: exactly the threshold is not "older than".
	if OlderThan(3, now.AddDate(0, -3, 0), now) {
		t.Error("exactly 3 months ago should not be older than 3 months")
	}
}

func TestThresholdMonths(t *testing.T) {
	e := testEvaluator()

	tests := []struct {
		name string
		want int
	}{
		{"002_240101_RUN", 3},
		{"002_240101_CEN", 6},
		{"002_240101_WES", 6},
		{"003_exploratory", 1},
		{"misc_project", 1},
	}
	for _, tt := range tests {
		if got := e.ThresholdMonths(tt.name); got != tt.want {
			t.Errorf("ThresholdMonths(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

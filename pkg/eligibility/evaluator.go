package eligibility

import (
	"strings"
	"time"

	"datalab-ops/permafrost/pkg/config"
	"datalab-ops/permafrost/pkg/platform"
)

// Project name prefixes recognized by the tier thresholds.
const (
	// PrefixTierA is the Tier-A categorical name prefix.
	PrefixTierA = "002"
	// PrefixTierB is the Tier-B categorical name prefix.
	PrefixTierB = "003"
)

// Evaluator applies the archival eligibility rules. It is immutable after
// construction and safe for concurrent use.
type Evaluator struct {
	thresholds config.ThresholdConfig
	now        func() time.Time
}

// NewEvaluator creates an evaluator over the given thresholds.
func NewEvaluator(thresholds config.ThresholdConfig) *Evaluator {
	return &Evaluator{thresholds: thresholds, now: time.Now}
}

// WithClock returns a copy of the evaluator using the given clock.
// For tests.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	return &Evaluator{thresholds: e.thresholds, now: now}
}

// OlderThan reports whether t lies more than the given number of months
// before now. "Old enough" is always evaluated against now at evaluation
// time; a resource can enter or leave eligibility between runs without any
// state transition of its own.
func OlderThan(months int, t, now time.Time) bool {
	return t.AddDate(0, months, 0).Before(now)
}

// ThresholdMonths returns the inactivity threshold applicable to a project
// name: Tier-A, the long Tier-A sub-category selected by name suffix, or
// Tier-B. Unrecognized prefixes fall back to the Tier-B threshold.
func (e *Evaluator) ThresholdMonths(projectName string) int {
	if strings.HasPrefix(projectName, PrefixTierA) {
		for _, suffix := range e.thresholds.TierALongSuffixes {
			if strings.HasSuffix(projectName, suffix) {
				return e.thresholds.TierALongMonths
			}
		}
		return e.thresholds.TierAMonths
	}
	return e.thresholds.TierBMonths
}

// projectOldEnough applies both age gates: created before the category
// threshold and not modified within the modified-guard window.
func (e *Evaluator) projectOldEnough(meta *platform.ProjectMeta) bool {
	now := e.now()
	return OlderThan(e.ThresholdMonths(meta.Name), meta.Created, now) &&
		OlderThan(e.thresholds.ModifiedMonths, meta.Modified, now)
}

// EvaluateProject decides whether a project is archivable.
//
// hasLive is only consulted when the usage counters cannot settle the
// question, so fully archived projects never trigger a file enumeration.
// The probe's error aborts the decision.
func (e *Evaluator) EvaluateProject(meta *platform.ProjectMeta, hasLive func() (bool, error)) (Decision, error) {
	if meta.HasTag(TagNeverArchive) {
		return skip(ReasonNever), nil
	}

	if meta.FullyArchived() {
		return skip(ReasonAlreadyDone), nil
	}
	live, err := hasLive()
	if err != nil {
		return Decision{}, err
	}
	if !live {
		return skip(ReasonAlreadyDone), nil
	}

	oldEnough := e.projectOldEnough(meta)

	if meta.HasTag(TagNoArchive) {
		if !oldEnough {
			return skip(ReasonOptedOut), nil
		}
		return escalate(ReasonStaleOptOut), nil
	}

	if meta.HasTag(TagArchive) {
		return archive(ReasonRequested), nil
	}

	if oldEnough {
		return archive(ReasonOldEnough), nil
	}
	return skip(ReasonTooRecent), nil
}

// EvaluateDirectory decides whether a staging directory is archivable.
//
// The directory inherits the threshold of the project it is named after;
// the caller resolves that project and passes its threshold. Directories
// whose parent project is missing or too recent never reach this function.
// A never-archive tag on any file blocks the whole directory.
func (e *Evaluator) EvaluateDirectory(files []platform.FileMeta, thresholdMonths int) Decision {
	if len(files) == 0 {
		return skip(ReasonEmpty)
	}

	live := false
	var optOuts []platform.FileMeta
	for i := range files {
		f := &files[i]
		if f.HasTag(TagNeverArchive) {
			return skip(ReasonNever)
		}
		if f.ArchivalState == platform.StateLive {
			live = true
		}
		if f.HasTag(TagNoArchive) {
			optOuts = append(optOuts, *f)
		}
	}

	if !live {
		return skip(ReasonAlreadyDone)
	}

	if len(optOuts) > 0 {
		// Tagging a file bumps its modified time, so tagged files all older
		// than the threshold mean the opt-out has sat unused long enough to
		// be overridden.
		now := e.now()
		for i := range optOuts {
			if !OlderThan(thresholdMonths, optOuts[i].Modified, now) {
				return skip(ReasonOptedOut)
			}
		}
		return escalate(ReasonStaleOptOut)
	}

	return archive(ReasonOldEnough)
}

// EvaluatePrecisionFolder decides whether a folder inside a precision
// project is archivable: its live files must all have been untouched for
// the precision threshold.
func (e *Evaluator) EvaluatePrecisionFolder(files []platform.FileMeta) Decision {
	if len(files) == 0 {
		return skip(ReasonEmpty)
	}

	now := e.now()
	live := false
	latestLiveModified := time.Time{}
	var optOuts []platform.FileMeta
	for i := range files {
		f := &files[i]
		if f.HasTag(TagNeverArchive) {
			return skip(ReasonNever)
		}
		if f.HasTag(TagNoArchive) {
			optOuts = append(optOuts, *f)
		}
		if f.ArchivalState == platform.StateLive {
			live = true
			if f.Modified.After(latestLiveModified) {
				latestLiveModified = f.Modified
			}
		}
	}

	if !live {
		return skip(ReasonAlreadyDone)
	}

	oldEnough := OlderThan(e.thresholds.PrecisionMonths, latestLiveModified, now)

	if len(optOuts) > 0 {
		if !oldEnough {
			return skip(ReasonOptedOut)
		}
		return escalate(ReasonStaleOptOut)
	}

	if oldEnough {
		return archive(ReasonOldEnough)
	}
	return skip(ReasonTooRecent)
}

// OptOutFiles returns the files in scope carrying the no-archive tag; the
// reconciler strips the tag from each of these when a directory or folder
// escalates.
func OptOutFiles(files []platform.FileMeta) []platform.FileMeta {
	var out []platform.FileMeta
	for i := range files {
		if files[i].HasTag(TagNoArchive) {
			out = append(out, files[i])
		}
	}
	return out
}

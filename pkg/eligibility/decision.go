// Package eligibility decides whether a resource is archivable.
//
// The engine is pure predicate logic over validated platform metadata; it
// performs no remote calls and mutates nothing. The reconciler acts on its
// decisions (removing overridden tags, queueing archival, raising special
// notices).
package eligibility

import "fmt"

// Sentinel tags recognized on projects and files. Tag matching is exact on
// the lowercase form; the gateway normalizes case at its boundary.
const (
	// TagNeverArchive permanently excludes a resource from archival.
	// This is final: it wins over every other tag, including TagArchive.
	TagNeverArchive = "never-archive"

	// TagNoArchive excludes a resource from archival until the resource is
	// provably stale, at which point the tag is forcibly removed and the
	// resource escalated for visibility.
	TagNoArchive = "no-archive"

	// TagArchive requests archival regardless of age.
	TagArchive = "archive"
)

// Status tags maintained by the post-commit tagging sweep.
const (
	// TagFullyArchived marks a project whose files are all archived.
	TagFullyArchived = "fully archived"

	// TagPartialArchived marks a project with both live and archived files.
	TagPartialArchived = "partial archived"
)

// Verdict is the outcome class of an eligibility decision.
type Verdict int

const (
	// VerdictSkip excludes the resource from this run.
	VerdictSkip Verdict = iota

	// VerdictArchive queues the resource for archival.
	VerdictArchive

	// VerdictEscalate queues the resource for archival and additionally
	// raises a special notice: its opt-out tag was overridden due to
	// proven staleness.
	VerdictEscalate
)

// String implements fmt.Stringer.
func (v Verdict) String() string {
	switch v {
	case VerdictSkip:
		return "skip"
	case VerdictArchive:
		return "archive"
	case VerdictEscalate:
		return "escalate"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Reason explains a decision. Reasons are a closed enum so a typo cannot
// silently create an unreported category downstream.
type Reason string

const (
	// ReasonNever: the never-archive sentinel is present somewhere in scope.
	ReasonNever Reason = "never"

	// ReasonAlreadyDone: nothing live remains to archive.
	ReasonAlreadyDone Reason = "already-done"

	// ReasonOptedOut: a no-archive tag is present and the resource is not
	// yet stale enough to override it.
	ReasonOptedOut Reason = "opted-out"

	// ReasonStaleOptOut: a no-archive tag was present but the resource is
	// provably stale; the tag is to be removed and the resource archived.
	ReasonStaleOptOut Reason = "stale-opt-out"

	// ReasonTooRecent: the resource has been active within its threshold.
	ReasonTooRecent Reason = "too-recent"

	// ReasonEmpty: the scope contains no files at all.
	ReasonEmpty Reason = "empty"

	// ReasonRequested: an explicit archive tag bypassed the age check.
	ReasonRequested Reason = "requested"

	// ReasonOldEnough: the inactivity threshold was exceeded.
	ReasonOldEnough Reason = "old-enough"
)

// Decision is the result of evaluating one resource.
type Decision struct {
	Verdict Verdict
	Reason  Reason
}

// ShouldArchive reports whether the decision queues the resource for
// archival (escalations archive too).
func (d Decision) ShouldArchive() bool {
	return d.Verdict == VerdictArchive || d.Verdict == VerdictEscalate
}

// String implements fmt.Stringer.
func (d Decision) String() string {
	return fmt.Sprintf("%s(%s)", d.Verdict, d.Reason)
}

func skip(r Reason) Decision     { return Decision{Verdict: VerdictSkip, Reason: r} }
func archive(r Reason) Decision  { return Decision{Verdict: VerdictArchive, Reason: r} }
func escalate(r Reason) Decision { return Decision{Verdict: VerdictEscalate, Reason: r} }

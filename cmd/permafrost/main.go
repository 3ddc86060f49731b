// Permafrost is an archival eligibility and lifecycle reconciliation engine
// for platform storage projects.
//
// It sweeps projects, staging directories and precision folders on a fixed
// cadence, marks what has gone inactive, notifies owners with a grace window,
// and commits the archival on the following run after re-validating every
// pending entry.
//
// Usage:
//
//	# Execute one reconciliation pass for today
//	permafrost run
//
//	# Replay a pass as if it were another date
//	permafrost run --date 2026-09-01
//
//	# Rehearse without archiving or tagging anything
//	permafrost run --dry-run
//
//	# Run on a schedule with a /metrics endpoint
//	permafrost daemon
//
//	# Inspect what is pending for the next commit
//	permafrost status
//
//	# Show version information
//	permafrost version
package main

func main() {
	Execute()
}

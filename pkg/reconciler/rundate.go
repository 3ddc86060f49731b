package reconciler

import "time"

// IsRunDate reports whether today's day-of-month is one of the configured
// run days.
func IsRunDate(today time.Time, runDays []int) bool {
	for _, day := range runDays {
		if today.Day() == day {
			return true
		}
	}
	return false
}

// NextRunDate returns the next calendar date whose day-of-month is one of
// the run days, strictly after today. With the default run days a run on
// the 1st advertises the 15th of the same month, and any day on or after
// the 15th advertises the 1st of the next month.
func NextRunDate(today time.Time, runDays []int) time.Time {
	next := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	for {
		next = next.AddDate(0, 0, 1)
		if IsRunDate(next, runDays) {
			return next
		}
	}
}

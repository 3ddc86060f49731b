package reconciler

import (
	"testing"
	"time"
)

var defaultRunDays = []int{1, 15}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextRunDate(t *testing.T) {
	tests := []struct {
		name  string
		today time.Time
		want  time.Time
	}{
		{"first run day points at mid-month", date(2026, 8, 1), date(2026, 8, 15)},
		{"mid-month run day points at next month", date(2026, 8, 15), date(2026, 9, 1)},
		{"between run days", date(2026, 8, 10), date(2026, 8, 15)},
		{"after mid-month", date(2026, 8, 20), date(2026, 9, 1)},
		{"year rollover", date(2026, 12, 16), date(2027, 1, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextRunDate(tt.today, defaultRunDays)
			if !got.Equal(tt.want) {
				t.Errorf("NextRunDate(%v) = %v, want %v", tt.today, got, tt.want)
			}
			if !got.After(tt.today) {
				t.Errorf("NextRunDate(%v) = %v is not strictly later", tt.today, got)
			}
		})
	}
}

func TestIsRunDate(t *testing.T) {
	if !IsRunDate(date(2026, 8, 1), defaultRunDays) || !IsRunDate(date(2026, 8, 15), defaultRunDays) {
		t.Error("run days not recognized")
	}
	if IsRunDate(date(2026, 8, 2), defaultRunDays) {
		t.Error("the 2nd is not a run day")
	}
}

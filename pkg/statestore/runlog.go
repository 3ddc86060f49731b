package statestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RunLog appends dated blocks of text lines to a plain file. The archived
// and failed-archive logs use it: each run that has anything to report adds
// a date header followed by one line per resource, and the file is never
// truncated.
type RunLog struct {
	path string
	mu   sync.Mutex
}

// NewRunLog creates a log writer for the given path. The file is created on
// first append.
func NewRunLog(path string) *RunLog {
	return &RunLog{path: path}
}

// Path returns the log file path.
func (l *RunLog) Path() string { return l.path }

// Append writes a date header followed by the given lines. Appending no
// lines writes nothing, so untouched logs stay free of empty headers.
func (l *RunLog) Append(date time.Time, lines []string) error {
	if len(lines) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log %s: %w", l.path, err)
	}
	defer f.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "=== %s ===\n", date.Format("2006-01-02"))
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to append to log %s: %w", l.path, err)
	}
	return nil
}

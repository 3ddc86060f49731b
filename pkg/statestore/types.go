// Package statestore persists the pending archival buckets between runs.
//
// Resources found eligible during the mark phase are recorded here and
// committed on the next run date. The store survives process restarts so a
// mark made two weeks ago is still honored.
package statestore

import (
	"context"
	"strings"
)

// Bucket names one category of pending resources. The values double as the
// on-disk bucket identifiers and must not change between releases.
type Bucket string

const (
	// BucketProjects holds project IDs marked for whole-project archival.
	BucketProjects Bucket = "to_be_archived"
	// BucketDirectories holds staging directory entries.
	BucketDirectories Bucket = "staging_area"
	// BucketPrecisions holds precision folder entries.
	BucketPrecisions Bucket = "precisions"
)

// AllBuckets lists every bucket in a stable order.
func AllBuckets() []Bucket {
	return []Bucket{BucketProjects, BucketDirectories, BucketPrecisions}
}

// Valid reports whether b is a known bucket.
func (b Bucket) Valid() bool {
	switch b {
	case BucketProjects, BucketDirectories, BucketPrecisions:
		return true
	}
	return false
}

// State is an in-memory snapshot of all pending buckets. Buckets with no
// entries may be absent from the map.
type State map[Bucket][]string

// Empty reports whether no bucket holds any entry.
func (s State) Empty() bool {
	for _, entries := range s {
		if len(entries) > 0 {
			return false
		}
	}
	return true
}

// Total returns the number of entries across all buckets.
func (s State) Total() int {
	n := 0
	for _, entries := range s {
		n += len(entries)
	}
	return n
}

// entrySep joins a project ID and a folder path into one composite entry.
// Folder paths never contain it.
const entrySep = "|"

// EntryKey builds the composite bucket entry for a folder within a project.
func EntryKey(projectID, folder string) string {
	return projectID + entrySep + folder
}

// SplitEntry splits a composite entry back into project ID and folder. For
// plain project entries the folder is empty.
func SplitEntry(entry string) (projectID, folder string) {
	projectID, folder, _ = strings.Cut(entry, entrySep)
	return projectID, folder
}

// Store is the durable bucket store. Implementations must tolerate
// duplicate adds and removes of absent entries.
type Store interface {
	// Load returns a snapshot of all buckets. A store with no prior state
	// returns an empty State, not an error.
	Load(ctx context.Context) (State, error)

	// Add records an entry in a bucket. Adding an entry already present is
	// a no-op.
	Add(ctx context.Context, bucket Bucket, entry string) error

	// Remove deletes an entry from a bucket. Removing an absent entry is a
	// no-op.
	Remove(ctx context.Context, bucket Bucket, entry string) error

	// Replace swaps a bucket's contents for the given entries.
	Replace(ctx context.Context, bucket Bucket, entries []string) error

	// Clear empties a bucket.
	Clear(ctx context.Context, bucket Bucket) error

	// Close releases the store's resources.
	Close() error
}

// Package platform is the adapter boundary to the remote storage platform.
//
// The core packages only ever see the validated, typed records defined
// here; parsing the platform's describe blobs happens inside this package.
package platform

import (
	"context"
	"strings"
	"time"
)

// ArchivalState is the archival state of a single file.
type ArchivalState string

const (
	// StateLive marks a file that occupies live (billable, hot) storage.
	StateLive ArchivalState = "live"
	// StateArchived marks a file already moved to cold storage.
	StateArchived ArchivalState = "archived"
	// StateArchival marks a file with an archive request in flight.
	StateArchival ArchivalState = "archival"
)

// ProjectMeta is validated project metadata from a describe call.
type ProjectMeta struct {
	ID                string
	Name              string
	Tags              []string
	Created           time.Time
	Modified          time.Time
	DataUsage         float64
	ArchivedDataUsage float64
	CreatedBy         string
}

// FullyArchived reports whether every byte of the project is already in
// cold storage, which short-circuits file-level inspection.
func (p *ProjectMeta) FullyArchived() bool {
	return p.DataUsage == p.ArchivedDataUsage
}

// HasTag reports whether the project carries the given tag. Tags are
// normalized to lowercase at the gateway boundary.
func (p *ProjectMeta) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// TrimmedID returns the ID without its class prefix, for building URLs.
func (p *ProjectMeta) TrimmedID() string {
	return TrimProjectID(p.ID)
}

// TrimProjectID strips the class prefix from a project ID.
func TrimProjectID(id string) string {
	return strings.TrimPrefix(id, "project-")
}

// FileMeta is validated file metadata from a find or describe call.
type FileMeta struct {
	ID            string
	Name          string
	Folder        string
	Modified      time.Time
	Tags          []string
	ArchivalState ArchivalState
}

// HasTag reports whether the file carries the given tag.
func (f *FileMeta) HasTag(tag string) bool {
	for _, t := range f.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// FileFilter narrows a FindFiles enumeration. Zero values mean "no
// constraint" for every field.
type FileFilter struct {
	// NamePattern is a regular expression matched against file names.
	NamePattern string
	// Tag requires the given tag on every returned file.
	Tag string
	// Folder restricts the search to one folder subtree.
	Folder string
	// ModifiedAfter / ModifiedBefore bound the modification time.
	ModifiedAfter  time.Time
	ModifiedBefore time.Time
	// State restricts results to one archival state.
	State ArchivalState
	// Limit caps the number of results; 0 means unbounded.
	Limit int
}

// ArchiveResult reports the outcome of a bulk archive trigger.
type ArchiveResult struct {
	// Count is the number of files the platform accepted for archival.
	Count int
}

// Client is the gateway to the remote storage platform. Implementations
// must be safe for concurrent use: the bulk executor fans calls out from
// many goroutines.
type Client interface {
	// WhoAmI verifies authentication. An AuthError from here is fatal for
	// the whole run.
	WhoAmI(ctx context.Context) (string, error)

	// FindProjects enumerates projects whose names start with prefix,
	// billed to the configured org, with full describe metadata.
	FindProjects(ctx context.Context, prefix string) ([]ProjectMeta, error)

	// Describe fetches current metadata for one project.
	Describe(ctx context.Context, projectID string) (*ProjectMeta, error)

	// FindFiles enumerates files in a project subject to the filter.
	FindFiles(ctx context.Context, projectID string, filter FileFilter) ([]FileMeta, error)

	// ListFolders lists the immediate sub-folders of path in a project.
	ListFolders(ctx context.Context, projectID, path string) ([]string, error)

	// AddProjectTags adds tags to a project.
	AddProjectTags(ctx context.Context, projectID string, tags []string) error

	// RemoveProjectTags removes tags from a project.
	RemoveProjectTags(ctx context.Context, projectID string, tags []string) error

	// RemoveFileTags removes tags from a file within a project.
	RemoveFileTags(ctx context.Context, fileID, projectID string, tags []string) error

	// ArchiveScope triggers archival of every file under folder in the
	// project ("/" for the whole project). May fail wholesale, in which
	// case the caller falls back to per-file ArchiveFile calls.
	ArchiveScope(ctx context.Context, projectID, folder string) (*ArchiveResult, error)

	// ArchiveFile triggers archival of a single file.
	ArchiveFile(ctx context.Context, fileID, projectID string) error
}

// NormalizeTags lowercases and trims a tag list. Platform tags are
// case-insensitive for our purposes; normalizing once at the boundary keeps
// the predicates simple.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if trimmed := strings.TrimSpace(strings.ToLower(t)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

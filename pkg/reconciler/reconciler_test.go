package reconciler

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"datalab-ops/permafrost/pkg/config"
	"datalab-ops/permafrost/pkg/notify"
	"datalab-ops/permafrost/pkg/platform"
)

// fakeClient is an in-memory platform double that records every
// destructive call.
type fakeClient struct {
	mu       sync.Mutex
	whoAmIrr error
	projects map[string]*platform.ProjectMeta
	files    map[string][]platform.FileMeta // keyed by project ID
	folders  map[string]map[string][]string // project ID -> path -> folders

	archiveScopeErr   map[string]error // "projectID|folder"
	archiveFileErr    map[string]error // file ID
	removeFileTagsErr map[string]error // file ID

	// findFilesDelay stretches every FindFiles call so concurrent callers
	// overlap; the peak counter records how many ran at once.
	findFilesDelay    time.Duration
	findFilesInFlight int
	findFilesPeak     int

	archivedScopes  []string
	archivedFiles   []string
	removedProjTags map[string][]string
	addedProjTags   map[string][]string
	removedFileTags []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		projects:          make(map[string]*platform.ProjectMeta),
		files:             make(map[string][]platform.FileMeta),
		folders:           make(map[string]map[string][]string),
		archiveScopeErr:   make(map[string]error),
		archiveFileErr:    make(map[string]error),
		removeFileTagsErr: make(map[string]error),
		removedProjTags:   make(map[string][]string),
		addedProjTags:     make(map[string][]string),
	}
}

func (c *fakeClient) WhoAmI(context.Context) (string, error) {
	if c.whoAmIrr != nil {
		return "", c.whoAmIrr
	}
	return "user-robot", nil
}

func (c *fakeClient) FindProjects(_ context.Context, prefix string) ([]platform.ProjectMeta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []platform.ProjectMeta
	for _, p := range c.projects {
		if strings.HasPrefix(p.Name, prefix) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (c *fakeClient) Describe(_ context.Context, projectID string) (*platform.ProjectMeta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.projects[projectID]
	if !ok {
		return nil, &platform.NotFoundError{ResourceID: projectID}
	}
	meta := *p
	return &meta, nil
}

func (c *fakeClient) FindFiles(_ context.Context, projectID string, filter platform.FileFilter) ([]platform.FileMeta, error) {
	c.mu.Lock()
	c.findFilesInFlight++
	if c.findFilesInFlight > c.findFilesPeak {
		c.findFilesPeak = c.findFilesInFlight
	}
	delay := c.findFilesDelay
	c.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	c.mu.Lock()
	defer func() {
		c.findFilesInFlight--
		c.mu.Unlock()
	}()

	var re *regexp.Regexp
	if filter.NamePattern != "" {
		re = regexp.MustCompile(filter.NamePattern)
	}

	var out []platform.FileMeta
	for _, f := range c.files[projectID] {
		if filter.Folder != "" && !strings.HasPrefix(f.Folder, filter.Folder) {
			continue
		}
		if re != nil && !re.MatchString(f.Name) {
			continue
		}
		if filter.Tag != "" && !f.HasTag(filter.Tag) {
			continue
		}
		if filter.State != "" && f.ArchivalState != filter.State {
			continue
		}
		if !filter.ModifiedAfter.IsZero() && !f.Modified.After(filter.ModifiedAfter) {
			continue
		}
		if !filter.ModifiedBefore.IsZero() && !f.Modified.Before(filter.ModifiedBefore) {
			continue
		}
		out = append(out, f)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (c *fakeClient) ListFolders(_ context.Context, projectID, path string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byPath, ok := c.folders[projectID]
	if !ok {
		return nil, &platform.NotFoundError{ResourceID: projectID}
	}
	return byPath[path], nil
}

func (c *fakeClient) AddProjectTags(_ context.Context, projectID string, tags []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addedProjTags[projectID] = append(c.addedProjTags[projectID], tags...)
	return nil
}

func (c *fakeClient) RemoveProjectTags(_ context.Context, projectID string, tags []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removedProjTags[projectID] = append(c.removedProjTags[projectID], tags...)
	return nil
}

func (c *fakeClient) RemoveFileTags(_ context.Context, fileID, _ string, _ []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.removeFileTagsErr[fileID]; err != nil {
		return err
	}
	c.removedFileTags = append(c.removedFileTags, fileID)
	return nil
}

func (c *fakeClient) ArchiveScope(_ context.Context, projectID, folder string) (*platform.ArchiveResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.archiveScopeErr[projectID+"|"+folder]; err != nil {
		return nil, err
	}
	c.archivedScopes = append(c.archivedScopes, projectID+"|"+folder)

	count := 0
	for i, f := range c.files[projectID] {
		if folder != "/" && !strings.HasPrefix(f.Folder, folder) {
			continue
		}
		if f.ArchivalState == platform.StateLive {
			c.files[projectID][i].ArchivalState = platform.StateArchived
			count++
		}
	}
	return &platform.ArchiveResult{Count: count}, nil
}

func (c *fakeClient) ArchiveFile(_ context.Context, fileID, projectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.archiveFileErr[fileID]; err != nil {
		return err
	}
	c.archivedFiles = append(c.archivedFiles, fileID)
	for i, f := range c.files[projectID] {
		if f.ID == fileID {
			c.files[projectID][i].ArchivalState = platform.StateArchived
		}
	}
	return nil
}

// fakeNotifier records every delivery. Digests whose pretext contains
// digestErrOn are refused instead.
type fakeNotifier struct {
	mu          sync.Mutex
	digestErrOn string
	messages    []string
	digests     []notify.Digest
	snippets    []string
}

func (n *fakeNotifier) PostMessage(_ context.Context, channel, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, channel+": "+text)
	return nil
}

func (n *fakeNotifier) PostDigest(_ context.Context, _ string, digest notify.Digest) error {
	if digest.Empty() {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.digestErrOn != "" && strings.Contains(digest.Pretext, n.digestErrOn) {
		return errors.New("channel_not_found")
	}
	n.digests = append(n.digests, digest)
	return nil
}

func (n *fakeNotifier) UploadSnippet(_ context.Context, _, pretext, _ string, _ []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.snippets = append(n.snippets, pretext)
	return nil
}

func (n *fakeNotifier) digestWithPretext(substr string) *notify.Digest {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.digests {
		if strings.Contains(n.digests[i].Pretext, substr) {
			return &n.digests[i]
		}
	}
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Platform.Token = "token"
	cfg.Platform.Org = "org-lab"
	cfg.Platform.StagingProjectID = "project-staging"
	cfg.Platform.URLPrefix = "" // bare names in digests
	cfg.Notify.Token = "xoxb-test"
	cfg.Archiver.Workers = 4
	cfg.Archiver.StateDBPath = filepath.Join(dir, "state.db")
	cfg.Archiver.ArchivedLogPath = filepath.Join(dir, "archived.txt")
	cfg.Archiver.FailedLogPath = filepath.Join(dir, "failed.txt")
	return cfg
}

// staleTime is old enough for every configured threshold.
func staleTime(today time.Time) time.Time { return today.AddDate(0, -13, 0) }

func newProject(id, name, owner string, created, modified time.Time, tags ...string) *platform.ProjectMeta {
	return &platform.ProjectMeta{
		ID:                id,
		Name:              name,
		Tags:              tags,
		Created:           created,
		Modified:          modified,
		DataUsage:         100,
		ArchivedDataUsage: 0,
		CreatedBy:         owner,
	}
}

func liveFile(id, folder string, modified time.Time, tags ...string) platform.FileMeta {
	return platform.FileMeta{
		ID:            id,
		Name:          id + ".dat",
		Folder:        folder,
		Modified:      modified,
		Tags:          tags,
		ArchivalState: platform.StateLive,
	}
}

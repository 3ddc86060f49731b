package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// CallRecorder receives one observation per remote call. Satisfied by the
// metrics collector; a nil collector records nothing.
type CallRecorder interface {
	RecordRemoteCall(operation, status string)
}

// HTTPClientConfig configures the HTTP gateway client.
type HTTPClientConfig struct {
	// BaseURL is the platform API endpoint, without a trailing slash.
	BaseURL string

	// Token is the bearer token for every call.
	Token string

	// Org restricts project enumeration to one billing org.
	Org string

	// Timeout bounds each individual HTTP request.
	// Default: 60s
	Timeout time.Duration

	// MaxRetries is the number of additional attempts for transient
	// failures (network errors and 5xx responses). Zero means the default
	// of 3; a negative value disables retries entirely.
	MaxRetries int

	// Recorder receives per-call observations. Optional.
	Recorder CallRecorder
}

// HTTPClient implements Client against the platform's JSON API.
// It retries transient failures with exponential backoff; 4xx responses
// are mapped to the typed errors in this package and never retried.
type HTTPClient struct {
	config HTTPClientConfig
	client *http.Client
	logger *slog.Logger
}

// NewHTTPClient creates a gateway client with connection pooling.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	transport := &http.Transport{
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 64,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &HTTPClient{
		config: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger: slog.Default().With("component", "platform.client"),
	}
}

// epochMillis is the platform's wire representation of timestamps.
type epochMillis int64

// Time converts the platform epoch to time.Time.
func (e epochMillis) Time() time.Time {
	return time.UnixMilli(int64(e))
}

// projectDescribe is the raw describe blob for a project.
type projectDescribe struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Tags              []string    `json:"tags"`
	Created           epochMillis `json:"created"`
	Modified          epochMillis `json:"modified"`
	DataUsage         float64     `json:"dataUsage"`
	ArchivedDataUsage float64     `json:"archivedDataUsage"`
	CreatedBy         struct {
		User string `json:"user"`
	} `json:"createdBy"`
}

// toMeta validates a raw describe blob into a ProjectMeta.
func (d *projectDescribe) toMeta() ProjectMeta {
	return ProjectMeta{
		ID:                d.ID,
		Name:              d.Name,
		Tags:              NormalizeTags(d.Tags),
		Created:           d.Created.Time(),
		Modified:          d.Modified.Time(),
		DataUsage:         d.DataUsage,
		ArchivedDataUsage: d.ArchivedDataUsage,
		CreatedBy:         d.CreatedBy.User,
	}
}

// fileDescribe is the raw describe blob for a file.
type fileDescribe struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Folder        string      `json:"folder"`
	Modified      epochMillis `json:"modified"`
	Tags          []string    `json:"tags"`
	ArchivalState string      `json:"archivalState"`
}

// toMeta validates a raw file blob into a FileMeta.
func (d *fileDescribe) toMeta() FileMeta {
	return FileMeta{
		ID:            d.ID,
		Name:          d.Name,
		Folder:        d.Folder,
		Modified:      d.Modified.Time(),
		Tags:          NormalizeTags(d.Tags),
		ArchivalState: ArchivalState(d.ArchivalState),
	}
}

// WhoAmI verifies authentication and returns the caller's user ID.
func (c *HTTPClient) WhoAmI(ctx context.Context) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, "whoami", "/system/whoami", struct{}{}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// FindProjects enumerates projects with the given name prefix.
func (c *HTTPClient) FindProjects(ctx context.Context, prefix string) ([]ProjectMeta, error) {
	req := map[string]any{
		"name":     fmt.Sprintf("^%s.*", prefix),
		"nameMode": "regexp",
		"billTo":   c.config.Org,
		"describe": map[string]any{
			"fields": map[string]bool{
				"name": true, "tags": true, "created": true, "modified": true,
				"dataUsage": true, "archivedDataUsage": true, "createdBy": true,
			},
		},
	}

	var resp struct {
		Results []struct {
			ID       string          `json:"id"`
			Describe projectDescribe `json:"describe"`
		} `json:"results"`
	}
	if err := c.call(ctx, "find_projects", "/system/findProjects", req, &resp); err != nil {
		return nil, err
	}

	out := make([]ProjectMeta, 0, len(resp.Results))
	for _, r := range resp.Results {
		meta := r.Describe.toMeta()
		meta.ID = r.ID
		out = append(out, meta)
	}
	return out, nil
}

// Describe fetches current metadata for one project.
func (c *HTTPClient) Describe(ctx context.Context, projectID string) (*ProjectMeta, error) {
	var resp projectDescribe
	err := c.call(ctx, "describe", "/"+projectID+"/describe", struct{}{}, &resp)
	if err != nil {
		return nil, tagResource(err, projectID)
	}
	meta := resp.toMeta()
	if meta.ID == "" {
		meta.ID = projectID
	}
	return &meta, nil
}

// FindFiles enumerates files in a project subject to the filter.
func (c *HTTPClient) FindFiles(ctx context.Context, projectID string, filter FileFilter) ([]FileMeta, error) {
	req := map[string]any{
		"class": "file",
		"scope": map[string]any{
			"project": projectID,
		},
		"describe": map[string]any{
			"fields": map[string]bool{
				"name": true, "folder": true, "modified": true,
				"tags": true, "archivalState": true,
			},
		},
	}
	scope := req["scope"].(map[string]any)
	if filter.Folder != "" {
		scope["folder"] = filter.Folder
		scope["recurse"] = true
	}
	if filter.NamePattern != "" {
		req["name"] = filter.NamePattern
		req["nameMode"] = "regexp"
	}
	if filter.Tag != "" {
		req["tags"] = []string{filter.Tag}
	}
	if !filter.ModifiedAfter.IsZero() {
		req["modifiedAfter"] = filter.ModifiedAfter.UnixMilli()
	}
	if !filter.ModifiedBefore.IsZero() {
		req["modifiedBefore"] = filter.ModifiedBefore.UnixMilli()
	}
	if filter.State != "" {
		req["archivalState"] = string(filter.State)
	}
	if filter.Limit > 0 {
		req["limit"] = filter.Limit
	}

	var resp struct {
		Results []struct {
			ID       string       `json:"id"`
			Describe fileDescribe `json:"describe"`
		} `json:"results"`
	}
	if err := c.call(ctx, "find_files", "/system/findDataObjects", req, &resp); err != nil {
		return nil, tagResource(err, projectID)
	}

	out := make([]FileMeta, 0, len(resp.Results))
	for _, r := range resp.Results {
		meta := r.Describe.toMeta()
		meta.ID = r.ID
		out = append(out, meta)
	}
	return out, nil
}

// ListFolders lists the immediate sub-folders of path in a project.
func (c *HTTPClient) ListFolders(ctx context.Context, projectID, path string) ([]string, error) {
	req := map[string]any{
		"folder": path,
		"only":   "folders",
	}
	var resp struct {
		Folders []string `json:"folders"`
	}
	if err := c.call(ctx, "list_folders", "/"+projectID+"/listFolder", req, &resp); err != nil {
		return nil, tagResource(err, projectID)
	}
	return resp.Folders, nil
}

// AddProjectTags adds tags to a project.
func (c *HTTPClient) AddProjectTags(ctx context.Context, projectID string, tags []string) error {
	req := map[string]any{"tags": tags}
	err := c.call(ctx, "add_tags", "/"+projectID+"/addTags", req, nil)
	return tagResource(err, projectID)
}

// RemoveProjectTags removes tags from a project.
func (c *HTTPClient) RemoveProjectTags(ctx context.Context, projectID string, tags []string) error {
	req := map[string]any{"tags": tags}
	err := c.call(ctx, "remove_tags", "/"+projectID+"/removeTags", req, nil)
	return tagResource(err, projectID)
}

// RemoveFileTags removes tags from a file within a project.
func (c *HTTPClient) RemoveFileTags(ctx context.Context, fileID, projectID string, tags []string) error {
	req := map[string]any{"tags": tags, "project": projectID}
	err := c.call(ctx, "remove_tags", "/"+fileID+"/removeTags", req, nil)
	return tagResource(err, fileID)
}

// ArchiveScope triggers archival of everything under folder in the project.
func (c *HTTPClient) ArchiveScope(ctx context.Context, projectID, folder string) (*ArchiveResult, error) {
	req := map[string]any{"folder": folder}
	var resp ArchiveResult
	if err := c.call(ctx, "archive_scope", "/"+projectID+"/archive", req, &resp); err != nil {
		return nil, tagResource(err, projectID)
	}
	return &resp, nil
}

// ArchiveFile triggers archival of a single file.
func (c *HTTPClient) ArchiveFile(ctx context.Context, fileID, projectID string) error {
	req := map[string]any{"project": projectID}
	err := c.call(ctx, "archive", "/"+fileID+"/archive", req, nil)
	return tagResource(err, fileID)
}

// call performs one JSON POST with retry on transient failures.
func (c *HTTPClient) call(ctx context.Context, operation, path string, reqBody, respBody any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			c.logger.Debug("retrying platform call",
				"operation", operation,
				"attempt", attempt,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			c.record(operation, "network_error")
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("platform call failed, will retry",
				"operation", operation,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			defer resp.Body.Close()
			c.record(operation, "ok")
			if respBody == nil {
				io.Copy(io.Discard, resp.Body)
				return nil
			}
			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return &PlatformError{Message: "failed to read response", Cause: err}
			}
			if len(data) > 0 {
				if err := json.Unmarshal(data, respBody); err != nil {
					return &PlatformError{Message: "failed to decode response", Cause: err}
				}
			}
			return nil
		}

		errorBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusUnauthorized:
			c.record(operation, "auth_error")
			return &AuthError{Message: string(errorBody)}
		case http.StatusForbidden:
			c.record(operation, "permission_denied")
			return &PermissionError{Message: string(errorBody)}
		case http.StatusNotFound:
			c.record(operation, "not_found")
			return &NotFoundError{}
		case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusConflict:
			c.record(operation, "invalid_input")
			return &InvalidInputError{Message: string(errorBody)}
		case http.StatusTooManyRequests:
			c.record(operation, "rate_limited")
			return &RateLimitError{
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				Message:    string(errorBody),
			}
		default:
			// 5xx: transient, retry
			lastErr = &PlatformError{StatusCode: resp.StatusCode, Message: string(errorBody)}
			c.record(operation, "server_error")
			c.logger.Warn("platform call returned error status, will retry",
				"operation", operation,
				"status", resp.StatusCode,
				"attempt", attempt+1,
			)
		}
	}

	if lastErr == nil {
		lastErr = &PlatformError{Message: "retries exhausted"}
	}
	return lastErr
}

// record reports one call outcome to the recorder, if any.
func (c *HTTPClient) record(operation, status string) {
	if c.config.Recorder != nil {
		c.config.Recorder.RecordRemoteCall(operation, status)
	}
}

// tagResource stamps the resource ID onto typed errors that carry one.
func tagResource(err error, id string) error {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case *NotFoundError:
		if e.ResourceID == "" {
			e.ResourceID = id
		}
	case *PermissionError:
		if e.ResourceID == "" {
			e.ResourceID = id
		}
	case *InvalidInputError:
		if e.ResourceID == "" {
			e.ResourceID = id
		}
	}
	return err
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}

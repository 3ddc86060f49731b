package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultByteBudget is the largest attachment body Slack renders without
// truncation.
const DefaultByteBudget = 7995

// SlackConfig configures the Slack notifier.
type SlackConfig struct {
	// Token is the bot token used for every request.
	Token string

	// BaseURL is the Slack web API endpoint. Default:
	// https://slack.com/api
	BaseURL string

	// ByteBudget caps the joined body size of one message.
	// Default: DefaultByteBudget
	ByteBudget int

	// Debug reroutes every message to DebugChannel.
	Debug bool

	// DebugChannel receives all traffic in debug mode.
	DebugChannel string

	// Timeout bounds each individual HTTP request. Default: 30s
	Timeout time.Duration

	// MaxRetries is the number of additional attempts for transient
	// failures. Zero means the default of 3; a negative value disables
	// retries entirely.
	MaxRetries int
}

// SlackNotifier implements Notifier against the Slack web API. Oversized
// digests are split into chunks that each repeat the pretext.
type SlackNotifier struct {
	config SlackConfig
	client *http.Client
	logger *slog.Logger
}

// NewSlackNotifier creates a Slack notifier.
func NewSlackNotifier(cfg SlackConfig) *SlackNotifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://slack.com/api"
	}
	if cfg.ByteBudget == 0 {
		cfg.ByteBudget = DefaultByteBudget
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &SlackNotifier{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default().With("component", "notify.slack"),
	}
}

// route returns the channel to actually post to, honoring debug mode.
func (s *SlackNotifier) route(channel string) string {
	if s.config.Debug && s.config.DebugChannel != "" {
		return s.config.DebugChannel
	}
	return channel
}

// PostMessage sends a plain text message.
func (s *SlackNotifier) PostMessage(ctx context.Context, channel, text string) error {
	form := url.Values{
		"channel": {s.route(channel)},
		"text":    {text},
	}
	return s.post(ctx, "chat.postMessage", form)
}

// PostDigest sends a digest, splitting the body across messages when it
// exceeds the byte budget. Empty digests are dropped.
func (s *SlackNotifier) PostDigest(ctx context.Context, channel string, digest Digest) error {
	if digest.Empty() {
		return nil
	}

	chunks := ChunkLines(digest.Lines, s.config.ByteBudget)
	if len(chunks) > 1 {
		s.logger.Info("sending digest in chunks",
			"channel", channel,
			"chunks", len(chunks),
		)
	}

	for _, chunk := range chunks {
		attachments, err := json.Marshal([]map[string]string{
			{"pretext": digest.Pretext, "text": strings.Join(chunk, "\n")},
		})
		if err != nil {
			return fmt.Errorf("failed to marshal attachments: %w", err)
		}
		form := url.Values{
			"channel":     {s.route(channel)},
			"attachments": {string(attachments)},
		}
		if err := s.post(ctx, "chat.postMessage", form); err != nil {
			return err
		}
	}
	return nil
}

// UploadSnippet attaches the lines as a text file with the pretext as the
// introductory comment.
func (s *SlackNotifier) UploadSnippet(ctx context.Context, channel, pretext, filename string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for field, value := range map[string]string{
		"channels":        s.route(channel),
		"initial_comment": pretext,
		"filename":        filename,
		"filetype":        "txt",
	} {
		if err := writer.WriteField(field, value); err != nil {
			return fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	for _, line := range lines {
		if _, err := io.WriteString(part, line+"\n"); err != nil {
			return fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}

	return s.send(ctx, "files.upload", writer.FormDataContentType(), body.Bytes())
}

func (s *SlackNotifier) post(ctx context.Context, method string, form url.Values) error {
	return s.send(ctx, method, "application/x-www-form-urlencoded", []byte(form.Encode()))
}

// send performs one Slack API call with retry on transient failures. Slack
// reports application errors in the JSON body with ok=false; those are not
// retried except for rate limiting.
func (s *SlackNotifier) send(ctx context.Context, method, contentType string, payload []byte) error {
	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/"+method, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+s.config.Token)
		req.Header.Set("Content-Type", contentType)

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("slack call failed, will retry",
				"method", method,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("slack %s returned status %d", method, resp.StatusCode)
			s.logger.Warn("slack call returned error status, will retry",
				"method", method,
				"status", resp.StatusCode,
				"attempt", attempt+1,
			)
			continue
		}

		var apiResp struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal(data, &apiResp); err != nil {
			return fmt.Errorf("failed to decode slack response: %w", err)
		}
		if !apiResp.OK {
			return fmt.Errorf("slack %s failed: %s", method, apiResp.Error)
		}
		return nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("slack %s: retries exhausted", method)
	}
	return lastErr
}

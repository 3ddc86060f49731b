// Package notify formats and delivers the engine's Slack notifications:
// to-be-archived digests, countdown notices, info lists and failure alerts.
package notify

import "context"

// Sentinel terminates every non-empty digest so readers can tell a complete
// message from one cut off mid-delivery.
const Sentinel = "-- END OF MESSAGE --"

// Digest is one formatted notification: a pretext shown above the body and
// the body lines. Delivery may split the lines across several messages, all
// carrying the same pretext.
type Digest struct {
	Pretext string
	Lines   []string
}

// Empty reports whether the digest has no body to deliver.
func (d Digest) Empty() bool { return len(d.Lines) == 0 }

// Notifier delivers formatted notifications to a channel.
type Notifier interface {
	// PostMessage sends a plain text message.
	PostMessage(ctx context.Context, channel, text string) error

	// PostDigest sends a digest, chunking the body when it exceeds the
	// delivery byte budget. Empty digests are silently dropped.
	PostDigest(ctx context.Context, channel string, digest Digest) error

	// UploadSnippet attaches the lines as a text file with the pretext as
	// the introductory comment.
	UploadSnippet(ctx context.Context, channel, pretext, filename string, lines []string) error
}

// ChunkLines splits lines greedily into chunks whose newline-joined length
// stays within budget. A single line longer than the budget gets a chunk of
// its own. Concatenating the chunks reproduces the input exactly.
func ChunkLines(lines []string, budget int) [][]string {
	if len(lines) == 0 {
		return nil
	}

	var chunks [][]string
	start := 0
	size := 0
	for i, line := range lines {
		lineSize := len(line)
		if i > start {
			lineSize++ // joining newline
		}
		if i > start && size+lineSize > budget {
			chunks = append(chunks, lines[start:i])
			start = i
			size = len(line)
			continue
		}
		size += lineSize
	}
	chunks = append(chunks, lines[start:])
	return chunks
}

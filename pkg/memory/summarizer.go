package memory

import (
	"context"
	"errors"
)

// Summarizer errors. Summarize failures are wrapped so callers can test
// with errors.Is while the underlying provider cause stays attached.
var (
	// ErrSummarizerUnavailable is returned when the backing
	// text-generation capability is not configured.
	ErrSummarizerUnavailable = errors.New("summarizer unavailable")
	// ErrNoMessagesToSummarize is returned when Summarize is called
	// with an empty batch. Callers are expected to guard against this.
	ErrNoMessagesToSummarize = errors.New("no messages to summarize")
	// ErrSummarizationFailed wraps any runtime failure of the
	// summarize call: auth, safety block, rate limit, timeout, network.
	ErrSummarizationFailed = errors.New("summarization failed")
)

// Summarizer compresses a non-empty ordered batch of messages into one
// summary string using an external text-generation capability.
//
// Implementations perform no retries of their own; any failure is
// terminal for that attempt and the caller degrades gracefully.
type Summarizer interface {
	// IsAvailable reports whether the external capability is
	// configured and reachable in principle. It does not guarantee the
	// next Summarize call succeeds.
	IsAvailable() bool

	// Summarize produces non-empty text capturing the salient content
	// and ordering of the given messages. It fails with
	// ErrSummarizerUnavailable when not configured, with
	// ErrNoMessagesToSummarize on an empty batch, and with an error
	// wrapping ErrSummarizationFailed on any generation error.
	Summarize(ctx context.Context, messages []Message) (string, error)
}

// Package summarizer provides the LLM-backed conversation summarizer.
// It adapts a text-generation provider to the memory.Summarizer
// interface, with per-call timeouts and client-side rate limiting.
package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/chatmem-dev/chatmem/internal/llm/provider"
	"github.com/chatmem-dev/chatmem/pkg/memory"
)

const (
	// summaryPrompt instructs the model to compress a transcript while
	// keeping the facts later turns depend on.
	summaryPrompt = "Summarize this conversation concisely, preserving key facts, decisions, and any information the participants may refer back to. Respond with the summary only."

	defaultTimeout   = 30 * time.Second
	defaultMaxTokens = 500
)

// Option configures an LLM summarizer.
type Option func(*LLM)

// WithModel sets the model used for summarization.
func WithModel(model string) Option {
	return func(s *LLM) {
		s.model = model
	}
}

// WithTimeout bounds each summarize call.
func WithTimeout(timeout time.Duration) Option {
	return func(s *LLM) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithRateLimit caps summarize calls at the given requests per minute.
// Zero or negative disables the limiter.
func WithRateLimit(requestsPerMinute int) Option {
	return func(s *LLM) {
		if requestsPerMinute > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
		} else {
			s.limiter = nil
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *LLM) {
		if log != nil {
			s.log = log
		}
	}
}

// LLM summarizes conversation batches through a text-generation
// provider. A nil provider yields an unavailable summarizer, which the
// memory manager tolerates.
type LLM struct {
	provider provider.Provider
	model    string
	timeout  time.Duration
	limiter  *rate.Limiter
	log      logrus.FieldLogger
}

// New creates an LLM summarizer on top of the given provider.
func New(p provider.Provider, opts ...Option) *LLM {
	s := &LLM{
		provider: p,
		timeout:  defaultTimeout,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromRegistry constructs the named provider from the global
// registry, wraps it with tracing, and returns a summarizer over it.
func NewFromRegistry(name string, config map[string]any, opts ...Option) (*LLM, error) {
	p, err := provider.New(name, config)
	if err != nil {
		return nil, fmt.Errorf("create provider %q: %w", name, err)
	}
	return New(provider.WrapProvider(p), opts...), nil
}

// IsAvailable reports whether a provider is configured.
func (s *LLM) IsAvailable() bool {
	return s != nil && s.provider != nil
}

// Summarize compresses the message batch into one summary string.
func (s *LLM) Summarize(ctx context.Context, messages []memory.Message) (string, error) {
	if !s.IsAvailable() {
		return "", memory.ErrSummarizerUnavailable
	}
	if len(messages) == 0 {
		return "", memory.ErrNoMessagesToSummarize
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: rate limit wait: %v", memory.ErrSummarizationFailed, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.provider.CreateCompletion(ctx, provider.CompletionRequest{
		Messages: []provider.Message{
			{Role: "system", Content: summaryPrompt},
			{Role: "user", Content: buildTranscript(messages)},
		},
		Model:       s.model,
		Temperature: 0.3,
		MaxTokens:   defaultMaxTokens,
	})
	if err != nil {
		s.log.WithError(err).WithField("provider", s.provider.Name()).
			Warn("summarization call failed")
		return "", fmt.Errorf("%w: %v", memory.ErrSummarizationFailed, err)
	}

	return strings.TrimSpace(resp.Content), nil
}

// buildTranscript renders messages as "role: content" lines in order.
func buildTranscript(messages []memory.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

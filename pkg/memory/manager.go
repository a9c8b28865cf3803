package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chatmem-dev/chatmem/pkg/observability"
)

// Manager is the orchestration layer callers use. It hides summarization
// mechanics: messages are appended verbatim until a session's lifetime
// count crosses the configured threshold, at which point the tail beyond
// the recent window is compacted into one summary string.
//
// Manager is safe for concurrent use. Mutations are serialized per
// session id, so two callers on the same session cannot lose appends and
// a summarization pass cannot race a concurrent append; different
// sessions proceed independently.
type Manager struct {
	store      *Store
	summarizer Summarizer
	cfg        Config
	log        logrus.FieldLogger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a memory manager over the given store and
// summarizer. The summarizer may be nil, in which case sessions simply
// accumulate verbatim messages. The configuration is normalized before
// use.
func NewManager(store *Store, summarizer Summarizer, cfg Config, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	cfg.Normalize(log)
	return &Manager{
		store:      store,
		summarizer: summarizer,
		cfg:        cfg,
		log:        log,
		locks:      make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutation lock for a session id. Lock entries are
// tiny and the id space is bounded by the session cap in practice, so
// stale entries for evicted sessions are left in place.
func (m *Manager) lockFor(sessionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[sessionID] = l
	}
	return l
}

// AddMessage appends a message to the session, creating the session on
// first touch, and attempts a summarization pass once the session's
// lifetime message count has reached the threshold. Summarization
// failures never propagate: the verbatim tail is kept and compaction is
// retried on a later message. Only a broken store surfaces as an error.
func (m *Manager) AddMessage(ctx context.Context, sessionID string, role Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidMessage, role)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: empty content", ErrInvalidMessage)
	}

	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := m.store.GetOrCreate(sessionID)
	if err != nil {
		return fmt.Errorf("get or create session: %w", err)
	}

	rec.Messages = append(rec.Messages, Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	rec.MessageCount++
	observability.RecordMessage(string(role))

	// The threshold compares the lifetime count, so once a session has
	// ever crossed it every subsequent message re-enters here; the
	// empty-overflow guard inside makes the re-check a no-op.
	if rec.MessageCount >= m.cfg.MemoryThreshold {
		m.summarizeIfNeeded(ctx, rec)
	}

	if err := m.store.Update(sessionID, rec); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// summarizeIfNeeded compacts the tail beyond the recent window into one
// new summary. It mutates rec in place on success and leaves it
// untouched on any failure. It never returns an error.
func (m *Manager) summarizeIfNeeded(ctx context.Context, rec *SessionRecord) {
	overflow := len(rec.Messages) - m.cfg.RecentMessagesLimit
	if overflow <= 0 {
		return
	}

	slog := m.log.WithFields(logrus.Fields{
		"session_id": rec.SessionID,
		"batch_size": overflow,
	})

	if m.summarizer == nil || !m.summarizer.IsAvailable() {
		slog.Debug("summarizer unavailable, keeping verbatim tail")
		observability.RecordSummarization("unavailable", 0)
		return
	}

	start := time.Now()
	summary, err := m.summarizer.Summarize(ctx, rec.Messages[:overflow])
	if err != nil {
		slog.WithError(err).Warn("summarization failed, keeping verbatim tail")
		observability.RecordSummarization("failed", time.Since(start))
		return
	}
	if strings.TrimSpace(summary) == "" {
		slog.Warn("summarizer returned empty output, keeping verbatim tail")
		observability.RecordSummarization("empty", time.Since(start))
		return
	}

	kept := make([]Message, m.cfg.RecentMessagesLimit)
	copy(kept, rec.Messages[overflow:])
	rec.Summaries = append(rec.Summaries, summary)
	rec.Messages = kept

	observability.RecordSummarization("success", time.Since(start))
	slog.WithField("summaries", len(rec.Summaries)).Info("compacted session tail")
}

// GetContext returns the read view of a session: all summaries plus at
// most RecentMessagesLimit of the newest verbatim messages. The session
// is created on first touch. Retrieval is best-effort: any internal
// failure yields an empty context rather than an error.
func (m *Manager) GetContext(ctx context.Context, sessionID string) Context {
	_ = ctx

	rec, err := m.store.GetOrCreate(sessionID)
	if err != nil {
		m.log.WithError(err).WithField("session_id", sessionID).
			Warn("context retrieval failed, returning empty context")
		return emptyContext()
	}

	recent := rec.Messages
	if len(recent) > m.cfg.RecentMessagesLimit {
		recent = recent[len(recent)-m.cfg.RecentMessagesLimit:]
	}

	out := Context{
		Summaries:      make([]string, len(rec.Summaries)),
		RecentMessages: make([]Message, len(recent)),
		TotalMessages:  rec.MessageCount,
	}
	copy(out.Summaries, rec.Summaries)
	copy(out.RecentMessages, recent)
	return out
}

// ClearSession resets the session to an empty record with the same id.
func (m *Manager) ClearSession(sessionID string) error {
	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.store.Clear(sessionID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// HasSession reports whether the session currently exists.
func (m *Manager) HasSession(sessionID string) bool {
	return m.store.Has(sessionID)
}

// Stats returns store-wide diagnostics.
func (m *Manager) Stats() Stats {
	return m.store.Stats()
}

// CleanupInactiveSessions evicts sessions idle beyond the configured
// timeout, then enforces the global session cap. It logs counts and
// never panics or returns an error; cleanup failures must not take down
// the host process.
func (m *Manager) CleanupInactiveSessions() {
	defer func() {
		if r := recover(); r != nil {
			m.log.WithField("panic", r).Error("cleanup panicked")
		}
	}()

	inactive := m.store.EvictInactive(m.cfg.SessionTimeoutHours)
	overCap := m.store.EvictOverCap(m.cfg.MaxSessions)
	observability.RecordCleanupRun()

	entry := m.log.WithFields(logrus.Fields{
		"evicted_inactive": inactive,
		"evicted_over_cap": overCap,
		"remaining":        m.store.Count(),
	})
	if inactive > 0 || overCap > 0 {
		entry.Info("session cleanup complete")
	} else {
		entry.Debug("session cleanup complete")
	}
}

func emptyContext() Context {
	return Context{
		Summaries:      []string{},
		RecentMessages: []Message{},
		TotalMessages:  0,
	}
}

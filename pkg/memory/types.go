// Package memory provides bounded, self-summarizing conversation memory
// for chat sessions. Each session holds a verbatim tail of recent messages
// plus an append-only list of summaries covering older content; older
// messages are progressively compacted through an LLM-backed Summarizer
// once a session crosses its configured threshold.
package memory

import (
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks a message written by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by the assistant.
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single conversation message.
// Messages are immutable once created and owned by their SessionRecord.
type Message struct {
	// ID is the unique identifier for this message.
	ID string `json:"id"`
	// Role is who authored the message.
	Role Role `json:"role"`
	// Content is the message text. Never empty for a valid message.
	Content string `json:"content"`
	// Timestamp is when the message was accepted.
	Timestamp time.Time `json:"timestamp"`
}

// SessionRecord holds one conversation's retained state.
type SessionRecord struct {
	// SessionID is the unique key, stable for the conversation's lifetime.
	SessionID string `json:"sessionId"`
	// Messages is the unsummarized tail of the conversation, in
	// insertion order.
	Messages []Message `json:"messages"`
	// Summaries is the append-only list of summary strings, oldest
	// first. Each entry replaced a contiguous prefix of messages that
	// existed at summarization time.
	Summaries []string `json:"summaries"`
	// MessageCount is the lifetime total of messages ever added to this
	// session. It keeps growing across summarization passes, unlike
	// len(Messages) which shrinks back to the recent window.
	MessageCount int `json:"messageCount"`
	// LastActivity is the most recent read-or-write touch, used for
	// inactivity eviction.
	LastActivity time.Time `json:"lastActivity"`
}

// newRecord creates an empty record for the given id.
func newRecord(sessionID string) *SessionRecord {
	return &SessionRecord{
		SessionID:    sessionID,
		Messages:     make([]Message, 0),
		Summaries:    make([]string, 0),
		MessageCount: 0,
		LastActivity: time.Now().UTC(),
	}
}

// Clone returns a deep copy of the record. The Store hands out clones so
// that callers can never mutate retained state directly.
func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	cp := &SessionRecord{
		SessionID:    r.SessionID,
		Messages:     make([]Message, len(r.Messages)),
		Summaries:    make([]string, len(r.Summaries)),
		MessageCount: r.MessageCount,
		LastActivity: r.LastActivity,
	}
	copy(cp.Messages, r.Messages)
	copy(cp.Summaries, r.Summaries)
	return cp
}

// Context is the read view of a session handed to consumers for prompt
// assembly: all summaries, the capped recent-message window, and the
// lifetime message count.
type Context struct {
	// Summaries holds all summary strings, oldest first.
	Summaries []string `json:"summaries"`
	// RecentMessages is the most recent window of verbatim messages,
	// never longer than the configured recent-messages limit.
	RecentMessages []Message `json:"recentMessages"`
	// TotalMessages is the lifetime message count for the session.
	TotalMessages int `json:"totalMessages"`
}

// Stats aggregates store-wide diagnostics.
type Stats struct {
	// TotalSessions is the number of sessions currently retained.
	TotalSessions int `json:"totalSessions"`
	// TotalMessages sums the retained tails across all sessions
	// (current tails only, not lifetime counts).
	TotalMessages int `json:"totalMessages"`
	// TotalSummaries sums summaries across all sessions.
	TotalSummaries int `json:"totalSummaries"`
	// OldestActivity is the least recent LastActivity, zero when empty.
	OldestActivity time.Time `json:"oldestActivity"`
	// NewestActivity is the most recent LastActivity, zero when empty.
	NewestActivity time.Time `json:"newestActivity"`
}

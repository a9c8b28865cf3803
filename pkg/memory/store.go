package memory

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chatmem-dev/chatmem/pkg/observability"
)

// Common errors for store operations.
var (
	// ErrInvalidSessionData is returned when a record fails structural
	// validation on its way into the store.
	ErrInvalidSessionData = errors.New("invalid session data")
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("session store is closed")
	// ErrInvalidMessage is returned when an incoming message has an
	// unknown role or empty content.
	ErrInvalidMessage = errors.New("invalid message")
)

// Store is the exclusive owner of the sessionID -> SessionRecord mapping.
// All mutation of retained records happens through it; reads hand out deep
// copies. Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*SessionRecord
	closed   bool
	log      logrus.FieldLogger
}

// NewStore creates an empty in-memory session store.
func NewStore(log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{
		sessions: make(map[string]*SessionRecord),
		log:      log,
	}
}

// GetOrCreate returns a copy of the existing record, touching its
// LastActivity, or creates and stores an empty record for an unseen id.
func (s *Store) GetOrCreate(sessionID string) (*SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rec, ok := s.sessions[sessionID]
	if !ok {
		rec = newRecord(sessionID)
		s.sessions[sessionID] = rec
		observability.SetActiveSessions(len(s.sessions))
		s.log.WithField("session_id", sessionID).Debug("session created")
	} else {
		rec.LastActivity = time.Now().UTC()
	}

	return rec.Clone(), nil
}

// Has reports whether a session exists.
func (s *Store) Has(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[sessionID]
	return ok
}

// Update replaces the retained record for sessionID after validating its
// structural shape. LastActivity is touched on every successful update.
func (s *Store) Update(sessionID string, rec *SessionRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidSessionData)
	}
	if rec.SessionID != sessionID {
		return fmt.Errorf("%w: record id %q does not match %q",
			ErrInvalidSessionData, rec.SessionID, sessionID)
	}
	if issues, _ := validateRecord(rec); len(issues) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSessionData, issues[0])
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	cp := rec.Clone()
	cp.LastActivity = time.Now().UTC()
	s.sessions[sessionID] = cp
	observability.SetActiveSessions(len(s.sessions))
	return nil
}

// Clear replaces the record with a freshly created empty one carrying the
// same id. Clearing an unknown id creates it.
func (s *Store) Clear(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	s.sessions[sessionID] = newRecord(sessionID)
	observability.SetActiveSessions(len(s.sessions))
	s.log.WithField("session_id", sessionID).Debug("session cleared")
	return nil
}

// Delete removes the record and reports whether it existed.
func (s *Store) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	if ok {
		observability.SetActiveSessions(len(s.sessions))
	}
	return ok
}

// ListIDs returns all session ids in lexical order.
func (s *Store) ListIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListAll returns copies of all records.
func (s *Store) ListAll() []*SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*SessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		records = append(records, rec.Clone())
	}
	return records
}

// Count returns the number of retained sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// InactiveSessions returns copies of every session whose LastActivity is
// strictly older than the timeout.
func (s *Store) InactiveSessions(timeoutHours int) []*SessionRecord {
	cutoff := time.Now().UTC().Add(-time.Duration(timeoutHours) * time.Hour)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var inactive []*SessionRecord
	for _, rec := range s.sessions {
		if rec.LastActivity.Before(cutoff) {
			inactive = append(inactive, rec.Clone())
		}
	}
	return inactive
}

// EvictInactive deletes every session untouched for longer than the
// timeout and returns how many were removed.
func (s *Store) EvictInactive(timeoutHours int) int {
	cutoff := time.Now().UTC().Add(-time.Duration(timeoutHours) * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}

	removed := 0
	for id, rec := range s.sessions {
		if rec.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			removed++
			s.log.WithFields(logrus.Fields{
				"session_id":    id,
				"last_activity": rec.LastActivity,
			}).Info("evicted inactive session")
		}
	}

	if removed > 0 {
		observability.SetActiveSessions(len(s.sessions))
		observability.RecordEvictions("inactive", removed)
	}
	return removed
}

// EvictOverCap deletes the oldest sessions by LastActivity until at most
// maxSessions remain. Equal timestamps are broken by session-id lexical
// order so eviction is deterministic.
func (s *Store) EvictOverCap(maxSessions int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || len(s.sessions) <= maxSessions {
		return 0
	}

	records := make([]*SessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].LastActivity.Equal(records[j].LastActivity) {
			return records[i].SessionID < records[j].SessionID
		}
		return records[i].LastActivity.Before(records[j].LastActivity)
	})

	toRemove := len(records) - maxSessions
	for _, rec := range records[:toRemove] {
		delete(s.sessions, rec.SessionID)
		s.log.WithFields(logrus.Fields{
			"session_id":    rec.SessionID,
			"last_activity": rec.LastActivity,
		}).Info("evicted session over cap")
	}

	observability.SetActiveSessions(len(s.sessions))
	observability.RecordEvictions("cap", toRemove)
	return toRemove
}

// Stats returns aggregate diagnostics over all retained sessions.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{TotalSessions: len(s.sessions)}
	for _, rec := range s.sessions {
		st.TotalMessages += len(rec.Messages)
		st.TotalSummaries += len(rec.Summaries)
		if st.OldestActivity.IsZero() || rec.LastActivity.Before(st.OldestActivity) {
			st.OldestActivity = rec.LastActivity
		}
		if rec.LastActivity.After(st.NewestActivity) {
			st.NewestActivity = rec.LastActivity
		}
	}
	return st
}

// Close marks the store closed. Subsequent mutations fail with
// ErrStoreClosed; the retained map is released.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.sessions = make(map[string]*SessionRecord)
	observability.SetActiveSessions(0)
	return nil
}

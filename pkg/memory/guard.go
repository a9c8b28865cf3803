package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chatmem-dev/chatmem/pkg/observability"
)

// sweepConcurrency bounds how many sessions a sweep inspects at once.
const sweepConcurrency = 4

// ValidationResult reports structural validation of a session record.
type ValidationResult struct {
	// Valid is true when the record has no fatal issues. Advisory
	// findings do not clear it.
	Valid bool `json:"valid"`
	// Issues lists fatal structural problems.
	Issues []string `json:"issues"`
	// Advisories lists non-fatal findings, such as a lifetime count
	// below the retained tail length.
	Advisories []string `json:"advisories,omitempty"`
}

// RecoveryReport describes what DetectAndRecover did for one session.
type RecoveryReport struct {
	SessionID string `json:"sessionId"`
	// Created is true when the session did not exist and an empty one
	// was created (a trivial recovery).
	Created bool `json:"created"`
	// Corrupted is true when validation found fatal issues.
	Corrupted bool `json:"corrupted"`
	// Repaired is true when a best-effort repair produced a valid
	// record that was written back.
	Repaired bool `json:"repaired"`
	// Reset is true when repair failed and the session was replaced
	// wholesale with a fresh empty record.
	Reset   bool     `json:"reset"`
	Issues  []string `json:"issues,omitempty"`
	Actions []string `json:"actions,omitempty"`
}

// SweepSummary aggregates a sweep over all known sessions.
type SweepSummary struct {
	Total     int `json:"total"`
	Corrupted int `json:"corrupted"`
	Recovered int `json:"recovered"`
}

// Guard detects structurally invalid session records and repairs or
// replaces them so malformed state never propagates into manager logic.
// Recovery is always self-healing and silent to callers: the worst
// outcome is data loss for the affected session, never an error.
type Guard struct {
	store *Store
	log   logrus.FieldLogger
}

// NewGuard creates a corruption guard over the given store.
func NewGuard(store *Store, log logrus.FieldLogger) *Guard {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Guard{store: store, log: log}
}

// validateRecord returns fatal issues and non-fatal advisories for a
// record. The Store uses the fatal set to reject malformed updates.
func validateRecord(rec *SessionRecord) (issues, advisories []string) {
	if rec == nil {
		return []string{"record is nil"}, nil
	}

	if rec.SessionID == "" {
		issues = append(issues, "sessionId is empty")
	}
	if rec.Messages == nil {
		issues = append(issues, "messages is missing")
	}
	if rec.Summaries == nil {
		issues = append(issues, "summaries is missing")
	}

	for i, msg := range rec.Messages {
		if msg.ID == "" {
			issues = append(issues, fmt.Sprintf("message %d has no id", i))
		}
		if !msg.Role.Valid() {
			issues = append(issues, fmt.Sprintf("message %d has invalid role %q", i, msg.Role))
		}
		if msg.Content == "" {
			issues = append(issues, fmt.Sprintf("message %d has empty content", i))
		}
		if msg.Timestamp.IsZero() {
			issues = append(issues, fmt.Sprintf("message %d has no timestamp", i))
		}
	}

	for i, summary := range rec.Summaries {
		if summary == "" {
			issues = append(issues, fmt.Sprintf("summary %d is empty", i))
		}
	}

	if rec.LastActivity.IsZero() {
		issues = append(issues, "lastActivity is not set")
	}
	if rec.MessageCount < 0 {
		issues = append(issues, "messageCount is negative")
	}
	if rec.MessageCount >= 0 && rec.MessageCount < len(rec.Messages) {
		advisories = append(advisories,
			fmt.Sprintf("messageCount %d below retained tail %d", rec.MessageCount, len(rec.Messages)))
	}

	return issues, advisories
}

// Validate checks the structural shape of a record without mutating it.
func (g *Guard) Validate(rec *SessionRecord) ValidationResult {
	issues, advisories := validateRecord(rec)
	return ValidationResult{
		Valid:      len(issues) == 0,
		Issues:     issues,
		Advisories: advisories,
	}
}

// Repair returns a best-effort corrected copy of the record along with a
// human-readable list of actions taken. Invalid messages and summaries
// are dropped, a missing session id is regenerated, an unset
// lastActivity is reset to now, and the lifetime count is recomputed
// when drops or mismatches left it inconsistent.
func (g *Guard) Repair(rec *SessionRecord) (*SessionRecord, []string) {
	var actions []string

	if rec == nil {
		fresh := newRecord(uuid.New().String())
		return fresh, []string{"replaced nil record with fresh session"}
	}

	repaired := rec.Clone()

	if repaired.SessionID == "" {
		repaired.SessionID = uuid.New().String()
		actions = append(actions, "regenerated missing session id")
	}
	if repaired.Messages == nil {
		repaired.Messages = make([]Message, 0)
		actions = append(actions, "initialized missing messages")
	}
	if repaired.Summaries == nil {
		repaired.Summaries = make([]string, 0)
		actions = append(actions, "initialized missing summaries")
	}

	kept := repaired.Messages[:0]
	dropped := 0
	for _, msg := range repaired.Messages {
		if msg.ID == "" || !msg.Role.Valid() || msg.Content == "" || msg.Timestamp.IsZero() {
			dropped++
			continue
		}
		kept = append(kept, msg)
	}
	if dropped > 0 {
		repaired.Messages = kept
		actions = append(actions, fmt.Sprintf("dropped %d invalid messages", dropped))
	}

	keptSummaries := repaired.Summaries[:0]
	droppedSummaries := 0
	for _, summary := range repaired.Summaries {
		if summary == "" {
			droppedSummaries++
			continue
		}
		keptSummaries = append(keptSummaries, summary)
	}
	if droppedSummaries > 0 {
		repaired.Summaries = keptSummaries
		actions = append(actions, fmt.Sprintf("dropped %d empty summaries", droppedSummaries))
	}

	if repaired.LastActivity.IsZero() {
		repaired.LastActivity = time.Now().UTC()
		actions = append(actions, "reset lastActivity to now")
	}

	count := repaired.MessageCount
	if dropped > 0 {
		count -= dropped
	}
	if count < len(repaired.Messages) {
		count = len(repaired.Messages)
	}
	if count != repaired.MessageCount {
		repaired.MessageCount = count
		actions = append(actions, fmt.Sprintf("recomputed messageCount to %d", count))
	}

	return repaired, actions
}

// DetectAndRecover validates the session and repairs or resets it as
// needed, writing the result back through the Store. A missing session
// is created empty and reported as a trivial recovery. It never returns
// an error; on any unexpected internal failure the session is reset
// wholesale.
func (g *Guard) DetectAndRecover(sessionID string) (report RecoveryReport) {
	report = RecoveryReport{SessionID: sessionID}

	defer func() {
		if r := recover(); r != nil {
			g.log.WithFields(logrus.Fields{
				"session_id": sessionID,
				"panic":      r,
			}).Error("recovery panicked, resetting session")
			_ = g.store.Clear(sessionID)
			report.Reset = true
			observability.RecordRecovery("reset")
		}
	}()

	if !g.store.Has(sessionID) {
		if _, err := g.store.GetOrCreate(sessionID); err != nil {
			g.log.WithError(err).WithField("session_id", sessionID).
				Warn("could not create missing session")
			return report
		}
		report.Created = true
		observability.RecordRecovery("created")
		return report
	}

	rec, err := g.store.GetOrCreate(sessionID)
	if err != nil {
		g.log.WithError(err).WithField("session_id", sessionID).
			Warn("could not load session for validation")
		return report
	}

	result := g.Validate(rec)
	if result.Valid {
		return report
	}

	report.Corrupted = true
	report.Issues = result.Issues
	g.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"issues":     result.Issues,
	}).Warn("corrupted session detected")

	repaired, actions := g.Repair(rec)
	if repaired.SessionID != sessionID {
		// Repair regenerates missing ids blindly; recovery knows the
		// key the record is stored under and must keep it.
		repaired.SessionID = sessionID
		actions = append(actions, "restored session id from store key")
	}
	report.Actions = actions

	if recheck := g.Validate(repaired); !recheck.Valid {
		// Complete reset: repair failed.
		_ = g.store.Clear(sessionID)
		report.Reset = true
		observability.RecordRecovery("reset")
		g.log.WithField("session_id", sessionID).Warn("repair failed, session reset")
		return report
	}

	if err := g.store.Update(repaired.SessionID, repaired); err != nil {
		_ = g.store.Clear(sessionID)
		report.Reset = true
		observability.RecordRecovery("reset")
		g.log.WithError(err).WithField("session_id", sessionID).
			Warn("could not store repaired session, session reset")
		return report
	}

	report.Repaired = true
	observability.RecordRecovery("repaired")
	g.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"actions":    actions,
	}).Info("session repaired")
	return report
}

// SweepAll runs DetectAndRecover over every known session id with
// bounded concurrency and aggregates the outcome.
func (g *Guard) SweepAll() SweepSummary {
	ids := g.store.ListIDs()
	summary := SweepSummary{Total: len(ids)}

	var mu sync.Mutex
	var eg errgroup.Group
	eg.SetLimit(sweepConcurrency)

	for _, id := range ids {
		eg.Go(func() error {
			report := g.DetectAndRecover(id)
			mu.Lock()
			defer mu.Unlock()
			if report.Corrupted {
				summary.Corrupted++
			}
			if report.Repaired || report.Reset {
				summary.Recovered++
			}
			return nil
		})
	}
	_ = eg.Wait()

	entry := g.log.WithFields(logrus.Fields{
		"total":     summary.Total,
		"corrupted": summary.Corrupted,
		"recovered": summary.Recovered,
	})
	if summary.Corrupted > 0 {
		entry.Warn("corruption sweep complete")
	} else {
		entry.Debug("corruption sweep complete")
	}
	return summary
}

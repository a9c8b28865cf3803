package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeSummarizer is a controllable Summarizer for manager tests.
type fakeSummarizer struct {
	mu        sync.Mutex
	available bool
	err       error
	output    string
	calls     int
	batches   [][]Message
}

func (f *fakeSummarizer) IsAvailable() bool { return f.available }

func (f *fakeSummarizer) Summarize(ctx context.Context, messages []Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	batch := make([]Message, len(messages))
	copy(batch, messages)
	f.batches = append(f.batches, batch)
	if f.err != nil {
		return "", f.err
	}
	if f.output != "" {
		return f.output, nil
	}
	return fmt.Sprintf("summary of %d messages", len(messages)), nil
}

func (f *fakeSummarizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig() Config {
	return Config{
		MemoryThreshold:     10,
		RecentMessagesLimit: 6,
		SessionTimeoutHours: 24,
		MaxSessions:         1000,
	}
}

func newTestManager(t *testing.T, sum Summarizer) (*Manager, *Store) {
	t.Helper()
	store := NewStore(testLogger())
	return NewManager(store, sum, testConfig(), testLogger()), store
}

func addMessages(t *testing.T, m *Manager, sessionID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		if err := m.AddMessage(context.Background(), sessionID, role, fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("AddMessage %d: %v", i, err)
		}
	}
}

func TestAddMessageValidation(t *testing.T) {
	m, _ := newTestManager(t, nil)

	tests := []struct {
		name    string
		role    Role
		content string
	}{
		{"unknown role", "system", "hello"},
		{"empty role", "", "hello"},
		{"empty content", RoleUser, ""},
		{"whitespace content", RoleUser, "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.AddMessage(context.Background(), "s1", tt.role, tt.content)
			if !errors.Is(err, ErrInvalidMessage) {
				t.Errorf("AddMessage = %v, want ErrInvalidMessage", err)
			}
		})
	}

	// Rejected messages must not create the session.
	if m.HasSession("s1") {
		t.Error("rejected message created a session")
	}
}

func TestMessagesBelowThresholdStayVerbatim(t *testing.T) {
	sum := &fakeSummarizer{available: true}
	m, _ := newTestManager(t, sum)

	addMessages(t, m, "s1", 6)

	c := m.GetContext(context.Background(), "s1")
	if len(c.Summaries) != 0 {
		t.Errorf("Summaries = %d, want 0 below threshold", len(c.Summaries))
	}
	if len(c.RecentMessages) != 6 {
		t.Errorf("RecentMessages = %d, want 6", len(c.RecentMessages))
	}
	if c.TotalMessages != 6 {
		t.Errorf("TotalMessages = %d, want 6", c.TotalMessages)
	}
	if sum.callCount() != 0 {
		t.Errorf("summarizer called %d times below threshold", sum.callCount())
	}

	// Order preserved.
	for i, msg := range c.RecentMessages {
		if want := fmt.Sprintf("message %d", i); msg.Content != want {
			t.Errorf("message %d content = %q, want %q", i, msg.Content, want)
		}
	}
}

func TestSummarizationAtThreshold(t *testing.T) {
	sum := &fakeSummarizer{available: true, output: "the early conversation"}
	m, _ := newTestManager(t, sum)

	addMessages(t, m, "s1", 10)

	if sum.callCount() != 1 {
		t.Fatalf("summarizer calls = %d, want 1", sum.callCount())
	}
	// The batch is everything beyond the recent window: 10 - 6 = 4
	// oldest messages, in order.
	batch := sum.batches[0]
	if len(batch) != 4 {
		t.Fatalf("batch size = %d, want 4", len(batch))
	}
	for i, msg := range batch {
		if want := fmt.Sprintf("message %d", i); msg.Content != want {
			t.Errorf("batch[%d] = %q, want %q", i, msg.Content, want)
		}
	}

	c := m.GetContext(context.Background(), "s1")
	if len(c.Summaries) != 1 || c.Summaries[0] != "the early conversation" {
		t.Errorf("Summaries = %v, want the fake output", c.Summaries)
	}
	if len(c.RecentMessages) != 6 {
		t.Errorf("RecentMessages = %d, want 6", len(c.RecentMessages))
	}
	if c.RecentMessages[0].Content != "message 4" {
		t.Errorf("oldest retained = %q, want message 4", c.RecentMessages[0].Content)
	}
	// Lifetime count is unaffected by compaction.
	if c.TotalMessages != 10 {
		t.Errorf("TotalMessages = %d, want 10", c.TotalMessages)
	}
}

func TestSummarizationContinuesPastThreshold(t *testing.T) {
	sum := &fakeSummarizer{available: true}
	m, _ := newTestManager(t, sum)

	// Past the threshold every message overflows the window by one, so
	// each subsequent add compacts a batch of one.
	addMessages(t, m, "s1", 12)

	if sum.callCount() != 3 {
		t.Fatalf("summarizer calls = %d, want 3", sum.callCount())
	}

	c := m.GetContext(context.Background(), "s1")
	if len(c.Summaries) != 3 {
		t.Errorf("Summaries = %d, want 3", len(c.Summaries))
	}
	if len(c.RecentMessages) != 6 {
		t.Errorf("RecentMessages = %d, want 6", len(c.RecentMessages))
	}
	if c.TotalMessages != 12 {
		t.Errorf("TotalMessages = %d, want 12", c.TotalMessages)
	}
}

func TestSummarizerFailureDegradesGracefully(t *testing.T) {
	sum := &fakeSummarizer{available: true, err: errors.New("model offline")}
	m, _ := newTestManager(t, sum)

	addMessages(t, m, "s1", 11)

	c := m.GetContext(context.Background(), "s1")
	if len(c.Summaries) != 0 {
		t.Errorf("Summaries = %d, want 0 after failures", len(c.Summaries))
	}
	// Everything is retained verbatim; the read window still caps what
	// the consumer sees.
	if len(c.RecentMessages) != 6 {
		t.Errorf("RecentMessages = %d, want capped at 6", len(c.RecentMessages))
	}
	if c.TotalMessages != 11 {
		t.Errorf("TotalMessages = %d, want 11", c.TotalMessages)
	}
	if c.RecentMessages[len(c.RecentMessages)-1].Content != "message 10" {
		t.Errorf("newest message = %q, want message 10", c.RecentMessages[len(c.RecentMessages)-1].Content)
	}
	// Compaction was retried on each add past the threshold.
	if sum.callCount() != 2 {
		t.Errorf("summarizer calls = %d, want 2", sum.callCount())
	}
}

func TestSummarizerRecoversAfterFailure(t *testing.T) {
	sum := &fakeSummarizer{available: true, err: errors.New("model offline")}
	m, _ := newTestManager(t, sum)

	addMessages(t, m, "s1", 10)
	if n := len(m.GetContext(context.Background(), "s1").Summaries); n != 0 {
		t.Fatalf("Summaries = %d before recovery, want 0", n)
	}

	sum.err = nil
	addMessages(t, m, "s1", 1)

	c := m.GetContext(context.Background(), "s1")
	if len(c.Summaries) != 1 {
		t.Errorf("Summaries = %d after recovery, want 1", len(c.Summaries))
	}
	// The recovered pass compacts the full accumulated backlog.
	last := sum.batches[len(sum.batches)-1]
	if len(last) != 5 {
		t.Errorf("recovered batch = %d messages, want 5", len(last))
	}
	if len(c.RecentMessages) != 6 {
		t.Errorf("RecentMessages = %d, want 6", len(c.RecentMessages))
	}
}

func TestNilAndUnavailableSummarizer(t *testing.T) {
	tests := []struct {
		name string
		sum  Summarizer
	}{
		{"nil summarizer", nil},
		{"unavailable summarizer", &fakeSummarizer{available: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager(t, tt.sum)
			addMessages(t, m, "s1", 15)

			c := m.GetContext(context.Background(), "s1")
			if len(c.Summaries) != 0 {
				t.Errorf("Summaries = %d, want 0", len(c.Summaries))
			}
			if c.TotalMessages != 15 {
				t.Errorf("TotalMessages = %d, want 15", c.TotalMessages)
			}
			if fs, ok := tt.sum.(*fakeSummarizer); ok && fs.callCount() != 0 {
				t.Errorf("unavailable summarizer was called %d times", fs.callCount())
			}
		})
	}
}

func TestEmptySummaryKeepsTail(t *testing.T) {
	sum := &fakeSummarizer{available: true, output: "  "}
	m, _ := newTestManager(t, sum)

	addMessages(t, m, "s1", 10)

	c := m.GetContext(context.Background(), "s1")
	if len(c.Summaries) != 0 {
		t.Errorf("Summaries = %d, want 0 for blank summarizer output", len(c.Summaries))
	}
	if c.TotalMessages != 10 {
		t.Errorf("TotalMessages = %d, want 10", c.TotalMessages)
	}
}

func TestGetContextCreatesSession(t *testing.T) {
	m, store := newTestManager(t, nil)

	c := m.GetContext(context.Background(), "fresh")
	if len(c.Summaries) != 0 || len(c.RecentMessages) != 0 || c.TotalMessages != 0 {
		t.Errorf("fresh context not empty: %+v", c)
	}
	if !store.Has("fresh") {
		t.Error("GetContext must create the session on first touch")
	}
}

func TestGetContextOnClosedStore(t *testing.T) {
	m, store := newTestManager(t, nil)
	_ = store.Close()

	c := m.GetContext(context.Background(), "s1")
	if c.Summaries == nil || c.RecentMessages == nil {
		t.Error("degraded context must have non-nil slices")
	}
	if len(c.Summaries) != 0 || len(c.RecentMessages) != 0 || c.TotalMessages != 0 {
		t.Errorf("degraded context not empty: %+v", c)
	}
}

func TestAddMessagePropagatesStoreFailure(t *testing.T) {
	m, store := newTestManager(t, nil)
	_ = store.Close()

	err := m.AddMessage(context.Background(), "s1", RoleUser, "hello")
	if !errors.Is(err, ErrStoreClosed) {
		t.Errorf("AddMessage on closed store = %v, want ErrStoreClosed", err)
	}
}

func TestClearSession(t *testing.T) {
	m, _ := newTestManager(t, nil)
	addMessages(t, m, "s1", 4)

	if err := m.ClearSession("s1"); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}

	c := m.GetContext(context.Background(), "s1")
	if len(c.RecentMessages) != 0 || c.TotalMessages != 0 {
		t.Errorf("context after clear not empty: %+v", c)
	}
	if !m.HasSession("s1") {
		t.Error("cleared session must still exist")
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	sum := &fakeSummarizer{available: true}
	m, _ := newTestManager(t, sum)

	addMessages(t, m, "busy", 10)
	addMessages(t, m, "quiet", 2)

	busy := m.GetContext(context.Background(), "busy")
	quiet := m.GetContext(context.Background(), "quiet")

	if len(busy.Summaries) != 1 {
		t.Errorf("busy Summaries = %d, want 1", len(busy.Summaries))
	}
	if len(quiet.Summaries) != 0 || quiet.TotalMessages != 2 {
		t.Errorf("quiet session affected by busy one: %+v", quiet)
	}
}

func TestConcurrentAddsSameSession(t *testing.T) {
	sum := &fakeSummarizer{available: true}
	m, _ := newTestManager(t, sum)

	const writers = 8
	const perWriter = 5

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = m.AddMessage(context.Background(), "s1", RoleUser, fmt.Sprintf("w%d-%d", w, i))
			}
		}(w)
	}
	wg.Wait()

	c := m.GetContext(context.Background(), "s1")
	if c.TotalMessages != writers*perWriter {
		t.Errorf("TotalMessages = %d, want %d (no lost appends)", c.TotalMessages, writers*perWriter)
	}
	if len(c.RecentMessages) > 6 {
		t.Errorf("RecentMessages = %d, want at most 6", len(c.RecentMessages))
	}
}

func TestCleanupInactiveSessions(t *testing.T) {
	m, store := newTestManager(t, nil)

	stale := newRecord("stale")
	stale.LastActivity = time.Now().UTC().Add(-30 * time.Hour)
	store.inject(stale)
	_, _ = store.GetOrCreate("active")

	m.CleanupInactiveSessions()

	if store.Has("stale") {
		t.Error("stale session survived cleanup")
	}
	if !store.Has("active") {
		t.Error("active session removed by cleanup")
	}
}

func TestCleanupEnforcesSessionCap(t *testing.T) {
	store := NewStore(testLogger())
	cfg := testConfig()
	cfg.MaxSessions = 3
	m := NewManager(store, nil, cfg, testLogger())

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		rec := newRecord(fmt.Sprintf("s%d", i))
		rec.LastActivity = now.Add(time.Duration(i) * time.Minute)
		store.inject(rec)
	}

	m.CleanupInactiveSessions()

	if store.Count() != 3 {
		t.Fatalf("Count after cap enforcement = %d, want 3", store.Count())
	}
	for _, id := range []string{"s0", "s1"} {
		if store.Has(id) {
			t.Errorf("oldest session %q should have been evicted", id)
		}
	}
}

func TestManagerNormalizesConfig(t *testing.T) {
	store := NewStore(testLogger())
	m := NewManager(store, nil, Config{
		MemoryThreshold:     0,
		RecentMessagesLimit: 50,
		SessionTimeoutHours: -1,
		MaxSessions:         20000,
	}, testLogger())

	if m.cfg.MemoryThreshold != DefaultMemoryThreshold {
		t.Errorf("MemoryThreshold = %d, want default", m.cfg.MemoryThreshold)
	}
	if m.cfg.RecentMessagesLimit != DefaultRecentMessagesLimit {
		t.Errorf("RecentMessagesLimit = %d, want default", m.cfg.RecentMessagesLimit)
	}
	if m.cfg.SessionTimeoutHours != DefaultSessionTimeoutHours {
		t.Errorf("SessionTimeoutHours = %d, want default", m.cfg.SessionTimeoutHours)
	}
	if m.cfg.MaxSessions != DefaultMaxSessions {
		t.Errorf("MaxSessions = %d, want default", m.cfg.MaxSessions)
	}
}

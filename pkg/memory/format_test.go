package memory

import (
	"strings"
	"testing"
	"time"
)

func TestFormatForPrompt(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	ctx := Context{
		Summaries: []string{"intro pleasantries", "planning the trip"},
		RecentMessages: []Message{
			{ID: "1", Role: RoleUser, Content: "book the hotel", Timestamp: ts},
			{ID: "2", Role: RoleAssistant, Content: "done", Timestamp: ts.Add(time.Minute)},
		},
		TotalMessages: 14,
	}

	out := FormatForPrompt(ctx)

	wantLines := []string{
		"Conversation summary:",
		"[Part 1] intro pleasantries",
		"[Part 2] planning the trip",
		"Recent messages:",
		"[2026-03-14T09:26:53Z] user: book the hotel",
		"[2026-03-14T09:27:53Z] assistant: done",
	}
	for _, line := range wantLines {
		if !strings.Contains(out, line) {
			t.Errorf("output missing %q\n%s", line, out)
		}
	}

	// Summaries come before messages.
	if strings.Index(out, "Conversation summary:") > strings.Index(out, "Recent messages:") {
		t.Error("summaries must precede recent messages")
	}
}

func TestFormatForPromptOmitsEmptySections(t *testing.T) {
	tests := []struct {
		name    string
		ctx     Context
		want    string
		exclude string
	}{
		{
			"no summaries",
			Context{RecentMessages: []Message{{ID: "1", Role: RoleUser, Content: "hi", Timestamp: time.Now()}}},
			"Recent messages:",
			"Conversation summary:",
		},
		{
			"no messages",
			Context{Summaries: []string{"it happened"}},
			"Conversation summary:",
			"Recent messages:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatForPrompt(tt.ctx)
			if !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out)
			}
			if strings.Contains(out, tt.exclude) {
				t.Errorf("output must omit %q:\n%s", tt.exclude, out)
			}
		})
	}
}

func TestFormatForPromptEmpty(t *testing.T) {
	if out := FormatForPrompt(Context{}); out != "" {
		t.Errorf("empty context formats to %q, want empty string", out)
	}
}

func TestFormatForPromptDeterministic(t *testing.T) {
	ctx := Context{
		Summaries:      []string{"a", "b"},
		RecentMessages: []Message{{ID: "1", Role: RoleUser, Content: "x", Timestamp: time.Unix(0, 0)}},
	}
	if FormatForPrompt(ctx) != FormatForPrompt(ctx) {
		t.Error("formatting must be deterministic")
	}
}

package memory

import (
	"fmt"
	"strings"
	"time"
)

// FormatForPrompt renders a context into the deterministic textual form
// embedded into downstream prompts: all summaries first, labeled and in
// order, then the recent messages labeled with role and timestamp. Empty
// sections are omitted. Pure function of its input.
func FormatForPrompt(ctx Context) string {
	var sb strings.Builder

	if len(ctx.Summaries) > 0 {
		sb.WriteString("Conversation summary:\n")
		for i, summary := range ctx.Summaries {
			sb.WriteString(fmt.Sprintf("[Part %d] %s\n", i+1, summary))
		}
	}

	if len(ctx.RecentMessages) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Recent messages:\n")
		for _, msg := range ctx.RecentMessages {
			sb.WriteString(fmt.Sprintf("[%s] %s: %s\n",
				msg.Timestamp.UTC().Format(time.RFC3339), msg.Role, msg.Content))
		}
	}

	return sb.String()
}

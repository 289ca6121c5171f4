package ntfy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FormatMessages renders msgs as a numbered listing suitable for a model.
// JSON bodies are additionally pretty printed.
func FormatMessages(channel string, msgs []Message) string {
	if len(msgs) == 0 {
		return fmt.Sprintf("No messages found in channel: %s", channel)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Messages from '%s' (latest %d):\n\n", channel, len(msgs))
	for i, m := range msgs {
		ts := "N/A"
		if m.Time != 0 {
			ts = m.Timestamp().Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "%d. [Time: %s]\n", i+1, ts)
		if m.Title != "" {
			fmt.Fprintf(&b, "   Title: %s\n", m.Title)
		}
		if m.Message != "" {
			fmt.Fprintf(&b, "   Message: %s\n", m.Message)
		}
		if v, ok := m.JSON(); ok {
			if pretty, err := json.MarshalIndent(v, "   ", "  "); err == nil {
				fmt.Fprintf(&b, "   Parsed JSON: %s\n", pretty)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Preview shortens s to n runes followed by "..." when longer.
func Preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

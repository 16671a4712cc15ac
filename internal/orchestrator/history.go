package orchestrator

import (
	"strings"
	"unicode"

	"github.com/lofthq/loft-assistant/internal/generation"
)

// SanitizeHistory restricts client-supplied history to user/assistant turns
// and strips control characters from the text. Anything else (tool turns,
// system turns, unknown roles) is dropped: those are the orchestrator's to
// produce, never the client's.
func SanitizeHistory(history []generation.Message) []generation.Message {
	out := make([]generation.Message, 0, len(history))
	for _, m := range history {
		if m.Role != generation.RoleUser && m.Role != generation.RoleAssistant {
			continue
		}
		text := stripControlChars(m.Text)
		if text == "" {
			continue
		}
		out = append(out, generation.Message{Role: m.Role, Text: text})
	}
	return out
}

// lastUserMessage returns the text of the most recent user turn in history,
// or "" when there is none.
func lastUserMessage(history []generation.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == generation.RoleUser {
			return stripControlChars(history[i].Text)
		}
	}
	return ""
}

// stripControlChars removes control characters, keeping newlines and tabs.
func stripControlChars(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}

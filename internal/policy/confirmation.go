package policy

import "strings"

// Decision is the parsed meaning of a user reply to a confirmation prompt.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionConfirm
	DecisionCancel
)

// String returns the lowercase decision name.
func (d Decision) String() string {
	switch d {
	case DecisionConfirm:
		return "confirm"
	case DecisionCancel:
		return "cancel"
	default:
		return "none"
	}
}

// Cancellation phrases take precedence over confirmation phrases and are
// checked first, so "do not proceed" never reads as "proceed".
var cancelPhrases = []string{
	"cancel",
	"stop",
	"abort",
	"never mind",
	"nevermind",
	"do not proceed",
	"don't proceed",
}

var confirmPhrases = []string{
	"confirmed",
	"confirm",
	"i confirm",
	"approved",
	"approve",
	"proceed",
	"go ahead",
	"yes, proceed",
	"yes proceed",
}

// ParseConfirmationDecision maps a user message to confirm, cancel or none.
// Matching is anchored to the start of the trimmed, lowercased message so a
// message that merely contains the word "confirm" mid-sentence stays inert.
func ParseConfirmationDecision(message string) Decision {
	normalized := strings.ToLower(strings.TrimSpace(message))
	if normalized == "" {
		return DecisionNone
	}
	for _, p := range cancelPhrases {
		if hasPhrasePrefix(normalized, p) {
			return DecisionCancel
		}
	}
	for _, p := range confirmPhrases {
		if hasPhrasePrefix(normalized, p) {
			return DecisionConfirm
		}
	}
	return DecisionNone
}

// hasPhrasePrefix reports whether s starts with the phrase followed by a
// word boundary, so "confirmation" does not match the phrase "confirm".
func hasPhrasePrefix(s, phrase string) bool {
	if !strings.HasPrefix(s, phrase) {
		return false
	}
	if len(s) == len(phrase) {
		return true
	}
	c := s[len(phrase)]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9')
}

// BuildConfirmationRequiredMessage produces the deterministic turn text shown
// when high-impact actions are pending. This string is part of the observable
// conversation and tests depend on it staying stable.
func BuildConfirmationRequiredMessage(names []string) string {
	var b strings.Builder
	b.WriteString("This request includes high-impact actions that need your confirmation: ")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(`. Reply "confirm" to proceed or "cancel" to stop.`)
	return b.String()
}

// BuildCancellationMessage produces the deterministic turn text shown when a
// pending high-impact action set is cancelled.
func BuildCancellationMessage(names []string) string {
	var b strings.Builder
	b.WriteString("Cancelled. The following actions were not executed: ")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(".")
	return b.String()
}

// Package policy decides which proposed tool calls are high impact and parses
// user replies to the confirmation prompt. It is pure decision logic: it
// never executes anything and never touches storage. Blocking execution and
// writing audit records are the orchestrator's responsibility.
package policy

import "strings"

// highImpactVerbs is the fixed vocabulary of verbs that mark a tool as having
// irreversible or externally visible side effects. Anything matching is
// gated; everything else passes straight through.
var highImpactVerbs = map[string]bool{
	"send":        true,
	"delete":      true,
	"archive":     true,
	"merge":       true,
	"permission":  true,
	"permissions": true,
	"grant":       true,
	"revoke":      true,
}

// toolNameSeparators normalizes the separators tool names use in the wild.
var toolNameSeparators = strings.NewReplacer("_", " ", "-", " ", ".", " ", ":", " ", "/", " ")

// IsHighImpactToolName reports whether a tool name contains a high-impact
// verb. The name is lowercased and separators are replaced with spaces before
// whole-word matching, so SEND_EMAIL, send-slack-message and delete_record
// all match.
func IsHighImpactToolName(name string) bool {
	normalized := strings.ToLower(toolNameSeparators.Replace(name))
	for _, word := range strings.Fields(normalized) {
		if highImpactVerbs[word] {
			return true
		}
	}
	return false
}

// HighImpactToolNames filters proposed tool-call names down to the high-impact
// ones, deduplicated, preserving order of first occurrence.
func HighImpactToolNames(names []string) []string {
	var out []string
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] || !IsHighImpactToolName(name) {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

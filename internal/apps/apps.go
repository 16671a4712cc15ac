// Package apps holds the catalog of third-party apps a workspace can connect
// and the domain vocabulary used to detect explicit mentions of them in
// free-text messages.
package apps

import (
	"sort"
	"strings"
)

// AppID identifies a connectable third-party app.
type AppID string

const (
	Slack          AppID = "slack"
	GitHub         AppID = "github"
	Gmail          AppID = "gmail"
	GoogleCalendar AppID = "googlecalendar"
	Jira           AppID = "jira"
	Notion         AppID = "notion"
)

// Toolkit returns the uppercased app identifier stored on audit records.
func (a AppID) Toolkit() string {
	return strings.ToUpper(string(a))
}

// vocabulary maps each known app to the words that signal an explicit
// request for it. Matching is whole-word, case-insensitive.
var vocabulary = map[AppID][]string{
	Slack:          {"slack"},
	GitHub:         {"github", "pull request", "pull requests", "repo", "repository"},
	Gmail:          {"gmail", "email", "emails", "inbox"},
	GoogleCalendar: {"calendar", "meeting", "meetings", "schedule", "event", "events"},
	Jira:           {"jira", "ticket", "tickets", "sprint"},
	Notion:         {"notion"},
}

// Known reports whether the app is in the catalog.
func Known(id AppID) bool {
	_, ok := vocabulary[id]
	return ok
}

// All returns every catalog app in stable order.
func All() []AppID {
	out := make([]AppID, 0, len(vocabulary))
	for id := range vocabulary {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DetectMentions returns the apps whose vocabulary appears in the message,
// ordered by first mention and deduplicated. Ties on position break by AppID
// so the result is deterministic.
func DetectMentions(message string) []AppID {
	lowered := strings.ToLower(message)

	type hit struct {
		app AppID
		pos int
	}
	var hits []hit
	for app, words := range vocabulary {
		best := -1
		for _, w := range words {
			if idx := indexWord(lowered, w); idx >= 0 && (best < 0 || idx < best) {
				best = idx
			}
		}
		if best >= 0 {
			hits = append(hits, hit{app: app, pos: best})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].pos != hits[j].pos {
			return hits[i].pos < hits[j].pos
		}
		return hits[i].app < hits[j].app
	})

	out := make([]AppID, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.app)
	}
	return out
}

// indexWord finds the first whole-word occurrence of w in s, or -1.
func indexWord(s, w string) int {
	from := 0
	for {
		idx := strings.Index(s[from:], w)
		if idx < 0 {
			return -1
		}
		idx += from
		if boundary(s, idx-1) && boundary(s, idx+len(w)) {
			return idx
		}
		from = idx + 1
	}
}

// boundary reports whether position i is outside s or a non-word rune.
func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_')
}

package intent

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/lofthq/loft-assistant/internal/apps"
	"github.com/lofthq/loft-assistant/internal/generation"
	"go.uber.org/zap"
)

const fallbackTimeout = 5 * time.Second

const fallbackSystemPrompt = `You classify requests for a team-collaboration assistant.
Answer with a single JSON object: {"mode": "internal"|"external"|"hybrid", "apps": ["..."]}.
"internal" means the request only needs workspace data (channels, boards, notes).
"external" means it needs a connected third-party app. "hybrid" means both.
List app ids only from: slack, github, gmail, googlecalendar, jira, notion.`

type fallbackAnswer struct {
	Mode string   `json:"mode"`
	Apps []string `json:"apps"`
}

// classifyWithFallback asks the generator to resolve an ambiguous message.
// Returns ok=false on any failure so the caller keeps the deterministic
// guess; fallback errors are logged, never raised.
func (c *Classifier) classifyWithFallback(ctx context.Context, message string) (QueryIntent, bool) {
	ctx, cancel := context.WithTimeout(ctx, fallbackTimeout)
	defer cancel()

	result, err := c.fallback.Generate(ctx, fallbackSystemPrompt, []generation.Message{
		{Role: generation.RoleUser, Text: message},
	}, nil)
	if err != nil {
		c.logger.Warn("intent fallback failed, keeping deterministic guess", zap.Error(err))
		return QueryIntent{}, false
	}

	var answer fallbackAnswer
	if err := json.Unmarshal([]byte(extractJSONObject(result.Text)), &answer); err != nil {
		c.logger.Warn("intent fallback returned unparseable answer",
			zap.String("text", result.Text),
			zap.Error(err),
		)
		return QueryIntent{}, false
	}

	var requested []apps.AppID
	seen := make(map[apps.AppID]bool)
	for _, raw := range answer.Apps {
		id := apps.AppID(strings.ToLower(strings.TrimSpace(raw)))
		if !apps.Known(id) || seen[id] {
			continue
		}
		seen[id] = true
		requested = append(requested, id)
	}

	switch answer.Mode {
	case "external":
		return QueryIntent{
			Mode:                  ModeExternal,
			RequiresExternalTools: true,
			RequestedApps:         requested,
			Reasoning:             "fallback classifier: external",
		}, true
	case "hybrid":
		return QueryIntent{
			Mode:                  ModeHybrid,
			RequiresExternalTools: true,
			RequestedApps:         requested,
			Reasoning:             "fallback classifier: hybrid",
		}, true
	case "internal":
		return QueryIntent{
			Mode:      ModeInternal,
			Reasoning: "fallback classifier: internal",
		}, true
	default:
		return QueryIntent{}, false
	}
}

// extractJSONObject pulls the first {...} span out of free text, since
// generators often wrap answers in prose or code fences.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}

// Package intent classifies a user's free-text request into the tool access
// it needs: internal workspace data, external third-party apps, or both. A
// deterministic keyword layer decides obvious cases; an optional LLM-backed
// pass resolves ambiguous inputs and degrades to the deterministic guess on
// any failure. Classification errors never propagate to the caller.
package intent

import (
	"context"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/lofthq/loft-assistant/internal/apps"
	"github.com/lofthq/loft-assistant/internal/generation"
	"go.uber.org/zap"
)

// Mode is the kind of tool access a request needs.
type Mode int

const (
	ModeInternal Mode = iota + 1
	ModeExternal
	ModeHybrid
)

// String returns the lowercase mode name.
func (m Mode) String() string {
	switch m {
	case ModeInternal:
		return "internal"
	case ModeExternal:
		return "external"
	case ModeHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// QueryIntent is the structured classification of one inbound message.
// Created fresh per message, never persisted.
type QueryIntent struct {
	Mode                  Mode
	RequiresExternalTools bool
	RequestedApps         []apps.AppID
	Reasoning             string
}

// internalVocabulary signals explicit requests for workspace data.
var internalVocabulary = []string{
	"channel", "channels", "thread", "threads", "board", "boards",
	"note", "notes", "canvas", "dashboard", "dashboards", "workspace",
	"summarize", "summary", "message history",
}

// ambiguousVocabulary signals the message is about doing something rather
// than reading workspace data, without naming a known app. These are the
// inputs worth spending a fallback pass on.
var ambiguousVocabulary = []string{
	"send", "remind", "notify", "sync", "share", "post", "follow up", "followup",
}

const defaultCacheTTL = 2 * time.Minute

// Config configures a Classifier.
type Config struct {
	// Fallback resolves ambiguous inputs. Nil disables the secondary pass.
	Fallback generation.Generator
	// CacheTTL bounds how long identical messages classify identically.
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// Classifier classifies inbound messages with a short-TTL result cache.
type Classifier struct {
	fallback generation.Generator
	cache    *ristretto.Cache[string, QueryIntent]
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewClassifier creates a Classifier.
func NewClassifier(cfg Config) (*Classifier, error) {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, QueryIntent]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Classifier{
		fallback: cfg.Fallback,
		cache:    cache,
		cacheTTL: ttl,
		logger:   cfg.Logger,
	}, nil
}

// Close releases the cache.
func (c *Classifier) Close() {
	c.cache.Close()
}

// Classify returns the QueryIntent for a message. It is total: any input,
// including empty text and fallback failures, yields a usable intent.
func (c *Classifier) Classify(ctx context.Context, message string) QueryIntent {
	normalized := strings.ToLower(strings.TrimSpace(message))
	if normalized == "" {
		return QueryIntent{
			Mode:      ModeInternal,
			Reasoning: "empty message",
		}
	}

	if cached, ok := c.cache.Get(normalized); ok {
		return cached
	}

	qi, confident := classifyDeterministic(message, normalized)
	if !confident && c.fallback != nil {
		if resolved, ok := c.classifyWithFallback(ctx, message); ok {
			qi = resolved
		}
	}

	c.cache.SetWithTTL(normalized, qi, 1, c.cacheTTL)
	return qi
}

// classifyDeterministic applies the keyword layer. The second return value
// reports whether the result is confident enough to skip the fallback pass.
func classifyDeterministic(message, normalized string) (QueryIntent, bool) {
	requested := apps.DetectMentions(message)
	internal := containsAnyWord(normalized, internalVocabulary) || strings.Contains(normalized, "#")

	switch {
	case len(requested) > 0 && internal:
		return QueryIntent{
			Mode:                  ModeHybrid,
			RequiresExternalTools: true,
			RequestedApps:         requested,
			Reasoning:             "message mentions connected apps and workspace data",
		}, true
	case len(requested) > 0:
		return QueryIntent{
			Mode:                  ModeExternal,
			RequiresExternalTools: true,
			RequestedApps:         requested,
			Reasoning:             "message mentions connected apps",
		}, true
	case internal:
		return QueryIntent{
			Mode:      ModeInternal,
			Reasoning: "message requests workspace data",
		}, true
	case containsAnyWord(normalized, ambiguousVocabulary):
		// Action verb without a known app: best guess is internal, but let
		// the fallback take a look.
		return QueryIntent{
			Mode:      ModeInternal,
			Reasoning: "no app mention detected; defaulting to workspace data",
		}, false
	default:
		return QueryIntent{
			Mode:      ModeInternal,
			Reasoning: "no external signal detected",
		}, true
	}
}

func containsAnyWord(normalized string, words []string) bool {
	for _, w := range words {
		if indexWord(normalized, w) >= 0 {
			return true
		}
	}
	return false
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
		if wordBoundary(s, idx-1) && wordBoundary(s, idx+len(w)) {
			return idx
		}
		from = idx + 1
	}
}

func wordBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_')
}

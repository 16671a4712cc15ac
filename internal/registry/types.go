// Package registry assembles the unified tool set for one orchestrator turn:
// internal workspace-data tools merged with external tools resolved per
// connected third-party app.
package registry

import (
	"context"

	"github.com/lofthq/loft-assistant/internal/apps"
)

// ProvenanceKind distinguishes internal from external tools.
type ProvenanceKind int

const (
	ProvenanceInternal ProvenanceKind = iota + 1
	ProvenanceExternal
)

// String returns the lowercase provenance name.
func (k ProvenanceKind) String() string {
	switch k {
	case ProvenanceInternal:
		return "internal"
	case ProvenanceExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Provenance records where a tool came from. AppID is set only for external
// tools.
type Provenance struct {
	Kind  ProvenanceKind
	AppID apps.AppID
}

// InvokeFunc executes a tool with JSON-encoded arguments and returns a
// JSON-encoded result.
type InvokeFunc func(ctx context.Context, argumentsJSON string) (string, error)

// ToolDescriptor is one callable tool in a registry snapshot. Names are
// unique within a snapshot.
type ToolDescriptor struct {
	Name        string
	Description string
	Provenance  Provenance
	Schema      map[string]any // JSON Schema for arguments, nil if not set
	Invoke      InvokeFunc
}

// SkipReason explains why a requested app contributed no tools.
type SkipReason string

const (
	SkipNoConnection  SkipReason = "no_active_connection"
	SkipNoAuthConfig  SkipReason = "missing_auth_config"
	SkipProviderError SkipReason = "provider_error"
)

// Resolution is the per-app outcome of external tool resolution. Collecting
// these instead of swallowing failures keeps "why did this app get dropped"
// answerable in logs and tests.
type Resolution struct {
	AppID     apps.AppID
	Skipped   bool
	Reason    SkipReason
	Detail    string
	ToolCount int
}

// Snapshot is the merged tool set for one request plus the resolution trail.
type Snapshot struct {
	Tools       map[string]*ToolDescriptor
	Resolutions []Resolution
}

// UnavailableApps returns the requested apps that contributed no tools.
func (s *Snapshot) UnavailableApps() []apps.AppID {
	var out []apps.AppID
	for _, r := range s.Resolutions {
		if r.Skipped {
			out = append(out, r.AppID)
		}
	}
	return out
}

// ExternalToolCount returns how many tools in the snapshot are external.
func (s *Snapshot) ExternalToolCount() int {
	n := 0
	for _, td := range s.Tools {
		if td.Provenance.Kind == ProvenanceExternal {
			n++
		}
	}
	return n
}

package registry

import (
	"context"
	"time"

	"github.com/lofthq/loft-assistant/internal/apps"
	"github.com/lofthq/loft-assistant/internal/store"
	"go.uber.org/zap"
)

// ToolProvider lists the callable tool set for a connected app. This is the
// boundary to the external tool platform.
type ToolProvider interface {
	ListTools(ctx context.Context, appID apps.AppID, conn *store.Connection, authConfig *store.AuthConfig) ([]ToolDescriptor, error)
}

// Options selects which tools to assemble for one request.
type Options struct {
	WorkspaceID     string
	MemberID        string
	IncludeInternal bool
	IncludeExternal bool
	RequestedApps   []apps.AppID
}

// Registry assembles tool snapshots. Snapshots are rebuilt on every call;
// only the connected-account lookups are memoized, with a short TTL.
type Registry struct {
	store     store.Store
	provider  ToolProvider
	connCache *ConnectionCache
	logger    *zap.Logger
}

// Config configures a Registry.
type Config struct {
	Store    store.Store
	Provider ToolProvider
	// ConnCacheTTL bounds the connected-account memoization. Defaults to 30s.
	ConnCacheTTL time.Duration
	Logger       *zap.Logger
}

// NewRegistry creates a Registry.
func NewRegistry(cfg Config) *Registry {
	ttl := cfg.ConnCacheTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &Registry{
		store:     cfg.Store,
		provider:  cfg.Provider,
		connCache: NewConnectionCache(ttl),
		logger:    cfg.Logger,
	}
}

// GetAllTools builds the merged tool snapshot for one request. Requested apps
// that cannot be resolved are skipped with a Resolution entry rather than
// failing the call: the registry returns the tools it can resolve.
//
// Collision rule: when an internal and an external tool share a name, the
// external tool wins. Internal tools are inserted first and external tools
// overwrite on merge; the rule is fixed and unit-tested, not an artifact of
// map insertion order.
func (r *Registry) GetAllTools(ctx context.Context, opts Options) *Snapshot {
	snap := &Snapshot{Tools: make(map[string]*ToolDescriptor)}

	if opts.IncludeInternal {
		for _, td := range r.internalTools(opts.WorkspaceID, opts.MemberID) {
			snap.Tools[td.Name] = td
		}
	}

	if !opts.IncludeExternal {
		return snap
	}

	for _, appID := range opts.RequestedApps {
		tools, res := r.resolveApp(ctx, opts.WorkspaceID, opts.MemberID, appID)
		snap.Resolutions = append(snap.Resolutions, res)
		if res.Skipped {
			r.logger.Warn("external app skipped",
				zap.String("workspace_id", opts.WorkspaceID),
				zap.String("app_id", string(appID)),
				zap.String("reason", string(res.Reason)),
				zap.String("detail", res.Detail),
			)
			continue
		}
		for i := range tools {
			td := tools[i]
			td.Provenance = Provenance{Kind: ProvenanceExternal, AppID: appID}
			if prev, ok := snap.Tools[td.Name]; ok {
				r.logger.Debug("tool name collision, external wins",
					zap.String("tool_name", td.Name),
					zap.String("previous", prev.Provenance.Kind.String()),
					zap.String("app_id", string(appID)),
				)
			}
			snap.Tools[td.Name] = &td
		}
	}

	return snap
}

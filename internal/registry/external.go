package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/lofthq/loft-assistant/internal/apps"
	"github.com/lofthq/loft-assistant/internal/store"
	"go.uber.org/zap"
)

// resolveApp resolves one requested app into its tool set: connected account
// (member-scoped preferred, workspace fallback), then auth config, then the
// provider's tool listing. Every failure becomes a skip Resolution, never an
// error for the whole request.
func (r *Registry) resolveApp(ctx context.Context, workspaceID, memberID string, appID apps.AppID) ([]ToolDescriptor, Resolution) {
	conn, err := r.resolveConnection(ctx, workspaceID, memberID, appID)
	if err != nil {
		return nil, Resolution{
			AppID:   appID,
			Skipped: true,
			Reason:  SkipNoConnection,
			Detail:  fmt.Sprintf("connection lookup failed: %v", err),
		}
	}
	if !conn.Active() {
		return nil, Resolution{
			AppID:   appID,
			Skipped: true,
			Reason:  SkipNoConnection,
			Detail:  "no active connection for workspace or member",
		}
	}

	authCfg, err := r.store.GetAuthConfig(ctx, conn.AuthConfigID)
	if err != nil {
		return nil, Resolution{
			AppID:   appID,
			Skipped: true,
			Reason:  SkipNoAuthConfig,
			Detail:  fmt.Sprintf("auth config lookup failed: %v", err),
		}
	}
	if authCfg == nil || authCfg.Disabled {
		return nil, Resolution{
			AppID:   appID,
			Skipped: true,
			Reason:  SkipNoAuthConfig,
			Detail:  "auth config missing or disabled",
		}
	}

	tools, err := r.provider.ListTools(ctx, appID, conn, authCfg)
	if err != nil {
		return nil, Resolution{
			AppID:   appID,
			Skipped: true,
			Reason:  SkipProviderError,
			Detail:  err.Error(),
		}
	}

	return tools, Resolution{AppID: appID, ToolCount: len(tools)}
}

// resolveConnection returns the connected account for an app, preferring a
// member-scoped connection and falling back to a workspace-scoped one.
// Results, including "not connected", are memoized with a short TTL.
func (r *Registry) resolveConnection(ctx context.Context, workspaceID, memberID string, appID apps.AppID) (*store.Connection, error) {
	cached := r.connCache.Get(workspaceID, memberID, appID)
	if cached.Hit {
		if cached.NeedsRefresh {
			go r.refreshConnection(workspaceID, memberID, appID)
		}
		return cached.Conn, nil
	}

	conn, err := r.lookupConnection(ctx, workspaceID, memberID, appID)
	if err != nil {
		return nil, err
	}
	r.connCache.Set(workspaceID, memberID, appID, conn)
	return conn, nil
}

func (r *Registry) lookupConnection(ctx context.Context, workspaceID, memberID string, appID apps.AppID) (*store.Connection, error) {
	if memberID != "" {
		conn, err := r.store.GetMemberConnection(ctx, workspaceID, memberID, appID)
		if err != nil {
			return nil, err
		}
		if conn.Active() {
			return conn, nil
		}
	}
	return r.store.GetWorkspaceConnection(ctx, workspaceID, appID)
}

func (r *Registry) refreshConnection(workspaceID, memberID string, appID apps.AppID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := r.lookupConnection(ctx, workspaceID, memberID, appID)
	if err != nil {
		r.logger.Warn("background connection refresh failed",
			zap.String("workspace_id", workspaceID),
			zap.String("app_id", string(appID)),
			zap.Error(err),
		)
		return
	}
	r.connCache.Set(workspaceID, memberID, appID, conn)
}

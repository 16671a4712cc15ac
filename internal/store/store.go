// Package store provides access to the workspace document store. The core
// assumes nothing beyond key lookup and append semantics: connected-account
// and auth-config lookups for the registry, workspace data reads for the
// internal tools, and API-key lookups for the HTTP layer.
package store

import (
	"context"
	"time"

	"github.com/lofthq/loft-assistant/internal/apps"
)

// Connection is a connected third-party account. MemberID is empty for
// workspace-level connections.
type Connection struct {
	ID           string
	WorkspaceID  string
	MemberID     string
	AppID        apps.AppID
	AuthConfigID string
	Status       string // "active", "revoked", "expired"
	CreatedAt    time.Time
}

// Active reports whether the connection is usable.
func (c *Connection) Active() bool {
	return c != nil && c.Status == "active"
}

// AuthConfig is the auth material reference tied to a connection. Credentials
// themselves stay with the external tool provider; the core only carries the
// reference.
type AuthConfig struct {
	ID       string
	AppID    apps.AppID
	Scheme   string // "oauth2", "api_key"
	Disabled bool
}

// Channel is a chat channel in a workspace.
type Channel struct {
	ID          string
	WorkspaceID string
	Name        string
	Topic       string
	CreatedAt   time.Time
}

// ChannelMessage is one message in a channel.
type ChannelMessage struct {
	ID        string
	ChannelID string
	MemberID  string
	Text      string
	CreatedAt time.Time
}

// Board is a project board in a workspace.
type Board struct {
	ID          string
	WorkspaceID string
	Name        string
	CardCount   int
}

// Note is a workspace note.
type Note struct {
	ID          string
	WorkspaceID string
	MemberID    string
	Title       string
	Body        string
	CreatedAt   time.Time
}

// WorkspaceKey is the hashed API-key row used to authenticate HTTP callers.
type WorkspaceKey struct {
	WorkspaceID string
	APIKeyHash  string
}

// Store is the narrow interface the core consumes. Lookup methods return
// (nil, nil) when the row does not exist.
type Store interface {
	// GetMemberConnection returns the member-scoped active connection for an
	// app, if any.
	GetMemberConnection(ctx context.Context, workspaceID, memberID string, appID apps.AppID) (*Connection, error)

	// GetWorkspaceConnection returns the workspace-scoped active connection
	// for an app, if any.
	GetWorkspaceConnection(ctx context.Context, workspaceID string, appID apps.AppID) (*Connection, error)

	// GetAuthConfig returns the auth configuration by id.
	GetAuthConfig(ctx context.Context, authConfigID string) (*AuthConfig, error)

	// Workspace data reads backing the internal tools.
	ListChannels(ctx context.Context, workspaceID string) ([]Channel, error)
	ListChannelMessages(ctx context.Context, workspaceID, channelName string, limit int) ([]ChannelMessage, error)
	SearchMessages(ctx context.Context, workspaceID, query string, limit int) ([]ChannelMessage, error)
	ListBoards(ctx context.Context, workspaceID string) ([]Board, error)
	CreateNote(ctx context.Context, workspaceID, memberID, title, body string) (*Note, error)

	// LookupKeyByPrefix returns the workspace key row matching an API-key
	// prefix.
	LookupKeyByPrefix(ctx context.Context, prefix string) (*WorkspaceKey, error)
}

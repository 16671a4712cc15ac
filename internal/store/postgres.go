package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lofthq/loft-assistant/internal/apps"
)

// PostgresStore implements Store against the workspace Postgres database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetMemberConnection(ctx context.Context, workspaceID, memberID string, appID apps.AppID) (*Connection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, COALESCE(member_id, ''), app_id, auth_config_id, status, created_at
		FROM connected_accounts
		WHERE workspace_id = $1 AND member_id = $2 AND app_id = $3 AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1
	`, workspaceID, memberID, string(appID))
	return scanConnection(row)
}

func (s *PostgresStore) GetWorkspaceConnection(ctx context.Context, workspaceID string, appID apps.AppID) (*Connection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, COALESCE(member_id, ''), app_id, auth_config_id, status, created_at
		FROM connected_accounts
		WHERE workspace_id = $1 AND member_id IS NULL AND app_id = $2 AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1
	`, workspaceID, string(appID))
	return scanConnection(row)
}

func scanConnection(row *sql.Row) (*Connection, error) {
	var c Connection
	var appID string
	if err := row.Scan(&c.ID, &c.WorkspaceID, &c.MemberID, &appID, &c.AuthConfigID, &c.Status, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scanConnection: %w", err)
	}
	c.AppID = apps.AppID(appID)
	return &c, nil
}

func (s *PostgresStore) GetAuthConfig(ctx context.Context, authConfigID string) (*AuthConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, app_id, scheme, disabled
		FROM auth_configs
		WHERE id = $1
	`, authConfigID)

	var ac AuthConfig
	var appID string
	if err := row.Scan(&ac.ID, &appID, &ac.Scheme, &ac.Disabled); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("GetAuthConfig: %w", err)
	}
	ac.AppID = apps.AppID(appID)
	return &ac, nil
}

func (s *PostgresStore) ListChannels(ctx context.Context, workspaceID string) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, name, COALESCE(topic, ''), created_at
		FROM channels
		WHERE workspace_id = $1
		ORDER BY name
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("ListChannels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Channel
	for rows.Next() {
		var ch Channel
		if err := rows.Scan(&ch.ID, &ch.WorkspaceID, &ch.Name, &ch.Topic, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListChannels: %w", err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListChannelMessages(ctx context.Context, workspaceID, channelName string, limit int) ([]ChannelMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.channel_id, m.member_id, m.text, m.created_at
		FROM channel_messages m
		JOIN channels c ON c.id = m.channel_id
		WHERE c.workspace_id = $1 AND c.name = $2
		ORDER BY m.created_at DESC
		LIMIT $3
	`, workspaceID, channelName, limit)
	if err != nil {
		return nil, fmt.Errorf("ListChannelMessages: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanMessages(rows)
}

func (s *PostgresStore) SearchMessages(ctx context.Context, workspaceID, query string, limit int) ([]ChannelMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.channel_id, m.member_id, m.text, m.created_at
		FROM channel_messages m
		JOIN channels c ON c.id = m.channel_id
		WHERE c.workspace_id = $1 AND m.text ILIKE '%' || $2 || '%'
		ORDER BY m.created_at DESC
		LIMIT $3
	`, workspaceID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("SearchMessages: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]ChannelMessage, error) {
	var out []ChannelMessage
	for rows.Next() {
		var m ChannelMessage
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.MemberID, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanMessages: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListBoards(ctx context.Context, workspaceID string) ([]Board, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.workspace_id, b.name,
		       (SELECT COUNT(*) FROM board_cards bc WHERE bc.board_id = b.id)
		FROM boards b
		WHERE b.workspace_id = $1
		ORDER BY b.name
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("ListBoards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Board
	for rows.Next() {
		var b Board
		if err := rows.Scan(&b.ID, &b.WorkspaceID, &b.Name, &b.CardCount); err != nil {
			return nil, fmt.Errorf("ListBoards: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateNote(ctx context.Context, workspaceID, memberID, title, body string) (*Note, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO notes (workspace_id, member_id, title, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, workspace_id, member_id, title, body, created_at
	`, workspaceID, memberID, title, body)

	var n Note
	if err := row.Scan(&n.ID, &n.WorkspaceID, &n.MemberID, &n.Title, &n.Body, &n.CreatedAt); err != nil {
		return nil, fmt.Errorf("CreateNote: %w", err)
	}
	return &n, nil
}

func (s *PostgresStore) LookupKeyByPrefix(ctx context.Context, prefix string) (*WorkspaceKey, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT workspace_id, api_key_hash
		FROM workspace_api_keys
		WHERE api_key_prefix = $1 AND revoked_at IS NULL
	`, prefix)

	var k WorkspaceKey
	if err := row.Scan(&k.WorkspaceID, &k.APIKeyHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("LookupKeyByPrefix: %w", err)
	}
	return &k, nil
}

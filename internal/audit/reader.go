package audit

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// Reader provides read access to the assistant_audit_events table.
type Reader struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewReader opens a ClickHouse connection for read queries.
func NewReader(dsn string, logger *zap.Logger) (*Reader, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}

	return &Reader{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (r *Reader) Close() error {
	return r.conn.Close()
}

// ListEventsParams holds filters and pagination for event listing.
type ListEventsParams struct {
	WorkspaceID string
	MemberID    *string
	ToolName    *string
	Toolkit     *string
	Outcome     *string
	StartTime   *time.Time
	EndTime     *time.Time
	Page        int
	PageSize    int
}

// ListEvents returns paginated, filtered audit events and the total count.
func (r *Reader) ListEvents(ctx context.Context, params ListEventsParams) ([]Event, int, error) {
	conditions := []string{"workspace_id = @workspace_id"}
	args := []any{
		clickhouse.Named("workspace_id", params.WorkspaceID),
	}

	if params.MemberID != nil {
		conditions = append(conditions, "member_id = @member_id")
		args = append(args, clickhouse.Named("member_id", *params.MemberID))
	}
	if params.ToolName != nil {
		conditions = append(conditions, "tool_name = @tool_name")
		args = append(args, clickhouse.Named("tool_name", *params.ToolName))
	}
	if params.Toolkit != nil {
		conditions = append(conditions, "toolkit = @toolkit")
		args = append(args, clickhouse.Named("toolkit", *params.Toolkit))
	}
	if params.Outcome != nil {
		conditions = append(conditions, "outcome = @outcome")
		args = append(args, clickhouse.Named("outcome", *params.Outcome))
	}
	if params.StartTime != nil {
		conditions = append(conditions, "timestamp >= @start_time")
		args = append(args, clickhouse.Named("start_time", *params.StartTime))
	}
	if params.EndTime != nil {
		conditions = append(conditions, "timestamp <= @end_time")
		args = append(args, clickhouse.Named("end_time", *params.EndTime))
	}

	where := strings.Join(conditions, " AND ")

	var total uint64
	countQuery := "SELECT count() FROM assistant_audit_events WHERE " + where
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListEvents: count: %w", err)
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	query := `
		SELECT id, workspace_id, member_id, user_id, timestamp,
		       tool_name, toolkit, arguments_json, outcome, error,
		       execution_path, tool_call_id, request_id
		FROM assistant_audit_events
		WHERE ` + where + `
		ORDER BY timestamp DESC
		LIMIT @limit OFFSET @offset
	`
	args = append(args,
		clickhouse.Named("limit", pageSize),
		clickhouse.Named("offset", (page-1)*pageSize),
	)

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListEvents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var e Event
		var outcome string
		if err := rows.Scan(
			&e.ID, &e.WorkspaceID, &e.MemberID, &e.UserID, &e.Timestamp,
			&e.ToolName, &e.Toolkit, &e.ArgumentsJSON, &outcome, &e.Error,
			&e.ExecutionPath, &e.ToolCallID, &e.RequestID,
		); err != nil {
			return nil, 0, fmt.Errorf("ListEvents: scan: %w", err)
		}
		e.Outcome = Outcome(outcome)
		events = append(events, e)
	}

	return events, int(total), rows.Err()
}

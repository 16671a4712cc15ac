package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/lofthq/loft-assistant/internal/audit"
	"go.uber.org/zap"
)

func (d *Dependencies) handleListAuditEvents(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}

	q := r.URL.Query()
	workspaceID := q.Get("workspace_id")
	if workspaceID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "workspace_id query parameter is required"})
		return
	}

	params := audit.ListEventsParams{
		WorkspaceID: workspaceID,
		Page:        queryInt(q, "page", 1),
		PageSize:    queryInt(q, "page_size", 50),
	}
	if params.PageSize > 200 {
		params.PageSize = 200
	}
	if params.Page < 1 {
		params.Page = 1
	}

	if v := q.Get("member_id"); v != "" {
		params.MemberID = &v
	}
	if v := q.Get("tool_name"); v != "" {
		params.ToolName = &v
	}
	if v := q.Get("toolkit"); v != "" {
		params.Toolkit = &v
	}
	if v := q.Get("outcome"); v != "" {
		params.Outcome = &v
	}
	if v := q.Get("start_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.StartTime = &t
		}
	}
	if v := q.Get("end_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.EndTime = &t
		}
	}

	events, total, err := d.Reader.ListEvents(r.Context(), params)
	if err != nil {
		d.Logger.Error("failed to list audit events", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list audit events"})
		return
	}

	resp := EventListResp{
		Events:   make([]AuditEventResp, 0, len(events)),
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	for _, e := range events {
		resp.Events = append(resp.Events, eventToResp(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

func eventToResp(e audit.Event) AuditEventResp {
	return AuditEventResp{
		ID:            e.ID,
		WorkspaceID:   e.WorkspaceID,
		MemberID:      nilIfEmpty(e.MemberID),
		UserID:        nilIfEmpty(e.UserID),
		ToolName:      e.ToolName,
		Toolkit:       e.Toolkit,
		ArgumentsJSON: e.ArgumentsJSON,
		Outcome:       string(e.Outcome),
		Error:         nilIfEmpty(e.Error),
		ExecutionPath: e.ExecutionPath,
		ToolCallID:    nilIfEmpty(e.ToolCallID),
		RequestID:     e.RequestID,
		Timestamp:     e.Timestamp,
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func queryInt(q interface{ Get(string) string }, key string, defaultVal int) int {
	v := q.Get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

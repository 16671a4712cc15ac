package api

import "time"

// --- POST /v1/assistant/turn request/response ---

// MessageReq is one prior conversation turn supplied by the client.
type MessageReq struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// TurnRequest is the JSON body for POST /v1/assistant/turn.
type TurnRequest struct {
	MemberID string       `json:"member_id"`
	UserID   string       `json:"user_id,omitempty"`
	Message  string       `json:"message"`
	History  []MessageReq `json:"history,omitempty"`
}

// ToolCallResp is per-call metadata returned alongside the response text.
type ToolCallResp struct {
	CallID   string `json:"call_id,omitempty"`
	Name     string `json:"name"`
	External bool   `json:"external"`
	Outcome  string `json:"outcome"`
}

// TurnResponse is the JSON body returned by POST /v1/assistant/turn.
type TurnResponse struct {
	RequestID     string         `json:"request_id"`
	ResponseText  string         `json:"response_text"`
	Blocked       bool           `json:"blocked"`
	BlockedReason string         `json:"blocked_reason,omitempty"`
	ToolCalls     []ToolCallResp `json:"tool_calls,omitempty"`
}

// --- Audit events ---

// AuditEventResp is one audit event row.
type AuditEventResp struct {
	ID            string    `json:"id"`
	WorkspaceID   string    `json:"workspace_id"`
	MemberID      *string   `json:"member_id"`
	UserID        *string   `json:"user_id"`
	ToolName      string    `json:"tool_name"`
	Toolkit       string    `json:"toolkit"`
	ArgumentsJSON string    `json:"arguments_json"`
	Outcome       string    `json:"outcome"`
	Error         *string   `json:"error"`
	ExecutionPath string    `json:"execution_path"`
	ToolCallID    *string   `json:"tool_call_id"`
	RequestID     string    `json:"request_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// EventListResp is the paginated audit event listing.
type EventListResp struct {
	Events   []AuditEventResp `json:"events"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}

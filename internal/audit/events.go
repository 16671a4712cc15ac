// Package audit records every external tool invocation attempt as an
// immutable event, with secret redaction applied before anything is
// persisted. Audit is best-effort observability: a failed write never rolls
// back the tool execution it describes.
package audit

import "time"

// Outcome is the result of a tool invocation attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Event is one external tool invocation attempt. Append-only; there is no
// update or delete path.
type Event struct {
	ID            string
	WorkspaceID   string
	MemberID      string
	UserID        string
	ToolName      string
	Toolkit       string // uppercased app identifier
	ArgumentsJSON string // sanitized before write
	Outcome       Outcome
	Error         string // sanitized before write
	ExecutionPath string
	ToolCallID    string
	RequestID     string
	Timestamp     time.Time
}

// EventWriter is the sink for audit events. Write must never block the
// caller.
type EventWriter interface {
	Write(event *Event)
	Close()
}

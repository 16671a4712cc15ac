// Package orchestrator drives one assistant turn end to end: classify the
// message, assemble tools, run generation, gate high-impact calls behind
// user confirmation, execute, audit external attempts, respond.
package orchestrator

import (
	"github.com/lofthq/loft-assistant/internal/generation"
)

// Identity is the acting member/user for a turn.
type Identity struct {
	MemberID string
	UserID   string
}

// TurnRequest is one inbound user message with its conversation context.
type TurnRequest struct {
	WorkspaceID string
	Identity    Identity
	History     []generation.Message
	UserMessage string
}

// BlockedReason says why a turn stopped before executing anything.
type BlockedReason string

const (
	BlockedConfirmationRequired BlockedReason = "confirmation_required"
	BlockedCancelled            BlockedReason = "cancelled"
)

// ToolCallSummary is per-call metadata returned alongside the response text.
type ToolCallSummary struct {
	CallID   string `json:"call_id,omitempty"`
	Name     string `json:"name"`
	External bool   `json:"external"`
	Outcome  string `json:"outcome"` // "success" or "error"
}

// TurnResult is the outcome of one turn. Blocked turns carry the
// confirmation or cancellation text and performed no execution and no audit
// writes.
type TurnResult struct {
	RequestID     string
	ResponseText  string
	Blocked       bool
	BlockedReason BlockedReason
	ToolCalls     []ToolCallSummary
}

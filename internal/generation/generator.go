// Package generation defines the black-box text/tool generation step the
// orchestrator drives. The core does not care which model or provider sits
// behind the interface, only that it returns narrative text plus zero or more
// proposed tool calls.
package generation

import "context"

// Role labels a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleTool carries tool execution results back into a follow-up
	// generation pass. It never appears in client-supplied history.
	RoleTool Role = "tool"
)

// Message is one turn of conversation history.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Tool describes a callable tool offered to the generator.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema,omitempty"`
}

// ProposedCall is a tool invocation the generator wants executed.
type ProposedCall struct {
	CallID        string `json:"call_id"`
	Name          string `json:"name"`
	ArgumentsJSON string `json:"arguments_json"`
}

// Result is the generator's output for one pass.
type Result struct {
	Text          string         `json:"text"`
	ProposedCalls []ProposedCall `json:"proposed_calls,omitempty"`
}

// Generator produces a response and proposed tool calls for a conversation.
// Implementations must respect ctx deadlines.
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, history []Message, tools []Tool) (*Result, error)
}

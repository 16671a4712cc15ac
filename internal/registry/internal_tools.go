package registry

import (
	"context"
	"encoding/json"
	"fmt"
)

// internalTools builds the workspace-data tool set, scoped to the acting
// workspace and member. These are always resolvable: they only touch the
// internal store.
func (r *Registry) internalTools(workspaceID, memberID string) []*ToolDescriptor {
	internal := Provenance{Kind: ProvenanceInternal}

	return []*ToolDescriptor{
		{
			Name:        "list_channels",
			Description: "List the chat channels in this workspace.",
			Provenance:  internal,
			Schema: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{},
				"additionalProperties": false,
			},
			Invoke: func(ctx context.Context, _ string) (string, error) {
				channels, err := r.store.ListChannels(ctx, workspaceID)
				if err != nil {
					return "", fmt.Errorf("list_channels: %w", err)
				}
				return marshalResult(map[string]any{"channels": channels})
			},
		},
		{
			Name:        "read_channel_messages",
			Description: "Read the most recent messages in a channel by name.",
			Provenance:  internal,
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"channel": map[string]any{"type": "string"},
					"limit":   map[string]any{"type": "integer", "minimum": 1, "maximum": 200},
				},
				"required":             []any{"channel"},
				"additionalProperties": false,
			},
			Invoke: func(ctx context.Context, argsJSON string) (string, error) {
				var args struct {
					Channel string `json:"channel"`
					Limit   int    `json:"limit"`
				}
				if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
					return "", fmt.Errorf("read_channel_messages: invalid arguments: %w", err)
				}
				messages, err := r.store.ListChannelMessages(ctx, workspaceID, args.Channel, args.Limit)
				if err != nil {
					return "", fmt.Errorf("read_channel_messages: %w", err)
				}
				return marshalResult(map[string]any{"messages": messages})
			},
		},
		{
			Name:        "search_messages",
			Description: "Search messages across the workspace by text.",
			Provenance:  internal,
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "minLength": 1},
					"limit": map[string]any{"type": "integer", "minimum": 1, "maximum": 200},
				},
				"required":             []any{"query"},
				"additionalProperties": false,
			},
			Invoke: func(ctx context.Context, argsJSON string) (string, error) {
				var args struct {
					Query string `json:"query"`
					Limit int    `json:"limit"`
				}
				if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
					return "", fmt.Errorf("search_messages: invalid arguments: %w", err)
				}
				messages, err := r.store.SearchMessages(ctx, workspaceID, args.Query, args.Limit)
				if err != nil {
					return "", fmt.Errorf("search_messages: %w", err)
				}
				return marshalResult(map[string]any{"messages": messages})
			},
		},
		{
			Name:        "list_boards",
			Description: "List the project boards in this workspace.",
			Provenance:  internal,
			Schema: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{},
				"additionalProperties": false,
			},
			Invoke: func(ctx context.Context, _ string) (string, error) {
				boards, err := r.store.ListBoards(ctx, workspaceID)
				if err != nil {
					return "", fmt.Errorf("list_boards: %w", err)
				}
				return marshalResult(map[string]any{"boards": boards})
			},
		},
		{
			Name:        "create_note",
			Description: "Create a note in this workspace.",
			Provenance:  internal,
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{"type": "string", "minLength": 1},
					"body":  map[string]any{"type": "string"},
				},
				"required":             []any{"title"},
				"additionalProperties": false,
			},
			Invoke: func(ctx context.Context, argsJSON string) (string, error) {
				var args struct {
					Title string `json:"title"`
					Body  string `json:"body"`
				}
				if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
					return "", fmt.Errorf("create_note: invalid arguments: %w", err)
				}
				note, err := r.store.CreateNote(ctx, workspaceID, memberID, args.Title, args.Body)
				if err != nil {
					return "", fmt.Errorf("create_note: %w", err)
				}
				return marshalResult(map[string]any{"note": note})
			},
		},
	}
}

func marshalResult(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshalResult: %w", err)
	}
	return string(b), nil
}

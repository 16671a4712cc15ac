package api

import (
	"net/http"

	"github.com/lofthq/loft-assistant/internal/generation"
	"github.com/lofthq/loft-assistant/internal/orchestrator"
	"go.uber.org/zap"
)

func (d *Dependencies) handleTurn(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromContext(r.Context())
	if ws == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResp{Detail: "Not authenticated"})
		return
	}

	var req TurnRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "message is required"})
		return
	}
	if req.MemberID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "member_id is required"})
		return
	}

	history := make([]generation.Message, 0, len(req.History))
	for _, m := range req.History {
		history = append(history, generation.Message{
			Role: generation.Role(m.Role),
			Text: m.Text,
		})
	}

	result, err := d.Driver.HandleTurn(r.Context(), &orchestrator.TurnRequest{
		WorkspaceID: ws.ID,
		Identity: orchestrator.Identity{
			MemberID: req.MemberID,
			UserID:   req.UserID,
		},
		History:     history,
		UserMessage: req.Message,
	})
	if err != nil {
		d.Logger.Error("turn failed",
			zap.String("workspace_id", ws.ID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to process turn"})
		return
	}

	resp := TurnResponse{
		RequestID:     result.RequestID,
		ResponseText:  result.ResponseText,
		Blocked:       result.Blocked,
		BlockedReason: string(result.BlockedReason),
	}
	for _, tc := range result.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCallResp{
			CallID:   tc.CallID,
			Name:     tc.Name,
			External: tc.External,
			Outcome:  tc.Outcome,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

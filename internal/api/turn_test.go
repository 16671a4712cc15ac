package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lofthq/loft-assistant/internal/orchestrator"
	"go.uber.org/zap"
)

// fakeDriver returns a scripted turn result.
type fakeDriver struct {
	result  *orchestrator.TurnResult
	err     error
	lastReq *orchestrator.TurnRequest
}

func (d *fakeDriver) HandleTurn(_ context.Context, req *orchestrator.TurnRequest) (*orchestrator.TurnResult, error) {
	d.lastReq = req
	return d.result, d.err
}

func postTurn(t *testing.T, deps *Dependencies, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/assistant/turn", strings.NewReader(body))
	ctx := context.WithValue(req.Context(), workspaceCtxKey, &authWorkspace{ID: "ws-1"})
	rec := httptest.NewRecorder()
	deps.handleTurn(rec, req.WithContext(ctx))
	return rec
}

func TestHandleTurn_Success(t *testing.T) {
	driver := &fakeDriver{result: &orchestrator.TurnResult{
		RequestID:    "req-1",
		ResponseText: "Done, the update was sent.",
		ToolCalls: []orchestrator.ToolCallSummary{
			{CallID: "call-1", Name: "send_slack_message", External: true, Outcome: "success"},
		},
	}}
	deps := &Dependencies{Driver: driver, Logger: zap.NewNop()}

	rec := postTurn(t, deps, `{
		"member_id": "m-1",
		"user_id": "u-1",
		"message": "confirm",
		"history": [{"role": "user", "text": "send an update in slack"}]
	}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp TurnResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RequestID != "req-1" || resp.ResponseText != "Done, the update was sent." {
		t.Errorf("response body wrong: %+v", resp)
	}
	if len(resp.ToolCalls) != 1 || !resp.ToolCalls[0].External {
		t.Errorf("tool calls wrong: %+v", resp.ToolCalls)
	}

	if driver.lastReq.WorkspaceID != "ws-1" {
		t.Errorf("workspace = %q, want ws-1", driver.lastReq.WorkspaceID)
	}
	if driver.lastReq.Identity.MemberID != "m-1" || driver.lastReq.Identity.UserID != "u-1" {
		t.Errorf("identity wrong: %+v", driver.lastReq.Identity)
	}
	if len(driver.lastReq.History) != 1 || driver.lastReq.History[0].Text != "send an update in slack" {
		t.Errorf("history wrong: %+v", driver.lastReq.History)
	}
}

func TestHandleTurn_BlockedMapsReason(t *testing.T) {
	driver := &fakeDriver{result: &orchestrator.TurnResult{
		RequestID:     "req-2",
		ResponseText:  "This request includes high-impact actions that need your confirmation: send_slack_message.",
		Blocked:       true,
		BlockedReason: orchestrator.BlockedConfirmationRequired,
	}}
	deps := &Dependencies{Driver: driver, Logger: zap.NewNop()}

	rec := postTurn(t, deps, `{"member_id": "m-1", "message": "send an update in slack"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp TurnResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Blocked || resp.BlockedReason != "confirmation_required" {
		t.Errorf("blocked mapping wrong: %+v", resp)
	}
}

func TestHandleTurn_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"member_id": `},
		{"missing message", `{"member_id": "m-1"}`},
		{"missing member_id", `{"message": "hello"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := &fakeDriver{}
			deps := &Dependencies{Driver: driver, Logger: zap.NewNop()}
			rec := postTurn(t, deps, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if driver.lastReq != nil {
				t.Error("driver called on bad request")
			}
		})
	}
}

func TestHandleTurn_DriverError(t *testing.T) {
	deps := &Dependencies{
		Driver: &fakeDriver{err: errors.New("boom")},
		Logger: zap.NewNop(),
	}
	rec := postTurn(t, deps, `{"member_id": "m-1", "message": "hello"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHandleTurn_Unauthenticated(t *testing.T) {
	deps := &Dependencies{Driver: &fakeDriver{}, Logger: zap.NewNop()}
	req := httptest.NewRequest(http.MethodPost, "/v1/assistant/turn", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	deps.handleTurn(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

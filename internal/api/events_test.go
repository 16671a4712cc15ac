package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"go.uber.org/zap"
)

func TestHandleListAuditEvents_NoReader(t *testing.T) {
	deps := &Dependencies{Logger: zap.NewNop()}
	req := httptest.NewRequest(http.MethodGet, "/api/assistant/audit-events?workspace_id=ws-1", nil)
	rec := httptest.NewRecorder()
	deps.handleListAuditEvents(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestQueryInt(t *testing.T) {
	q := url.Values{"page": {"3"}, "bad": {"x"}}
	if got := queryInt(q, "page", 1); got != 3 {
		t.Errorf("queryInt(page) = %d, want 3", got)
	}
	if got := queryInt(q, "bad", 7); got != 7 {
		t.Errorf("queryInt(bad) = %d, want 7", got)
	}
	if got := queryInt(q, "missing", 5); got != 5 {
		t.Errorf("queryInt(missing) = %d, want 5", got)
	}
}

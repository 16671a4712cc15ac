// Package api exposes the assistant over HTTP: the authenticated turn
// endpoint plus dashboard reads of the audit trail.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/lofthq/loft-assistant/internal/audit"
	"github.com/lofthq/loft-assistant/internal/orchestrator"
	"github.com/lofthq/loft-assistant/internal/store"
	"go.uber.org/zap"
)

// TurnDriver processes one assistant turn. Satisfied by orchestrator.Driver.
type TurnDriver interface {
	HandleTurn(ctx context.Context, req *orchestrator.TurnRequest) (*orchestrator.TurnResult, error)
}

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Store    store.Store
	Driver   TurnDriver
	Reader   *audit.Reader // nil if ClickHouse unavailable
	Logger   *zap.Logger
	CacheTTL time.Duration
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Turn endpoint (auth required via Bearer wak_ key)
	mux.HandleFunc("POST /v1/assistant/turn", deps.authMiddleware(deps.handleTurn))

	// Audit trail reads (no auth — dashboard auth added later)
	mux.HandleFunc("GET /api/assistant/audit-events", deps.handleListAuditEvents)

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return corsMiddleware(requestLogging(mux, deps.Logger))
}

package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder sanitizes and persists audit events. It deduplicates loosely by
// ToolCallID so one orchestrator turn cannot write the same attempt twice;
// this is per-process, not distributed.
type Recorder struct {
	writer EventWriter
	logger *zap.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewRecorder creates a Recorder on top of the given writer.
func NewRecorder(writer EventWriter, logger *zap.Logger) *Recorder {
	return &Recorder{
		writer: writer,
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// Record sanitizes the event and hands it to the writer. It never returns an
// error: audit failures are logged, not surfaced, and never undo the tool
// execution they describe.
func (r *Recorder) Record(event *Event) {
	if event == nil {
		return
	}

	if event.ToolCallID != "" {
		r.mu.Lock()
		if _, dup := r.seen[event.ToolCallID]; dup {
			r.mu.Unlock()
			r.logger.Warn("duplicate audit write suppressed",
				zap.String("tool_call_id", event.ToolCallID),
				zap.String("tool_name", event.ToolName),
			)
			return
		}
		r.seen[event.ToolCallID] = struct{}{}
		r.mu.Unlock()
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.ArgumentsJSON = SanitizeJSON(event.ArgumentsJSON)
	event.Error = SanitizeText(event.Error)

	r.writer.Write(event)
}

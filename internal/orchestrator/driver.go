package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lofthq/loft-assistant/internal/apps"
	"github.com/lofthq/loft-assistant/internal/audit"
	"github.com/lofthq/loft-assistant/internal/generation"
	"github.com/lofthq/loft-assistant/internal/intent"
	"github.com/lofthq/loft-assistant/internal/policy"
	"github.com/lofthq/loft-assistant/internal/registry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// executionPath tags audit events with the code path that produced them.
const executionPath = "orchestrator.handle_turn"

// generationFailureText is returned when the generation step itself fails.
// Nothing has been committed at that point, so the user can simply retry.
const generationFailureText = "Sorry, I couldn't process that right now. Please try again."

// Driver ties the classifier, registry, generator, policy and audit recorder
// together for one turn at a time. All collaborators are injected; the
// driver holds no hidden globals and no cross-request state.
type Driver struct {
	classifier *intent.Classifier
	registry   *registry.Registry
	generator  generation.Generator
	recorder   *audit.Recorder
	logger     *zap.Logger
}

// Config configures a Driver.
type Config struct {
	Classifier *intent.Classifier
	Registry   *registry.Registry
	Generator  generation.Generator
	Recorder   *audit.Recorder
	Logger     *zap.Logger
}

// NewDriver creates a Driver.
func NewDriver(cfg Config) *Driver {
	return &Driver{
		classifier: cfg.Classifier,
		registry:   cfg.Registry,
		generator:  cfg.Generator,
		recorder:   cfg.Recorder,
		logger:     cfg.Logger,
	}
}

// toolOutcome captures one executed call for auditing and narration.
type toolOutcome struct {
	call       generation.ProposedCall
	descriptor *registry.ToolDescriptor // nil for unknown tool names
	resultJSON string
	err        error
}

// HandleTurn processes one inbound message. The turn always produces a
// textual response: blocked, cancelled, degraded and error paths are all
// narrated, never dropped.
func (d *Driver) HandleTurn(ctx context.Context, req *TurnRequest) (*TurnResult, error) {
	if req == nil || req.WorkspaceID == "" {
		return nil, errors.New("HandleTurn: workspace id is required")
	}

	requestID := uuid.New().String()

	// Classifying. Classify is total: failures inside the classifier already
	// degraded to a safe internal-only intent. A bare confirmation reply
	// carries no intent of its own, so it classifies as the turn it confirms.
	classifyText := req.UserMessage
	if policy.ParseConfirmationDecision(req.UserMessage) != policy.DecisionNone {
		if prev := lastUserMessage(req.History); prev != "" {
			classifyText = prev
		}
	}
	qi := d.classifier.Classify(ctx, classifyText)

	// ToolAssembly. Unresolvable apps are skipped inside the registry; the
	// snapshot carries the reasons.
	snap := d.registry.GetAllTools(ctx, registry.Options{
		WorkspaceID:     req.WorkspaceID,
		MemberID:        req.Identity.MemberID,
		IncludeInternal: true,
		IncludeExternal: qi.RequiresExternalTools,
		RequestedApps:   qi.RequestedApps,
	})

	unavailable := snap.UnavailableApps()
	degradedToInternal := qi.RequiresExternalTools && snap.ExternalToolCount() == 0

	// Generating.
	history := append(SanitizeHistory(req.History), generation.Message{
		Role: generation.RoleUser,
		Text: stripControlChars(req.UserMessage),
	})
	systemPrompt := buildSystemPrompt(snap, unavailable)

	genResult, err := d.generator.Generate(ctx, systemPrompt, history, toolsForGeneration(snap))
	if err != nil {
		d.logger.Error("generation step failed",
			zap.String("request_id", requestID),
			zap.String("workspace_id", req.WorkspaceID),
			zap.Error(err),
		)
		return &TurnResult{RequestID: requestID, ResponseText: generationFailureText}, nil
	}

	// CheckingHighImpact. The gate decision is computed synchronously before
	// anything executes; there is no speculative execution pending
	// confirmation.
	names := make([]string, len(genResult.ProposedCalls))
	for i, call := range genResult.ProposedCalls {
		names[i] = call.Name
	}
	highImpact := policy.HighImpactToolNames(names)

	if len(highImpact) > 0 {
		switch policy.ParseConfirmationDecision(req.UserMessage) {
		case policy.DecisionCancel:
			// Blocked(Cancelled): no execution, no audit writes.
			return &TurnResult{
				RequestID:     requestID,
				ResponseText:  policy.BuildCancellationMessage(highImpact),
				Blocked:       true,
				BlockedReason: BlockedCancelled,
			}, nil
		case policy.DecisionConfirm:
			// Confirmed: all proposed calls execute, not just the gated ones.
		default:
			// Blocked(ConfirmationRequested): no execution, no audit writes.
			return &TurnResult{
				RequestID:     requestID,
				ResponseText:  policy.BuildConfirmationRequiredMessage(highImpact),
				Blocked:       true,
				BlockedReason: BlockedConfirmationRequired,
			}, nil
		}
	}

	// Executing. Proposed calls run concurrently; each call's failure is
	// captured independently and never rolls back siblings.
	outcomes := d.executeCalls(ctx, snap, genResult.ProposedCalls)

	// Auditing. Exactly one event per external attempt, success or failure,
	// written after the attempt resolves. Internal calls are never audited
	// this way.
	for i := range outcomes {
		out := &outcomes[i]
		if out.descriptor == nil || out.descriptor.Provenance.Kind != registry.ProvenanceExternal {
			continue
		}
		event := &audit.Event{
			WorkspaceID:   req.WorkspaceID,
			MemberID:      req.Identity.MemberID,
			UserID:        req.Identity.UserID,
			ToolName:      out.call.Name,
			Toolkit:       out.descriptor.Provenance.AppID.Toolkit(),
			ArgumentsJSON: out.call.ArgumentsJSON,
			Outcome:       audit.OutcomeSuccess,
			ExecutionPath: executionPath,
			ToolCallID:    out.call.CallID,
			RequestID:     requestID,
		}
		if out.err != nil {
			event.Outcome = audit.OutcomeError
			event.Error = out.err.Error()
		}
		d.recorder.Record(event)
	}

	// Responding.
	responseText := d.narrate(ctx, systemPrompt, history, genResult, outcomes)
	if degradedToInternal && len(unavailable) > 0 {
		responseText = appendNotConnectedNotice(responseText, unavailable)
	}

	return &TurnResult{
		RequestID:    requestID,
		ResponseText: responseText,
		ToolCalls:    summarize(outcomes),
	}, nil
}

// executeCalls runs every proposed call through its resolved descriptor.
// Calls are independent: they execute concurrently and a failure in one
// never affects another.
func (d *Driver) executeCalls(ctx context.Context, snap *registry.Snapshot, calls []generation.ProposedCall) []toolOutcome {
	outcomes := make([]toolOutcome, len(calls))

	g := new(errgroup.Group)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			outcomes[i] = d.executeCall(ctx, snap, call)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (d *Driver) executeCall(ctx context.Context, snap *registry.Snapshot, call generation.ProposedCall) toolOutcome {
	out := toolOutcome{call: call}

	td, ok := snap.Tools[call.Name]
	if !ok {
		out.err = fmt.Errorf("unknown tool: %s", call.Name)
		return out
	}
	out.descriptor = td

	if err := registry.ValidateArguments(td, call.ArgumentsJSON); err != nil {
		out.err = err
		return out
	}

	result, err := td.Invoke(ctx, call.ArgumentsJSON)
	if err != nil {
		d.logger.Warn("tool execution failed",
			zap.String("tool_name", call.Name),
			zap.String("provenance", td.Provenance.Kind.String()),
			zap.Error(err),
		)
		out.err = err
		return out
	}
	out.resultJSON = result
	return out
}

// narrate produces the final response text. When tools ran, a follow-up
// generation pass narrates their results; if that pass fails the driver
// falls back to a deterministic summary so the turn still responds.
func (d *Driver) narrate(ctx context.Context, systemPrompt string, history []generation.Message, genResult *generation.Result, outcomes []toolOutcome) string {
	if len(outcomes) == 0 {
		return genResult.Text
	}

	followUp := history
	if genResult.Text != "" {
		followUp = append(followUp, generation.Message{Role: generation.RoleAssistant, Text: genResult.Text})
	}
	for i := range outcomes {
		out := &outcomes[i]
		text := out.resultJSON
		if out.err != nil {
			text = fmt.Sprintf("error: %v", out.err)
		}
		followUp = append(followUp, generation.Message{
			Role: generation.RoleTool,
			Text: fmt.Sprintf("%s -> %s", out.call.Name, text),
		})
	}

	narrated, err := d.generator.Generate(ctx, systemPrompt, followUp, nil)
	if err != nil {
		d.logger.Warn("narration pass failed, using summary", zap.Error(err))
		return summaryText(genResult.Text, outcomes)
	}
	return narrated.Text
}

// summaryText is the deterministic fallback narration.
func summaryText(leadText string, outcomes []toolOutcome) string {
	var b strings.Builder
	if leadText != "" {
		b.WriteString(leadText)
		b.WriteString("\n\n")
	}
	b.WriteString("Actions run:")
	for i := range outcomes {
		out := &outcomes[i]
		if out.err != nil {
			b.WriteString(fmt.Sprintf("\n- %s: failed (%v)", out.call.Name, out.err))
			continue
		}
		b.WriteString(fmt.Sprintf("\n- %s: done", out.call.Name))
	}
	return b.String()
}

// buildSystemPrompt declares which external apps are usable this turn.
func buildSystemPrompt(snap *registry.Snapshot, unavailable []apps.AppID) string {
	var b strings.Builder
	b.WriteString("You are the workspace assistant. Use the provided tools to answer; never invent tool results.")

	var connected []string
	for _, r := range snap.Resolutions {
		if !r.Skipped {
			connected = append(connected, string(r.AppID))
		}
	}
	sort.Strings(connected)
	if len(connected) > 0 {
		b.WriteString(" Connected external apps: ")
		b.WriteString(strings.Join(connected, ", "))
		b.WriteString(".")
	} else {
		b.WriteString(" No external apps are connected.")
	}

	if len(unavailable) > 0 {
		names := make([]string, len(unavailable))
		for i, id := range unavailable {
			names[i] = string(id)
		}
		b.WriteString(" Unavailable (not connected): ")
		b.WriteString(strings.Join(names, ", "))
		b.WriteString(".")
	}
	return b.String()
}

// toolsForGeneration flattens the snapshot into a deterministic, name-sorted
// tool list for the generator.
func toolsForGeneration(snap *registry.Snapshot) []generation.Tool {
	out := make([]generation.Tool, 0, len(snap.Tools))
	for _, td := range snap.Tools {
		out = append(out, generation.Tool{
			Name:        td.Name,
			Description: td.Description,
			Schema:      td.Schema,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// appendNotConnectedNotice makes the degradation explicit in the response.
func appendNotConnectedNotice(text string, unavailable []apps.AppID) string {
	names := make([]string, len(unavailable))
	for i, id := range unavailable {
		names[i] = string(id)
	}
	notice := fmt.Sprintf("Note: %s is not connected to this workspace, so I could only use workspace data.", strings.Join(names, ", "))
	if text == "" {
		return notice
	}
	return text + "\n\n" + notice
}

func summarize(outcomes []toolOutcome) []ToolCallSummary {
	if len(outcomes) == 0 {
		return nil
	}
	out := make([]ToolCallSummary, len(outcomes))
	for i := range outcomes {
		o := &outcomes[i]
		s := ToolCallSummary{
			CallID:  o.call.CallID,
			Name:    o.call.Name,
			Outcome: string(audit.OutcomeSuccess),
		}
		if o.descriptor != nil {
			s.External = o.descriptor.Provenance.Kind == registry.ProvenanceExternal
		}
		if o.err != nil {
			s.Outcome = string(audit.OutcomeError)
		}
		out[i] = s
	}
	return out
}

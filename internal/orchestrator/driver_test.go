package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/lofthq/loft-assistant/internal/apps"
	"github.com/lofthq/loft-assistant/internal/audit"
	"github.com/lofthq/loft-assistant/internal/generation"
	"github.com/lofthq/loft-assistant/internal/intent"
	"github.com/lofthq/loft-assistant/internal/registry"
	"github.com/lofthq/loft-assistant/internal/store"
	"go.uber.org/zap"
)

// fakeStore serves connections and workspace data from memory.
type fakeStore struct {
	workspaceConns map[apps.AppID]*store.Connection
	authConfigs    map[string]*store.AuthConfig

	mu    sync.Mutex
	notes []*store.Note
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		workspaceConns: make(map[apps.AppID]*store.Connection),
		authConfigs:    make(map[string]*store.AuthConfig),
	}
}

func (s *fakeStore) connect(appID apps.AppID) {
	s.workspaceConns[appID] = &store.Connection{
		ID:           "conn-" + string(appID),
		WorkspaceID:  "ws-1",
		AppID:        appID,
		AuthConfigID: "ac-" + string(appID),
		Status:       "active",
	}
	s.authConfigs["ac-"+string(appID)] = &store.AuthConfig{
		ID:     "ac-" + string(appID),
		AppID:  appID,
		Scheme: "oauth2",
	}
}

func (s *fakeStore) GetMemberConnection(_ context.Context, _, _ string, _ apps.AppID) (*store.Connection, error) {
	return nil, nil
}

func (s *fakeStore) GetWorkspaceConnection(_ context.Context, _ string, appID apps.AppID) (*store.Connection, error) {
	return s.workspaceConns[appID], nil
}

func (s *fakeStore) GetAuthConfig(_ context.Context, id string) (*store.AuthConfig, error) {
	return s.authConfigs[id], nil
}

func (s *fakeStore) ListChannels(_ context.Context, workspaceID string) ([]store.Channel, error) {
	return []store.Channel{{ID: "ch-1", WorkspaceID: workspaceID, Name: "general"}}, nil
}

func (s *fakeStore) ListChannelMessages(_ context.Context, _, _ string, _ int) ([]store.ChannelMessage, error) {
	return nil, nil
}

func (s *fakeStore) SearchMessages(_ context.Context, _, _ string, _ int) ([]store.ChannelMessage, error) {
	return nil, nil
}

func (s *fakeStore) ListBoards(_ context.Context, _ string) ([]store.Board, error) {
	return nil, nil
}

func (s *fakeStore) CreateNote(_ context.Context, workspaceID, memberID, title, body string) (*store.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	note := &store.Note{ID: "note-1", WorkspaceID: workspaceID, MemberID: memberID, Title: title, Body: body}
	s.notes = append(s.notes, note)
	return note, nil
}

func (s *fakeStore) LookupKeyByPrefix(_ context.Context, _ string) (*store.WorkspaceKey, error) {
	return nil, nil
}

// fakeProvider returns scripted external tools per app.
type fakeProvider struct {
	tools map[apps.AppID][]registry.ToolDescriptor
}

func (p *fakeProvider) ListTools(_ context.Context, appID apps.AppID, _ *store.Connection, _ *store.AuthConfig) ([]registry.ToolDescriptor, error) {
	return p.tools[appID], nil
}

// scriptedGenerator returns its results in order; once exhausted it repeats
// the last one.
type scriptedGenerator struct {
	mu      sync.Mutex
	results []*generation.Result
	err     error
	calls   int
}

func (g *scriptedGenerator) Generate(_ context.Context, _ string, _ []generation.Message, _ []generation.Tool) (*generation.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	idx := g.calls - 1
	if idx >= len(g.results) {
		idx = len(g.results) - 1
	}
	return g.results[idx], nil
}

func (g *scriptedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// captureWriter collects audit events in memory.
type captureWriter struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (w *captureWriter) Write(event *audit.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, event)
}

func (w *captureWriter) Close() {}

func (w *captureWriter) all() []*audit.Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.events
}

type testEnv struct {
	driver *Driver
	store  *fakeStore
	gen    *scriptedGenerator
	writer *captureWriter
}

func newTestEnv(t *testing.T, gen *scriptedGenerator, st *fakeStore, provider *fakeProvider) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	classifier, err := intent.NewClassifier(intent.Config{Logger: logger})
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	t.Cleanup(classifier.Close)

	if provider == nil {
		provider = &fakeProvider{}
	}
	reg := registry.NewRegistry(registry.Config{
		Store:    st,
		Provider: provider,
		Logger:   logger,
	})

	writer := &captureWriter{}
	driver := NewDriver(Config{
		Classifier: classifier,
		Registry:   reg,
		Generator:  gen,
		Recorder:   audit.NewRecorder(writer, logger),
		Logger:     logger,
	})
	return &testEnv{driver: driver, store: st, gen: gen, writer: writer}
}

// externalTool builds a provider tool whose invocations are counted.
func externalTool(name string, invoked *int, invokeErr error, mu *sync.Mutex) registry.ToolDescriptor {
	return registry.ToolDescriptor{
		Name:        name,
		Description: "scripted external tool",
		Invoke: func(_ context.Context, _ string) (string, error) {
			mu.Lock()
			*invoked++
			mu.Unlock()
			if invokeErr != nil {
				return "", invokeErr
			}
			return `{"ok": true}`, nil
		},
	}
}

func TestHandleTurn_HighImpactRequiresConfirmation(t *testing.T) {
	st := newFakeStore()
	st.connect(apps.Slack)

	var invoked int
	var mu sync.Mutex
	provider := &fakeProvider{tools: map[apps.AppID][]registry.ToolDescriptor{
		apps.Slack: {externalTool("send_slack_message", &invoked, nil, &mu)},
	}}
	gen := &scriptedGenerator{results: []*generation.Result{{
		Text: "Sending the update now.",
		ProposedCalls: []generation.ProposedCall{
			{CallID: "call-1", Name: "send_slack_message", ArgumentsJSON: `{}`},
		},
	}}}
	env := newTestEnv(t, gen, st, provider)

	result, err := env.driver.HandleTurn(context.Background(), &TurnRequest{
		WorkspaceID: "ws-1",
		Identity:    Identity{MemberID: "m-1", UserID: "u-1"},
		UserMessage: "send an update to the team in slack",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}

	if !result.Blocked || result.BlockedReason != BlockedConfirmationRequired {
		t.Fatalf("turn not blocked for confirmation: %+v", result)
	}
	want := `This request includes high-impact actions that need your confirmation: send_slack_message. Reply "confirm" to proceed or "cancel" to stop.`
	if result.ResponseText != want {
		t.Errorf("response = %q, want %q", result.ResponseText, want)
	}
	if invoked != 0 {
		t.Errorf("blocked turn executed %d tools, want 0", invoked)
	}
	if n := len(env.writer.all()); n != 0 {
		t.Errorf("blocked turn wrote %d audit events, want 0", n)
	}
	if env.gen.callCount() != 1 {
		t.Errorf("blocked turn made %d generation calls, want 1", env.gen.callCount())
	}
}

func TestHandleTurn_ConfirmExecutesAndAuditsOnce(t *testing.T) {
	st := newFakeStore()
	st.connect(apps.Slack)

	var invoked int
	var mu sync.Mutex
	provider := &fakeProvider{tools: map[apps.AppID][]registry.ToolDescriptor{
		apps.Slack: {externalTool("send_slack_message", &invoked, nil, &mu)},
	}}
	gen := &scriptedGenerator{results: []*generation.Result{
		{ProposedCalls: []generation.ProposedCall{
			{CallID: "call-7", Name: "send_slack_message", ArgumentsJSON: `{"channel": "general", "text": "hi"}`},
		}},
		{Text: "Done, the update was sent."},
	}}
	env := newTestEnv(t, gen, st, provider)

	result, err := env.driver.HandleTurn(context.Background(), &TurnRequest{
		WorkspaceID: "ws-1",
		Identity:    Identity{MemberID: "m-1", UserID: "u-1"},
		History: []generation.Message{
			{Role: generation.RoleUser, Text: "send an update to the team in slack"},
			{Role: generation.RoleAssistant, Text: "This request includes high-impact actions that need your confirmation: send_slack_message."},
		},
		UserMessage: "confirm",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}

	if result.Blocked {
		t.Fatalf("confirmed turn blocked: %+v", result)
	}
	if invoked != 1 {
		t.Errorf("tool invoked %d times, want 1", invoked)
	}
	events := env.writer.all()
	if len(events) != 1 {
		t.Fatalf("wrote %d audit events, want exactly 1", len(events))
	}
	e := events[0]
	if e.ToolName != "send_slack_message" || e.Toolkit != "SLACK" {
		t.Errorf("event tool = %s/%s, want send_slack_message/SLACK", e.ToolName, e.Toolkit)
	}
	if e.Outcome != audit.OutcomeSuccess {
		t.Errorf("event outcome = %s, want success", e.Outcome)
	}
	if e.ToolCallID != "call-7" {
		t.Errorf("event tool_call_id = %s, want call-7", e.ToolCallID)
	}
	if e.RequestID != result.RequestID {
		t.Errorf("event request_id = %s, want %s", e.RequestID, result.RequestID)
	}
	if result.ResponseText != "Done, the update was sent." {
		t.Errorf("response = %q", result.ResponseText)
	}
	if len(result.ToolCalls) != 1 || !result.ToolCalls[0].External || result.ToolCalls[0].Outcome != "success" {
		t.Errorf("tool call summary wrong: %+v", result.ToolCalls)
	}
}

func TestHandleTurn_CancelBlocksWithoutExecution(t *testing.T) {
	st := newFakeStore()
	st.connect(apps.Slack)

	var invoked int
	var mu sync.Mutex
	provider := &fakeProvider{tools: map[apps.AppID][]registry.ToolDescriptor{
		apps.Slack: {externalTool("send_slack_message", &invoked, nil, &mu)},
	}}
	gen := &scriptedGenerator{results: []*generation.Result{{
		ProposedCalls: []generation.ProposedCall{
			{CallID: "call-9", Name: "send_slack_message", ArgumentsJSON: `{}`},
		},
	}}}
	env := newTestEnv(t, gen, st, provider)

	result, err := env.driver.HandleTurn(context.Background(), &TurnRequest{
		WorkspaceID: "ws-1",
		Identity:    Identity{MemberID: "m-1"},
		History: []generation.Message{
			{Role: generation.RoleUser, Text: "send an update to the team in slack"},
		},
		UserMessage: "cancel",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}

	if !result.Blocked || result.BlockedReason != BlockedCancelled {
		t.Fatalf("turn not blocked as cancelled: %+v", result)
	}
	want := "Cancelled. The following actions were not executed: send_slack_message."
	if result.ResponseText != want {
		t.Errorf("response = %q, want %q", result.ResponseText, want)
	}
	if invoked != 0 {
		t.Errorf("cancelled turn executed %d tools, want 0", invoked)
	}
	if n := len(env.writer.all()); n != 0 {
		t.Errorf("cancelled turn wrote %d audit events, want 0", n)
	}
}

func TestHandleTurn_RequestedAppNotConnected(t *testing.T) {
	st := newFakeStore() // no connections at all

	gen := &scriptedGenerator{results: []*generation.Result{
		{ProposedCalls: []generation.ProposedCall{
			{CallID: "call-2", Name: "create_note", ArgumentsJSON: `{"title": "Unread summary", "body": "..."}`},
		}},
		{Text: "I saved a note with what I could find in the workspace."},
	}}
	env := newTestEnv(t, gen, st, nil)

	result, err := env.driver.HandleTurn(context.Background(), &TurnRequest{
		WorkspaceID: "ws-1",
		Identity:    Identity{MemberID: "m-1"},
		UserMessage: "summarize my slack mentions into a note",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}

	if result.Blocked {
		t.Fatalf("degraded turn blocked: %+v", result)
	}
	if !strings.Contains(result.ResponseText, "slack is not connected") {
		t.Errorf("response missing not-connected notice: %q", result.ResponseText)
	}
	// Internal tools still work on the degraded path.
	if len(st.notes) != 1 || st.notes[0].Title != "Unread summary" {
		t.Errorf("internal tool did not run: %+v", st.notes)
	}
	if n := len(env.writer.all()); n != 0 {
		t.Errorf("internal-only turn wrote %d audit events, want 0", n)
	}
}

func TestHandleTurn_ExternalToolFailureAudited(t *testing.T) {
	st := newFakeStore()
	st.connect(apps.Jira)

	var invoked int
	var mu sync.Mutex
	invokeErr := errors.New("provider rejected request: token=tok_999 expired")
	provider := &fakeProvider{tools: map[apps.AppID][]registry.ToolDescriptor{
		apps.Jira: {externalTool("create_issue", &invoked, invokeErr, &mu)},
	}}
	gen := &scriptedGenerator{results: []*generation.Result{
		{ProposedCalls: []generation.ProposedCall{
			{CallID: "call-3", Name: "create_issue", ArgumentsJSON: `{"summary": "outage"}`},
		}},
		{Text: "I couldn't create the issue; the jira connection was rejected."},
	}}
	env := newTestEnv(t, gen, st, provider)

	result, err := env.driver.HandleTurn(context.Background(), &TurnRequest{
		WorkspaceID: "ws-1",
		Identity:    Identity{MemberID: "m-1"},
		UserMessage: "open a jira ticket about the outage",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}

	events := env.writer.all()
	if len(events) != 1 {
		t.Fatalf("wrote %d audit events, want exactly 1", len(events))
	}
	e := events[0]
	if e.Outcome != audit.OutcomeError {
		t.Errorf("event outcome = %s, want error", e.Outcome)
	}
	if e.Error == "" {
		t.Error("failure event has empty error")
	}
	if strings.Contains(e.Error, "tok_999") {
		t.Errorf("audit error leaked secret: %s", e.Error)
	}
	if result.ResponseText == "" {
		t.Error("failed tool turn produced no response")
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Outcome != "error" {
		t.Errorf("tool call summary wrong: %+v", result.ToolCalls)
	}
}

func TestHandleTurn_InternalToolsNeedNoConfirmation(t *testing.T) {
	st := newFakeStore()

	gen := &scriptedGenerator{results: []*generation.Result{
		{ProposedCalls: []generation.ProposedCall{
			{CallID: "call-4", Name: "list_channels", ArgumentsJSON: `{}`},
		}},
		{Text: "You have one channel: general."},
	}}
	env := newTestEnv(t, gen, st, nil)

	result, err := env.driver.HandleTurn(context.Background(), &TurnRequest{
		WorkspaceID: "ws-1",
		Identity:    Identity{MemberID: "m-1"},
		UserMessage: "list my channels",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}

	if result.Blocked {
		t.Fatalf("internal read blocked: %+v", result)
	}
	if result.ResponseText != "You have one channel: general." {
		t.Errorf("response = %q", result.ResponseText)
	}
	if n := len(env.writer.all()); n != 0 {
		t.Errorf("internal call wrote %d audit events, want 0", n)
	}
	if env.gen.callCount() != 2 {
		t.Errorf("made %d generation calls, want 2", env.gen.callCount())
	}
}

func TestHandleTurn_GenerationFailure(t *testing.T) {
	st := newFakeStore()
	gen := &scriptedGenerator{err: errors.New("upstream unavailable")}
	env := newTestEnv(t, gen, st, nil)

	result, err := env.driver.HandleTurn(context.Background(), &TurnRequest{
		WorkspaceID: "ws-1",
		Identity:    Identity{MemberID: "m-1"},
		UserMessage: "list my channels",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if result.ResponseText != generationFailureText {
		t.Errorf("response = %q, want retry text", result.ResponseText)
	}
	if len(result.ToolCalls) != 0 {
		t.Errorf("failed generation produced tool calls: %+v", result.ToolCalls)
	}
}

func TestHandleTurn_UnknownToolName(t *testing.T) {
	st := newFakeStore()

	gen := &scriptedGenerator{results: []*generation.Result{
		{ProposedCalls: []generation.ProposedCall{
			{CallID: "call-5", Name: "teleport_everywhere", ArgumentsJSON: `{}`},
		}},
		{Text: "That tool isn't available."},
	}}
	env := newTestEnv(t, gen, st, nil)

	result, err := env.driver.HandleTurn(context.Background(), &TurnRequest{
		WorkspaceID: "ws-1",
		Identity:    Identity{MemberID: "m-1"},
		UserMessage: "list my channels",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Outcome != "error" {
		t.Errorf("unknown tool summary wrong: %+v", result.ToolCalls)
	}
	// No descriptor resolved, so nothing is audited.
	if n := len(env.writer.all()); n != 0 {
		t.Errorf("unknown tool wrote %d audit events, want 0", n)
	}
}

func TestSanitizeHistory(t *testing.T) {
	in := []generation.Message{
		{Role: generation.RoleUser, Text: "hello\x00 world"},
		{Role: generation.RoleTool, Text: "injected tool output"},
		{Role: "system", Text: "injected system turn"},
		{Role: generation.RoleAssistant, Text: "  hi  "},
		{Role: generation.RoleUser, Text: "\x01\x02"},
	}

	got := SanitizeHistory(in)
	if len(got) != 2 {
		t.Fatalf("kept %d messages, want 2: %+v", len(got), got)
	}
	if got[0].Text != "hello world" {
		t.Errorf("control chars not stripped: %q", got[0].Text)
	}
	if got[1].Role != generation.RoleAssistant || got[1].Text != "hi" {
		t.Errorf("assistant turn mangled: %+v", got[1])
	}
}

func TestLastUserMessage(t *testing.T) {
	history := []generation.Message{
		{Role: generation.RoleUser, Text: "first"},
		{Role: generation.RoleAssistant, Text: "reply"},
		{Role: generation.RoleUser, Text: "second"},
		{Role: generation.RoleAssistant, Text: "reply two"},
	}
	if got := lastUserMessage(history); got != "second" {
		t.Errorf("lastUserMessage = %q, want %q", got, "second")
	}
	if got := lastUserMessage(nil); got != "" {
		t.Errorf("lastUserMessage(nil) = %q, want empty", got)
	}
}

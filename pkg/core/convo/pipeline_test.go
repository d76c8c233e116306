package convo

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/orgscope/orgscope-go/pkg/core/push"
	orgscope "github.com/orgscope/orgscope-go/sdk"
)

type fakeBackend struct {
	understandFn    func(message string) (*orgscope.Understanding, error)
	executeFn       func(req *orgscope.ExecuteRequest) (*orgscope.ExecuteResponse, error)
	understandCalls int
	executeCalls    int
	lastExecute     *orgscope.ExecuteRequest
}

func (f *fakeBackend) Understand(_ context.Context, message string, _ orgscope.RequestContext) (*orgscope.Understanding, error) {
	f.understandCalls++
	return f.understandFn(message)
}

func (f *fakeBackend) Execute(_ context.Context, req *orgscope.ExecuteRequest) (*orgscope.ExecuteResponse, error) {
	f.executeCalls++
	f.lastExecute = req
	if f.executeFn != nil {
		return f.executeFn(req)
	}
	return &orgscope.ExecuteResponse{Status: "started", AgentsCount: len(req.Agents)}, nil
}

func understandingWithConfidence(confidence float64) *orgscope.Understanding {
	return &orgscope.Understanding{
		Intent: orgscope.Intent{Type: "discovery", Confidence: confidence, Summary: "Discover organisations"},
		Plan: orgscope.ExecutionPlan{
			Agents:         []orgscope.Agent{{Type: "discovery_agent", Description: "Find organisations"}},
			ExecutionOrder: []string{"discovery_agent"},
		},
		ClarifyingQuestions: []string{"Which region?"},
		CanProceed:          confidence > 0.7,
	}
}

func lastMessage(t *testing.T, p *Pipeline) ChatMessage {
	t.Helper()
	messages := p.Messages()
	if len(messages) == 0 {
		t.Fatal("no messages")
	}
	return messages[len(messages)-1]
}

func TestConfidenceStrictlyAboveThresholdOpensConfirmation(t *testing.T) {
	backend := &fakeBackend{understandFn: func(string) (*orgscope.Understanding, error) {
		return understandingWithConfidence(0.71), nil
	}}
	p := NewPipeline(backend, DefaultConfig(), nil)

	if err := p.Submit(context.Background(), "find things", "text"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if p.State() != StateAwaitingConfirmation {
		t.Errorf("state = %v, want AWAITING_CONFIRMATION", p.State())
	}
	if p.Current() == nil {
		t.Error("expected a pending intent")
	}
}

func TestConfidenceAtThresholdStaysConversational(t *testing.T) {
	backend := &fakeBackend{understandFn: func(string) (*orgscope.Understanding, error) {
		return understandingWithConfidence(0.70), nil
	}}
	p := NewPipeline(backend, DefaultConfig(), nil)

	if err := p.Submit(context.Background(), "find things", "text"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if p.State() != StateIdle {
		t.Errorf("state = %v, want IDLE", p.State())
	}
	if p.Current() != nil {
		t.Error("no pending intent should exist at exactly the threshold")
	}
	if msg := lastMessage(t, p); !strings.Contains(msg.Body, "Which region?") {
		t.Errorf("expected clarifying question, got %q", msg.Body)
	}
}

func TestUnderstandingFailureBecomesErrorMessage(t *testing.T) {
	backend := &fakeBackend{understandFn: func(string) (*orgscope.Understanding, error) {
		return nil, fmt.Errorf("backend down")
	}}
	p := NewPipeline(backend, DefaultConfig(), nil)

	if err := p.Submit(context.Background(), "find things", "text"); err != nil {
		t.Fatalf("Submit should not propagate backend errors, got %v", err)
	}
	if p.State() != StateIdle {
		t.Errorf("state = %v, want IDLE", p.State())
	}
	if msg := lastMessage(t, p); msg.Kind != KindError || msg.Sender != SenderAssistant {
		t.Errorf("expected assistant error message, got %+v", msg)
	}
}

func TestConfirmSendsPlanAndAnswers(t *testing.T) {
	backend := &fakeBackend{understandFn: func(string) (*orgscope.Understanding, error) {
		return understandingWithConfidence(0.9), nil
	}}
	p := NewPipeline(backend, DefaultConfig(), nil)

	if err := p.Submit(context.Background(), "find things", "text"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	pending := p.Current()
	if pending == nil {
		t.Fatal("expected a pending intent")
	}

	answers := map[string]string{"region": "Scotland"}
	if err := p.Confirm(context.Background(), pending.ID, answers); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if backend.executeCalls != 1 {
		t.Fatalf("executeCalls = %d, want 1", backend.executeCalls)
	}
	req := backend.lastExecute
	if len(req.Agents) != 1 || req.Agents[0].Type != "discovery_agent" {
		t.Errorf("unexpected agents %+v", req.Agents)
	}
	if len(req.ExecutionOrder) != 1 || req.Confirmations["region"] != "Scotland" {
		t.Errorf("unexpected request %+v", req)
	}
	if p.State() != StateExecuting {
		t.Errorf("state = %v, want EXECUTING", p.State())
	}
}

func TestDoubleConfirmExecutesOnce(t *testing.T) {
	backend := &fakeBackend{understandFn: func(string) (*orgscope.Understanding, error) {
		return understandingWithConfidence(0.9), nil
	}}
	p := NewPipeline(backend, DefaultConfig(), nil)

	if err := p.Submit(context.Background(), "find things", "text"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	pending := p.Current()
	if pending == nil {
		t.Fatal("expected a pending intent")
	}

	if err := p.Confirm(context.Background(), pending.ID, nil); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if err := p.Confirm(context.Background(), pending.ID, nil); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	if backend.executeCalls != 1 {
		t.Errorf("executeCalls = %d, want 1 (second confirm while executing must be rejected)", backend.executeCalls)
	}
	if msg := lastMessage(t, p); msg.Kind != KindError {
		t.Errorf("expected a visible rejection message, got %+v", msg)
	}
	if p.State() != StateExecuting {
		t.Errorf("state = %v, want EXECUTING", p.State())
	}
}

func TestStaleIntentConfirmationRejected(t *testing.T) {
	backend := &fakeBackend{understandFn: func(string) (*orgscope.Understanding, error) {
		return understandingWithConfidence(0.9), nil
	}}
	p := NewPipeline(backend, DefaultConfig(), nil)

	if err := p.Submit(context.Background(), "first request", "text"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	stale := p.Current()

	// A second submit supersedes the first intent.
	if err := p.Submit(context.Background(), "second request", "text"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := p.Confirm(context.Background(), stale.ID, nil); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if backend.executeCalls != 0 {
		t.Errorf("stale confirm must not execute, executeCalls = %d", backend.executeCalls)
	}
	if msg := lastMessage(t, p); msg.Kind != KindError {
		t.Errorf("expected a visible rejection message, got %+v", msg)
	}
}

func TestConfirmWithoutIntentRejected(t *testing.T) {
	backend := &fakeBackend{understandFn: func(string) (*orgscope.Understanding, error) {
		return understandingWithConfidence(0.9), nil
	}}
	p := NewPipeline(backend, DefaultConfig(), nil)

	if err := p.Confirm(context.Background(), uuid.New(), nil); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if backend.executeCalls != 0 {
		t.Errorf("executeCalls = %d, want 0", backend.executeCalls)
	}
	if msg := lastMessage(t, p); msg.Kind != KindError {
		t.Errorf("expected a visible rejection message, got %+v", msg)
	}
}

func TestRefineDiscardsIntent(t *testing.T) {
	backend := &fakeBackend{understandFn: func(string) (*orgscope.Understanding, error) {
		return understandingWithConfidence(0.9), nil
	}}
	p := NewPipeline(backend, DefaultConfig(), nil)

	focused := false
	p.SetOnFocusInput(func() { focused = true })

	if err := p.Submit(context.Background(), "find things", "text"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	p.Refine()

	if p.Current() != nil || p.State() != StateIdle {
		t.Errorf("refine should discard the intent and return to idle")
	}
	if !focused {
		t.Error("refine should refocus the input surface")
	}
}

func TestResetClearsHistoryToGreeting(t *testing.T) {
	backend := &fakeBackend{understandFn: func(string) (*orgscope.Understanding, error) {
		return understandingWithConfidence(0.9), nil
	}}
	p := NewPipeline(backend, DefaultConfig(), nil)

	if err := p.Submit(context.Background(), "find things", "text"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	p.Reset()

	messages := p.Messages()
	if len(messages) != 1 || messages[0].Body != DefaultGreeting {
		t.Errorf("messages after reset = %+v", messages)
	}
	if p.Current() != nil || p.State() != StateIdle {
		t.Error("reset should null the intent and return to idle")
	}
}

func TestExecutionFailureEventReturnsToIdle(t *testing.T) {
	backend := &fakeBackend{understandFn: func(string) (*orgscope.Understanding, error) {
		return understandingWithConfidence(0.9), nil
	}}
	p := NewPipeline(backend, DefaultConfig(), nil)

	p.HandleExecutionFailed(push.IntentExecutionFailedEvent{Error: "agent crashed"})

	if p.State() != StateIdle {
		t.Errorf("state = %v, want IDLE", p.State())
	}
	msg := lastMessage(t, p)
	if msg.Kind != KindError || !strings.Contains(msg.Body, "agent crashed") {
		t.Errorf("unexpected failure message %+v", msg)
	}
}

func TestEndToEndDiscoveryScenario(t *testing.T) {
	agents := []orgscope.Agent{
		{Type: "discovery_agent", Description: "Find organisations"},
		{Type: "enrichment_agent", Description: "Enrich records"},
		{Type: "analysis_agent", Description: "Analyse results"},
	}
	order := []string{"discovery_agent", "enrichment_agent", "analysis_agent"}
	backend := &fakeBackend{
		understandFn: func(message string) (*orgscope.Understanding, error) {
			if message != "find housing associations in Scotland" {
				t.Errorf("unexpected message %q", message)
			}
			return &orgscope.Understanding{
				Intent: orgscope.Intent{
					Type: "discovery", Region: "Scotland",
					Confidence: 0.85, Summary: "Discover housing associations in Scotland",
				},
				Plan:       orgscope.ExecutionPlan{Agents: agents, ExecutionOrder: order},
				CanProceed: true,
			}, nil
		},
	}
	p := NewPipeline(backend, DefaultConfig(), nil)

	refreshed := false
	p.SetOnRefresh(func() { refreshed = true })

	if err := p.Submit(context.Background(), "find housing associations in Scotland", "text"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	pending := p.Current()
	if pending == nil {
		t.Fatal("expected a confirmation surface")
	}
	if len(pending.Plan.Agents) != 3 {
		t.Fatalf("agents = %d, want 3", len(pending.Plan.Agents))
	}
	for i, want := range order {
		if pending.Plan.ExecutionOrder[i] != want {
			t.Errorf("execution order[%d] = %q, want %q", i, pending.Plan.ExecutionOrder[i], want)
		}
	}

	if err := p.Confirm(context.Background(), pending.ID, nil); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if backend.executeCalls != 1 {
		t.Fatalf("executeCalls = %d, want exactly 1", backend.executeCalls)
	}

	p.HandleExecutionCompleted(push.IntentExecutionCompletedEvent{
		Results: push.IntentExecutionResults{
			PipelineSummary: push.PipelineSummary{
				TotalAgents:        3,
				ExecutedAgents:     3,
				SuccessfulAgents:   3,
				TotalExecutionTime: 12.4,
				ExecutionOrder:     order,
			},
		},
	})

	msg := lastMessage(t, p)
	if msg.Kind != KindSummary || !strings.Contains(msg.Body, "3/3 agents succeeded") {
		t.Errorf("unexpected completion message %+v", msg)
	}
	if !refreshed {
		t.Error("completion should trigger a data refresh")
	}
	if p.State() != StateIdle || p.Current() != nil {
		t.Error("pipeline should be idle with no pending intent after completion")
	}
}

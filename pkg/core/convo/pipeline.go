// Package convo turns free-text input into understood intents and manages
// the confirm/execute/clarify lifecycle around them.
package convo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orgscope/orgscope-go/pkg/core/push"
	orgscope "github.com/orgscope/orgscope-go/sdk"
)

// State is the pipeline's position in the intent lifecycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingUnderstanding
	StateAwaitingConfirmation
	StateExecuting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAwaitingUnderstanding:
		return "AWAITING_UNDERSTANDING"
	case StateAwaitingConfirmation:
		return "AWAITING_CONFIRMATION"
	case StateExecuting:
		return "EXECUTING"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// DefaultConfidenceThreshold gates the confirmation surface. An intent
// qualifies only when its confidence is strictly greater than this value.
const DefaultConfidenceThreshold = 0.7

// DefaultGreeting seeds a fresh conversation.
const DefaultGreeting = "Hi! Tell me what you'd like to discover and I'll put together a plan."

// Backend is the subset of the API client the pipeline calls. Satisfied by
// *orgscope.AIService.
type Backend interface {
	Understand(ctx context.Context, message string, reqCtx orgscope.RequestContext) (*orgscope.Understanding, error)
	Execute(ctx context.Context, req *orgscope.ExecuteRequest) (*orgscope.ExecuteResponse, error)
}

// PendingIntent is the single-slot "current intent" awaiting confirmation.
// Its ID ties a confirmation surface back to the submit that produced it; a
// newer submit supersedes the slot and strands the old ID.
type PendingIntent struct {
	ID                  uuid.UUID
	Intent              orgscope.Intent
	Plan                orgscope.ExecutionPlan
	ClarifyingQuestions []string
}

// Config holds the pipeline's tunables.
type Config struct {
	ConfidenceThreshold float64
	Greeting            string
}

// DefaultConfig returns the standard pipeline configuration.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		Greeting:            DefaultGreeting,
	}
}

// Pipeline drives the conversation state machine. Execution progress arrives
// asynchronously over the push channel via the Handle* methods; Bind wires
// them to a push.Manager.
type Pipeline struct {
	backend Backend
	config  Config
	logger  *slog.Logger

	mu       sync.Mutex
	state    State
	messages []ChatMessage
	current  *PendingIntent

	onMessage func(ChatMessage)
	onState   func(State)
	onRefresh func()
	onFocus   func()
	now       func() time.Time
}

// NewPipeline creates a pipeline seeded with the greeting message.
func NewPipeline(backend Backend, config Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ConfidenceThreshold == 0 {
		config.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if config.Greeting == "" {
		config.Greeting = DefaultGreeting
	}
	p := &Pipeline{
		backend: backend,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
	p.messages = []ChatMessage{p.greeting()}
	return p
}

func (p *Pipeline) greeting() ChatMessage {
	return ChatMessage{Sender: SenderAssistant, Body: p.config.Greeting, Kind: KindNormal, Timestamp: p.now()}
}

// SetOnMessage registers a callback invoked for every appended message.
func (p *Pipeline) SetOnMessage(fn func(ChatMessage)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onMessage = fn
}

// SetOnStateChange registers a callback invoked on every state transition.
func (p *Pipeline) SetOnStateChange(fn func(State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = fn
}

// SetOnRefresh registers the data-refresh hook run after a completed
// execution.
func (p *Pipeline) SetOnRefresh(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onRefresh = fn
}

// SetOnFocusInput registers the hook run by Refine to return focus to the
// text input surface.
func (p *Pipeline) SetOnFocusInput(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFocus = fn
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Current returns the intent awaiting confirmation, or nil.
func (p *Pipeline) Current() *PendingIntent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	copied := *p.current
	return &copied
}

// Messages returns a copy of the conversation history, oldest first.
func (p *Pipeline) Messages() []ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ChatMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// append adds a message and fires the subscriber outside the lock.
func (p *Pipeline) append(sender Sender, kind Kind, body string) {
	p.mu.Lock()
	msg := ChatMessage{Sender: sender, Body: body, Kind: kind, Timestamp: p.now()}
	p.messages = append(p.messages, msg)
	notify := p.onMessage
	p.mu.Unlock()
	if notify != nil {
		notify(msg)
	}
}

func (p *Pipeline) setState(next State) {
	p.mu.Lock()
	changed := p.state != next
	p.state = next
	notify := p.onState
	p.mu.Unlock()
	if changed && notify != nil {
		notify(next)
	}
}

// Submit sends free text to the understanding endpoint. A new submit
// supersedes any intent still awaiting confirmation. Backend failures become
// assistant error messages; only misuse (empty text) returns an error.
func (p *Pipeline) Submit(ctx context.Context, text, source string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("submit: empty input")
	}

	p.append(SenderUser, KindNormal, text)

	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	p.setState(StateAwaitingUnderstanding)

	understanding, err := p.backend.Understand(ctx, text, orgscope.RequestContext{
		Timestamp: p.now().UTC().Format(time.RFC3339),
		Source:    source,
	})
	if err != nil {
		p.logger.Warn("understanding request failed", "error", err)
		p.append(SenderAssistant, KindError,
			"Sorry, I couldn't process that request right now. Please try again.")
		p.setState(StateIdle)
		return nil
	}

	if understanding.Intent.Confidence > p.config.ConfidenceThreshold {
		pending := &PendingIntent{
			ID:                  uuid.New(),
			Intent:              understanding.Intent,
			Plan:                understanding.Plan,
			ClarifyingQuestions: understanding.ClarifyingQuestions,
		}
		p.mu.Lock()
		p.current = pending
		p.mu.Unlock()
		p.logger.Info("intent understood",
			"intent_type", understanding.Intent.Type,
			"confidence", understanding.Intent.Confidence,
			"agents", len(understanding.Plan.Agents))
		p.append(SenderAssistant, KindNormal, p.confirmationPrompt(pending))
		p.setState(StateAwaitingConfirmation)
		return nil
	}

	// Not confident enough to act; stay conversational.
	p.logger.Debug("intent below confidence threshold",
		"confidence", understanding.Intent.Confidence)
	p.append(SenderAssistant, KindNormal, clarificationPrompt(understanding))
	p.setState(StateIdle)
	return nil
}

func (p *Pipeline) confirmationPrompt(pending *PendingIntent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nProposed plan (%d agents):\n", pending.Intent.Summary, len(pending.Plan.Agents))
	for i, agent := range pending.Plan.Agents {
		fmt.Fprintf(&b, "%d. %s — %s (%s)\n", i+1, agent.Type, agent.Description, agent.EstimatedTime)
	}
	if pending.Plan.TotalEstimatedTime != "" {
		fmt.Fprintf(&b, "Estimated total time: %s\n", pending.Plan.TotalEstimatedTime)
	}
	b.WriteString("Confirm to start, or refine your request.")
	return b.String()
}

func clarificationPrompt(u *orgscope.Understanding) string {
	if len(u.ClarifyingQuestions) == 0 {
		return "I'm not sure what you'd like to do. Could you rephrase that?"
	}
	var b strings.Builder
	b.WriteString("I need a bit more detail:\n")
	for _, q := range u.ClarifyingQuestions {
		fmt.Fprintf(&b, "- %s\n", q)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Confirm executes the pending intent identified by intentID. Confirming a
// superseded or absent intent, or confirming again once execution has been
// dispatched, is a user-visible no-op, not a second execution.
func (p *Pipeline) Confirm(ctx context.Context, intentID uuid.UUID, answers map[string]string) error {
	p.mu.Lock()
	pending := p.current
	if pending == nil || pending.ID != intentID || p.state != StateAwaitingConfirmation {
		p.mu.Unlock()
		p.logger.Warn("stale intent confirmation rejected", "intent_id", intentID)
		p.append(SenderAssistant, KindError,
			"That request is no longer active. Please submit it again.")
		return nil
	}
	// Claim the intent under the same lock so a racing second confirm
	// cannot dispatch the plan twice.
	p.state = StateExecuting
	notify := p.onState
	p.mu.Unlock()
	if notify != nil {
		notify(StateExecuting)
	}

	resp, err := p.backend.Execute(ctx, &orgscope.ExecuteRequest{
		Intent:         pending.Intent,
		Agents:         pending.Plan.Agents,
		ExecutionOrder: pending.Plan.ExecutionOrder,
		Confirmations:  answers,
	})
	if err != nil {
		p.logger.Warn("execution request failed", "error", err)
		p.append(SenderAssistant, KindError,
			"Sorry, I couldn't start that plan. Please try again.")
		p.mu.Lock()
		p.current = nil
		p.mu.Unlock()
		p.setState(StateIdle)
		return nil
	}

	p.logger.Info("execution accepted", "agents_count", resp.AgentsCount, "status", resp.Status)
	body := fmt.Sprintf("Starting %d agents now. I'll report back as they finish.", resp.AgentsCount)
	if resp.EstimatedTime != "" {
		body = fmt.Sprintf("Starting %d agents now (about %s). I'll report back as they finish.",
			resp.AgentsCount, resp.EstimatedTime)
	}
	p.append(SenderAssistant, KindNormal, body)
	return nil
}

// Refine discards the pending intent and returns to free-text input.
func (p *Pipeline) Refine() {
	p.mu.Lock()
	p.current = nil
	focus := p.onFocus
	p.mu.Unlock()
	p.setState(StateIdle)
	if focus != nil {
		focus()
	}
}

// Reset clears the conversation back to the greeting, from any state.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	p.current = nil
	p.messages = []ChatMessage{p.greeting()}
	notify := p.onMessage
	greeting := p.messages[0]
	p.mu.Unlock()
	p.setState(StateIdle)
	if notify != nil {
		notify(greeting)
	}
}

// Bind registers the pipeline's push-event handlers on a connection manager.
func (p *Pipeline) Bind(m *push.Manager) {
	m.Handle("intent_execution_started", func(ev push.Event) {
		if started, ok := ev.(push.IntentExecutionStartedEvent); ok {
			p.HandleExecutionStarted(started)
		}
	})
	m.Handle("intent_execution_completed", func(ev push.Event) {
		if completed, ok := ev.(push.IntentExecutionCompletedEvent); ok {
			p.HandleExecutionCompleted(completed)
		}
	})
	m.Handle("intent_execution_failed", func(ev push.Event) {
		if failed, ok := ev.(push.IntentExecutionFailedEvent); ok {
			p.HandleExecutionFailed(failed)
		}
	})
}

// HandleExecutionStarted records backend acknowledgement of a running plan.
func (p *Pipeline) HandleExecutionStarted(ev push.IntentExecutionStartedEvent) {
	p.logger.Info("intent execution started", "intent_type", ev.IntentType, "agents_count", ev.AgentsCount)
	p.append(SenderAssistant, KindNormal,
		fmt.Sprintf("Execution started: %d agents running.", ev.AgentsCount))
	p.setState(StateExecuting)
}

// HandleExecutionCompleted summarises the finished plan and triggers a data
// refresh so the report views pick up the new results.
func (p *Pipeline) HandleExecutionCompleted(ev push.IntentExecutionCompletedEvent) {
	summary := ev.Results.PipelineSummary
	p.logger.Info("intent execution completed",
		"successful_agents", summary.SuccessfulAgents,
		"failed_agents", summary.FailedAgents,
		"total_execution_time", summary.TotalExecutionTime)

	body := fmt.Sprintf("Analysis complete: %d/%d agents succeeded in %.1fs.",
		summary.SuccessfulAgents, summary.TotalAgents, summary.TotalExecutionTime)
	if summary.FailedAgents > 0 {
		body += fmt.Sprintf(" %d agents failed.", summary.FailedAgents)
	}
	p.append(SenderAssistant, KindSummary, body)

	p.mu.Lock()
	p.current = nil
	refresh := p.onRefresh
	p.mu.Unlock()
	p.setState(StateIdle)
	if refresh != nil {
		refresh()
	}
}

// HandleExecutionFailed surfaces a failed plan and returns to idle.
func (p *Pipeline) HandleExecutionFailed(ev push.IntentExecutionFailedEvent) {
	p.logger.Warn("intent execution failed", "error", ev.Error)
	p.append(SenderAssistant, KindError,
		fmt.Sprintf("The plan failed: %s", ev.Error))
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	p.setState(StateIdle)
}

package orgscope

import (
	"context"
	"strings"

	"github.com/orgscope/orgscope-go/pkg/core"
)

// AIService talks to the understanding and execution endpoints.
type AIService struct {
	client *Client
}

// Intent is the backend's structured interpretation of free-text input.
type Intent struct {
	Type       string  `json:"type"`
	Industry   string  `json:"industry,omitempty"`
	Region     string  `json:"region,omitempty"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary"`
}

// Agent describes one backend agent proposed to satisfy an intent.
type Agent struct {
	Type          string `json:"type"`
	Description   string `json:"description"`
	EstimatedTime string `json:"estimated_time"`
	Priority      int    `json:"priority"`
}

// ExecutionPlan is the ordered set of agents recommended for an intent.
type ExecutionPlan struct {
	Agents             []Agent  `json:"agents"`
	TotalEstimatedTime string   `json:"total_estimated_time"`
	ExecutionOrder     []string `json:"execution_order"`
}

// Understanding is the full response of the understanding endpoint.
type Understanding struct {
	Intent              Intent        `json:"understood_intent"`
	Plan                ExecutionPlan `json:"recommended_approach"`
	ClarifyingQuestions []string      `json:"clarifying_questions"`
	NextSteps           []string      `json:"next_steps,omitempty"`
	CanProceed          bool          `json:"can_proceed"`
}

// RequestContext is the ambient context sent alongside free-text input.
type RequestContext struct {
	Timestamp string `json:"timestamp,omitempty"`
	Source    string `json:"source,omitempty"`
}

// Input source tags for RequestContext.
const (
	SourceText  = "text"
	SourceVoice = "voice"
)

type understandRequest struct {
	Message string         `json:"message"`
	Context RequestContext `json:"context"`
}

type understandResponse struct {
	Understanding
	Error string `json:"error,omitempty"`
}

// Understand sends free-text input to the understanding endpoint.
func (s *AIService) Understand(ctx context.Context, message string, reqCtx RequestContext) (*Understanding, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, core.NewInvalidRequestError("message must not be empty")
	}

	var resp understandResponse
	err := s.client.postJSON(ctx, s.client.endpoint("/api/ai/understand-request"), understandRequest{
		Message: message,
		Context: reqCtx,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, core.NewUnderstandingError(resp.Error)
	}
	return &resp.Understanding, nil
}

// ExecuteRequest carries a confirmed intent to the execution endpoint.
type ExecuteRequest struct {
	Intent         Intent            `json:"intent"`
	Agents         []Agent           `json:"recommendations"`
	ExecutionOrder []string          `json:"execution_order"`
	Confirmations  map[string]string `json:"confirmations,omitempty"`
}

// ExecuteResponse acknowledges an accepted execution plan. Progress then
// arrives asynchronously over the push channel.
type ExecuteResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
	AgentsCount   int    `json:"agents_count"`
	EstimatedTime string `json:"estimated_time,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Execute submits a confirmed intent and its plan for execution.
func (s *AIService) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	if req == nil {
		return nil, core.NewInvalidRequestError("req must not be nil")
	}
	if len(req.Agents) == 0 {
		return nil, core.NewInvalidRequestError("execution plan has no agents")
	}

	var resp ExecuteResponse
	if err := s.client.postJSON(ctx, s.client.endpoint("/api/ai/execute-intent"), req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, core.NewExecutionError(resp.Error)
	}
	return &resp, nil
}

package push

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Event is the interface for all push-channel events.
type Event interface {
	// EventType returns the wire tag of the event.
	EventType() string
}

// DiscoveryStartedEvent announces the start of a discovery run.
type DiscoveryStartedEvent struct {
	Region    string `json:"region,omitempty"`
	Industry  string `json:"industry,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (e DiscoveryStartedEvent) EventType() string { return "discovery_started" }

// DiscoveryProgressEvent carries incremental discovery status.
type DiscoveryProgressEvent struct {
	Phase    string  `json:"phase,omitempty"`
	Message  string  `json:"message,omitempty"`
	Count    int     `json:"count,omitempty"`
	Progress float64 `json:"progress,omitempty"`
}

func (e DiscoveryProgressEvent) EventType() string { return "discovery_progress" }

// DiscoveryCompletedEvent announces a finished discovery run.
type DiscoveryCompletedEvent struct {
	Region         string `json:"region,omitempty"`
	TotalProcessed int    `json:"total_processed"`
	SavedCount     int    `json:"saved_count"`
	Timestamp      string `json:"timestamp,omitempty"`
}

func (e DiscoveryCompletedEvent) EventType() string { return "discovery_completed" }

// DiscoveryErrorEvent announces a failed discovery run.
type DiscoveryErrorEvent struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (e DiscoveryErrorEvent) EventType() string { return "discovery_error" }

// WorkflowCreatedEvent announces a newly created orchestration workflow.
type WorkflowCreatedEvent struct {
	WorkflowID  string `json:"workflow_id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

func (e WorkflowCreatedEvent) EventType() string { return "workflow_created" }

// WorkflowStartedEvent announces a workflow entering execution.
type WorkflowStartedEvent struct {
	WorkflowID string `json:"workflow_id"`
	Name       string `json:"name,omitempty"`
}

func (e WorkflowStartedEvent) EventType() string { return "workflow_started" }

// WorkflowCompletedEvent announces a finished workflow.
type WorkflowCompletedEvent struct {
	WorkflowID    string  `json:"workflow_id"`
	Name          string  `json:"name,omitempty"`
	ExecutionTime float64 `json:"execution_time,omitempty"`
}

func (e WorkflowCompletedEvent) EventType() string { return "workflow_completed" }

// WorkflowFailedEvent announces a failed workflow.
type WorkflowFailedEvent struct {
	WorkflowID string `json:"workflow_id"`
	Error      string `json:"error"`
}

func (e WorkflowFailedEvent) EventType() string { return "workflow_failed" }

// TaskStartedEvent announces a task entering execution.
type TaskStartedEvent struct {
	TaskID     string `json:"task_id"`
	WorkflowID string `json:"workflow_id"`
	TaskName   string `json:"task_name,omitempty"`
}

func (e TaskStartedEvent) EventType() string { return "task_started" }

// TaskCompletedEvent announces a finished task.
type TaskCompletedEvent struct {
	TaskID        string  `json:"task_id"`
	WorkflowID    string  `json:"workflow_id"`
	TaskName      string  `json:"task_name,omitempty"`
	ExecutionTime float64 `json:"execution_time,omitempty"`
}

func (e TaskCompletedEvent) EventType() string { return "task_completed" }

// TaskFailedEvent announces a task that exhausted its retries.
type TaskFailedEvent struct {
	TaskID     string `json:"task_id"`
	WorkflowID string `json:"workflow_id"`
	TaskName   string `json:"task_name,omitempty"`
	Error      string `json:"error"`
	Retries    int    `json:"retries,omitempty"`
}

func (e TaskFailedEvent) EventType() string { return "task_failed" }

// PipelineSummary aggregates the outcome of an executed agent pipeline.
type PipelineSummary struct {
	TotalAgents        int      `json:"total_agents"`
	ExecutedAgents     int      `json:"executed_agents"`
	SuccessfulAgents   int      `json:"successful_agents"`
	FailedAgents       int      `json:"failed_agents"`
	TotalExecutionTime float64  `json:"total_execution_time"`
	ExecutionOrder     []string `json:"execution_order,omitempty"`
}

// IntentExecutionResults is the payload of a completed intent execution.
type IntentExecutionResults struct {
	PipelineSummary    PipelineSummary `json:"pipeline_summary"`
	AgentResults       json.RawMessage `json:"agent_results,omitempty"`
	ExecutionTimestamp string          `json:"execution_timestamp,omitempty"`
}

// IntentExecutionStartedEvent announces the start of an intent execution plan.
type IntentExecutionStartedEvent struct {
	IntentType  string `json:"intent_type,omitempty"`
	AgentsCount int    `json:"agents_count"`
	Timestamp   string `json:"timestamp,omitempty"`
}

func (e IntentExecutionStartedEvent) EventType() string { return "intent_execution_started" }

// IntentExecutionCompletedEvent carries the results of a finished plan.
type IntentExecutionCompletedEvent struct {
	Results   IntentExecutionResults `json:"results"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

func (e IntentExecutionCompletedEvent) EventType() string { return "intent_execution_completed" }

// IntentExecutionFailedEvent announces a failed plan execution.
type IntentExecutionFailedEvent struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (e IntentExecutionFailedEvent) EventType() string { return "intent_execution_failed" }

// HeartbeatEvent is a keepalive frame from the backend.
type HeartbeatEvent struct {
	Timestamp string `json:"timestamp,omitempty"`
}

func (e HeartbeatEvent) EventType() string { return "heartbeat" }

// UnknownEvent carries a frame whose tag is not part of the closed set.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e UnknownEvent) EventType() string { return e.Type }

// DecodeEvent decodes a push frame into its tagged variant. Frames with an
// unrecognized tag decode into UnknownEvent so one new server-side message
// type cannot break the channel.
func DecodeEvent(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode push frame envelope: %w", err)
	}
	tag := strings.TrimSpace(envelope.Type)
	if tag == "" {
		return nil, fmt.Errorf("push frame missing type")
	}

	decode := func(v any) error {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decode %s: %w", tag, err)
		}
		return nil
	}

	switch tag {
	case "discovery_started":
		var e DiscoveryStartedEvent
		if err := decode(&e); err != nil {
			return nil, err
		}
		return e, nil
	case "discovery_progress":
		var e DiscoveryProgressEvent
		if err := decode(&e); err != nil {
			return nil, err
		}
		return e, nil
	case "discovery_completed":
		var e DiscoveryCompletedEvent
		if err := decode(&e); err != nil {
			return nil, err
		}
		return e, nil
	case "discovery_error":
		var e DiscoveryErrorEvent
		if err := decode(&e); err != nil {
			return nil, err
		}
		return e, nil
	case "workflow_created":
		var e WorkflowCreatedEvent
		if err := decode(&e); err != nil {
			return nil, err
		}
		return e, nil
	case "workflow_started":
		var e WorkflowStartedEvent
		if err := decode(&e); err != nil {
			return nil, err
		}
		return e, nil
	case "workflow_completed":
		var e WorkflowCompletedEvent
		if err := decode(&e); err != nil {
			return nil, err
		}
		return e, nil
	case "workflow_failed":
		var e WorkflowFailedEvent
		if err := decode(&e); err != nil {
			return nil, err
		}
		return e, nil
	case "task_started":
		var e TaskStartedEvent
		if err := decode(&e); err != nil {
			return nil, err
		}
		return e, nil
	case "task_completed":
		var e TaskCompletedEvent
		if err := decode(&e); err != nil {
			return nil, err
		}
		return e, nil
	case "task_failed":
		var e TaskFailedEvent
		if err := decode(&e); err != nil {
			return nil, err
		}
		return e, nil
	case "intent_execution_started":
		var e IntentExecutionStartedEvent
		if err := decode(&e); err != nil {
			return nil, err
		}
		return e, nil
	case "intent_execution_completed":
		var e IntentExecutionCompletedEvent
		if err := decode(&e); err != nil {
			return nil, err
		}
		return e, nil
	case "intent_execution_failed":
		var e IntentExecutionFailedEvent
		if err := decode(&e); err != nil {
			return nil, err
		}
		return e, nil
	case "heartbeat":
		var e HeartbeatEvent
		if err := decode(&e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return UnknownEvent{
			Type: tag,
			Raw:  append(json.RawMessage(nil), data...),
		}, nil
	}
}

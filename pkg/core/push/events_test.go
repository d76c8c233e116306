package push

import (
	"testing"
)

func TestDecodeEvent_IntentExecutionCompleted(t *testing.T) {
	frame := []byte(`{
		"type": "intent_execution_completed",
		"results": {
			"pipeline_summary": {
				"total_agents": 3,
				"executed_agents": 3,
				"successful_agents": 3,
				"failed_agents": 0,
				"total_execution_time": 42.5,
				"execution_order": ["market_discovery", "enrichment", "analysis"]
			}
		},
		"timestamp": "2025-08-01T12:00:00"
	}`)

	event, err := DecodeEvent(frame)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	completed, ok := event.(IntentExecutionCompletedEvent)
	if !ok {
		t.Fatalf("DecodeEvent() = %T, want IntentExecutionCompletedEvent", event)
	}
	if completed.Results.PipelineSummary.SuccessfulAgents != 3 {
		t.Errorf("SuccessfulAgents = %d, want 3", completed.Results.PipelineSummary.SuccessfulAgents)
	}
	if len(completed.Results.PipelineSummary.ExecutionOrder) != 3 {
		t.Errorf("ExecutionOrder length = %d, want 3", len(completed.Results.PipelineSummary.ExecutionOrder))
	}
}

func TestDecodeEvent_DiscoveryProgress(t *testing.T) {
	frame := []byte(`{"type":"discovery_progress","phase":"enrichment","message":"Enriching (4/10)","progress":40.0}`)

	event, err := DecodeEvent(frame)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	progress, ok := event.(DiscoveryProgressEvent)
	if !ok {
		t.Fatalf("DecodeEvent() = %T, want DiscoveryProgressEvent", event)
	}
	if progress.Phase != "enrichment" || progress.Progress != 40.0 {
		t.Errorf("unexpected payload: %+v", progress)
	}
}

func TestDecodeEvent_TaskFailed(t *testing.T) {
	frame := []byte(`{"type":"task_failed","task_id":"t1","workflow_id":"w1","task_name":"scrape","error":"boom","retries":2}`)

	event, err := DecodeEvent(frame)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	failed, ok := event.(TaskFailedEvent)
	if !ok {
		t.Fatalf("DecodeEvent() = %T, want TaskFailedEvent", event)
	}
	if failed.Error != "boom" || failed.Retries != 2 {
		t.Errorf("unexpected payload: %+v", failed)
	}
}

func TestDecodeEvent_UnknownTagFallsBack(t *testing.T) {
	frame := []byte(`{"type":"dashboard_modified","request":"add chart"}`)

	event, err := DecodeEvent(frame)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	unknown, ok := event.(UnknownEvent)
	if !ok {
		t.Fatalf("DecodeEvent() = %T, want UnknownEvent", event)
	}
	if unknown.Type != "dashboard_modified" {
		t.Errorf("Type = %q, want dashboard_modified", unknown.Type)
	}
}

func TestDecodeEvent_Malformed(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed frame")
	}
	if _, err := DecodeEvent([]byte(`{"payload":1}`)); err == nil {
		t.Error("expected error for frame without type")
	}
}

package load

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/orgscope/orgscope-go/pkg/core/activity"
)

func newTestLoader() (*Loader, *activity.Log) {
	log := activity.NewLog()
	return NewLoader(log, slog.Default(), time.Millisecond), log
}

func TestRunWithRetry_SucceedsFirstAttempt(t *testing.T) {
	l, log := newTestLoader()

	calls := 0
	err := l.RunWithRetry(context.Background(), "summary stats", 3, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("RunWithRetry() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if log.Len() != 0 {
		t.Errorf("activity entries = %d, want 0 on success", log.Len())
	}
}

func TestRunWithRetry_StopsAfterSuccess(t *testing.T) {
	l, _ := newTestLoader()

	calls := 0
	err := l.RunWithRetry(context.Background(), "top entities", 5, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("temporarily unavailable")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunWithRetry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (no calls after success)", calls)
	}
}

func TestRunWithRetry_ExhaustsAttempts(t *testing.T) {
	l, log := newTestLoader()

	calls := 0
	err := l.RunWithRetry(context.Background(), "industry configs", 3, func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("RunWithRetry() should surface the final error")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want exactly maxAttempts", calls)
	}

	var warned bool
	for _, item := range log.Items() {
		if strings.Contains(item.Message, "industry configs") {
			warned = true
		}
	}
	if !warned {
		t.Error("expected one activity warning naming the task")
	}
}

func TestRunSequence_RequiredOrderedOptionalIsolated(t *testing.T) {
	l, _ := newTestLoader()

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	seq := Sequence{
		Required: []Step{
			{Name: "industry configs", MaxAttempts: 2, Run: func(ctx context.Context) error { record("configs"); return nil }},
			{Name: "preferences", MaxAttempts: 2, Run: func(ctx context.Context) error { record("preferences"); return nil }},
			{Name: "summary stats", MaxAttempts: 2, Run: func(ctx context.Context) error { record("stats"); return nil }},
		},
		Optional: []Step{
			{Name: "reports", MaxAttempts: 1, Run: func(ctx context.Context) error { record("reports"); return errors.New("unavailable") }},
			{Name: "market intelligence", MaxAttempts: 1, Run: func(ctx context.Context) error { record("intel"); return nil }},
		},
	}

	if err := l.RunSequence(context.Background(), seq); err != nil {
		t.Fatalf("RunSequence() error = %v; optional failures must not abort startup", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 5 {
		t.Fatalf("steps run = %d, want 5", len(order))
	}
	wantRequired := []string{"configs", "preferences", "stats"}
	for i, name := range wantRequired {
		if order[i] != name {
			t.Errorf("required order[%d] = %q, want %q", i, order[i], name)
		}
	}
}

func TestRunSequence_RequiredFailureDoesNotBlockLaterSteps(t *testing.T) {
	l, _ := newTestLoader()

	var ranStats bool
	seq := Sequence{
		Required: []Step{
			{Name: "preferences", MaxAttempts: 2, Run: func(ctx context.Context) error { return errors.New("no store") }},
			{Name: "summary stats", MaxAttempts: 1, Run: func(ctx context.Context) error { ranStats = true; return nil }},
		},
	}

	err := l.RunSequence(context.Background(), seq)
	if err == nil {
		t.Error("RunSequence() should report required-step failures")
	}
	if !ranStats {
		t.Error("later required steps must still run after an earlier failure")
	}
}

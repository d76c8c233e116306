// Package load populates dashboard state from HTTP endpoints that may be
// transiently unavailable, retrying with a linear backoff and degrading
// gracefully when data stays out of reach.
package load

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/orgscope/orgscope-go/pkg/core/activity"
)

// Task is one side-effecting load step. It returns nil once its data has
// been fetched and applied.
type Task func(ctx context.Context) error

// Loader runs load tasks with bounded retries. A task that fails attempt k
// waits k × unitDelay before attempt k+1.
type Loader struct {
	log       *activity.Log
	logger    *slog.Logger
	unitDelay time.Duration
}

// NewLoader creates a loader. unitDelay defaults to one second.
func NewLoader(log *activity.Log, logger *slog.Logger, unitDelay time.Duration) *Loader {
	if unitDelay <= 0 {
		unitDelay = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		log:       log,
		logger:    logger,
		unitDelay: unitDelay,
	}
}

// RunWithRetry invokes task up to maxAttempts times. On success it returns
// immediately; after maxAttempts consecutive failures it gives up, emits
// one activity warning naming the task, and returns the last error so the
// caller can decide whether the missing data is fatal.
func (l *Loader) RunWithRetry(ctx context.Context, name string, maxAttempts int, task Task) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	attempt := 0
	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		if attempt >= maxAttempts {
			return 0, true
		}
		return time.Duration(attempt) * l.unitDelay, false
	})

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := task(ctx); err != nil {
			l.logger.Debug("load task failed", "task", name, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		l.logger.Warn("load task gave up", "task", name, "attempts", maxAttempts, "error", err)
		l.log.Append(activity.SeverityOffline, fmt.Sprintf("Could not load %s after %d attempts", name, maxAttempts))
		return err
	}
	return nil
}

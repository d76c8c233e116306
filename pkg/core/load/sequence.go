package load

import (
	"context"
	"errors"
	"sync"
)

// Step is one named load step with its own retry limit.
type Step struct {
	Name        string
	MaxAttempts int
	Run         Task
}

// Sequence describes a startup load: required steps run strictly in order,
// each completing or exhausting its retries before the next starts.
// Optional enrichments are issued together afterwards; an optional failure
// degrades that panel to an "unavailable" state and never aborts startup.
type Sequence struct {
	Required []Step
	Optional []Step
}

// RunSequence executes the sequence. The returned error joins the failures
// of required steps; optional failures are reported only through the
// activity log. Required steps keep running even after an earlier one
// fails — absence of one panel's data must not block the rest of the
// dashboard.
func (l *Loader) RunSequence(ctx context.Context, seq Sequence) error {
	var failures []error
	for _, step := range seq.Required {
		if err := l.RunWithRetry(ctx, step.Name, step.MaxAttempts, step.Run); err != nil {
			failures = append(failures, err)
		}
		if ctx.Err() != nil {
			return errors.Join(append(failures, ctx.Err())...)
		}
	}

	var wg sync.WaitGroup
	for _, step := range seq.Optional {
		wg.Add(1)
		go func(step Step) {
			defer wg.Done()
			// Errors already produced an activity warning; the panel
			// renders as unavailable.
			_ = l.RunWithRetry(ctx, step.Name, step.MaxAttempts, step.Run)
		}(step)
	}
	wg.Wait()

	return errors.Join(failures...)
}

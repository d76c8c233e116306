package orgscope

import (
	"fmt"

	"github.com/orgscope/orgscope-go/pkg/core"
)

// Error is the canonical error type shared with the core.
type Error = core.Error

const (
	ErrTransport      = core.ErrTransport
	ErrParse          = core.ErrParse
	ErrUnderstanding  = core.ErrUnderstanding
	ErrExecution      = core.ErrExecution
	ErrInvalidRequest = core.ErrInvalidRequest
)

// TransportError represents HTTP transport-level failures (DNS, timeouts,
// connection resets) while talking to the backend.
//
// Use errors.As(err, &TransportError{}) to distinguish transport failures
// from canonical API errors (*core.Error).
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Op != "" && e.URL != "":
		return fmt.Sprintf("transport error during %s %s: %v", e.Op, e.URL, e.Err)
	case e.Op != "":
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

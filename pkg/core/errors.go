package core

import (
	"fmt"
)

// Error is the canonical error type for the client core.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Op      string    `json:"op,omitempty"`
	Code    string    `json:"code,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrTransport covers connection drops, non-2xx responses and timeouts.
	ErrTransport ErrorType = "transport_error"
	// ErrParse covers malformed frames and unexpected response shapes.
	ErrParse ErrorType = "parse_error"
	// ErrUnderstanding covers failures from the understanding endpoint.
	ErrUnderstanding ErrorType = "understanding_error"
	// ErrExecution covers failures from the execution endpoint.
	ErrExecution ErrorType = "execution_error"
	// ErrSpeech covers recognition and synthesis failures.
	ErrSpeech ErrorType = "speech_error"
	// ErrTerminal marks failures that require a manual restart to recover.
	ErrTerminal ErrorType = "terminal_error"
	// ErrInvalidRequest covers caller mistakes (nil requests, stale intents).
	ErrInvalidRequest ErrorType = "invalid_request_error"
)

// NewTransportError creates a transport error for the given operation.
func NewTransportError(op string, cause error) *Error {
	return &Error{
		Type:    ErrTransport,
		Op:      op,
		Message: cause.Error(),
		Cause:   cause,
	}
}

// NewParseError creates a parse error for the given operation.
func NewParseError(op string, cause error) *Error {
	return &Error{
		Type:    ErrParse,
		Op:      op,
		Message: cause.Error(),
		Cause:   cause,
	}
}

// NewUnderstandingError creates an understanding error.
func NewUnderstandingError(message string) *Error {
	return &Error{
		Type:    ErrUnderstanding,
		Message: message,
	}
}

// NewExecutionError creates an execution error.
func NewExecutionError(message string) *Error {
	return &Error{
		Type:    ErrExecution,
		Message: message,
	}
}

// NewSpeechError creates a speech error with a machine-readable code.
func NewSpeechError(code, message string) *Error {
	return &Error{
		Type:    ErrSpeech,
		Code:    code,
		Message: message,
	}
}

// NewTerminalError creates a terminal error.
func NewTerminalError(message string) *Error {
	return &Error{
		Type:    ErrTerminal,
		Message: message,
	}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// IsRetryable returns true if the failure may clear on its own.
func (e *Error) IsRetryable() bool {
	return e.Type == ErrTransport
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

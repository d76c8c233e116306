package core

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := NewUnderstandingError("backend returned no intent")
	if !strings.Contains(err.Error(), "understanding_error") {
		t.Errorf("Error() = %q, want type prefix", err.Error())
	}

	withOp := NewTransportError("GET /api/stats", errors.New("connection refused"))
	if !strings.Contains(withOp.Error(), "GET /api/stats") {
		t.Errorf("Error() = %q, want op included", withOp.Error())
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  *Error
		want bool
	}{
		{NewTransportError("dial", errors.New("refused")), true},
		{NewParseError("decode frame", errors.New("bad json")), false},
		{NewUnderstandingError("no intent"), false},
		{NewTerminalError("reconnect attempts exhausted"), false},
	}
	for _, tc := range cases {
		if got := tc.err.IsRetryable(); got != tc.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", tc.err.Type, got, tc.want)
		}
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewTransportError("read frame", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

// Package speech wraps speech recognition and synthesis behind one
// mutually-exclusive listening/speaking state machine with wake-word and
// command interception.
package speech

import (
	"errors"
	"fmt"

	"github.com/orgscope/orgscope-go/pkg/core"
)

// RecognitionResult is one transcript segment from an active session.
// Interim segments update the live transcript display; only final segments
// are processed.
type RecognitionResult struct {
	Transcript string
	Final      bool
}

// SessionCallbacks receive recognition output for one session. Callbacks
// after Stop or Abort are discarded by the machine.
type SessionCallbacks struct {
	OnResult func(RecognitionResult)
	OnError  func(error)
	OnEnd    func()
}

// Recognizer abstracts a continuous speech-recognition capability. At most
// one session runs at a time; Start while a session is active is an error.
type Recognizer interface {
	Start(language string, callbacks SessionCallbacks) error
	// Stop ends the session gracefully; OnEnd still fires.
	Stop()
	// Abort tears the session down immediately without results.
	Abort()
}

// Utterance is one synthesis request.
type Utterance struct {
	Text     string
	Language string
	Voice    string
	Rate     float64
	Pitch    float64
	Volume   float64
}

// Synthesizer abstracts text-to-speech. Utterances are not queued; Speak
// while another utterance is in flight replaces it.
type Synthesizer interface {
	Speak(u Utterance, onEnd func(), onError func(error)) error
	Cancel()
}

// Recognition and synthesis error codes.
const (
	CodeNoSpeech  = "no-speech"
	CodeMicDenied = "not-allowed"
	CodeNetwork   = "network"
	CodeAborted   = "aborted"
	CodeSynthesis = "synthesis-failed"
)

// NewRecognitionError builds a speech error for a recognition failure code.
func NewRecognitionError(code string) *core.Error {
	return core.NewSpeechError(code, fmt.Sprintf("speech recognition failed: %s", code))
}

// Guidance maps a speech error to the advice shown to the user.
func Guidance(err error) string {
	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		return "Voice input failed. Please try again."
	}
	switch coreErr.Code {
	case CodeNoSpeech:
		return "I didn't hear anything. Try speaking again."
	case CodeMicDenied:
		return "Microphone access was denied. Enable it in your browser settings to use voice input."
	case CodeNetwork:
		return "Voice recognition needs a network connection. Check your connection and try again."
	case CodeAborted:
		return "Voice input was cancelled."
	case CodeSynthesis:
		return "I couldn't read that response aloud."
	default:
		return "Voice input failed. Please try again."
	}
}

package convo

import "time"

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Kind classifies an assistant message for presentation.
type Kind string

const (
	KindNormal  Kind = "normal"
	KindError   Kind = "error"
	KindSummary Kind = "summary"
)

// ChatMessage is one entry in the append-only conversation history.
type ChatMessage struct {
	Sender    Sender
	Body      string
	Kind      Kind
	Timestamp time.Time
}

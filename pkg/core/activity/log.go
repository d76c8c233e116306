// Package activity keeps the bounded, time-ordered feed of connection and
// loader events shown to the operator.
package activity

import (
	"sync"
	"time"
)

// DefaultCapacity is the maximum number of retained items.
const DefaultCapacity = 50

// Severity classifies an activity item for display.
type Severity string

const (
	SeverityOnline     Severity = "online"
	SeverityProcessing Severity = "processing"
	SeverityOffline    Severity = "offline"
	SeverityError      Severity = "error"
)

// Item is one entry in the activity feed.
type Item struct {
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is an append-to-front ring of activity items. The oldest item is
// silently dropped once the capacity is exceeded. Log is a pure data sink;
// a presentation layer subscribes via SetNotify and renders elsewhere.
type Log struct {
	mu       sync.Mutex
	capacity int
	items    []Item
	notify   func(Item)
	now      func() time.Time
}

// NewLog creates a log with the default capacity.
func NewLog() *Log {
	return NewLogWithCapacity(DefaultCapacity)
}

// NewLogWithCapacity creates a log retaining at most capacity items.
func NewLogWithCapacity(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		capacity: capacity,
		now:      time.Now,
	}
}

// SetNotify registers a subscriber called after each append. The callback
// runs outside the log's lock.
func (l *Log) SetNotify(fn func(Item)) {
	l.mu.Lock()
	l.notify = fn
	l.mu.Unlock()
}

// Append records a new item at the front of the feed.
func (l *Log) Append(severity Severity, message string) {
	l.mu.Lock()
	item := Item{
		Message:   message,
		Severity:  severity,
		Timestamp: l.now(),
	}
	l.items = append([]Item{item}, l.items...)
	if len(l.items) > l.capacity {
		l.items = l.items[:l.capacity]
	}
	notify := l.notify
	l.mu.Unlock()

	if notify != nil {
		notify(item)
	}
}

// Items returns a copy of the feed, newest first.
func (l *Log) Items() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Item, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of retained items.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

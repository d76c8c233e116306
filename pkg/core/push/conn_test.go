package push

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orgscope/orgscope-go/pkg/core/activity"
)

// fakeConn scripts a sequence of text frames. After the frames are consumed
// it either returns readErr (unexpected close) or blocks until Close.
type fakeConn struct {
	frames  [][]byte
	readErr error

	mu     sync.Mutex
	idx    int
	closed chan struct{}
	once   sync.Once
}

func newFakeConn(readErr error, frames ...[]byte) *fakeConn {
	return &fakeConn{
		frames:  frames,
		readErr: readErr,
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	if c.idx < len(c.frames) {
		frame := c.frames[c.idx]
		c.idx++
		c.mu.Unlock()
		return websocket.TextMessage, frame, nil
	}
	c.mu.Unlock()

	if c.readErr != nil {
		return 0, nil, c.readErr
	}
	<-c.closed
	return 0, nil, errors.New("use of closed connection")
}

func (c *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func newTestManager(baseDelay time.Duration) (*Manager, *activity.Log) {
	log := activity.NewLog()
	config := Config{
		URL:         "ws://test/ws",
		BaseDelay:   baseDelay,
		MaxAttempts: 5,
	}
	return NewManager(config, log, slog.Default()), log
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func TestConnect_DispatchesInOrder(t *testing.T) {
	m, _ := newTestManager(time.Millisecond)

	conn := newFakeConn(nil,
		[]byte(`{"type":"discovery_started","region":"scottish"}`),
		[]byte(`{"type":"discovery_completed","region":"scottish","total_processed":7,"saved_count":7}`),
	)
	m.dial = func(ctx context.Context) (wsConn, error) { return conn, nil }

	events := make(chan Event, 4)
	m.Handle("discovery_started", func(e Event) { events <- e })
	m.Handle("discovery_completed", func(e Event) { events <- e })

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer m.Disconnect()

	first := <-events
	if _, ok := first.(DiscoveryStartedEvent); !ok {
		t.Errorf("first event = %T, want DiscoveryStartedEvent", first)
	}
	second := <-events
	if _, ok := second.(DiscoveryCompletedEvent); !ok {
		t.Errorf("second event = %T, want DiscoveryCompletedEvent", second)
	}
}

func TestConnect_SecondConnectRejected(t *testing.T) {
	m, _ := newTestManager(time.Millisecond)
	m.dial = func(ctx context.Context) (wsConn, error) { return newFakeConn(nil), nil }

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer m.Disconnect()

	if err := m.Connect(context.Background()); err == nil {
		t.Error("second Connect() should be rejected while channel is open")
	}
}

func TestReconnect_BoundedAttempts(t *testing.T) {
	m, log := newTestManager(time.Millisecond)

	var mu sync.Mutex
	dials := 0
	m.dial = func(ctx context.Context) (wsConn, error) {
		mu.Lock()
		dials++
		n := dials
		mu.Unlock()
		if n == 1 {
			// First dial succeeds, then the connection drops.
			return newFakeConn(errors.New("connection reset")), nil
		}
		return nil, errors.New("connection refused")
	}

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	waitFor(t, time.Second, func() bool { return m.State() == StateClosed })

	// Give any stray timer a chance to fire, then count dials: the initial
	// open plus exactly MaxAttempts reconnects.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	total := dials
	mu.Unlock()
	if total != 6 {
		t.Errorf("dials = %d, want 1 open + 5 reconnect attempts", total)
	}

	var terminal bool
	for _, item := range log.Items() {
		if item.Severity == activity.SeverityError && strings.Contains(item.Message, "Reload") {
			terminal = true
		}
	}
	if !terminal {
		t.Error("expected terminal activity entry instructing a reload")
	}
}

func TestReconnect_CounterResetOnOpen(t *testing.T) {
	m, _ := newTestManager(time.Millisecond)

	var mu sync.Mutex
	dials := 0
	second := newFakeConn(nil)
	m.dial = func(ctx context.Context) (wsConn, error) {
		mu.Lock()
		dials++
		n := dials
		mu.Unlock()
		switch n {
		case 1:
			return newFakeConn(errors.New("connection reset")), nil
		case 2:
			return nil, errors.New("connection refused")
		default:
			return second, nil
		}
	}

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer m.Disconnect()

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return dials >= 3 && m.State() == StateOpen
	})

	if m.Attempt() != 0 {
		t.Errorf("Attempt() = %d after successful open, want 0", m.Attempt())
	}
}

func TestReconnectDelay_Linear(t *testing.T) {
	m, _ := newTestManager(10 * time.Millisecond)
	for attempt := 1; attempt <= 5; attempt++ {
		want := time.Duration(attempt) * 10 * time.Millisecond
		if got := m.reconnectDelay(attempt); got != want {
			t.Errorf("reconnectDelay(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestDisconnect_NoReconnect(t *testing.T) {
	m, _ := newTestManager(time.Millisecond)

	var mu sync.Mutex
	dials := 0
	conn := newFakeConn(nil)
	m.dial = func(ctx context.Context) (wsConn, error) {
		mu.Lock()
		dials++
		mu.Unlock()
		return conn, nil
	}

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	m.Disconnect()

	waitFor(t, time.Second, func() bool { return m.State() == StateClosed })
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	total := dials
	mu.Unlock()
	if total != 1 {
		t.Errorf("dials = %d after intentional disconnect, want 1", total)
	}
}

func TestDispatch_MalformedFrameSwallowed(t *testing.T) {
	m, log := newTestManager(time.Millisecond)

	conn := newFakeConn(nil,
		[]byte(`{broken`),
		[]byte(`{"type":"heartbeat","timestamp":"t"}`),
	)
	m.dial = func(ctx context.Context) (wsConn, error) { return conn, nil }

	beats := make(chan Event, 1)
	m.Handle("heartbeat", func(e Event) { beats <- e })

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer m.Disconnect()

	select {
	case <-beats:
	case <-time.After(time.Second):
		t.Fatal("frame after a malformed one was never dispatched")
	}

	var logged bool
	for _, item := range log.Items() {
		if item.Severity == activity.SeverityError {
			logged = true
		}
	}
	if !logged {
		t.Error("expected an activity entry for the malformed frame")
	}
	if m.State() != StateOpen {
		t.Errorf("State() = %v after malformed frame, want OPEN", m.State())
	}
}

func TestDispatch_UnknownTagIgnored(t *testing.T) {
	m, _ := newTestManager(time.Millisecond)

	conn := newFakeConn(nil,
		[]byte(`{"type":"dashboard_modified"}`),
		[]byte(`{"type":"heartbeat"}`),
	)
	m.dial = func(ctx context.Context) (wsConn, error) { return conn, nil }

	beats := make(chan Event, 1)
	m.Handle("heartbeat", func(e Event) { beats <- e })

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer m.Disconnect()

	select {
	case <-beats:
	case <-time.After(time.Second):
		t.Fatal("unknown tag must not stall the channel")
	}
}

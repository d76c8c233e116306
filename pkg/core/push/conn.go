// Package push owns the single live-update connection to the backend and
// routes tagged push events to registered handlers.
package push

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orgscope/orgscope-go/pkg/core"
	"github.com/orgscope/orgscope-go/pkg/core/activity"
)

// ConnectionState represents the current state of the push channel.
type ConnectionState int

const (
	// StateIdle is the initial state before Connect is called.
	StateIdle ConnectionState = iota
	// StateConnecting is while the websocket dial is in flight.
	StateConnecting
	// StateOpen is while the channel is established.
	StateOpen
	// StateReconnecting is while a retry is scheduled or in flight.
	StateReconnecting
	// StateClosed is after an intentional disconnect or exhausted retries.
	StateClosed
)

// String returns a human-readable state name.
func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Handler consumes one decoded push event.
type Handler func(Event)

// Config holds connection and reconnect policy settings.
type Config struct {
	// URL is the websocket endpoint for live updates.
	URL string `json:"url"`

	// BaseDelay is the unit of the linear reconnect backoff: attempt n
	// waits n × BaseDelay. Default: 2s.
	BaseDelay time.Duration `json:"base_delay"`

	// MaxAttempts bounds automatic reconnects after an unexpected close.
	// Default: 5.
	MaxAttempts int `json:"max_attempts"`

	// HandshakeTimeout bounds the websocket dial. Default: 15s.
	HandshakeTimeout time.Duration `json:"handshake_timeout"`
}

// DefaultConfig returns a Config with the standard reconnect policy.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		BaseDelay:        2 * time.Second,
		MaxAttempts:      5,
		HandshakeTimeout: 15 * time.Second,
	}
}

// wsConn is the subset of *websocket.Conn the manager uses.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Manager owns the push channel: one connection at a time, linear-backoff
// reconnects after unexpected closes, and per-tag event dispatch. Every
// lifecycle transition appends exactly one activity item.
type Manager struct {
	config Config
	log    *activity.Log
	logger *slog.Logger

	dial func(ctx context.Context) (wsConn, error)

	mu             sync.Mutex
	conn           wsConn
	state          ConnectionState
	attempt        int
	lastErr        error
	closed         bool
	reconnectTimer *time.Timer
	handlers       map[string]Handler

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a manager. Handlers are registered with Handle before
// Connect.
func NewManager(config Config, log *activity.Log, logger *slog.Logger) *Manager {
	if config.BaseDelay <= 0 {
		config.BaseDelay = 2 * time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		config:   config,
		log:      log,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
	m.dial = m.dialWebsocket
	return m
}

func (m *Manager) dialWebsocket(ctx context.Context) (wsConn, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: m.config.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, m.config.URL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return conn, nil
}

// Handle registers the handler for one event tag. The last registration for
// a tag wins. Unknown tags are logged and ignored.
func (m *Manager) Handle(tag string, fn Handler) {
	m.mu.Lock()
	m.handlers[tag] = fn
	m.mu.Unlock()
}

// State returns the current connection state.
func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempt returns the current reconnect attempt counter.
func (m *Manager) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// LastError returns the most recent connection error.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Connect opens the push channel. Only one connection may exist at a time;
// calling Connect on an open manager is an error.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.conn != nil || m.state == StateConnecting || m.state == StateReconnecting {
		m.mu.Unlock()
		return fmt.Errorf("push channel already connected")
	}
	m.closed = false
	m.state = StateConnecting
	m.ctx, m.cancel = context.WithCancel(ctx)
	dialCtx := m.ctx
	m.mu.Unlock()

	conn, err := m.dial(dialCtx)
	if err != nil {
		m.handleDisconnect(err)
		return nil
	}

	m.onOpen(conn)
	return nil
}

// Disconnect closes the channel intentionally. No reconnect is scheduled.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.closed || m.state == StateIdle {
		m.closed = true
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.cancel != nil {
		m.cancel()
	}
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	conn := m.conn
	m.mu.Unlock()

	if conn != nil {
		// The read loop observes the close and records the transition.
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		_ = conn.Close()
		return
	}

	// No live connection (idle or mid-backoff): record the close here.
	m.mu.Lock()
	m.state = StateClosed
	m.mu.Unlock()
	m.log.Append(activity.SeverityOffline, "Live updates disconnected")
}

func (m *Manager) onOpen(conn wsConn) {
	m.mu.Lock()
	m.conn = conn
	m.state = StateOpen
	m.attempt = 0
	m.lastErr = nil
	m.mu.Unlock()

	m.logger.Info("push channel open", "url", m.config.URL)
	m.log.Append(activity.SeverityOnline, "Connected to live updates")
	go m.readLoop(conn)
}

func (m *Manager) readLoop(conn wsConn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			m.handleDisconnect(err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		m.dispatch(data)
	}
}

// dispatch decodes and routes one frame. Parse failures are logged and
// swallowed so a single malformed frame cannot break the channel.
func (m *Manager) dispatch(data []byte) {
	event, err := DecodeEvent(data)
	if err != nil {
		m.logger.Warn("dropping malformed push frame", "error", err)
		m.log.Append(activity.SeverityError, "Dropped a malformed live update")
		return
	}

	if unknown, ok := event.(UnknownEvent); ok {
		m.logger.Debug("ignoring unknown push tag", "tag", unknown.Type)
		return
	}

	m.mu.Lock()
	handler := m.handlers[event.EventType()]
	m.mu.Unlock()

	if handler != nil {
		handler(event)
	}
}

// reconnectDelay returns the linear backoff for the given attempt number.
func (m *Manager) reconnectDelay(attempt int) time.Duration {
	return time.Duration(attempt) * m.config.BaseDelay
}

func (m *Manager) handleDisconnect(err error) {
	m.mu.Lock()
	m.conn = nil

	if m.closed {
		m.state = StateClosed
		m.mu.Unlock()
		m.log.Append(activity.SeverityOffline, "Live updates disconnected")
		return
	}

	m.lastErr = err
	m.attempt++
	attempt := m.attempt

	if attempt > m.config.MaxAttempts {
		m.state = StateClosed
		m.lastErr = core.NewTerminalError("reconnect attempts exhausted; reload to reconnect")
		m.mu.Unlock()
		m.logger.Error("push channel reconnect attempts exhausted", "attempts", m.config.MaxAttempts, "error", err)
		m.log.Append(activity.SeverityError, "Live updates unavailable. Reload the page to reconnect")
		return
	}

	m.state = StateReconnecting
	delay := m.reconnectDelay(attempt)
	m.reconnectTimer = time.AfterFunc(delay, m.redial)
	m.mu.Unlock()

	m.logger.Warn("push channel lost, reconnecting", "attempt", attempt, "max", m.config.MaxAttempts, "delay", delay, "error", err)
	m.log.Append(activity.SeverityProcessing, fmt.Sprintf("Reconnecting to live updates (attempt %d/%d)", attempt, m.config.MaxAttempts))
}

func (m *Manager) redial() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.reconnectTimer = nil
	dialCtx := m.ctx
	m.mu.Unlock()

	conn, err := m.dial(dialCtx)
	if err != nil {
		m.handleDisconnect(err)
		return
	}
	m.onOpen(conn)
}

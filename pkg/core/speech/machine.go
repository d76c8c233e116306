package speech

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/orgscope/orgscope-go/pkg/core/activity"
)

// State is the machine's position in the voice lifecycle. Listening and
// speaking are mutually exclusive.
type State int

const (
	StateIdle State = iota
	StateListening
	StateSpeaking
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateListening:
		return "LISTENING"
	case StateSpeaking:
		return "SPEAKING"
	case StateProcessing:
		return "PROCESSING"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// Conversation is the pipeline capability the machine forwards non-command
// transcripts to. Satisfied by *convo.Pipeline.
type Conversation interface {
	Submit(ctx context.Context, text, source string) error
	Reset()
}

// Config holds the machine's tunables.
type Config struct {
	// ResumeDelay is the pause before continuous listening restarts after
	// speech or a recognition error.
	ResumeDelay time.Duration
}

// DefaultConfig returns the standard machine configuration.
func DefaultConfig() Config {
	return Config{ResumeDelay: 600 * time.Millisecond}
}

const helpText = "You can say things like: find housing associations in Scotland, " +
	"refresh dashboard, clear conversation, speak slower, speak faster, or stop listening."

// Machine coordinates one recognizer and one synthesizer around a shared
// voice state. All methods are safe for concurrent use; recognizer and
// synthesizer callbacks may arrive on any goroutine.
type Machine struct {
	recognizer   Recognizer
	synth        Synthesizer
	conversation Conversation
	log          *activity.Log
	logger       *slog.Logger
	config       Config

	mu          sync.Mutex
	state       State
	settings    Settings
	session     int  // bumped to strand callbacks of a dead recognition session
	utterance   int  // bumped to strand callbacks of a cancelled utterance
	recognizing bool // a recognition session is live, even while state is Processing
	manualStop  bool
	resume      *time.Timer

	persist      func(Settings)
	onTranscript func(string)
	onState      func(State)
	onStatus     func(string)
	onRefresh    func()
}

// NewMachine creates a voice state machine with default settings.
func NewMachine(recognizer Recognizer, synth Synthesizer, conversation Conversation, log *activity.Log, config Config, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ResumeDelay <= 0 {
		config.ResumeDelay = DefaultConfig().ResumeDelay
	}
	return &Machine{
		recognizer:   recognizer,
		synth:        synth,
		conversation: conversation,
		log:          log,
		logger:       logger,
		config:       config,
		settings:     DefaultSettings(),
	}
}

// SetPersist registers the hook that stores settings on every change.
func (m *Machine) SetPersist(fn func(Settings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persist = fn
}

// SetOnTranscript registers the live-transcript display callback. It fires
// for interim recognition results only.
func (m *Machine) SetOnTranscript(fn func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTranscript = fn
}

// SetOnStateChange registers a callback invoked on every state transition.
func (m *Machine) SetOnStateChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onState = fn
}

// SetOnStatus registers the transient status-line callback.
func (m *Machine) SetOnStatus(fn func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStatus = fn
}

// SetOnRefresh registers the hook run by the "refresh dashboard" command.
func (m *Machine) SetOnRefresh(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRefresh = fn
}

// State returns the current voice state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Settings returns a copy of the current voice settings.
func (m *Machine) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// UpdateSettings replaces the voice settings and persists them.
func (m *Machine) UpdateSettings(s Settings) {
	s.Rate = clampRate(s.Rate)
	m.mu.Lock()
	m.settings = s
	persist := m.persist
	m.mu.Unlock()
	if persist != nil {
		persist(s)
	}
}

// AdjustRate shifts the speech rate by delta, clamped to [MinRate, MaxRate],
// and persists the result.
func (m *Machine) AdjustRate(delta float64) float64 {
	m.mu.Lock()
	m.settings.Rate = clampRate(m.settings.Rate + delta)
	rate := m.settings.Rate
	settings := m.settings
	persist := m.persist
	m.mu.Unlock()
	if persist != nil {
		persist(settings)
	}
	m.status(fmt.Sprintf("Speech rate set to %.1f", rate))
	return rate
}

func (m *Machine) setState(next State) {
	m.mu.Lock()
	changed := m.state != next
	m.state = next
	notify := m.onState
	m.mu.Unlock()
	if changed && notify != nil {
		notify(next)
	}
}

func (m *Machine) status(text string) {
	m.mu.Lock()
	notify := m.onStatus
	m.mu.Unlock()
	if notify != nil {
		notify(text)
	}
}

// StartListening opens a recognition session. Any in-flight speech is
// cancelled first; listening and speaking never overlap.
func (m *Machine) StartListening() error {
	m.mu.Lock()
	if m.state == StateListening || m.recognizing {
		m.mu.Unlock()
		return nil
	}
	m.manualStop = false
	if m.resume != nil {
		m.resume.Stop()
		m.resume = nil
	}
	cancelSpeech := m.state == StateSpeaking
	if cancelSpeech {
		m.utterance++
	}
	m.session++
	sid := m.session
	m.recognizing = true
	language := m.settings.Language
	m.mu.Unlock()

	if cancelSpeech {
		m.synth.Cancel()
	}
	m.setState(StateListening)

	err := m.recognizer.Start(language, SessionCallbacks{
		OnResult: func(res RecognitionResult) { m.handleResult(sid, res) },
		OnError:  func(err error) { m.handleRecognitionError(sid, err) },
		OnEnd:    func() { m.handleRecognitionEnd(sid) },
	})
	if err != nil {
		m.mu.Lock()
		m.recognizing = false
		m.mu.Unlock()
		m.setState(StateIdle)
		m.logger.Warn("recognition start failed", "error", err)
		if m.log != nil {
			m.log.Append(activity.SeverityError, "Voice input could not start")
		}
		return err
	}
	return nil
}

// StopListening ends the recognition session and suppresses continuous
// auto-resume until listening is started again.
func (m *Machine) StopListening() {
	m.mu.Lock()
	m.manualStop = true
	if m.resume != nil {
		m.resume.Stop()
		m.resume = nil
	}
	active := m.recognizing
	if active {
		m.session++
		m.recognizing = false
	}
	m.mu.Unlock()

	if active {
		m.recognizer.Stop()
		m.setState(StateIdle)
	}
}

func (m *Machine) sessionAlive(sid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session == sid
}

func (m *Machine) handleResult(sid int, res RecognitionResult) {
	if !m.sessionAlive(sid) {
		return
	}
	if !res.Final {
		m.mu.Lock()
		notify := m.onTranscript
		m.mu.Unlock()
		if notify != nil {
			notify(res.Transcript)
		}
		return
	}
	m.handleFinalTranscript(res.Transcript)
}

func (m *Machine) handleRecognitionError(sid int, err error) {
	if !m.sessionAlive(sid) {
		return
	}
	m.logger.Warn("recognition error", "error", err)
	guidance := Guidance(err)
	m.status(guidance)
	if m.log != nil {
		m.log.Append(activity.SeverityError, guidance)
	}
	m.mu.Lock()
	m.session++
	m.recognizing = false
	m.mu.Unlock()
	m.setState(StateIdle)
	m.scheduleResume()
}

func (m *Machine) handleRecognitionEnd(sid int) {
	if !m.sessionAlive(sid) {
		return
	}
	m.mu.Lock()
	m.session++
	m.recognizing = false
	m.mu.Unlock()
	m.setState(StateIdle)
	m.scheduleResume()
}

// handleFinalTranscript applies wake-word gating, then command interception,
// then forwards to the conversation pipeline.
func (m *Machine) handleFinalTranscript(transcript string) {
	m.mu.Lock()
	settings := m.settings
	m.mu.Unlock()

	text := strings.TrimSpace(transcript)
	if settings.ContinuousListening && settings.WakeWord != "" {
		stripped, ok := stripWakeWord(text, settings.WakeWord)
		if !ok {
			m.logger.Debug("transcript without wake word discarded", "transcript", text)
			return
		}
		text = stripped
	}
	if text == "" {
		return
	}

	if m.interceptCommand(text) {
		return
	}

	m.setState(StateProcessing)
	if err := m.conversation.Submit(context.Background(), text, "voice"); err != nil {
		m.logger.Warn("voice submit rejected", "error", err)
	}

	// Submit may have moved the machine on already, e.g. an auto-spoken
	// reply put it in Speaking. Only settle a state we still own.
	m.mu.Lock()
	stillProcessing := m.state == StateProcessing
	resumeListening := stillProcessing && m.recognizing && !m.manualStop
	m.mu.Unlock()

	switch {
	case resumeListening:
		m.setState(StateListening)
	case stillProcessing:
		m.setState(StateIdle)
		m.scheduleResume()
	}
}

// stripWakeWord reports whether text contains the wake word and returns the
// text with the first occurrence removed.
func stripWakeWord(text, wakeWord string) (string, bool) {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, strings.ToLower(wakeWord))
	if idx < 0 {
		return "", false
	}
	remainder := text[:idx] + text[idx+len(wakeWord):]
	return strings.TrimSpace(remainder), true
}

// interceptCommand matches the transcript against the fixed command table.
// A match executes the side effect and short-circuits the pipeline.
func (m *Machine) interceptCommand(text string) bool {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "stop listening"):
		m.StopListening()
		m.status("Stopped listening")
	case strings.Contains(lower, "start listening"):
		if err := m.StartListening(); err != nil {
			m.status(Guidance(err))
		}
	case strings.Contains(lower, "clear conversation"):
		m.conversation.Reset()
		m.status("Conversation cleared")
	case strings.Contains(lower, "refresh dashboard"):
		m.mu.Lock()
		refresh := m.onRefresh
		m.mu.Unlock()
		if refresh != nil {
			refresh()
		}
		m.status("Refreshing dashboard")
	case strings.Contains(lower, "speak slower"):
		m.AdjustRate(-RateStep)
	case strings.Contains(lower, "speak faster"):
		m.AdjustRate(RateStep)
	case strings.Contains(lower, "show help"):
		m.Speak(helpText)
	default:
		return false
	}
	m.logger.Debug("voice command intercepted", "transcript", text)
	return true
}

// Speak synthesizes text with the current settings. Any in-flight utterance
// is cancelled, markup is stripped, and an active recognition session is
// aborted before synthesis begins.
func (m *Machine) Speak(text string) error {
	text = stripMarkup(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	m.mu.Lock()
	m.utterance++
	uid := m.utterance
	abortRecognition := m.recognizing
	if abortRecognition {
		m.session++
		m.recognizing = false
	}
	u := Utterance{
		Text:     text,
		Language: m.settings.Language,
		Voice:    m.settings.VoiceName,
		Rate:     m.settings.Rate,
		Pitch:    m.settings.Pitch,
		Volume:   m.settings.Volume,
	}
	m.mu.Unlock()

	if abortRecognition {
		m.recognizer.Abort()
	}
	m.synth.Cancel()
	m.setState(StateSpeaking)

	err := m.synth.Speak(u,
		func() { m.handleSpeechEnd(uid, nil) },
		func(err error) { m.handleSpeechEnd(uid, err) },
	)
	if err != nil {
		m.setState(StateIdle)
		m.logger.Warn("synthesis failed", "error", err)
		if m.log != nil {
			m.log.Append(activity.SeverityError, "Speech output failed")
		}
		m.scheduleResume()
		return err
	}
	return nil
}

// StopSpeaking cancels the in-flight utterance immediately.
func (m *Machine) StopSpeaking() {
	m.mu.Lock()
	speaking := m.state == StateSpeaking
	if speaking {
		m.utterance++
	}
	m.mu.Unlock()
	if speaking {
		m.synth.Cancel()
		m.setState(StateIdle)
	}
}

// CancelAll stops listening and speaking. The global escape action.
func (m *Machine) CancelAll() {
	m.mu.Lock()
	m.manualStop = true
	if m.resume != nil {
		m.resume.Stop()
		m.resume = nil
	}
	recognizing := m.recognizing
	speaking := m.state == StateSpeaking
	m.recognizing = false
	m.session++
	m.utterance++
	m.mu.Unlock()

	if recognizing {
		m.recognizer.Abort()
	}
	if speaking {
		m.synth.Cancel()
	}
	m.setState(StateIdle)
}

func (m *Machine) handleSpeechEnd(uid int, err error) {
	m.mu.Lock()
	stale := m.utterance != uid
	m.mu.Unlock()
	if stale {
		return
	}
	if err != nil {
		m.logger.Warn("synthesis error", "error", err)
		guidance := Guidance(err)
		m.status(guidance)
		if m.log != nil {
			m.log.Append(activity.SeverityError, guidance)
		}
	}
	m.setState(StateIdle)
	m.scheduleResume()
}

// scheduleResume restarts listening after a short delay when continuous
// listening is on and the user has not explicitly stopped.
func (m *Machine) scheduleResume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.settings.ContinuousListening || m.manualStop {
		return
	}
	if m.state == StateListening || m.state == StateSpeaking {
		return
	}
	if m.resume != nil {
		m.resume.Stop()
	}
	m.resume = time.AfterFunc(m.config.ResumeDelay, func() {
		if err := m.StartListening(); err != nil {
			m.logger.Warn("continuous listening resume failed", "error", err)
		}
	})
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

var markupReplacer = strings.NewReplacer(
	"**", "", "__", "",
	"*", "", "_", " ",
	"`", "", "#", "",
)

// stripMarkup flattens markdown and HTML so the synthesizer reads prose.
func stripMarkup(text string) string {
	text = htmlTagPattern.ReplaceAllString(text, "")
	text = markupReplacer.Replace(text)
	return strings.TrimSpace(text)
}

// Package dashboard wires the push channel, resilient startup loads,
// conversation pipeline, and voice state machine into one orchestrated
// client core.
package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/orgscope/orgscope-go/internal/store"
	"github.com/orgscope/orgscope-go/pkg/core/activity"
	"github.com/orgscope/orgscope-go/pkg/core/convo"
	"github.com/orgscope/orgscope-go/pkg/core/load"
	"github.com/orgscope/orgscope-go/pkg/core/push"
	"github.com/orgscope/orgscope-go/pkg/core/speech"
	orgscope "github.com/orgscope/orgscope-go/sdk"
)

// Options configure a Controller. Client is required; Recognizer and
// Synthesizer are optional — without them the voice machine is not built.
type Options struct {
	Client       *orgscope.Client
	WebsocketURL string

	PushBaseDelay    time.Duration
	PushMaxAttempts  int
	LoadUnitDelay    time.Duration
	RequiredAttempts int
	OptionalAttempts int

	Pipeline    convo.Config
	Voice       speech.Config
	Recognizer  speech.Recognizer
	Synthesizer speech.Synthesizer

	Store  *store.Store
	Logger *slog.Logger
}

// Snapshot is the latest loaded dashboard data, refreshed by the startup
// sequence and after each completed intent execution.
type Snapshot struct {
	Stats        *orgscope.SummaryStats
	Associations []orgscope.Association
	Industries   []orgscope.IndustryConfig
	Reports      *orgscope.ReportCatalog
	Returns      *orgscope.RegulatorReturns
	Intelligence orgscope.MarketIntelligence
	Discovery    *store.DiscoveryConfig
	Health       *load.HealthReport
}

// Controller owns the dashboard's client-side core: one push connection, the
// startup loads, the conversation pipeline, and the voice machine.
type Controller struct {
	client   *orgscope.Client
	conn     *push.Manager
	loader   *load.Loader
	pipeline *convo.Pipeline
	voice    *speech.Machine
	log      *activity.Log
	store    *store.Store
	logger   *slog.Logger

	requiredAttempts int
	optionalAttempts int

	mu   sync.Mutex
	snap Snapshot
}

// New builds and wires a controller. It does not touch the network; call
// Start to connect and load.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PushBaseDelay <= 0 {
		opts.PushBaseDelay = 2 * time.Second
	}
	if opts.PushMaxAttempts <= 0 {
		opts.PushMaxAttempts = 5
	}
	if opts.LoadUnitDelay <= 0 {
		opts.LoadUnitDelay = time.Second
	}
	if opts.RequiredAttempts <= 0 {
		opts.RequiredAttempts = 3
	}
	if opts.OptionalAttempts <= 0 {
		opts.OptionalAttempts = 2
	}

	log := activity.NewLog()

	pushConfig := push.DefaultConfig(opts.WebsocketURL)
	pushConfig.BaseDelay = opts.PushBaseDelay
	pushConfig.MaxAttempts = opts.PushMaxAttempts

	c := &Controller{
		client:           opts.Client,
		conn:             push.NewManager(pushConfig, log, logger),
		loader:           load.NewLoader(log, logger, opts.LoadUnitDelay),
		log:              log,
		store:            opts.Store,
		logger:           logger,
		requiredAttempts: opts.RequiredAttempts,
		optionalAttempts: opts.OptionalAttempts,
	}

	c.pipeline = convo.NewPipeline(opts.Client.AI, opts.Pipeline, logger)
	c.pipeline.Bind(c.conn)
	c.pipeline.SetOnRefresh(c.refreshAsync)

	if opts.Recognizer != nil && opts.Synthesizer != nil {
		c.voice = speech.NewMachine(opts.Recognizer, opts.Synthesizer, c.pipeline, log, opts.Voice, logger)
		c.voice.SetOnRefresh(c.refreshAsync)
		if c.store != nil {
			c.voice.SetPersist(func(s speech.Settings) {
				if err := c.store.SaveVoiceSettings(s); err != nil {
					logger.Warn("persist voice settings failed", "error", err)
				}
			})
			if saved, err := c.store.LoadVoiceSettings(); err == nil && saved != nil {
				c.voice.UpdateSettings(*saved)
			}
		}
		// Assistant replies are read aloud when auto-speak is on.
		c.pipeline.SetOnMessage(func(msg convo.ChatMessage) {
			if msg.Sender != convo.SenderAssistant {
				return
			}
			if !c.voice.Settings().AutoSpeak {
				return
			}
			if err := c.voice.Speak(msg.Body); err != nil {
				logger.Warn("auto-speak failed", "error", err)
			}
		})
	}

	return c
}

// Pipeline returns the conversation pipeline.
func (c *Controller) Pipeline() *convo.Pipeline { return c.pipeline }

// Voice returns the voice machine, or nil when no speech capabilities were
// supplied.
func (c *Controller) Voice() *speech.Machine { return c.voice }

// Activity returns the shared activity log.
func (c *Controller) Activity() *activity.Log { return c.log }

// Connection returns the push connection manager.
func (c *Controller) Connection() *push.Manager { return c.conn }

// Snapshot returns the latest loaded dashboard data.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Start probes backend health, runs the startup load sequence, and opens
// the push channel. Required-step failures are returned after the whole
// sequence has run; the dashboard stays usable either way.
func (c *Controller) Start(ctx context.Context) error {
	report := c.loader.CheckHealth(ctx, c.client.Health)
	c.mu.Lock()
	c.snap.Health = &report
	c.mu.Unlock()

	err := c.loader.RunSequence(ctx, c.startupSequence())

	if connErr := c.conn.Connect(ctx); connErr != nil {
		c.logger.Warn("push channel connect failed", "error", connErr)
	}
	return err
}

// startupSequence loads required data strictly in order, then the optional
// enrichment panels.
func (c *Controller) startupSequence() load.Sequence {
	return load.Sequence{
		Required: []load.Step{
			{Name: "industry configurations", MaxAttempts: c.requiredAttempts, Run: c.loadIndustries},
			{Name: "saved preferences", MaxAttempts: 1, Run: c.loadPreferences},
			{Name: "summary statistics", MaxAttempts: c.requiredAttempts, Run: c.loadStats},
			{Name: "association listing", MaxAttempts: c.requiredAttempts, Run: c.loadAssociations},
		},
		Optional: []load.Step{
			{Name: "reports", MaxAttempts: c.optionalAttempts, Run: c.loadReports},
			{Name: "regulator returns", MaxAttempts: c.optionalAttempts, Run: c.loadReturns},
			{Name: "market intelligence", MaxAttempts: c.optionalAttempts, Run: c.loadIntelligence},
		},
	}
}

// Refresh re-pulls the data panels that change after an executed plan.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.loader.RunSequence(ctx, load.Sequence{
		Required: []load.Step{
			{Name: "summary statistics", MaxAttempts: c.requiredAttempts, Run: c.loadStats},
			{Name: "association listing", MaxAttempts: c.requiredAttempts, Run: c.loadAssociations},
		},
		Optional: []load.Step{
			{Name: "reports", MaxAttempts: c.optionalAttempts, Run: c.loadReports},
		},
	})
}

func (c *Controller) refreshAsync() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := c.Refresh(ctx); err != nil {
			c.logger.Warn("refresh after execution failed", "error", err)
		}
	}()
}

// CancelAll is the global escape: it stops listening and speaking.
func (c *Controller) CancelAll() {
	if c.voice != nil {
		c.voice.CancelAll()
	}
}

// Shutdown closes the push connection and stops voice activity.
func (c *Controller) Shutdown() {
	c.CancelAll()
	c.conn.Disconnect()
}

func (c *Controller) loadIndustries(ctx context.Context) error {
	industries, err := c.client.Dashboard.IndustryConfigs(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.snap.Industries = industries
	c.mu.Unlock()
	return nil
}

func (c *Controller) loadPreferences(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	cfg, err := c.store.LoadDiscoveryConfig()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.snap.Discovery = cfg
	c.mu.Unlock()
	return nil
}

func (c *Controller) loadStats(ctx context.Context) error {
	stats, err := c.client.Dashboard.Stats(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.snap.Stats = stats
	c.mu.Unlock()
	return nil
}

func (c *Controller) loadAssociations(ctx context.Context) error {
	region := ""
	c.mu.Lock()
	if c.snap.Discovery != nil {
		region = c.snap.Discovery.Region
	}
	c.mu.Unlock()

	rows, _, err := c.client.Dashboard.Associations(ctx, region, 200)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.snap.Associations = rows
	c.mu.Unlock()
	return nil
}

func (c *Controller) loadReports(ctx context.Context) error {
	catalog, err := c.client.Reports.List(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.snap.Reports = catalog
	c.mu.Unlock()
	return nil
}

func (c *Controller) loadReturns(ctx context.Context) error {
	returns, err := c.client.Dashboard.RegulatorReturns(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.snap.Returns = returns
	c.mu.Unlock()
	return nil
}

func (c *Controller) loadIntelligence(ctx context.Context) error {
	intelligence, err := c.client.Dashboard.MarketIntelligence(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.snap.Intelligence = intelligence
	c.mu.Unlock()
	return nil
}

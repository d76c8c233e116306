// Package config loads the client configuration from YAML with environment
// overrides. Every retry, backoff, and confidence constant lives here so the
// rest of the code reads one authoritative value.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/orgscope/orgscope-go/pkg/core/speech"
)

// PushConfig tunes the push-channel reconnect policy.
type PushConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// LoadConfig tunes the resilient startup loads.
type LoadConfig struct {
	UnitDelay        time.Duration `yaml:"unit_delay"`
	RequiredAttempts int           `yaml:"required_attempts"`
	OptionalAttempts int           `yaml:"optional_attempts"`
}

// ConvoConfig tunes the conversation pipeline.
type ConvoConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	Greeting            string  `yaml:"greeting"`
}

// Config is the full client configuration.
type Config struct {
	BaseURL       string          `yaml:"base_url"`
	AIProviderURL string          `yaml:"ai_provider_url"`
	WebsocketURL  string          `yaml:"websocket_url"`
	StateDir      string          `yaml:"state_dir"`
	Push          PushConfig      `yaml:"push"`
	Load          LoadConfig      `yaml:"load"`
	Convo         ConvoConfig     `yaml:"convo"`
	Voice         speech.Settings `yaml:"voice"`
	ResumeDelay   time.Duration   `yaml:"resume_delay"`
}

// Default returns the configuration used when no file or overrides exist.
func Default() Config {
	return Config{
		BaseURL:       "http://localhost:8000",
		AIProviderURL: "http://localhost:11434",
		Push: PushConfig{
			BaseDelay:   2 * time.Second,
			MaxAttempts: 5,
		},
		Load: LoadConfig{
			UnitDelay:        time.Second,
			RequiredAttempts: 3,
			OptionalAttempts: 2,
		},
		Convo: ConvoConfig{
			ConfidenceThreshold: 0.7,
		},
		Voice:       speech.DefaultSettings(),
		ResumeDelay: 600 * time.Millisecond,
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides and normalizes derived fields. A missing file is not
// an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %q: %w", path, err)
			}
		case os.IsNotExist(err):
			// Defaults apply.
		default:
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	cfg.normalize()
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ORGSCOPE_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("ORGSCOPE_AI_PROVIDER_URL"); v != "" {
		cfg.AIProviderURL = v
	}
	if v := os.Getenv("ORGSCOPE_WEBSOCKET_URL"); v != "" {
		cfg.WebsocketURL = v
	}
	if v := os.Getenv("ORGSCOPE_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
}

func (c *Config) normalize() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	c.AIProviderURL = strings.TrimRight(c.AIProviderURL, "/")
	if c.WebsocketURL == "" {
		c.WebsocketURL = WebsocketURLFor(c.BaseURL)
	}
	if c.StateDir == "" {
		c.StateDir = defaultStateDir()
	}
	if c.Push.BaseDelay <= 0 {
		c.Push.BaseDelay = 2 * time.Second
	}
	if c.Push.MaxAttempts <= 0 {
		c.Push.MaxAttempts = 5
	}
	if c.Load.UnitDelay <= 0 {
		c.Load.UnitDelay = time.Second
	}
	if c.Load.RequiredAttempts <= 0 {
		c.Load.RequiredAttempts = 3
	}
	if c.Load.OptionalAttempts <= 0 {
		c.Load.OptionalAttempts = 2
	}
	if c.Convo.ConfidenceThreshold <= 0 {
		c.Convo.ConfidenceThreshold = 0.7
	}
	// Fill only the empty voice fields so a partial voice section keeps
	// what it does set.
	voiceDefaults := speech.DefaultSettings()
	if c.Voice.Language == "" {
		c.Voice.Language = voiceDefaults.Language
	}
	if c.Voice.Rate == 0 {
		c.Voice.Rate = voiceDefaults.Rate
	}
	if c.Voice.Pitch == 0 {
		c.Voice.Pitch = voiceDefaults.Pitch
	}
	if c.Voice.Volume == 0 {
		c.Voice.Volume = voiceDefaults.Volume
	}
	if c.ResumeDelay <= 0 {
		c.ResumeDelay = 600 * time.Millisecond
	}
}

// WebsocketURLFor derives the push endpoint from the backend base URL.
func WebsocketURLFor(baseURL string) string {
	ws := baseURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return ws + "/ws"
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/orgscope"
	}
	return ".orgscope"
}

// Package store persists client-side state as JSON files under a state
// directory: the last-used discovery configuration and the voice settings.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/orgscope/orgscope-go/pkg/core/speech"
)

const (
	discoveryFile = "discovery.json"
	voiceFile     = "voice.json"
)

// DiscoveryConfig is the last-used discovery form state, restored at
// startup.
type DiscoveryConfig struct {
	Category       string   `json:"category"`
	Region         string   `json:"region"`
	Limit          int      `json:"limit"`
	CustomKeywords []string `json:"custom_keywords,omitempty"`
	AIAnalysis     bool     `json:"ai_analysis"`
	SaveResults    bool     `json:"save_results"`
}

// Store reads and writes state files under one directory.
type Store struct {
	dir string
}

// New creates a store rooted at dir. The directory is created on first
// write.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// LoadDiscoveryConfig returns the saved discovery configuration, or nil when
// none has been saved yet.
func (s *Store) LoadDiscoveryConfig() (*DiscoveryConfig, error) {
	var cfg DiscoveryConfig
	found, err := s.load(discoveryFile, &cfg)
	if err != nil || !found {
		return nil, err
	}
	return &cfg, nil
}

// SaveDiscoveryConfig stores the discovery configuration.
func (s *Store) SaveDiscoveryConfig(cfg DiscoveryConfig) error {
	return s.save(discoveryFile, cfg)
}

// LoadVoiceSettings returns the saved voice settings, or nil when none have
// been saved yet.
func (s *Store) LoadVoiceSettings() (*speech.Settings, error) {
	var settings speech.Settings
	found, err := s.load(voiceFile, &settings)
	if err != nil || !found {
		return nil, err
	}
	return &settings, nil
}

// SaveVoiceSettings stores the voice settings.
func (s *Store) SaveVoiceSettings(settings speech.Settings) error {
	return s.save(voiceFile, settings)
}

func (s *Store) load(name string, out any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read state %q: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("parse state %q: %w", name, err)
	}
	return true, nil
}

// save writes atomically via a temp file so a crash never leaves a
// half-written state file.
func (s *Store) save(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state %q: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write state %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close state %q: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace state %q: %w", name, err)
	}
	return nil
}

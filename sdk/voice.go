package orgscope

import (
	"context"

	"github.com/orgscope/orgscope-go/pkg/core"
)

// VoiceService reads and writes server-side voice interface settings.
type VoiceService struct {
	client *Client
}

// RemoteVoiceSettings is the server's view of voice preferences. Field names
// use the camelCase keys of the settings API.
type RemoteVoiceSettings struct {
	Language            string  `json:"language"`
	VoiceSpeed          float64 `json:"voiceSpeed"`
	VoicePitch          float64 `json:"voicePitch"`
	VoiceVolume         float64 `json:"voiceVolume"`
	AutoSpeak           bool    `json:"autoSpeak"`
	WakeWord            string  `json:"wakeWord"`
	ContinuousListening bool    `json:"continuousListening"`
	NoiseReduction      bool    `json:"noiseReduction"`
}

type voiceSettingsResponse struct {
	Settings RemoteVoiceSettings `json:"settings"`
	Message  string              `json:"message,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// Settings fetches the stored voice preferences.
func (s *VoiceService) Settings(ctx context.Context) (*RemoteVoiceSettings, error) {
	var resp voiceSettingsResponse
	if err := s.client.getJSON(ctx, s.client.endpoint("/api/voice/settings"), &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, core.NewExecutionError(resp.Error)
	}
	return &resp.Settings, nil
}

// UpdateSettings stores voice preferences server-side.
func (s *VoiceService) UpdateSettings(ctx context.Context, settings *RemoteVoiceSettings) error {
	if settings == nil {
		return core.NewInvalidRequestError("settings must not be nil")
	}
	var resp voiceSettingsResponse
	if err := s.client.postJSON(ctx, s.client.endpoint("/api/voice/settings"), settings, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return core.NewExecutionError(resp.Error)
	}
	return nil
}

// VoiceCapabilities describes what the voice interface supports.
type VoiceCapabilities struct {
	VoiceSupported     bool            `json:"voice_supported"`
	Features           map[string]bool `json:"features"`
	SupportedLanguages []string        `json:"supported_languages"`
	VoiceCommands      []string        `json:"voice_commands"`
	Error              string          `json:"error,omitempty"`
}

// Capabilities fetches the supported voice features, languages, and commands.
func (s *VoiceService) Capabilities(ctx context.Context) (*VoiceCapabilities, error) {
	var resp VoiceCapabilities
	if err := s.client.getJSON(ctx, s.client.endpoint("/api/voice/capabilities"), &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, core.NewExecutionError(resp.Error)
	}
	return &resp, nil
}

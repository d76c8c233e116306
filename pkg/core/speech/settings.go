package speech

// Rate bounds for the speak slower/faster commands.
const (
	MinRate  = 0.5
	MaxRate  = 2.0
	RateStep = 0.2
)

// DefaultWakeWord gates voice input in continuous-listening mode.
const DefaultWakeWord = "hey dashboard"

// Settings are the user-editable voice preferences, persisted on every
// change.
type Settings struct {
	Language            string  `json:"language" yaml:"language"`
	Rate                float64 `json:"voiceSpeed" yaml:"rate"`
	Pitch               float64 `json:"voicePitch" yaml:"pitch"`
	Volume              float64 `json:"voiceVolume" yaml:"volume"`
	AutoSpeak           bool    `json:"autoSpeak" yaml:"auto_speak"`
	WakeWord            string  `json:"wakeWord" yaml:"wake_word"`
	ContinuousListening bool    `json:"continuousListening" yaml:"continuous_listening"`
	VoiceName           string  `json:"voiceName,omitempty" yaml:"voice_name,omitempty"`
}

// DefaultSettings returns the out-of-the-box voice preferences.
func DefaultSettings() Settings {
	return Settings{
		Language:            "en-US",
		Rate:                1.0,
		Pitch:               1.0,
		Volume:              1.0,
		AutoSpeak:           true,
		WakeWord:            DefaultWakeWord,
		ContinuousListening: false,
	}
}

func clampRate(rate float64) float64 {
	if rate < MinRate {
		return MinRate
	}
	if rate > MaxRate {
		return MaxRate
	}
	return rate
}

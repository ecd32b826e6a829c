// Package config provides the configuration schema, loader, and provider
// registry for the naphome voice device.
package config

import "time"

// LogLevel controls log verbosity for the device.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Mode selects how the device listens for speech.
type Mode string

const (
	// ModeContinuous streams the microphone through the acoustic front end
	// and segments utterances by voice activity.
	ModeContinuous Mode = "continuous"

	// ModeWake holds the microphone closed until a wake or button event,
	// then records one utterance exclusively.
	ModeWake Mode = "wake"
)

// IsValid reports whether m is a recognised listening mode.
func (m Mode) IsValid() bool {
	return m == ModeContinuous || m == ModeWake
}

// Config is the root configuration structure for the device. It is typically
// loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Audio     AudioConfig     `yaml:"audio"`
	Wake      WakeConfig      `yaml:"wake"`
	Speech    SpeechConfig    `yaml:"speech"`
	Actions   ActionsConfig   `yaml:"actions"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// DeviceConfig identifies the device and sets process-wide behaviour.
type DeviceConfig struct {
	// Name identifies this device in telemetry payloads and logs.
	Name string `yaml:"name"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// Mode selects the listening mode. Default is continuous.
	Mode Mode `yaml:"mode"`
}

// AudioConfig tunes the capture loop and the voice-activity gate. Out-of-range
// values are clamped to their defaults at load time with a warning.
type AudioConfig struct {
	// Source selects the registered capture source (e.g., "sim").
	Source string `yaml:"source"`

	// SampleRate is the capture rate in Hz. Default 16000.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the capture channel count. Default 1.
	Channels int `yaml:"channels"`

	// VADThreshold is the rectified-mean energy above which the fallback
	// voice-activity gate reports speech. Default 100.
	VADThreshold float64 `yaml:"vad_threshold"`

	// VADBypassFloor is a lower secondary threshold that also admits audio,
	// useful during bring-up with quiet microphones. Zero disables it.
	VADBypassFloor float64 `yaml:"vad_bypass_floor"`

	// MaxUtterance bounds how much speech one turn may accumulate.
	// Default 5s.
	MaxUtterance time.Duration `yaml:"max_utterance"`

	// ReadTimeout bounds each microphone read. Default 500ms.
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// WakeConfig tunes the wake path.
type WakeConfig struct {
	// Word is the wake word stripped from transcripts before intent routing.
	Word string `yaml:"word"`

	// Cooldown suppresses repeated wake triggers. Default 2s.
	Cooldown time.Duration `yaml:"cooldown"`
}

// SpeechConfig selects and configures the remote speech provider.
type SpeechConfig struct {
	// Provider selects the registered speech provider (e.g., "openai").
	Provider string `yaml:"provider"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint. Leave empty to
	// use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// ChatModel is the reasoning model (e.g., "gpt-4o-mini").
	ChatModel string `yaml:"chat_model"`

	// TranscriptionModel is the speech-to-text model. Empty uses the
	// provider default.
	TranscriptionModel string `yaml:"transcription_model"`

	// SpeechModel is the text-to-speech model. Empty uses the provider
	// default.
	SpeechModel string `yaml:"speech_model"`

	// Voice is the synthesis voice name.
	Voice string `yaml:"voice"`

	// Timeout bounds each provider call. Default 30s.
	Timeout time.Duration `yaml:"timeout"`
}

// ActionsConfig selects the local capability backends and tunes the intent
// router.
type ActionsConfig struct {
	// Media selects the registered media controller ("log" or "none").
	Media string `yaml:"media"`

	// Lights selects the registered light controller ("log" or "none").
	Lights string `yaml:"lights"`

	// VolumeStep is the percentage applied per volume command. Default 10.
	VolumeStep int `yaml:"volume_step"`
}

// TelemetryConfig configures the broker publisher.
type TelemetryConfig struct {
	// URL is the websocket endpoint of the telemetry broker. Empty disables
	// remote publishing; counters are still kept and logged.
	URL string `yaml:"url"`

	// Interval is the metrics publish period. Zero disables the periodic
	// publisher. Default 60s when a URL is set.
	Interval time.Duration `yaml:"interval"`

	// Headers are sent with the websocket handshake, typically for
	// authentication.
	Headers map[string]string `yaml:"headers"`
}

// MetricsConfig configures the local observability listener.
type MetricsConfig struct {
	// ListenAddr is the TCP address serving /metrics, /healthz and /readyz
	// (e.g., ":9090"). Empty disables the listener.
	ListenAddr string `yaml:"listen_addr"`
}

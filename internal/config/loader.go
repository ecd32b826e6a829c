package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [Validate] when a field is missing or out of range.
const (
	DefaultSampleRate    = 16000
	DefaultChannels      = 1
	DefaultVADThreshold  = 100
	DefaultMaxUtterance  = 5 * time.Second
	DefaultReadTimeout   = 500 * time.Millisecond
	DefaultWakeCooldown  = 2 * time.Second
	DefaultVolumeStep    = 10
	DefaultSpeechTimeout = 30 * time.Second
	DefaultTelemetryTick = time.Minute
)

// EnvAPIKey names the environment variable that overrides speech.api_key,
// keeping the credential out of config files checked into fleet repos.
const EnvAPIKey = "NAPHOME_SPEECH_API_KEY"

// ValidProviderNames lists known backend names per configurable kind. Used by
// [Validate] to warn about unrecognised names.
var ValidProviderNames = map[string][]string{
	"speech": {"openai"},
	"source": {"sim"},
	"media":  {"log", "none"},
	"lights": {"log", "none"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if key := os.Getenv(EnvAPIKey); key != "" {
		cfg.Speech.APIKey = key
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg for coherent values, clamping tunables to their
// defaults with a warning and returning a joined error for settings that
// cannot be defaulted away.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Device.Name == "" {
		errs = append(errs, errors.New("device.name is required"))
	}
	if cfg.Device.LogLevel != "" && !cfg.Device.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("device.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Device.LogLevel))
	}
	if cfg.Device.Mode == "" {
		cfg.Device.Mode = ModeContinuous
	} else if !cfg.Device.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("device.mode %q is invalid; valid values: continuous, wake", cfg.Device.Mode))
	}

	validateName("source", cfg.Audio.Source)
	validateName("speech", cfg.Speech.Provider)
	validateName("media", cfg.Actions.Media)
	validateName("lights", cfg.Actions.Lights)

	// Tunables clamp rather than fail; a mistyped threshold should not keep
	// the device from booting.
	clampInt(&cfg.Audio.SampleRate, DefaultSampleRate, "audio.sample_rate")
	clampInt(&cfg.Audio.Channels, DefaultChannels, "audio.channels")
	clampFloat(&cfg.Audio.VADThreshold, DefaultVADThreshold, "audio.vad_threshold")
	if cfg.Audio.VADBypassFloor < 0 {
		slog.Warn("config value out of range, using default",
			"field", "audio.vad_bypass_floor", "value", cfg.Audio.VADBypassFloor, "default", 0)
		cfg.Audio.VADBypassFloor = 0
	}
	clampDuration(&cfg.Audio.MaxUtterance, DefaultMaxUtterance, "audio.max_utterance")
	clampDuration(&cfg.Audio.ReadTimeout, DefaultReadTimeout, "audio.read_timeout")
	clampDuration(&cfg.Wake.Cooldown, DefaultWakeCooldown, "wake.cooldown")
	clampInt(&cfg.Actions.VolumeStep, DefaultVolumeStep, "actions.volume_step")
	clampDuration(&cfg.Speech.Timeout, DefaultSpeechTimeout, "speech.timeout")

	if cfg.Speech.Provider != "" {
		if cfg.Speech.APIKey == "" {
			errs = append(errs, fmt.Errorf("speech.api_key is required when speech.provider is %q", cfg.Speech.Provider))
		}
		if cfg.Speech.ChatModel == "" {
			errs = append(errs, errors.New("speech.chat_model is required when a speech provider is configured"))
		}
	} else {
		slog.Warn("no speech provider configured; the device cannot serve voice turns")
	}

	if cfg.Telemetry.URL == "" {
		if cfg.Telemetry.Interval > 0 {
			slog.Warn("telemetry.interval is set but telemetry.url is empty; metrics will only be logged locally")
		}
	} else if cfg.Telemetry.Interval <= 0 {
		cfg.Telemetry.Interval = DefaultTelemetryTick
	}

	return errors.Join(errs...)
}

func clampInt(v *int, def int, field string) {
	if *v > 0 {
		return
	}
	if *v != 0 {
		slog.Warn("config value out of range, using default", "field", field, "value", *v, "default", def)
	}
	*v = def
}

func clampFloat(v *float64, def float64, field string) {
	if *v > 0 {
		return
	}
	if *v != 0 {
		slog.Warn("config value out of range, using default", "field", field, "value", *v, "default", def)
	}
	*v = def
}

func clampDuration(v *time.Duration, def time.Duration, field string) {
	if *v > 0 {
		return
	}
	if *v != 0 {
		slog.Warn("config value out of range, using default", "field", field, "value", *v, "default", def)
	}
	*v = def
}

// validateName logs a warning if name is non-empty and not found in the
// [ValidProviderNames] list for the given kind.
func validateName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown backend name — may be a typo or third-party backend",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

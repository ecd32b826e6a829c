// Command naphome is the main entry point for the naphome smart-speaker
// daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/naphome/naphome/internal/actions"
	"github.com/naphome/naphome/internal/app"
	"github.com/naphome/naphome/internal/config"
	"github.com/naphome/naphome/internal/devstate"
	"github.com/naphome/naphome/internal/observe"
	"github.com/naphome/naphome/internal/resilience"
	"github.com/naphome/naphome/pkg/capture"
	"github.com/naphome/naphome/pkg/capture/sim"
	"github.com/naphome/naphome/pkg/playback"
	"github.com/naphome/naphome/pkg/provider/speech"
	"github.com/naphome/naphome/pkg/provider/speech/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	watch := flag.Bool("watch", false, "reload the configuration file when it changes")
	repliesDir := flag.String("replies-dir", "", "write spoken replies as WAV files into this directory instead of discarding them")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "naphome: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "naphome: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Device.LogLevel)
	slog.SetDefault(logger)

	slog.Info("naphome starting",
		"config", *configPath,
		"device", cfg.Device.Name,
		"mode", cfg.Device.Mode,
		"log_level", cfg.Device.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry provider ────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "naphome",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry provider", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry provider shutdown error", "err", err)
		}
	}()

	// ── Device state + backend registry ───────────────────────────────────────
	// The state store comes first: the speech provider's tool surface closes
	// over it.
	state := devstate.NewStore(cfg.Device.Name)

	reg := config.NewRegistry()
	registerBuiltinBackends(reg)

	backends, err := buildBackends(cfg, reg, state)
	if err != nil {
		slog.Error("failed to build backends", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	var opts []app.Option
	if *repliesDir != "" {
		dir, err := playback.NewDir(*repliesDir, logger)
		if err != nil {
			slog.Error("failed to open replies directory", "dir", *repliesDir, "err", err)
			return 1
		}
		opts = append(opts, app.WithPlayer(dir))
	}

	application, err := app.New(cfg, state, backends, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config watcher (optional) ─────────────────────────────────────────────
	if *watch {
		watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			diff := config.Diff(old, new)
			if diff.Empty() {
				return
			}
			if diff.LogLevelChanged {
				logLevel.Set(slogLevel(diff.NewLogLevel))
				slog.Info("log level updated", "level", diff.NewLogLevel)
			}
			application.ApplyConfig(diff)
		})
		if err != nil {
			slog.Error("failed to start config watcher", "err", err)
			return 1
		}
		defer watcher.Stop()
		slog.Info("watching config file for changes", "path", *configPath)
	}

	slog.Info("device ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// version is stamped at build time via -ldflags.
var version = "dev"

// ── Backend wiring ────────────────────────────────────────────────────────────

// registerBuiltinBackends wires all built-in backend factories into reg. Each
// factory constructs a backend from its config section; the hardware-bound
// backends (ALSA capture, real lights) live outside this binary and register
// their own factories in the firmware build.
func registerBuiltinBackends(reg *config.Registry) {
	reg.RegisterSpeech("openai", func(entry config.SpeechConfig, tools []speech.ToolDefinition, handler speech.ToolHandler) (speech.Provider, error) {
		var opts []openai.Option
		if entry.Timeout > 0 {
			opts = append(opts, openai.WithTimeout(entry.Timeout))
		}
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if entry.TranscriptionModel != "" {
			opts = append(opts, openai.WithTranscriptionModel(entry.TranscriptionModel))
		}
		if entry.SpeechModel != "" {
			opts = append(opts, openai.WithSpeechModel(entry.SpeechModel))
		}
		if len(tools) > 0 {
			opts = append(opts, openai.WithTools(tools, handler))
		}
		return openai.New(entry.APIKey, entry.ChatModel, opts...)
	})

	reg.RegisterSource("sim", func(entry config.AudioConfig) (capture.Source, error) {
		return sim.New(entry.SampleRate, sim.WithChannels(entry.Channels)), nil
	})

	reg.RegisterMedia("log", func(config.ActionsConfig) (actions.MediaController, error) {
		return actions.NewLogMedia(slog.Default()), nil
	})
	reg.RegisterLights("log", func(config.ActionsConfig) (actions.LightController, error) {
		return actions.NewLogLights(slog.Default()), nil
	})
}

// buildBackends instantiates the backends named in cfg using the registry.
// The capture source and the speech provider are required; a missing action
// controller only disables its surface.
func buildBackends(cfg *config.Config, reg *config.Registry, state *devstate.Store) (*app.Backends, error) {
	bs := &app.Backends{}

	source, err := reg.CreateSource(cfg.Audio)
	if err != nil {
		return nil, fmt.Errorf("create capture source %q: %w", cfg.Audio.Source, err)
	}
	bs.Source = source
	slog.Info("backend created", "kind", "source", "name", cfg.Audio.Source)

	if cfg.Speech.Provider == "" {
		return nil, errors.New("speech.provider is required to run the device")
	}
	provider, err := reg.CreateSpeech(cfg.Speech, state.Tools(), state.Handle)
	if err != nil {
		return nil, fmt.Errorf("create speech provider %q: %w", cfg.Speech.Provider, err)
	}
	// One breaker fronts all three speech operations, so a cloud outage
	// fails turns fast instead of stacking up timeouts.
	bs.Speech = resilience.NewGuardedProvider(provider, resilience.BreakerConfig{})
	slog.Info("backend created", "kind", "speech", "name", cfg.Speech.Provider,
		"chat_model", cfg.Speech.ChatModel)

	if name := cfg.Actions.Media; name != "" {
		media, err := reg.CreateMedia(cfg.Actions)
		if errors.Is(err, config.ErrNotRegistered) {
			slog.Warn("media backend not available in this build — media commands disabled", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create media controller %q: %w", name, err)
		} else if media != nil {
			bs.Media = media
			slog.Info("backend created", "kind", "media", "name", name)
		}
	}

	if name := cfg.Actions.Lights; name != "" {
		lights, err := reg.CreateLights(cfg.Actions)
		if errors.Is(err, config.ErrNotRegistered) {
			slog.Warn("lights backend not available in this build — light commands disabled", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create light controller %q: %w", name, err)
		} else if lights != nil {
			bs.Lights = lights
			slog.Info("backend created", "kind", "lights", "name", name)
		}
	}

	return bs, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         naphome — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Device", cfg.Device.Name)
	printField("Mode", string(cfg.Device.Mode))
	printField("Wake word", cfg.Wake.Word)
	printField("Source", fmt.Sprintf("%s / %d Hz", cfg.Audio.Source, cfg.Audio.SampleRate))
	printBackend("Speech", cfg.Speech.Provider, cfg.Speech.ChatModel)
	printBackend("Media", cfg.Actions.Media, "")
	printBackend("Lights", cfg.Actions.Lights, "")
	if cfg.Telemetry.URL != "" {
		printField("Broker", cfg.Telemetry.URL)
	} else {
		printField("Broker", "(disabled)")
	}
	if cfg.Metrics.ListenAddr != "" {
		printField("Listen addr", cfg.Metrics.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printBackend(kind, name, model string) {
	value := name
	if value == "" || value == "none" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	printField(kind, value)
}

func printField(kind, value string) {
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:16]) + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger returns the configured logger together with its level var, so a
// config reload can change verbosity without rebuilding the handler.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

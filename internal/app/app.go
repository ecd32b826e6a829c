// Package app wires all naphome subsystems into a running device.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the interaction loop for the configured mode, and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithPublisher,
// WithPlayer, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/naphome/naphome/internal/actions"
	"github.com/naphome/naphome/internal/config"
	"github.com/naphome/naphome/internal/devstate"
	"github.com/naphome/naphome/internal/health"
	"github.com/naphome/naphome/internal/intent"
	"github.com/naphome/naphome/internal/observe"
	"github.com/naphome/naphome/internal/pipeline"
	"github.com/naphome/naphome/internal/status"
	"github.com/naphome/naphome/internal/telemetry"
	"github.com/naphome/naphome/internal/telemetry/ws"
	"github.com/naphome/naphome/pkg/capture"
	"github.com/naphome/naphome/pkg/frontend"
	"github.com/naphome/naphome/pkg/frontend/null"
	"github.com/naphome/naphome/pkg/playback"
	"github.com/naphome/naphome/pkg/provider/speech"
)

const httpShutdownTimeout = 5 * time.Second

// Backends holds the config-selected implementations of the device's
// external surfaces. Populated by main.go via the config registry. Source
// and Speech are required; a nil controller means the surface is not
// installed and its actions fail as unsupported.
type Backends struct {
	Source capture.Source
	Speech speech.Provider
	Media  actions.MediaController
	Lights actions.LightController
}

// App owns all subsystem lifetimes and runs the interaction loop.
type App struct {
	cfg      *config.Config
	backends *Backends
	logger   *slog.Logger

	// Subsystems — initialised in New, torn down in Shutdown.
	state     *devstate.Store
	tracker   *status.Tracker
	bridge    *telemetry.Bridge
	metrics   *observe.Metrics
	router    *intent.Router
	pipeline  *pipeline.Pipeline // continuous mode
	wakeLoop  *pipeline.WakeLoop // wake mode
	httpSrv   *http.Server
	publisher telemetry.Publisher
	player    pipeline.Player
	engine    frontend.Engine
	indicator status.Indicator

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithPublisher injects a telemetry publisher instead of dialling the broker
// from config.
func WithPublisher(p telemetry.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithPlayer injects a playback sink instead of the discarding default.
func WithPlayer(p pipeline.Player) Option {
	return func(a *App) { a.player = p }
}

// WithEngine injects an audio front end instead of the pass-through default.
func WithEngine(e frontend.Engine) Option {
	return func(a *App) { a.engine = e }
}

// WithIndicator injects a status indicator instead of the log-backed default.
func WithIndicator(i status.Indicator) Option {
	return func(a *App) { a.indicator = i }
}

// WithMetrics injects pre-built metrics instruments, typically bound to a
// manual reader in tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. The state store and
// backends come from main.go: the store first, because the speech provider's
// tool surface closes over it, then the backends via the config registry.
func New(cfg *config.Config, state *devstate.Store, backends *Backends, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if state == nil {
		return nil, errors.New("app: state store is required")
	}
	if backends == nil || backends.Source == nil {
		return nil, errors.New("app: a capture source is required")
	}
	if backends.Speech == nil {
		return nil, errors.New("app: a speech provider is required")
	}

	a := &App{
		cfg:      cfg,
		backends: backends,
		state:    state,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		m, err := observe.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return nil, fmt.Errorf("app: init metrics: %w", err)
		}
		a.metrics = m
	}
	if a.player == nil {
		a.player = playback.NewDiscard(a.logger)
	}
	if a.indicator == nil {
		a.indicator = status.NewLogIndicator(a.logger)
	}
	a.tracker = status.NewTracker(a.indicator, a.logger)

	if err := a.initTelemetry(); err != nil {
		return nil, err
	}
	a.initActions()
	if err := a.initMode(); err != nil {
		return nil, err
	}
	a.initHTTP()

	return a, nil
}

// initTelemetry dials the broker when one is configured and builds the
// bridge. Without a broker URL the bridge logs payloads locally.
func (a *App) initTelemetry() error {
	if a.publisher == nil && a.cfg.Telemetry.URL != "" {
		opts := []ws.Option{ws.WithStateFunc(a.state.SetConnected)}
		for key, value := range a.cfg.Telemetry.Headers {
			opts = append(opts, ws.WithHeader(key, value))
		}
		pub, err := ws.New(a.cfg.Telemetry.URL, opts...)
		if err != nil {
			return fmt.Errorf("app: init telemetry: %w", err)
		}
		a.publisher = pub
		a.closers = append(a.closers, pub.Close)
	}
	a.bridge = telemetry.NewBridge(a.cfg.Device.Name, a.publisher, a.logger)
	return nil
}

// initActions builds the intent router and connects the model's set_lights
// tool to the real controller so tool calls move actual lights.
func (a *App) initActions() {
	a.router = intent.NewRouter(a.cfg.Actions.VolumeStep)
	if lights := a.backends.Lights; lights != nil {
		a.state.SetLightsHandler(func(on bool) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return lights.SetLights(ctx, on)
		})
	}
}

// initMode assembles the interaction loop for the configured device mode.
func (a *App) initMode() error {
	runnerCfg := pipeline.RunnerConfig{
		Provider:   a.backends.Speech,
		Router:     a.router,
		Actions:    actions.NewDispatcher(a.backends.Media, a.backends.Lights),
		Status:     a.tracker,
		State:      a.state,
		Bridge:     a.bridge,
		Metrics:    a.metrics,
		Player:     a.player,
		SampleRate: a.backends.Source.SampleRate(),
		WakeWord:   a.cfg.Wake.Word,
		Voice:      a.cfg.Speech.Voice,
		Logger:     a.logger,
	}

	switch a.cfg.Device.Mode {
	case config.ModeWake:
		loop, err := pipeline.NewWakeLoop(runnerCfg, a.backends.Source,
			a.cfg.Audio.MaxUtterance, a.cfg.Audio.ReadTimeout)
		if err != nil {
			return fmt.Errorf("app: init wake loop: %w", err)
		}
		a.wakeLoop = loop
		return nil

	case config.ModeContinuous, "":
		if a.engine == nil {
			a.engine = null.New(a.backends.Source.Channels())
		}
		p, err := pipeline.New(pipeline.Config{
			Source:         a.backends.Source,
			Engine:         a.engine,
			Provider:       a.backends.Speech,
			Router:         a.router,
			Actions:        actions.NewDispatcher(a.backends.Media, a.backends.Lights),
			Status:         a.tracker,
			State:          a.state,
			Bridge:         a.bridge,
			Metrics:        a.metrics,
			Player:         a.player,
			WakeWord:       a.cfg.Wake.Word,
			Voice:          a.cfg.Speech.Voice,
			WakeCooldown:   a.cfg.Wake.Cooldown,
			VADThreshold:   a.cfg.Audio.VADThreshold,
			VADBypassFloor: a.cfg.Audio.VADBypassFloor,
			MaxUtterance:   a.cfg.Audio.MaxUtterance,
			ReadTimeout:    a.cfg.Audio.ReadTimeout,
			Logger:         a.logger,
		})
		if err != nil {
			return fmt.Errorf("app: init pipeline: %w", err)
		}
		a.pipeline = p
		return nil

	default:
		return fmt.Errorf("app: unknown device mode %q", a.cfg.Device.Mode)
	}
}

// initHTTP builds the optional local HTTP listener serving Prometheus
// metrics, health probes, and the wake/button simulation hooks.
func (a *App) initHTTP() {
	addr := a.cfg.Metrics.ListenAddr
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/wake", a.handleWake)
	mux.HandleFunc("POST /api/button", a.handleButton)
	health.New(a.healthCheckers()...).Register(mux)

	a.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// healthCheckers returns the readiness checks for this configuration.
func (a *App) healthCheckers() []health.Checker {
	checkers := []health.Checker{{
		Name: "speech",
		Check: func(context.Context) error {
			if a.backends.Speech == nil {
				return errors.New("no speech provider")
			}
			return nil
		},
	}}
	if a.cfg.Telemetry.URL != "" {
		checkers = append(checkers, health.Checker{
			Name: "broker",
			Check: func(context.Context) error {
				if !a.state.Connected() {
					return errors.New("broker disconnected")
				}
				return nil
			},
		})
	}
	return checkers
}

// handleWake triggers the wake path without audio.
func (a *App) handleWake(w http.ResponseWriter, r *http.Request) {
	if !a.SimulateWake(r.Context()) {
		http.Error(w, "event queue full", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleButton enqueues a button press. The button id comes from the "id"
// query parameter and defaults to zero.
func (a *App) handleButton(w http.ResponseWriter, r *http.Request) {
	id := 0
	if raw := r.URL.Query().Get("id"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "id must be an integer", http.StatusBadRequest)
			return
		}
		id = parsed
	}
	if !a.PressButton(id) {
		http.Error(w, "event queue full", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// SimulateWake triggers the wake path without audio. In continuous mode the
// wake always registers; in wake mode it reports false when the event queue
// is full.
func (a *App) SimulateWake(ctx context.Context) bool {
	if a.wakeLoop != nil {
		return a.wakeLoop.Wake()
	}
	a.pipeline.SimulateWake(ctx)
	return true
}

// PressButton enqueues a button press. It reports false when the event queue
// is full.
func (a *App) PressButton(id int) bool {
	if a.wakeLoop != nil {
		return a.wakeLoop.Button(id)
	}
	return a.pipeline.PressButton(id)
}

// State returns the device state store.
func (a *App) State() *devstate.Store { return a.state }

// Handler returns the HTTP handler of the local listener, or nil when no
// listen address is configured. Exposed so callers can mount it elsewhere.
func (a *App) Handler() http.Handler {
	if a.httpSrv == nil {
		return nil
	}
	return a.httpSrv.Handler
}

// ApplyConfig applies the hot-reloadable parts of a config change. Changes
// needing a restart are logged and otherwise ignored.
func (a *App) ApplyConfig(diff config.ConfigDiff) {
	if diff.VolumeStepChanged {
		a.router.SetVolumeStep(diff.NewVolumeStep)
		a.logger.Info("volume step updated", "step", diff.NewVolumeStep)
	}
	if diff.TelemetryIntervalChanged {
		a.logger.Info("telemetry interval change takes effect on restart")
	}
	if diff.RestartNeeded {
		a.logger.Warn("config change requires a restart to take effect")
	}
}

// Run starts the interaction loop, the telemetry publisher, and the HTTP
// listener, blocking until ctx is cancelled or a subsystem fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.wakeLoop != nil {
		g.Go(func() error { return a.wakeLoop.Run(ctx) })
	} else {
		g.Go(func() error { return a.pipeline.Run(ctx) })
	}

	g.Go(func() error { return a.bridge.Run(ctx, a.cfg.Telemetry.Interval) })

	if a.httpSrv != nil {
		g.Go(func() error {
			a.logger.Info("http listener started", "addr", a.httpSrv.Addr)
			if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
			defer cancel()
			if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("http shutdown error", "error", err)
			}
			return ctx.Err()
		})
	}

	a.logger.Info("device running",
		"device", a.cfg.Device.Name,
		"mode", a.cfg.Device.Mode,
		"wake_word", a.cfg.Wake.Word)
	return g.Wait()
}

// Shutdown flushes a final telemetry snapshot and tears down subsystems in
// order. It respects the context deadline: if ctx expires before all closers
// finish, remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))

		// Best effort; a dead broker must not stall shutdown.
		_ = a.bridge.PublishMetrics(ctx)

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.logger.Warn("closer error", "index", i, "error", err)
			}
		}

		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}

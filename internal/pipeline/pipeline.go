// Package pipeline is the interaction core of the device: it runs the
// capture loop, the dual-path acoustic dispatch (wake word and voice
// activity), and the single-flight turn runner that carries an utterance
// through transcription, intent routing, reasoning, and spoken reply.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/naphome/naphome/internal/actions"
	"github.com/naphome/naphome/internal/devstate"
	"github.com/naphome/naphome/internal/intent"
	"github.com/naphome/naphome/internal/observe"
	"github.com/naphome/naphome/internal/status"
	"github.com/naphome/naphome/internal/telemetry"
	"github.com/naphome/naphome/pkg/audio"
	"github.com/naphome/naphome/pkg/capture"
	"github.com/naphome/naphome/pkg/frontend"
	"github.com/naphome/naphome/pkg/provider/speech"
)

const (
	defaultWakeCooldown = 2 * time.Second
	defaultVADThreshold = 100
	defaultMaxUtterance = 5 * time.Second
	defaultReadTimeout  = 500 * time.Millisecond

	// captureBlock is the per-channel read size of the capture loop.
	captureBlock = 512
	// captureInterval paces the capture loop when no data arrives.
	captureInterval = 20 * time.Millisecond
)

// LevelSink receives per-read microphone levels, typically to drive
// sound-reactive lighting.
type LevelSink interface {
	Update(levels audio.Levels)
}

// Config wires a [Pipeline]. Source, Engine, Provider, Router, Actions,
// Status, State, Bridge, Metrics, and Player are required.
type Config struct {
	Source   capture.Source
	Engine   frontend.Engine
	Provider speech.Provider
	Router   *intent.Router
	Actions  *actions.Dispatcher
	Status   *status.Tracker
	State    *devstate.Store
	Bridge   *telemetry.Bridge
	Metrics  *observe.Metrics
	Player   Player

	// Levels is an optional sink for microphone level updates.
	Levels LevelSink
	// OnWake is an optional callback invoked on each accepted wake hit.
	OnWake func(word string, index int)

	// WakeWord is stripped from transcripts before routing.
	WakeWord string
	// Voice is the synthesis voice name.
	Voice string

	// WakeCooldown suppresses repeated wake hits. Default 2s.
	WakeCooldown time.Duration
	// VADThreshold is the energy above which fallback VAD reports speech.
	// Default 100.
	VADThreshold float64
	// VADBypassFloor is a lower secondary threshold that also admits audio,
	// keeping quiet speech flowing. Zero disables it.
	VADBypassFloor float64
	// MaxUtterance bounds the buffered utterance length. Default 5s.
	MaxUtterance time.Duration
	// ReadTimeout bounds each capture read. Default 500ms.
	ReadTimeout time.Duration

	Logger *slog.Logger
}

// Pipeline owns the capture goroutine and the turn runner.
type Pipeline struct {
	cfg      Config
	runner   *Runner
	analyzer *analyzer
	detector *detector
	logger   *slog.Logger
}

// New validates cfg, applies defaults, and assembles a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Source == nil:
		return nil, errors.New("pipeline: Source is required")
	case cfg.Engine == nil:
		return nil, errors.New("pipeline: Engine is required")
	case cfg.Provider == nil:
		return nil, errors.New("pipeline: Provider is required")
	case cfg.Router == nil:
		return nil, errors.New("pipeline: Router is required")
	case cfg.Actions == nil:
		return nil, errors.New("pipeline: Actions is required")
	case cfg.Status == nil:
		return nil, errors.New("pipeline: Status is required")
	case cfg.State == nil:
		return nil, errors.New("pipeline: State is required")
	case cfg.Bridge == nil:
		return nil, errors.New("pipeline: Bridge is required")
	case cfg.Metrics == nil:
		return nil, errors.New("pipeline: Metrics is required")
	case cfg.Player == nil:
		return nil, errors.New("pipeline: Player is required")
	}
	if cfg.Source.SampleRate() <= 0 {
		return nil, errors.New("pipeline: source sample rate must be positive")
	}

	if cfg.WakeCooldown <= 0 {
		cfg.WakeCooldown = defaultWakeCooldown
	}
	if cfg.VADThreshold <= 0 {
		cfg.VADThreshold = defaultVADThreshold
	}
	if cfg.VADBypassFloor < 0 {
		cfg.VADBypassFloor = 0
	}
	if cfg.MaxUtterance <= 0 {
		cfg.MaxUtterance = defaultMaxUtterance
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runner := NewRunner(RunnerConfig{
		Provider:   cfg.Provider,
		Router:     cfg.Router,
		Actions:    cfg.Actions,
		Status:     cfg.Status,
		State:      cfg.State,
		Bridge:     cfg.Bridge,
		Metrics:    cfg.Metrics,
		Player:     cfg.Player,
		SampleRate: cfg.Source.SampleRate(),
		WakeWord:   cfg.WakeWord,
		Voice:      cfg.Voice,
		Logger:     logger,
	})

	maxSamples := int(float64(cfg.Source.SampleRate()) * cfg.MaxUtterance.Seconds())
	buf := NewUtteranceBuffer(maxSamples, logger)

	an := newAnalyzer(cfg.Engine, cfg.VADThreshold, cfg.VADBypassFloor, logger)
	det := newDetector(cfg.WakeCooldown, buf, runner, cfg.Status, cfg.Bridge,
		cfg.Metrics, cfg.OnWake, logger)

	return &Pipeline{
		cfg:      cfg,
		runner:   runner,
		analyzer: an,
		detector: det,
		logger:   logger,
	}, nil
}

// Run starts the capture loop and the turn runner, blocking until ctx is
// cancelled or either fails.
func (p *Pipeline) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.runner.Run(ctx) })
	g.Go(func() error { return p.captureLoop(ctx) })
	return g.Wait()
}

// PressButton enqueues a button press on the event queue. It reports false
// when the queue is full.
func (p *Pipeline) PressButton(id int) bool {
	return p.runner.SubmitButton(id)
}

// SimulateWake triggers the wake path without audio, as an API or test
// hook. It bypasses the cooldown and is counted as a simulated wake.
func (p *Pipeline) SimulateWake(ctx context.Context) {
	p.logger.Info("simulated wake triggered")
	p.cfg.Bridge.RecordWake(true)
	p.cfg.Metrics.RecordWakeEvent(ctx, "api")
	if p.cfg.OnWake != nil {
		p.cfg.OnWake("", -1)
	}
}

// captureLoop reads audio blocks from the source and drives the detector.
func (p *Pipeline) captureLoop(ctx context.Context) error {
	guard, err := p.cfg.Source.Acquire(ctx)
	if err != nil {
		return err
	}
	defer guard.Release()

	channels := p.cfg.Source.Channels()
	if channels < 1 {
		channels = 1
	}
	block := make([]int16, captureBlock*channels)

	p.logger.Info("capture loop started",
		"sample_rate", p.cfg.Source.SampleRate(),
		"channels", channels,
		"block", captureBlock)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n, err := p.readBlock(ctx, guard, block)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("capture read failed", "error", err)
			sleepCtx(ctx, captureInterval)
			continue
		}
		if n == 0 {
			sleepCtx(ctx, captureInterval)
			continue
		}

		if p.cfg.Levels != nil {
			p.cfg.Levels.Update(audio.MeasureLevels(block[:n], channels))
		}

		events, err := p.analyzer.process(block[:n])
		if err != nil {
			p.logger.Warn("acoustic analysis failed", "error", err)
		}
		for _, ev := range events {
			p.detector.handle(ctx, ev)
		}
	}
}

// readBlock performs one bounded read from the capture guard.
func (p *Pipeline) readBlock(ctx context.Context, guard capture.Guard, dst []int16) (int, error) {
	readCtx, cancel := context.WithTimeout(ctx, p.cfg.ReadTimeout)
	defer cancel()
	n, err := guard.Read(readCtx, dst)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		// A timed-out read is silence, not failure.
		return n, nil
	}
	return n, err
}

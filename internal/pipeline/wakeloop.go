package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/naphome/naphome/internal/status"
	"github.com/naphome/naphome/pkg/audio"
	"github.com/naphome/naphome/pkg/capture"
)

const (
	// wakeBlock is the per-read chunk size of the wake-triggered recorder.
	wakeBlock = 512
	// maxSilentReads bounds how long the recorder waits for audio to start
	// before giving up on the wake.
	maxSilentReads = 6
)

// wakeEvent is one entry on the WakeLoop queue.
type wakeEvent struct {
	button   int
	isButton bool
}

// WakeLoop is the synchronous interaction mode: wake and button events share
// one bounded queue consumed by a single goroutine, and each wake event
// records its utterance by holding the microphone exclusively for the
// duration instead of trimming a continuous stream. Suited to devices whose
// wake detection lives outside the audio path, such as a hardware trigger.
type WakeLoop struct {
	runner      *Runner
	source      capture.Source
	maxSamples  int
	readTimeout time.Duration
	events      chan wakeEvent
	logger      *slog.Logger
}

// NewWakeLoop wires a WakeLoop over the given turn collaborators and capture
// source. maxUtterance and readTimeout fall back to the pipeline defaults
// when non-positive.
func NewWakeLoop(cfg RunnerConfig, source capture.Source, maxUtterance, readTimeout time.Duration) (*WakeLoop, error) {
	if source == nil {
		return nil, errors.New("pipeline: source is required")
	}
	rate := source.SampleRate()
	if rate <= 0 {
		return nil, errors.New("pipeline: source sample rate must be positive")
	}
	if maxUtterance <= 0 {
		maxUtterance = defaultMaxUtterance
	}
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = rate
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runner := NewRunner(cfg)
	// The wake path trades conversational replies for latency: a routed
	// command speaks its canned confirmation without a model round trip.
	runner.localReplies = true

	return &WakeLoop{
		runner:      runner,
		source:      source,
		maxSamples:  int(float64(rate) * maxUtterance.Seconds()),
		readTimeout: readTimeout,
		events:      make(chan wakeEvent, buttonQueueSize),
		logger:      logger,
	}, nil
}

// Wake enqueues a wake event. It reports false when the queue is full.
func (l *WakeLoop) Wake() bool {
	select {
	case l.events <- wakeEvent{}:
		return true
	default:
		l.logger.Warn("event queue full, dropping wake")
		return false
	}
}

// Button enqueues a button press. It reports false when the queue is full.
func (l *WakeLoop) Button(id int) bool {
	select {
	case l.events <- wakeEvent{button: id, isButton: true}:
		return true
	default:
		l.logger.Warn("event queue full, dropping press", "button", id)
		return false
	}
}

// Run consumes events until ctx is cancelled.
func (l *WakeLoop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-l.events:
			if ev.isButton {
				l.runner.runButton(ctx, ev.button)
			} else {
				l.handleWake(ctx)
			}
		}
	}
}

// handleWake records one utterance and runs it through the turn worker
// inline; the loop is already serialised, so there is no handoff to reject.
func (l *WakeLoop) handleWake(ctx context.Context) {
	l.runner.cfg.Bridge.RecordWake(false)
	l.runner.cfg.Metrics.RecordWakeEvent(ctx, "wakenet")
	l.runner.cfg.Status.Set(status.StateListening)

	samples, err := l.record(ctx)
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Error("wake capture failed", "error", err)
			l.runner.cfg.Status.Set(status.StateError)
		}
		l.runner.cfg.Status.Set(status.StateIdle)
		return
	}
	if len(samples) == 0 {
		l.logger.Info("no speech after wake")
		l.runner.cfg.Status.Set(status.StateIdle)
		return
	}

	l.runner.runTurn(ctx, samples)
}

// record reads chunks from the exclusively held microphone until the
// utterance window fills, the speaker goes quiet, or ctx is cancelled.
func (l *WakeLoop) record(ctx context.Context) ([]int16, error) {
	guard, err := l.source.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	channels := l.source.Channels()
	if channels < 1 {
		channels = 1
	}
	block := make([]int16, wakeBlock*channels)
	samples := make([]int16, 0, l.maxSamples)
	silentReads := 0

	for len(samples) < l.maxSamples {
		if ctx.Err() != nil {
			return samples, ctx.Err()
		}

		readCtx, cancel := context.WithTimeout(ctx, l.readTimeout)
		n, err := guard.Read(readCtx, block)
		cancel()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return samples, ctx.Err()
			}
			return samples, err
		}

		if n == 0 {
			// Quiet after speech ends the utterance; quiet before any
			// speech eventually gives up on the wake.
			if len(samples) > 0 {
				break
			}
			silentReads++
			if silentReads >= maxSilentReads {
				break
			}
			continue
		}

		mono := block[:n]
		if channels > 1 {
			mono = audio.StereoToMono(mono)
		}
		room := l.maxSamples - len(samples)
		if len(mono) > room {
			mono = mono[:room]
		}
		samples = append(samples, mono...)
	}
	return samples, nil
}

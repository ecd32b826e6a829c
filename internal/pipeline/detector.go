package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/naphome/naphome/internal/observe"
	"github.com/naphome/naphome/internal/status"
	"github.com/naphome/naphome/internal/telemetry"
)

// detector consumes acoustic events and drives the two dispatch paths: wake
// hits trigger the local wake handler behind a cooldown, and voice activity
// edges delimit utterances handed to the turn runner.
//
// The detector is driven by the single capture goroutine and needs no
// locking of its own.
type detector struct {
	cooldown      time.Duration
	cooldownUntil time.Time
	now           func() time.Time

	buf       *UtteranceBuffer
	wasActive bool

	runner  *Runner
	tracker *status.Tracker
	bridge  *telemetry.Bridge
	metrics *observe.Metrics
	onWake  func(word string, index int)
	logger  *slog.Logger
}

func newDetector(cooldown time.Duration, buf *UtteranceBuffer, runner *Runner,
	tracker *status.Tracker, bridge *telemetry.Bridge, metrics *observe.Metrics,
	onWake func(word string, index int), logger *slog.Logger) *detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &detector{
		cooldown: cooldown,
		now:      time.Now,
		buf:      buf,
		runner:   runner,
		tracker:  tracker,
		bridge:   bridge,
		metrics:  metrics,
		onWake:   onWake,
		logger:   logger,
	}
}

// handle processes one acoustic event.
func (d *detector) handle(ctx context.Context, ev acousticEvent) {
	if ev.wakeHit {
		d.handleWake(ctx, ev)
	}
	d.handleVoice(ctx, ev)
}

// handleWake runs the wake path. A hit inside the cooldown window is
// ignored so one spoken wake word does not fan out into repeated triggers.
func (d *detector) handleWake(ctx context.Context, ev acousticEvent) {
	now := d.now()
	if now.Before(d.cooldownUntil) {
		d.logger.Debug("wake hit during cooldown, ignored", "word", ev.wakeWord)
		return
	}
	d.cooldownUntil = now.Add(d.cooldown)

	d.logger.Info("wake word detected",
		"word", ev.wakeWord,
		"index", ev.wakeWordIndex,
		"channel", ev.triggerChannel)
	d.bridge.RecordWake(false)
	d.metrics.RecordWakeEvent(ctx, "wakenet")
	if d.onWake != nil {
		d.onWake(ev.wakeWord, ev.wakeWordIndex)
	}
}

// handleVoice runs the speech path: accumulate while voice is active, hand
// the utterance to the runner on the falling edge. A rejected handoff drops
// the utterance; the runner is already busy with an earlier one.
func (d *detector) handleVoice(ctx context.Context, ev acousticEvent) {
	if ev.voiceActive {
		if !d.wasActive {
			d.logger.Debug("speech started", "energy", ev.energy)
			if d.tracker.State() == status.StateIdle {
				d.tracker.Set(status.StateListening)
			}
		}
		d.buf.Append(ev.chunk)
		d.wasActive = true
		return
	}

	if d.wasActive && d.buf.Len() > 0 {
		samples := d.buf.Take()
		if d.runner.TrySubmit(samples) {
			d.logger.Info("speech ended, utterance handed off", "samples", len(samples))
		} else {
			d.logger.Warn("turn already in flight, dropping utterance",
				"samples", len(samples))
			d.metrics.RecordDroppedTurn(ctx)
			if d.tracker.State() == status.StateListening {
				d.tracker.Set(status.StateIdle)
			}
		}
	}
	d.wasActive = false
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/naphome/naphome/internal/actions"
	"github.com/naphome/naphome/internal/devstate"
	"github.com/naphome/naphome/internal/intent"
	"github.com/naphome/naphome/internal/observe"
	"github.com/naphome/naphome/internal/status"
	"github.com/naphome/naphome/internal/telemetry"
	"github.com/naphome/naphome/pkg/audio"
	"github.com/naphome/naphome/pkg/provider/speech"
)

// buttonQueueSize bounds pending button events. Presses beyond the bound
// are dropped with a warning.
const buttonQueueSize = 8

// Player renders synthesized audio on the device speaker.
type Player interface {
	Play(ctx context.Context, wav []byte) error
}

// turnRequest is one utterance waiting for the runner.
type turnRequest struct {
	samples []int16
}

// RunnerConfig collects the collaborators of a [Runner].
type RunnerConfig struct {
	Provider   speech.Provider
	Router     *intent.Router
	Actions    *actions.Dispatcher
	Status     *status.Tracker
	State      *devstate.Store
	Bridge     *telemetry.Bridge
	Metrics    *observe.Metrics
	Player     Player
	SampleRate int
	WakeWord   string
	Voice      string
	Logger     *slog.Logger
}

// Runner executes turns one at a time.
//
// Admission is by rendezvous: the intake channel is unbuffered, so
// [Runner.TrySubmit] succeeds only while the worker goroutine is parked
// waiting for work. An utterance arriving mid-turn is rejected immediately
// instead of queueing behind a stale one.
type Runner struct {
	cfg     RunnerConfig
	intake  chan turnRequest
	buttons chan int
	logger  *slog.Logger

	// localReplies answers routed commands with the canned confirmations
	// instead of a model round trip. Set by the wake loop, where latency
	// matters more than conversational replies.
	localReplies bool

	// wait blocks for the estimated playback duration. Overridable in tests.
	wait func(ctx context.Context, d time.Duration)
}

// NewRunner returns a Runner. All RunnerConfig fields except Logger are
// required.
func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:     cfg,
		intake:  make(chan turnRequest),
		buttons: make(chan int, buttonQueueSize),
		logger:  logger,
		wait:    sleepCtx,
	}
}

// TrySubmit offers an utterance to the runner. It reports false when a turn
// is already in flight; the utterance is then the caller's to drop.
func (r *Runner) TrySubmit(samples []int16) bool {
	select {
	case r.intake <- turnRequest{samples: samples}:
		return true
	default:
		return false
	}
}

// SubmitButton queues a button press. It reports false when the event queue
// is full.
func (r *Runner) SubmitButton(id int) bool {
	select {
	case r.buttons <- id:
		return true
	default:
		r.logger.Warn("button event queue full, dropping press", "button", id)
		return false
	}
}

// Run processes turns until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-r.intake:
			r.runTurn(ctx, req.samples)
		case id := <-r.buttons:
			r.runButton(ctx, id)
		}
	}
}

// runTurn executes one full utterance turn: transcribe, route, act, reply,
// speak. Whatever happens, the device ends the turn idle with the outcome
// counted and published.
func (r *Runner) runTurn(ctx context.Context, samples []int16) {
	turnID := uuid.NewString()
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "pipeline.turn",
		trace.WithAttributes(observe.Attr("turn_id", turnID)))
	defer span.End()
	log := observe.Logger(ctx).With("turn_id", turnID)

	r.cfg.Status.Set(status.StateThinking)

	var (
		turnErr    error
		transcript string
		decision   intent.Decision
	)
	defer func() {
		r.cfg.Bridge.RecordInteraction(turnErr)
		_ = r.cfg.Bridge.PublishInteraction(ctx, transcript, decision.Action.String(), turnErr)

		st := "ok"
		if turnErr != nil {
			st = "error"
		}
		r.cfg.Metrics.RecordTurn(ctx, st)
		r.cfg.Metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
		r.cfg.Status.Set(status.StateIdle)
	}()

	sttStart := time.Now()
	text, err := r.cfg.Provider.Transcribe(ctx, samples, r.cfg.SampleRate)
	r.cfg.Metrics.STTDuration.Record(ctx, time.Since(sttStart).Seconds())
	r.cfg.Bridge.RecordSTTResult(err == nil)
	if err != nil {
		log.Error("transcription failed", "error", err, "samples", len(samples))
		r.cfg.Metrics.RecordProviderError(ctx, "speech", "stt")
		turnErr = fmt.Errorf("transcribe: %w", err)
		r.cfg.Status.Set(status.StateError)
		return
	}
	if strings.TrimSpace(text) == "" {
		log.Info("transcription empty, ending turn")
		return
	}
	transcript = text
	log.Info("heard utterance", "text", text)

	cleaned := StripWakeWord(text, r.cfg.WakeWord)
	decision = r.cfg.Router.Route(cleaned)

	if decision.Action != intent.ActionNone {
		actionErr := r.cfg.Actions.Dispatch(ctx, decision)
		r.cfg.Bridge.RecordActionResult(actionErr == nil)
		if actionErr != nil {
			log.Warn("action dispatch failed",
				"action", decision.Action, "error", actionErr)
			turnErr = fmt.Errorf("dispatch %v: %w", decision.Action, actionErr)
		} else {
			r.applyStateChange(decision)
		}
	}

	reply := r.buildReply(ctx, log, cleaned, decision, &turnErr)
	r.speak(ctx, log, reply, &turnErr)
}

// buildReply picks the spoken reply. Every turn goes to the reasoning model
// with the device snapshot as context, so routed commands still get a
// conversational answer; the canned confirmation is the fallback when the
// model fails or returns nothing. With localReplies set, routed commands
// skip the round trip and speak the confirmation directly.
func (r *Runner) buildReply(ctx context.Context, log *slog.Logger, utterance string, decision intent.Decision, turnErr *error) string {
	if r.localReplies && decision.Action != intent.ActionNone {
		return intent.ResponseText(decision)
	}

	snap, _ := r.cfg.State.Snapshot()
	reasonStart := time.Now()
	reply, err := r.cfg.Provider.Reason(ctx, utterance, snap)
	r.cfg.Metrics.ReasonDuration.Record(ctx, time.Since(reasonStart).Seconds())
	if err != nil {
		log.Warn("reasoning failed", "error", err)
		r.cfg.Metrics.RecordProviderError(ctx, "speech", "reason")
		if *turnErr == nil {
			*turnErr = fmt.Errorf("reason: %w", err)
		}
	}
	if strings.TrimSpace(reply) == "" {
		return intent.ResponseText(decision)
	}
	return reply
}

// speak synthesizes reply and plays it, blocking for the estimated playback
// duration so the device does not listen to its own voice.
func (r *Runner) speak(ctx context.Context, log *slog.Logger, reply string, turnErr *error) {
	r.cfg.Status.Set(status.StateSpeaking)

	ttsStart := time.Now()
	wav, err := r.cfg.Provider.Synthesize(ctx, reply, r.cfg.Voice)
	r.cfg.Metrics.TTSDuration.Record(ctx, time.Since(ttsStart).Seconds())
	r.cfg.Bridge.RecordTTSResult(err == nil)
	if err != nil {
		log.Error("synthesis failed", "error", err)
		r.cfg.Metrics.RecordProviderError(ctx, "speech", "tts")
		if *turnErr == nil {
			*turnErr = fmt.Errorf("synthesize: %w", err)
		}
		return
	}

	if r.cfg.State.Muted() {
		log.Debug("muted, skipping playback", "bytes", len(wav))
		return
	}

	r.cfg.State.SetPlaying(true)
	defer r.cfg.State.SetPlaying(false)
	if err := r.cfg.Player.Play(ctx, wav); err != nil {
		log.Warn("playback failed", "error", err)
		return
	}
	r.wait(ctx, audio.EstimatePlayback(len(wav)))
}

// applyStateChange mirrors a successfully dispatched action into the device
// snapshot.
func (r *Runner) applyStateChange(decision intent.Decision) {
	switch decision.Action {
	case intent.ActionLightsOn:
		r.cfg.State.SetLights(true)
	case intent.ActionLightsOff:
		r.cfg.State.SetLights(false)
	case intent.ActionMediaPlay, intent.ActionMediaResume:
		r.cfg.State.SetPlaying(true)
	case intent.ActionMediaPause:
		r.cfg.State.SetPlaying(false)
	}
}

// runButton handles a pressed button: ask the reasoning model for a short
// acknowledgement and speak it, falling back to a fixed phrase when the
// model is unavailable.
func (r *Runner) runButton(ctx context.Context, id int) {
	ctx, span := observe.StartSpan(ctx, "pipeline.button",
		trace.WithAttributes(observe.Attr("button", fmt.Sprintf("%d", id))))
	defer span.End()
	log := observe.Logger(ctx).With("button", id)

	r.cfg.Bridge.RecordButton(id)
	r.cfg.Metrics.RecordWakeEvent(ctx, "button")
	r.cfg.Status.Set(status.StateThinking)

	var turnErr error
	defer func() {
		r.cfg.Bridge.RecordInteraction(turnErr)
		r.cfg.Status.Set(status.StateIdle)
	}()

	prompt := fmt.Sprintf("Someone pressed button %d. Acknowledge briefly and cheerfully.", id)
	reasonStart := time.Now()
	reply, err := r.cfg.Provider.Reason(ctx, prompt, "")
	r.cfg.Metrics.ReasonDuration.Record(ctx, time.Since(reasonStart).Seconds())
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			log.Warn("button acknowledgement failed, using fallback", "error", err)
		}
		reply = fmt.Sprintf("Button %d pressed.", id)
	}

	r.speak(ctx, log, reply, &turnErr)
	_ = r.cfg.Bridge.PublishInteraction(ctx, reply, "button", turnErr)
}

// sleepCtx blocks for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

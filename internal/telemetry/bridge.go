// Package telemetry counts interaction outcomes and publishes them to a
// remote broker.
//
// The bridge is write-mostly: the turn pipeline records events as they
// happen, and a periodic loop serialises the counters into a JSON payload
// for the broker. Publishing is strictly best effort; a broker outage never
// blocks or fails a voice interaction, the payload is just logged locally
// instead.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Publisher delivers one telemetry payload to the broker.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// Counters is a snapshot of the bridge's event counts.
type Counters struct {
	WakeEvents          uint64 `json:"wake_events"`
	SimulatedWakeEvents uint64 `json:"simulated_wake_events"`
	ButtonEvents        uint64 `json:"button_events"`
	STTSuccess          uint64 `json:"stt_success"`
	STTFailure          uint64 `json:"stt_failure"`
	TTSSuccess          uint64 `json:"tts_success"`
	TTSFailure          uint64 `json:"tts_failure"`
	ActionSuccess       uint64 `json:"action_success"`
	ActionFailure       uint64 `json:"action_failure"`
	Interactions        uint64 `json:"interactions"`
	InteractionErrors   uint64 `json:"interaction_errors"`
	LastButtonID        int    `json:"last_button_id"`
}

// metricsPayload is the wire shape of a periodic metrics publish.
type metricsPayload struct {
	DeviceID         string   `json:"deviceId"`
	TimestampMS      int64    `json:"timestamp_ms"`
	AssistantMetrics Counters `json:"assistant_metrics"`
}

// interactionPayload is the wire shape of a per-turn publish.
type interactionPayload struct {
	DeviceID    string          `json:"deviceId"`
	TimestampMS int64           `json:"timestamp_ms"`
	Interaction interactionBody `json:"interaction"`
}

type interactionBody struct {
	Transcript string `json:"transcript"`
	Action     string `json:"action"`
	Error      string `json:"error,omitempty"`
}

// Bridge accumulates counters and publishes them. Safe for concurrent use.
type Bridge struct {
	deviceID  string
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	counters Counters
}

// Option is a functional option for Bridge.
type Option func(*Bridge)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		b.now = now
	}
}

// NewBridge returns a Bridge for the given device. publisher may be nil, in
// which case payloads are only logged. A nil logger falls back to
// [slog.Default].
func NewBridge(deviceID string, publisher Publisher, logger *slog.Logger, opts ...Option) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		deviceID:  deviceID,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// RecordWake counts a wake event. simulated marks wakes triggered by a
// button or API rather than the wake-word engine.
func (b *Bridge) RecordWake(simulated bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counters.WakeEvents++
	if simulated {
		b.counters.SimulatedWakeEvents++
	}
}

// RecordButton counts a button press and remembers the button id.
func (b *Bridge) RecordButton(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counters.ButtonEvents++
	b.counters.LastButtonID = id
}

// RecordSTTResult counts a transcription outcome.
func (b *Bridge) RecordSTTResult(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ok {
		b.counters.STTSuccess++
	} else {
		b.counters.STTFailure++
	}
}

// RecordTTSResult counts a synthesis outcome.
func (b *Bridge) RecordTTSResult(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ok {
		b.counters.TTSSuccess++
	} else {
		b.counters.TTSFailure++
	}
}

// RecordActionResult counts a dispatched action outcome.
func (b *Bridge) RecordActionResult(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ok {
		b.counters.ActionSuccess++
	} else {
		b.counters.ActionFailure++
	}
}

// RecordInteraction counts a completed turn. A non-nil err also counts an
// interaction error.
func (b *Bridge) RecordInteraction(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counters.Interactions++
	if err != nil {
		b.counters.InteractionErrors++
	}
}

// Snapshot returns a copy of the current counters.
func (b *Bridge) Snapshot() Counters {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counters
}

// PublishMetrics serialises the current counters and sends them to the
// broker. A publish failure is logged together with the local snapshot and
// returned; the counters are never reset or modified by publishing.
func (b *Bridge) PublishMetrics(ctx context.Context) error {
	snap := b.Snapshot()
	payload, err := json.Marshal(metricsPayload{
		DeviceID:         b.deviceID,
		TimestampMS:      b.now().UnixMilli(),
		AssistantMetrics: snap,
	})
	if err != nil {
		return fmt.Errorf("telemetry: encode metrics: %w", err)
	}
	return b.publish(ctx, payload)
}

// PublishInteraction sends a per-turn record with the transcript, the
// resolved action name, and the turn error, if any. Best effort like
// [Bridge.PublishMetrics].
func (b *Bridge) PublishInteraction(ctx context.Context, transcript string, action string, turnErr error) error {
	body := interactionBody{Transcript: transcript, Action: action}
	if turnErr != nil {
		body.Error = turnErr.Error()
	}
	payload, err := json.Marshal(interactionPayload{
		DeviceID:    b.deviceID,
		TimestampMS: b.now().UnixMilli(),
		Interaction: body,
	})
	if err != nil {
		return fmt.Errorf("telemetry: encode interaction: %w", err)
	}
	return b.publish(ctx, payload)
}

func (b *Bridge) publish(ctx context.Context, payload []byte) error {
	if b.publisher == nil {
		b.logger.Debug("no telemetry publisher configured", "payload", string(payload))
		return nil
	}
	if err := b.publisher.Publish(ctx, payload); err != nil {
		b.logger.Warn("telemetry publish failed, keeping local snapshot",
			"error", err, "payload", string(payload))
		return fmt.Errorf("telemetry: publish: %w", err)
	}
	return nil
}

// Run publishes metrics every interval until ctx is cancelled. An interval
// of zero or less disables periodic publishing and returns immediately.
func (b *Bridge) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		b.logger.Info("periodic telemetry disabled")
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Errors are already logged; the loop keeps going.
			_ = b.PublishMetrics(ctx)
		}
	}
}

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/naphome/naphome/internal/actions"
	actmock "github.com/naphome/naphome/internal/actions/mock"
	"github.com/naphome/naphome/internal/devstate"
	"github.com/naphome/naphome/internal/intent"
	"github.com/naphome/naphome/internal/observe"
	"github.com/naphome/naphome/internal/status"
	statusmock "github.com/naphome/naphome/internal/status/mock"
	"github.com/naphome/naphome/internal/telemetry"
	telmock "github.com/naphome/naphome/internal/telemetry/mock"
	speechmock "github.com/naphome/naphome/pkg/provider/speech/mock"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePlayer records played audio.
type fakePlayer struct {
	mu     sync.Mutex
	Err    error
	played [][]byte
}

func (p *fakePlayer) Play(_ context.Context, wav []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(wav))
	copy(cp, wav)
	p.played = append(p.played, cp)
	return p.Err
}

func (p *fakePlayer) Played() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.played))
	copy(out, p.played)
	return out
}

// testEnv assembles a Runner with every collaborator mocked.
type testEnv struct {
	provider  *speechmock.Provider
	media     *actmock.Media
	lights    *actmock.Lights
	indicator *statusmock.Indicator
	tracker   *status.Tracker
	state     *devstate.Store
	publisher *telmock.Publisher
	bridge    *telemetry.Bridge
	metrics   *observe.Metrics
	reader    *sdkmetric.ManualReader
	player    *fakePlayer
	runner    *Runner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	env := &testEnv{
		provider:  &speechmock.Provider{SynthesizeResult: []byte("RIFFwav")},
		media:     &actmock.Media{},
		lights:    &actmock.Lights{},
		indicator: &statusmock.Indicator{},
		state:     devstate.NewStore("test-device"),
		publisher: &telmock.Publisher{},
		metrics:   metrics,
		reader:    reader,
		player:    &fakePlayer{},
	}
	env.tracker = status.NewTracker(env.indicator, quietLogger())
	env.bridge = telemetry.NewBridge("test-device", env.publisher, quietLogger())

	env.runner = NewRunner(RunnerConfig{
		Provider:   env.provider,
		Router:     intent.NewRouter(0),
		Actions:    actions.NewDispatcher(env.media, env.lights),
		Status:     env.tracker,
		State:      env.state,
		Bridge:     env.bridge,
		Metrics:    env.metrics,
		Player:     env.player,
		SampleRate: 16000,
		WakeWord:   "naptick",
		Voice:      "alloy",
		Logger:     quietLogger(),
	})
	// Playback pacing is pointless in tests.
	env.runner.wait = func(context.Context, time.Duration) {}
	return env
}

func wantStates(t *testing.T, got, want []status.State) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("indicator states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("indicator states = %v, want %v", got, want)
		}
	}
}

func TestRunTurnLocalIntent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.provider.TranscribeResult = "Naptick, turn the lights off"
	env.provider.ReasonResult = "Done, lights are off."

	env.runner.runTurn(context.Background(), make([]int16, 1600))

	if len(env.lights.SetCalls) != 1 || env.lights.SetCalls[0] != false {
		t.Errorf("lights calls = %v, want [false]", env.lights.SetCalls)
	}
	if len(env.provider.ReasonCalls) != 1 {
		t.Fatalf("reason calls = %d, want 1 even for a routed intent", len(env.provider.ReasonCalls))
	}
	if got := env.provider.ReasonCalls[0].Utterance; got != "turn the lights off" {
		t.Errorf("reason utterance = %q, want the routed text", got)
	}
	if len(env.provider.SynthesizeCalls) != 1 {
		t.Fatalf("synthesize calls = %d, want 1", len(env.provider.SynthesizeCalls))
	}
	if got := env.provider.SynthesizeCalls[0]; got.Text != "Done, lights are off." || got.Voice != "alloy" {
		t.Errorf("synthesize call = %+v, want the model reply with voice alloy", got)
	}
	if len(env.player.Played()) != 1 {
		t.Errorf("played %d clips, want 1", len(env.player.Played()))
	}

	snap := env.bridge.Snapshot()
	if snap.STTSuccess != 1 || snap.ActionSuccess != 1 || snap.TTSSuccess != 1 {
		t.Errorf("counters = %+v, want one success on stt, action, tts", snap)
	}
	if snap.Interactions != 1 || snap.InteractionErrors != 0 {
		t.Errorf("interactions = %d errors = %d, want 1/0", snap.Interactions, snap.InteractionErrors)
	}

	wantStates(t, env.indicator.States(),
		[]status.State{status.StateThinking, status.StateSpeaking, status.StateIdle})

	payloads := env.publisher.Payloads()
	if len(payloads) != 1 {
		t.Fatalf("published %d payloads, want 1", len(payloads))
	}
	var p struct {
		Interaction struct {
			Transcript string `json:"transcript"`
			Action     string `json:"action"`
			Error      string `json:"error"`
		} `json:"interaction"`
	}
	if err := json.Unmarshal(payloads[0], &p); err != nil {
		t.Fatalf("unmarshal interaction payload: %v", err)
	}
	if p.Interaction.Transcript != "Naptick, turn the lights off" || p.Interaction.Action != "lights_off" || p.Interaction.Error != "" {
		t.Errorf("interaction payload = %+v", p.Interaction)
	}
}

func TestRunTurnLocalIntentReasonFallback(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.provider.TranscribeResult = "turn the lights off"
	env.provider.ReasonErr = errors.New("model offline")

	env.runner.runTurn(context.Background(), make([]int16, 1600))

	if len(env.lights.SetCalls) != 1 || env.lights.SetCalls[0] != false {
		t.Errorf("lights calls = %v, want [false]", env.lights.SetCalls)
	}
	if len(env.provider.SynthesizeCalls) != 1 {
		t.Fatalf("synthesize calls = %d, want 1", len(env.provider.SynthesizeCalls))
	}
	if got := env.provider.SynthesizeCalls[0].Text; got != "Lights off." {
		t.Errorf("spoke %q, want the canned confirmation when the model is down", got)
	}
	snap := env.bridge.Snapshot()
	if snap.ActionSuccess != 1 || snap.InteractionErrors != 1 {
		t.Errorf("counters = %+v, want the action done and the model failure counted", snap)
	}
}

func TestRunTurnStripsWakeWordBeforeReasoning(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.provider.TranscribeResult = "Naptick, what's the weather like?"
	env.provider.ReasonResult = "Looks sunny today."

	env.runner.runTurn(context.Background(), make([]int16, 1600))

	if len(env.provider.ReasonCalls) != 1 {
		t.Fatalf("reason calls = %d, want 1", len(env.provider.ReasonCalls))
	}
	call := env.provider.ReasonCalls[0]
	if call.Utterance != "what's the weather like?" {
		t.Errorf("reason utterance = %q, want wake word stripped", call.Utterance)
	}
	if !strings.Contains(call.DeviceState, "test-device") {
		t.Errorf("device state = %q, want snapshot with device name", call.DeviceState)
	}
	if got := env.provider.SynthesizeCalls[0].Text; got != "Looks sunny today." {
		t.Errorf("spoke %q, want the model reply", got)
	}
}

func TestRunTurnReasonFailureFallsBack(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.provider.TranscribeResult = "tell me a story"
	env.provider.ReasonErr = errors.New("model offline")

	env.runner.runTurn(context.Background(), make([]int16, 1600))

	if len(env.provider.SynthesizeCalls) != 1 {
		t.Fatalf("synthesize calls = %d, want 1", len(env.provider.SynthesizeCalls))
	}
	if got := env.provider.SynthesizeCalls[0].Text; got != "Sorry, I didn't catch that." {
		t.Errorf("spoke %q, want the fallback phrase", got)
	}
	snap := env.bridge.Snapshot()
	if snap.InteractionErrors != 1 {
		t.Errorf("interaction errors = %d, want 1", snap.InteractionErrors)
	}
}

func TestRunTurnTranscriptionFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.provider.TranscribeErr = errors.New("upstream 500")

	env.runner.runTurn(context.Background(), make([]int16, 1600))

	if len(env.provider.SynthesizeCalls) != 0 {
		t.Errorf("synthesize calls = %d, want 0 after failed transcription", len(env.provider.SynthesizeCalls))
	}
	snap := env.bridge.Snapshot()
	if snap.STTFailure != 1 || snap.InteractionErrors != 1 {
		t.Errorf("counters = %+v, want one stt failure and one interaction error", snap)
	}
	wantStates(t, env.indicator.States(),
		[]status.State{status.StateThinking, status.StateError, status.StateIdle})
}

func TestRunTurnEmptyTranscriptEndsQuietly(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.provider.TranscribeResult = "   "

	env.runner.runTurn(context.Background(), make([]int16, 1600))

	if len(env.provider.ReasonCalls) != 0 || len(env.provider.SynthesizeCalls) != 0 {
		t.Error("empty transcript must not reach reasoning or synthesis")
	}
	snap := env.bridge.Snapshot()
	if snap.Interactions != 1 || snap.InteractionErrors != 0 {
		t.Errorf("interactions = %d errors = %d, want 1/0", snap.Interactions, snap.InteractionErrors)
	}
}

func TestRunTurnMutedSkipsPlayback(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.provider.TranscribeResult = "turn on the lights"
	env.state.SetMuted(true)

	env.runner.runTurn(context.Background(), make([]int16, 1600))

	if len(env.provider.SynthesizeCalls) != 1 {
		t.Fatalf("synthesize calls = %d, want 1 even when muted", len(env.provider.SynthesizeCalls))
	}
	if len(env.player.Played()) != 0 {
		t.Errorf("played %d clips, want 0 while muted", len(env.player.Played()))
	}
	if env.bridge.Snapshot().TTSSuccess != 1 {
		t.Error("synthesis success not counted")
	}
}

func TestRunTurnActionFailureStillReplies(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.provider.TranscribeResult = "lights off"
	env.lights.SetErr = errors.New("relay unreachable")

	env.runner.runTurn(context.Background(), make([]int16, 1600))

	if got := env.provider.SynthesizeCalls[0].Text; got != "Lights off." {
		t.Errorf("spoke %q, want the canned confirmation", got)
	}
	snap := env.bridge.Snapshot()
	if snap.ActionFailure != 1 || snap.InteractionErrors != 1 {
		t.Errorf("counters = %+v, want one action failure and one interaction error", snap)
	}
}

func TestRunButtonUsesModelAcknowledgement(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.provider.ReasonResult = "Got it, button four!"

	env.runner.runButton(context.Background(), 4)

	if len(env.provider.ReasonCalls) != 1 {
		t.Fatalf("reason calls = %d, want 1", len(env.provider.ReasonCalls))
	}
	want := "Someone pressed button 4. Acknowledge briefly and cheerfully."
	if got := env.provider.ReasonCalls[0].Utterance; got != want {
		t.Errorf("prompt = %q, want %q", got, want)
	}
	if got := env.provider.SynthesizeCalls[0].Text; got != "Got it, button four!" {
		t.Errorf("spoke %q", got)
	}
	snap := env.bridge.Snapshot()
	if snap.ButtonEvents != 1 || snap.LastButtonID != 4 {
		t.Errorf("counters = %+v, want one button event with id 4", snap)
	}
}

func TestRunButtonFallbackPhrase(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.provider.ReasonErr = errors.New("model offline")

	env.runner.runButton(context.Background(), 3)

	if got := env.provider.SynthesizeCalls[0].Text; got != "Button 3 pressed." {
		t.Errorf("spoke %q, want the fixed fallback", got)
	}
}

func TestSubmitButtonQueueBound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for i := 0; i < buttonQueueSize; i++ {
		if !env.runner.SubmitButton(i) {
			t.Fatalf("press %d rejected before the queue filled", i)
		}
	}
	if env.runner.SubmitButton(99) {
		t.Error("press accepted on a full queue")
	}
}

func TestTrySubmitRejectsWithoutWorker(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	if env.runner.TrySubmit(make([]int16, 16)) {
		t.Error("submit accepted with no worker parked on intake")
	}
}

package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/naphome/naphome/pkg/capture"
	capmock "github.com/naphome/naphome/pkg/capture/mock"
	femock "github.com/naphome/naphome/pkg/frontend/mock"
	speechmock "github.com/naphome/naphome/pkg/provider/speech/mock"
)

// validConfig returns a Config that passes New's validation, wired to the
// given env and source.
func validConfig(env *testEnv, src capture.Source) Config {
	return Config{
		Source:   src,
		Engine:   &femock.Engine{ChunkSize: 512, Channels: 1},
		Provider: env.provider,
		Router:   env.runner.cfg.Router,
		Actions:  env.runner.cfg.Actions,
		Status:   env.tracker,
		State:    env.state,
		Bridge:   env.bridge,
		Metrics:  env.metrics,
		Player:   env.player,
		WakeWord: "naptick",
		Voice:    "alloy",
		Logger:   quietLogger(),
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	src := &capmock.Source{}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing source", func(c *Config) { c.Source = nil }, "Source"},
		{"missing engine", func(c *Config) { c.Engine = nil }, "Engine"},
		{"missing provider", func(c *Config) { c.Provider = nil }, "Provider"},
		{"missing router", func(c *Config) { c.Router = nil }, "Router"},
		{"missing actions", func(c *Config) { c.Actions = nil }, "Actions"},
		{"missing status", func(c *Config) { c.Status = nil }, "Status"},
		{"missing state", func(c *Config) { c.State = nil }, "State"},
		{"missing bridge", func(c *Config) { c.Bridge = nil }, "Bridge"},
		{"missing metrics", func(c *Config) { c.Metrics = nil }, "Metrics"},
		{"missing player", func(c *Config) { c.Player = nil }, "Player"},
		{"bad sample rate", func(c *Config) { c.Source = &capmock.Source{Rate: -1} }, "sample rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig(env, src)
			tt.mutate(&cfg)
			_, err := New(cfg)
			if err == nil {
				t.Fatal("New succeeded, want validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %s", err, tt.want)
			}
		})
	}

	if _, err := New(validConfig(env, src)); err != nil {
		t.Errorf("New with a complete config failed: %v", err)
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.provider.TranscribeResult = "naptick turn on the lights"

	loud := block(2000, 512)
	quiet := block(0, 512)
	src := &capmock.Source{
		Blocks:    [][]int16{loud, loud, loud, quiet, quiet},
		ReadDelay: 5 * time.Millisecond,
	}

	p, err := New(validConfig(env, src))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.runner.wait = func(context.Context, time.Duration) {}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	waitFor(t, "the utterance turn to finish", func() bool {
		return env.bridge.Snapshot().Interactions == 1
	})

	if calls := env.provider.TranscribeCalls; len(calls) != 1 || calls[0].Samples != 1536 {
		t.Errorf("transcribe calls = %+v, want one call with 1536 samples", calls)
	}
	if calls := env.lights.SetCalls; len(calls) != 1 || !calls[0] {
		t.Errorf("lights calls = %v, want [true]", calls)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if src.ReleaseCount != 1 {
		t.Errorf("capture released %d times, want 1", src.ReleaseCount)
	}
}

// blockingProvider parks inside Transcribe until released, so a test can
// hold a turn in flight.
type blockingProvider struct {
	*speechmock.Provider
	entered chan struct{}
	release chan struct{}
}

func (b *blockingProvider) Transcribe(ctx context.Context, pcm []int16, rate int) (string, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.Provider.Transcribe(ctx, pcm, rate)
}

func TestPipelineDropsUtteranceMidTurn(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	provider := &blockingProvider{
		Provider: env.provider,
		entered:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	env.provider.TranscribeResult = "hello there"
	env.provider.ReasonResult = "Hi!"

	loud := block(2000, 512)
	quiet := block(0, 512)
	// Two utterances back to back; the second lands while the first is
	// still being transcribed.
	src := &capmock.Source{
		Blocks:    [][]int16{loud, quiet, loud, quiet},
		ReadDelay: 5 * time.Millisecond,
	}

	cfg := validConfig(env, src)
	cfg.Provider = provider
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.runner.wait = func(context.Context, time.Duration) {}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case <-provider.entered:
	case <-time.After(3 * time.Second):
		t.Fatal("first turn never reached transcription")
	}

	waitFor(t, "the second utterance to be dropped", func() bool {
		return findCounterSum(collectMetrics(t, env), "naphome.turns.dropped") == 1
	})

	close(provider.release)
	waitFor(t, "the first turn to finish", func() bool {
		return env.bridge.Snapshot().Interactions == 1
	})

	if calls := env.provider.TranscribeCalls; len(calls) != 1 {
		t.Errorf("transcribe calls = %d, want 1; the dropped utterance must not be processed", len(calls))
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestSimulateWake(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	var gotWord string
	gotIndex := 0

	cfg := validConfig(env, &capmock.Source{})
	cfg.OnWake = func(word string, index int) {
		gotWord = word
		gotIndex = index
	}
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	p.SimulateWake(context.Background())

	if gotWord != "" || gotIndex != -1 {
		t.Errorf("OnWake called with (%q, %d), want (\"\", -1)", gotWord, gotIndex)
	}
	snap := env.bridge.Snapshot()
	if snap.SimulatedWakeEvents != 1 || snap.WakeEvents != 1 {
		t.Errorf("counters = %+v, want one simulated wake", snap)
	}
}

func TestPressButtonQueues(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	p, err := New(validConfig(env, &capmock.Source{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !p.PressButton(2) {
		t.Error("press rejected on an empty queue")
	}
}

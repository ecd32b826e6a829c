package pipeline

import (
	"errors"
	"testing"

	"github.com/naphome/naphome/pkg/frontend"
	femock "github.com/naphome/naphome/pkg/frontend/mock"
)

func block(v int16, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestAnalyzerClampsInvalidGeometry(t *testing.T) {
	t.Parallel()

	engine := &femock.Engine{ChunkSize: 0, Channels: 0}
	a := newAnalyzer(engine, 100, 50, nil)
	if a.chunkSize != fallbackChunkSize || a.channels != fallbackChannels {
		t.Fatalf("clamped geometry = %d/%d, want %d/%d",
			a.chunkSize, a.channels, fallbackChunkSize, fallbackChannels)
	}

	events, err := a.process(block(200, fallbackChunkSize))
	if err != nil {
		t.Fatalf("process error: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d events, want 1", len(events))
	}
}

func TestAnalyzerStaging(t *testing.T) {
	t.Parallel()

	engine := &femock.Engine{ChunkSize: 4, Channels: 1}
	a := newAnalyzer(engine, 100, 0, nil)

	events, err := a.process(block(0, 10))
	if err != nil {
		t.Fatalf("process error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if len(a.staging) != 2 {
		t.Errorf("staged remainder = %d samples, want 2", len(a.staging))
	}

	events, err = a.process(block(0, 2))
	if err != nil {
		t.Fatalf("process error: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d events after topping up, want 1", len(events))
	}
	if engine.Fed() != 3 {
		t.Errorf("engine fed %d chunks, want 3", engine.Fed())
	}
}

func TestAnalyzerEnergyFallback(t *testing.T) {
	t.Parallel()

	engine := &femock.Engine{ChunkSize: 4, Channels: 1}
	a := newAnalyzer(engine, 100, 50, nil)

	tests := []struct {
		name  string
		level int16
		want  bool
	}{
		{"loud", 1000, true},
		{"above bypass floor", 75, true},
		{"quiet", 10, false},
	}
	for _, tt := range tests {
		events, err := a.process(block(tt.level, 4))
		if err != nil {
			t.Fatalf("%s: process error: %v", tt.name, err)
		}
		if len(events) != 1 {
			t.Fatalf("%s: got %d events", tt.name, len(events))
		}
		if events[0].voiceActive != tt.want {
			t.Errorf("%s: voiceActive = %v, want %v (energy %.1f)",
				tt.name, events[0].voiceActive, tt.want, events[0].energy)
		}
	}
}

func TestAnalyzerBypassDisabled(t *testing.T) {
	t.Parallel()

	engine := &femock.Engine{ChunkSize: 4, Channels: 1}
	a := newAnalyzer(engine, 100, 0, nil)

	events, err := a.process(block(75, 4))
	if err != nil {
		t.Fatalf("process error: %v", err)
	}
	if events[0].voiceActive {
		t.Error("voiceActive = true with bypass disabled, want false")
	}
}

func TestAnalyzerNativeVADWins(t *testing.T) {
	t.Parallel()

	engine := &femock.Engine{
		ChunkSize: 4,
		Channels:  1,
		Results: []frontend.Result{
			{VoiceActive: false, VoiceActivityValid: true},
		},
	}
	a := newAnalyzer(engine, 100, 50, nil)

	// Loud audio, but the engine's native VAD says no speech.
	events, err := a.process(block(1000, 4))
	if err != nil {
		t.Fatalf("process error: %v", err)
	}
	if events[0].voiceActive {
		t.Error("voiceActive = true, want native VAD decision to win")
	}
}

func TestAnalyzerStereoDownmix(t *testing.T) {
	t.Parallel()

	engine := &femock.Engine{ChunkSize: 2, Channels: 2}
	a := newAnalyzer(engine, 100, 0, nil)

	events, err := a.process([]int16{100, 300, 500, 700})
	if err != nil {
		t.Fatalf("process error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	chunk := events[0].chunk
	if len(chunk) != 2 || chunk[0] != 200 || chunk[1] != 600 {
		t.Errorf("mono chunk = %v, want [200 600]", chunk)
	}
}

func TestAnalyzerWakeHitPassthrough(t *testing.T) {
	t.Parallel()

	engine := &femock.Engine{
		ChunkSize: 4,
		Channels:  1,
		Results: []frontend.Result{
			{WakeHit: true, WakeWord: "naptick", WakeWordIndex: 1, TriggerChannel: 2},
		},
	}
	a := newAnalyzer(engine, 100, 0, nil)

	events, err := a.process(block(0, 4))
	if err != nil {
		t.Fatalf("process error: %v", err)
	}
	ev := events[0]
	if !ev.wakeHit || ev.wakeWord != "naptick" || ev.wakeWordIndex != 1 || ev.triggerChannel != 2 {
		t.Errorf("event = %+v, want wake hit details passed through", ev)
	}
}

func TestAnalyzerFeedErrorStopsProcessing(t *testing.T) {
	t.Parallel()

	engine := &femock.Engine{ChunkSize: 4, Channels: 1, FeedErr: errors.New("engine stalled")}
	a := newAnalyzer(engine, 100, 0, nil)

	events, err := a.process(block(0, 6))
	if err == nil {
		t.Fatal("process error = nil, want feed error")
	}
	if len(events) != 0 {
		t.Errorf("got %d events, want 0", len(events))
	}
	// The failed block is consumed; the remainder past it stays staged.
	if len(a.staging) != 2 {
		t.Errorf("staging = %d samples, want 2", len(a.staging))
	}
}

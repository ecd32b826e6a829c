// Package status tracks the interaction state of the device and mirrors it
// onto a visual indicator.
//
// The state machine is tiny on purpose: one device-wide state, set by the
// turn pipeline as an interaction progresses (listening, thinking, speaking)
// and reset to idle when the turn ends, with an error state for failed turns.
package status

import (
	"fmt"
	"log/slog"
	"sync"
)

// State is the device's current interaction phase.
type State int

const (
	// StateIdle means the device is waiting for a wake word.
	StateIdle State = iota
	// StateListening means an utterance is being captured.
	StateListening
	// StateThinking means the utterance is being transcribed and reasoned
	// about.
	StateThinking
	// StateSpeaking means the reply is being played back.
	StateSpeaking
	// StateError means the last turn failed; cleared on the next state
	// change.
	StateError
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateThinking:
		return "thinking"
	case StateSpeaking:
		return "speaking"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Indicator receives state changes, typically to drive an LED ring or
// on-screen indicator. Implementations must not block; slow sinks delay the
// turn pipeline.
type Indicator interface {
	Indicate(state State)
}

// Tracker holds the current state and fans changes out to an optional
// indicator. Safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	state     State
	indicator Indicator
	logger    *slog.Logger
}

// NewTracker returns a Tracker starting in [StateIdle]. indicator may be
// nil. A nil logger falls back to [slog.Default].
func NewTracker(indicator Indicator, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{indicator: indicator, logger: logger}
}

// Set transitions to the given state and notifies the indicator. Setting the
// current state again is a no-op so repeated idle resets do not flap the
// indicator.
func (t *Tracker) Set(state State) {
	t.mu.Lock()
	if t.state == state {
		t.mu.Unlock()
		return
	}
	prev := t.state
	t.state = state
	indicator := t.indicator
	t.mu.Unlock()

	t.logger.Debug("state change", "from", prev, "to", state)
	if indicator != nil {
		indicator.Indicate(state)
	}
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Package mock provides a mock status indicator for testing.
package mock

import (
	"sync"

	"github.com/naphome/naphome/internal/status"
)

// Indicator records every state it is asked to show.
type Indicator struct {
	mu     sync.Mutex
	states []status.State
}

var _ status.Indicator = (*Indicator)(nil)

// Indicate implements status.Indicator.
func (i *Indicator) Indicate(state status.State) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.states = append(i.states, state)
}

// States returns a copy of the recorded state changes in order.
func (i *Indicator) States() []status.State {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]status.State, len(i.states))
	copy(out, i.states)
	return out
}

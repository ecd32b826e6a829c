// Package mock provides a scripted test double for the frontend package.
//
// Script Results ahead of time; each Fetch pops the next one. Fed chunks are
// recorded (copied) for inspection.
package mock

import (
	"sync"

	"github.com/naphome/naphome/pkg/frontend"
)

// Engine is a mock implementation of frontend.Engine.
type Engine struct {
	mu sync.Mutex

	// ChunkSize and Channels are reported by the introspection methods.
	// Zero values are reported as-is so clamping behaviour can be tested.
	ChunkSize int
	Channels  int

	// FeedErr, if non-nil, is returned by every Feed call.
	FeedErr error

	// Results is the script consumed by successive Fetch calls. A Fetch
	// beyond the script returns ok=false.
	Results []frontend.Result

	// FedChunks records a copy of every chunk passed to Feed.
	FedChunks [][]int16

	next int
}

var _ frontend.Engine = (*Engine)(nil)

// Feed records the chunk and returns FeedErr.
func (e *Engine) Feed(chunk []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([]int16, len(chunk))
	copy(cp, chunk)
	e.FedChunks = append(e.FedChunks, cp)
	return e.FeedErr
}

// Fetch pops the next scripted Result.
func (e *Engine) Fetch() (frontend.Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.next >= len(e.Results) {
		return frontend.Result{}, false
	}
	r := e.Results[e.next]
	e.next++
	return r, true
}

// FeedChunkSize implements frontend.Engine.
func (e *Engine) FeedChunkSize() int { return e.ChunkSize }

// FeedChannels implements frontend.Engine.
func (e *Engine) FeedChannels() int { return e.Channels }

// Fed returns the number of chunks fed so far. Thread-safe.
func (e *Engine) Fed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.FedChunks)
}

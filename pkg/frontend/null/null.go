// Package null provides an [frontend.Engine] that performs no processing.
//
// It stands in for the real front end on hosts without the vendor runtime,
// typically the simulated-capture setup used during bring-up. It never
// reports a wake hit and carries no native voice-activity decision, so wake
// events come from the simulation API and voice activity from the adapter's
// energy fallback.
package null

import "github.com/naphome/naphome/pkg/frontend"

const defaultChunkSize = 512

// Engine is a pass-through front end.
type Engine struct {
	chunkSize int
	channels  int
}

var _ frontend.Engine = (*Engine)(nil)

// New returns an Engine expecting interleaved chunks of the given channel
// count. A channel count below one is treated as mono.
func New(channels int) *Engine {
	if channels < 1 {
		channels = 1
	}
	return &Engine{chunkSize: defaultChunkSize, channels: channels}
}

// Feed implements [frontend.Engine]. The audio is discarded.
func (e *Engine) Feed(chunk []int16) error { return nil }

// Fetch implements [frontend.Engine]. It never has a result.
func (e *Engine) Fetch() (frontend.Result, bool) { return frontend.Result{}, false }

// FeedChunkSize implements [frontend.Engine].
func (e *Engine) FeedChunkSize() int { return e.chunkSize }

// FeedChannels implements [frontend.Engine].
func (e *Engine) FeedChannels() int { return e.channels }

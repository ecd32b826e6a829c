// Package frontend defines the interface to the external audio front end —
// the opaque processing stage (echo cancellation, beamforming, noise
// suppression, wake-word classification) that sits between raw capture and
// the dispatch pipeline.
//
// The front end operates on a fixed feed/fetch cycle: the adapter feeds one
// chunk of FeedChunkSize × FeedChannels samples, then fetches at most one
// Result. Fetch is non-blocking; the absence of a result for a given cycle
// is normal, not an error.
package frontend

// Result is the per-chunk output of the front end.
type Result struct {
	// WakeHit reports that the wake-word classifier fired on this chunk.
	WakeHit bool

	// WakeWord is the human-readable label of the detected word, when known.
	WakeWord string

	// WakeWordIndex identifies the word within the loaded model.
	WakeWordIndex int

	// TriggerChannel is the microphone channel that triggered detection.
	TriggerChannel int

	// VoiceActive reports the native voice-activity decision for this chunk.
	// Only meaningful when VoiceActivityValid is true; engines without a
	// native VAD stage leave it false and the adapter falls back to an
	// energy estimate.
	VoiceActive bool

	// VoiceActivityValid reports whether VoiceActive carries a native
	// decision.
	VoiceActivityValid bool
}

// Engine is the abstraction over an audio front end.
//
// Implementations need not be safe for concurrent use: the front-end
// adapter drives Feed and Fetch from a single goroutine.
type Engine interface {
	// Feed delivers one chunk of interleaved PCM to the front end. The chunk
	// length must equal FeedChunkSize() × FeedChannels().
	Feed(chunk []int16) error

	// Fetch returns the next available Result. ok is false when the front
	// end has nothing for this cycle.
	Fetch() (res Result, ok bool)

	// FeedChunkSize reports the per-channel chunk length the engine expects.
	FeedChunkSize() int

	// FeedChannels reports the interleaved channel count the engine expects.
	FeedChannels() int
}

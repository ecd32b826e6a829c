// Package capture defines the microphone Source interface for the naphome
// pipeline.
//
// A Source wraps whatever hardware or transport delivers raw PCM frames (an
// I2S codec behind a platform driver, a network stream, or the simulated
// source in the sim subpackage). Access is cooperative-exclusive: a caller
// acquires a Guard, reads through it, and releases it, so the legacy
// block-capture path and the continuous capture loop never interleave reads.
//
// Implementations must be safe for concurrent Acquire calls; a Guard itself
// is owned by a single goroutine between Acquire and Release.
package capture

import "context"

// Guard represents an exclusive hold on the microphone source. The holder
// must call Release exactly once when finished; Release must be safe to call
// after a failed Read.
type Guard interface {
	// Read fills dst with up to len(dst) samples and returns the number of
	// samples written. The read is bounded by ctx: implementations must
	// return promptly with the samples read so far (possibly zero) when ctx
	// expires. A zero-sample return with a nil error means no data was
	// available within the bound and is not a failure.
	Read(ctx context.Context, dst []int16) (int, error)

	// Release ends exclusive access. After Release, Read returns an error.
	Release()
}

// Source is the abstraction over a microphone input.
type Source interface {
	// Acquire takes exclusive access to the source, waiting no longer than
	// ctx allows. Returns an error if the source is unavailable or ctx
	// expires first.
	Acquire(ctx context.Context) (Guard, error)

	// SampleRate reports the source's native sample rate in Hz.
	SampleRate() int

	// Channels reports the number of interleaved channels per frame.
	Channels() int
}

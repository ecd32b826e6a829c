// Package audio provides the basic PCM types and helpers shared across the
// naphome voice pipeline: the Frame transport unit, per-channel level
// metering for the visual indicator, channel downmixing, WAV encoding for
// the remote speech provider, and playback-duration estimation.
package audio

import "time"

// Frame represents a single block of PCM audio flowing through the pipeline.
// Frames are the atomic unit of audio transport — captured from the
// microphone source, staged into the front end, and accumulated into
// utterances. A Frame is owned by the capture loop until it is handed to a
// consumer and is never mutated after handoff.
type Frame struct {
	// Samples holds signed 16-bit PCM, interleaved when Channels > 1.
	Samples []int16

	// SampleRate in Hz (e.g., 16000 for the far-field capture path).
	SampleRate int

	// Channels: 1 for mono, 2 for the stereo microphone pair.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the play time this frame covers. Returns zero when the
// frame carries no format information.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	frames := len(f.Samples) / f.Channels
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// BytesLE returns the samples as little-endian byte pairs, the layout the
// remote speech provider and the WAV encoder expect.
func BytesLE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// StereoToMono averages the L+R pair of each interleaved stereo frame into a
// single mono sample. Uses int32 arithmetic to prevent overflow.
func StereoToMono(samples []int16) []int16 {
	frames := len(samples) / 2
	out := make([]int16, frames)
	for i := range frames {
		out[i] = int16((int32(samples[i*2]) + int32(samples[i*2+1])) / 2)
	}
	return out
}

package audio

import (
	"encoding/binary"
	"time"
)

// wav header constants for 16-bit PCM.
const (
	wavHeaderBytes   = 44
	wavBitsPerSample = 16
)

// playback timing constants. TTS audio is 16 kHz mono 16-bit PCM, so every
// 32 bytes cover one millisecond; the extra buffer absorbs the playback
// sink's startup latency.
const (
	playbackBytesPerMs = 32
	playbackPadding    = 500 * time.Millisecond
)

// EncodeWAV wraps mono 16-bit PCM samples in a minimal RIFF/WAVE container.
// The remote transcription endpoint requires a self-describing container
// rather than raw PCM.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataBytes := len(samples) * 2
	buf := make([]byte, wavHeaderBytes+dataBytes)

	byteRate := sampleRate * wavBitsPerSample / 8

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataBytes))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(buf[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], 2) // block align
	binary.LittleEndian.PutUint16(buf[34:36], wavBitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataBytes))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[wavHeaderBytes+i*2:], uint16(s))
	}
	return buf
}

// EstimatePlayback returns a conservative estimate of how long a synthesized
// audio payload takes to play, derived from its size plus a fixed startup
// buffer. The playback sink reports no completion event, so the turn
// orchestrator blocks for this duration before clearing the speaking
// indicator.
func EstimatePlayback(payloadBytes int) time.Duration {
	if payloadBytes <= 0 {
		return playbackPadding
	}
	return time.Duration(payloadBytes/playbackBytesPerMs)*time.Millisecond + playbackPadding
}

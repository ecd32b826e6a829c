package pipeline

import "log/slog"

// UtteranceBuffer accumulates speech samples between voice-activity edges.
//
// The backing array is allocated lazily on the first append after a [Take],
// so an idle device holds no utterance memory. The capacity is fixed;
// appends past it are dropped rather than grown, bounding the cost of an
// utterance that never ends.
type UtteranceBuffer struct {
	samples  []int16
	capacity int
	logger   *slog.Logger
	warned   bool
}

// NewUtteranceBuffer returns a buffer holding at most capacity samples. A
// nil logger falls back to [slog.Default].
func NewUtteranceBuffer(capacity int, logger *slog.Logger) *UtteranceBuffer {
	if logger == nil {
		logger = slog.Default()
	}
	return &UtteranceBuffer{capacity: capacity, logger: logger}
}

// Append adds chunk to the buffer. Samples past the capacity are dropped,
// with a single warning per utterance.
func (b *UtteranceBuffer) Append(chunk []int16) {
	if b.samples == nil {
		b.samples = make([]int16, 0, b.capacity)
	}

	room := b.capacity - len(b.samples)
	if room <= 0 {
		if !b.warned {
			b.logger.Warn("utterance buffer full, dropping samples",
				"capacity", b.capacity)
			b.warned = true
		}
		return
	}
	if len(chunk) > room {
		if !b.warned {
			b.logger.Warn("utterance buffer full, dropping samples",
				"capacity", b.capacity)
			b.warned = true
		}
		chunk = chunk[:room]
	}
	b.samples = append(b.samples, chunk...)
}

// Len returns the number of buffered samples.
func (b *UtteranceBuffer) Len() int {
	return len(b.samples)
}

// Take returns the buffered samples and resets the buffer. Ownership of the
// returned slice transfers to the caller; the next append allocates fresh
// backing memory.
func (b *UtteranceBuffer) Take() []int16 {
	out := b.samples
	b.samples = nil
	b.warned = false
	return out
}

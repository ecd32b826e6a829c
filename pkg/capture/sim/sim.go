// Package sim provides a simulated microphone source for development and
// bring-up on hosts without audio hardware. It produces either silence or a
// fixed-frequency tone at a configurable amplitude, paced in real time so
// the capture loop behaves as it would against a real device.
package sim

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/naphome/naphome/pkg/capture"
)

// Source generates synthetic PCM. The zero value is unusable; use New.
type Source struct {
	rate     int
	channels int
	freqHz   float64
	amp      float64

	mu       sync.Mutex
	acquired bool
	phase    float64
}

var _ capture.Source = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithTone makes the source emit a sine tone at freqHz with the given peak
// amplitude (0..32767). Amplitude zero produces silence.
func WithTone(freqHz float64, amplitude float64) Option {
	return func(s *Source) {
		s.freqHz = freqHz
		s.amp = amplitude
	}
}

// WithChannels sets the interleaved channel count. Default is 1.
func WithChannels(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.channels = n
		}
	}
}

// New creates a simulated source at the given sample rate. Rates outside
// 8000–48000 Hz are clamped to 16000.
func New(sampleRate int, opts ...Option) *Source {
	if sampleRate < 8000 || sampleRate > 48000 {
		sampleRate = 16000
	}
	s := &Source{rate: sampleRate, channels: 1}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Acquire implements capture.Source. Only one guard may be live at a time.
func (s *Source) Acquire(ctx context.Context) (capture.Guard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acquired {
		return nil, errors.New("sim: source already acquired")
	}
	s.acquired = true
	return &guard{src: s}, nil
}

// SampleRate implements capture.Source.
func (s *Source) SampleRate() int { return s.rate }

// Channels implements capture.Source.
func (s *Source) Channels() int { return s.channels }

type guard struct {
	src      *Source
	released bool
}

// Read synthesises len(dst) samples, sleeping for the real-time duration
// they represent so downstream pacing matches hardware capture. The sleep is
// cut short by ctx, returning the samples generated so far.
func (g *guard) Read(ctx context.Context, dst []int16) (int, error) {
	g.src.mu.Lock()
	if g.released {
		g.src.mu.Unlock()
		return 0, errors.New("sim: read after release")
	}

	frames := len(dst) / g.src.channels
	step := 2 * math.Pi * g.src.freqHz / float64(g.src.rate)
	for i := 0; i < frames; i++ {
		var v int16
		if g.src.amp > 0 {
			v = int16(g.src.amp * math.Sin(g.src.phase))
			g.src.phase += step
		}
		for c := 0; c < g.src.channels; c++ {
			dst[i*g.src.channels+c] = v
		}
	}
	wait := time.Duration(frames) * time.Second / time.Duration(g.src.rate)
	g.src.mu.Unlock()

	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
	return frames * g.src.channels, nil
}

func (g *guard) Release() {
	g.src.mu.Lock()
	defer g.src.mu.Unlock()
	if !g.released {
		g.released = true
		g.src.acquired = false
	}
}

// Package mock provides test doubles for the capture package interfaces.
//
// Use Source to feed scripted sample blocks into the pipeline and inspect
// acquisition behaviour. Each call to Guard.Read pops the next scripted
// block; an exhausted script returns zero samples, mimicking a quiet
// microphone.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/naphome/naphome/pkg/capture"
)

// Source is a mock implementation of capture.Source.
type Source struct {
	mu sync.Mutex

	// Rate and Chans are reported by SampleRate and Channels. Zero values
	// default to 16000 and 1.
	Rate  int
	Chans int

	// Blocks is the script of sample blocks returned by successive Read
	// calls. Each Read consumes at most one block, truncated to fit dst.
	Blocks [][]int16

	// ReadDelay, if positive, delays each Read, pacing consumers the way a
	// real microphone would.
	ReadDelay time.Duration

	// ReadErr, if non-nil, is returned by every Read.
	ReadErr error

	// AcquireErr, if non-nil, is returned by Acquire.
	AcquireErr error

	// AcquireCount counts Acquire calls. ReleaseCount counts Release calls.
	AcquireCount int
	ReleaseCount int

	next     int
	acquired bool
}

var _ capture.Source = (*Source)(nil)

// Acquire returns a Guard bound to this source, or AcquireErr.
func (s *Source) Acquire(ctx context.Context) (capture.Guard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AcquireCount++
	if s.AcquireErr != nil {
		return nil, s.AcquireErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.acquired = true
	return &guard{src: s}, nil
}

// SampleRate implements capture.Source.
func (s *Source) SampleRate() int {
	if s.Rate == 0 {
		return 16000
	}
	return s.Rate
}

// Channels implements capture.Source.
func (s *Source) Channels() int {
	if s.Chans == 0 {
		return 1
	}
	return s.Chans
}

// guard implements capture.Guard against the scripted source.
type guard struct {
	src      *Source
	released bool
}

func (g *guard) Read(ctx context.Context, dst []int16) (int, error) {
	if d := g.src.ReadDelay; d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	g.src.mu.Lock()
	defer g.src.mu.Unlock()
	if g.released {
		return 0, errors.New("mock: read after release")
	}
	if g.src.ReadErr != nil {
		return 0, g.src.ReadErr
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if g.src.next >= len(g.src.Blocks) {
		return 0, nil
	}
	block := g.src.Blocks[g.src.next]
	g.src.next++
	n := copy(dst, block)
	return n, nil
}

func (g *guard) Release() {
	g.src.mu.Lock()
	defer g.src.mu.Unlock()
	if !g.released {
		g.released = true
		g.src.acquired = false
		g.src.ReleaseCount++
	}
}

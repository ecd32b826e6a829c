// Package playback provides speaker sinks for synthesized audio. The real
// renderer is a hardware collaborator; these implementations cover bring-up
// on hosts without one.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
)

// Discard drops every clip, logging its size. The default sink when no
// speaker is attached.
type Discard struct {
	logger *slog.Logger
}

// NewDiscard returns a discarding sink. A nil logger falls back to
// [slog.Default].
func NewDiscard(logger *slog.Logger) *Discard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discard{logger: logger}
}

// Play implements the pipeline playback sink.
func (d *Discard) Play(_ context.Context, wav []byte) error {
	d.logger.Debug("playback: discarding clip", "bytes", len(wav))
	return nil
}

// Dir writes each clip to a numbered WAV file in a directory, so spoken
// replies can be inspected after a simulated session.
type Dir struct {
	dir    string
	logger *slog.Logger
	seq    atomic.Uint64
}

// NewDir returns a sink writing into dir, creating it if needed.
func NewDir(dir string, logger *slog.Logger) (*Dir, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("playback: create %q: %w", dir, err)
	}
	return &Dir{dir: dir, logger: logger}, nil
}

// Play writes wav to the next numbered file.
func (d *Dir) Play(_ context.Context, wav []byte) error {
	n := d.seq.Add(1)
	path := filepath.Join(d.dir, fmt.Sprintf("reply-%04d.wav", n))
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return fmt.Errorf("playback: write %q: %w", path, err)
	}
	d.logger.Info("playback: clip written", "path", path, "bytes", len(wav))
	return nil
}

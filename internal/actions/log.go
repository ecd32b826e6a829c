package actions

import (
	"context"
	"log/slog"
)

// LogMedia is a MediaController for bring-up: every command succeeds and is
// only logged. Useful before a real renderer is attached.
type LogMedia struct {
	logger *slog.Logger
}

var _ MediaController = (*LogMedia)(nil)

// NewLogMedia returns a logging media controller. A nil logger falls back to
// [slog.Default].
func NewLogMedia(logger *slog.Logger) *LogMedia {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMedia{logger: logger}
}

func (m *LogMedia) Play(_ context.Context, query string) error {
	m.logger.Info("media: play", "query", query)
	return nil
}

func (m *LogMedia) Pause(context.Context) error {
	m.logger.Info("media: pause")
	return nil
}

func (m *LogMedia) Resume(context.Context) error {
	m.logger.Info("media: resume")
	return nil
}

func (m *LogMedia) ChangeVolume(_ context.Context, delta int) error {
	m.logger.Info("media: change volume", "delta", delta)
	return nil
}

// LogLights is a LightController counterpart to [LogMedia].
type LogLights struct {
	logger *slog.Logger
}

var _ LightController = (*LogLights)(nil)

// NewLogLights returns a logging light controller. A nil logger falls back
// to [slog.Default].
func NewLogLights(logger *slog.Logger) *LogLights {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogLights{logger: logger}
}

func (l *LogLights) SetLights(_ context.Context, on bool) error {
	l.logger.Info("lights: set", "on", on)
	return nil
}

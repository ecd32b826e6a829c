// Package mock provides mock controllers for testing.
package mock

import (
	"context"
	"sync"

	"github.com/naphome/naphome/internal/actions"
)

// PlayCall records a call to Play.
type PlayCall struct {
	Query string
}

// VolumeCall records a call to ChangeVolume.
type VolumeCall struct {
	Delta int
}

// Media is a mock implementation of actions.MediaController.
type Media struct {
	mu sync.Mutex

	PlayErr   error
	PauseErr  error
	ResumeErr error
	VolumeErr error

	PlayCalls   []PlayCall
	PauseCalls  int
	ResumeCalls int
	VolumeCalls []VolumeCall
}

var _ actions.MediaController = (*Media)(nil)

// Play implements actions.MediaController.
func (m *Media) Play(_ context.Context, query string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlayCalls = append(m.PlayCalls, PlayCall{Query: query})
	return m.PlayErr
}

// Pause implements actions.MediaController.
func (m *Media) Pause(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PauseCalls++
	return m.PauseErr
}

// Resume implements actions.MediaController.
func (m *Media) Resume(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResumeCalls++
	return m.ResumeErr
}

// ChangeVolume implements actions.MediaController.
func (m *Media) ChangeVolume(_ context.Context, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VolumeCalls = append(m.VolumeCalls, VolumeCall{Delta: delta})
	return m.VolumeErr
}

// Lights is a mock implementation of actions.LightController.
type Lights struct {
	mu sync.Mutex

	SetErr   error
	SetCalls []bool
}

var _ actions.LightController = (*Lights)(nil)

// SetLights implements actions.LightController.
func (l *Lights) SetLights(_ context.Context, on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.SetCalls = append(l.SetCalls, on)
	return l.SetErr
}

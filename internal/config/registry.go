package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/naphome/naphome/internal/actions"
	"github.com/naphome/naphome/pkg/capture"
	"github.com/naphome/naphome/pkg/provider/speech"
)

// ErrNotRegistered is returned by Create* methods when no factory has been
// registered under the requested backend name.
var ErrNotRegistered = errors.New("config: backend not registered")

// Registry maps backend names to their constructor functions for each
// configurable kind. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	speech  map[string]SpeechFactory
	sources map[string]func(AudioConfig) (capture.Source, error)
	media   map[string]func(ActionsConfig) (actions.MediaController, error)
	lights  map[string]func(ActionsConfig) (actions.LightController, error)
}

// SpeechFactory builds a speech provider. tools and handler may be nil when
// the device exposes no tool surface to the reasoning model.
type SpeechFactory func(cfg SpeechConfig, tools []speech.ToolDefinition, handler speech.ToolHandler) (speech.Provider, error)

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		speech:  make(map[string]SpeechFactory),
		sources: make(map[string]func(AudioConfig) (capture.Source, error)),
		media:   make(map[string]func(ActionsConfig) (actions.MediaController, error)),
		lights:  make(map[string]func(ActionsConfig) (actions.LightController, error)),
	}
}

// RegisterSpeech registers a speech provider factory under name. Subsequent
// calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSpeech(name string, factory SpeechFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speech[name] = factory
}

// RegisterSource registers a capture source factory under name.
func (r *Registry) RegisterSource(name string, factory func(AudioConfig) (capture.Source, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = factory
}

// RegisterMedia registers a media controller factory under name.
func (r *Registry) RegisterMedia(name string, factory func(ActionsConfig) (actions.MediaController, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.media[name] = factory
}

// RegisterLights registers a light controller factory under name.
func (r *Registry) RegisterLights(name string, factory func(ActionsConfig) (actions.LightController, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lights[name] = factory
}

// CreateSpeech instantiates the speech provider named in cfg, exposing the
// given tool definitions to its reasoning model.
func (r *Registry) CreateSpeech(cfg SpeechConfig, tools []speech.ToolDefinition, handler speech.ToolHandler) (speech.Provider, error) {
	r.mu.RLock()
	factory, ok := r.speech[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: speech provider %q", ErrNotRegistered, cfg.Provider)
	}
	return factory(cfg, tools, handler)
}

// CreateSource instantiates the capture source named in cfg.
func (r *Registry) CreateSource(cfg AudioConfig) (capture.Source, error) {
	r.mu.RLock()
	factory, ok := r.sources[cfg.Source]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: capture source %q", ErrNotRegistered, cfg.Source)
	}
	return factory(cfg)
}

// CreateMedia instantiates the media controller named in cfg. An empty name
// returns (nil, nil); the dispatcher treats a nil controller as unsupported.
func (r *Registry) CreateMedia(cfg ActionsConfig) (actions.MediaController, error) {
	if cfg.Media == "" || cfg.Media == "none" {
		return nil, nil
	}
	r.mu.RLock()
	factory, ok := r.media[cfg.Media]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: media controller %q", ErrNotRegistered, cfg.Media)
	}
	return factory(cfg)
}

// CreateLights instantiates the light controller named in cfg. An empty name
// returns (nil, nil); the dispatcher treats a nil controller as unsupported.
func (r *Registry) CreateLights(cfg ActionsConfig) (actions.LightController, error) {
	if cfg.Lights == "" || cfg.Lights == "none" {
		return nil, nil
	}
	r.mu.RLock()
	factory, ok := r.lights[cfg.Lights]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: light controller %q", ErrNotRegistered, cfg.Lights)
	}
	return factory(cfg)
}

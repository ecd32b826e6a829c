package resilience

import (
	"context"

	"github.com/naphome/naphome/pkg/provider/speech"
)

// GuardedProvider wraps a [speech.Provider] with a shared circuit breaker.
// One breaker covers all three operations: the provider fronts a single
// cloud service, so transcription failures predict synthesis failures too.
type GuardedProvider struct {
	inner   speech.Provider
	breaker *CircuitBreaker
}

var _ speech.Provider = (*GuardedProvider)(nil)

// NewGuardedProvider wraps inner with a breaker built from cfg. An empty
// cfg.Name defaults to "speech".
func NewGuardedProvider(inner speech.Provider, cfg BreakerConfig) *GuardedProvider {
	if cfg.Name == "" {
		cfg.Name = "speech"
	}
	return &GuardedProvider{
		inner:   inner,
		breaker: NewCircuitBreaker(cfg),
	}
}

// Breaker returns the underlying breaker, for state inspection.
func (g *GuardedProvider) Breaker() *CircuitBreaker { return g.breaker }

// Transcribe implements speech.Transcriber.
func (g *GuardedProvider) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error) {
	var out string
	err := g.breaker.Execute(func() error {
		var err error
		out, err = g.inner.Transcribe(ctx, pcm, sampleRate)
		return err
	})
	return out, err
}

// Reason implements speech.Reasoner.
func (g *GuardedProvider) Reason(ctx context.Context, utterance string, deviceState string) (string, error) {
	var out string
	err := g.breaker.Execute(func() error {
		var err error
		out, err = g.inner.Reason(ctx, utterance, deviceState)
		return err
	})
	return out, err
}

// Synthesize implements speech.Synthesizer.
func (g *GuardedProvider) Synthesize(ctx context.Context, text string, voice string) ([]byte, error) {
	var out []byte
	err := g.breaker.Execute(func() error {
		var err error
		out, err = g.inner.Synthesize(ctx, text, voice)
		return err
	})
	return out, err
}

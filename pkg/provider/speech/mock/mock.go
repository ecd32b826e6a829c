// Package mock provides a mock speech provider for testing.
package mock

import (
	"context"
	"sync"

	"github.com/naphome/naphome/pkg/provider/speech"
)

// TranscribeCall records a call to Transcribe.
type TranscribeCall struct {
	Samples    int
	SampleRate int
}

// ReasonCall records a call to Reason.
type ReasonCall struct {
	Utterance   string
	DeviceState string
}

// SynthesizeCall records a call to Synthesize.
type SynthesizeCall struct {
	Text  string
	Voice string
}

// Provider is a configurable mock implementation of speech.Provider. All
// fields should be set before use; call records are safe to read once the
// code under test has returned.
type Provider struct {
	mu sync.Mutex

	TranscribeResult string
	TranscribeErr    error
	ReasonResult     string
	ReasonErr        error
	SynthesizeResult []byte
	SynthesizeErr    error

	TranscribeCalls []TranscribeCall
	ReasonCalls     []ReasonCall
	SynthesizeCalls []SynthesizeCall
}

var _ speech.Provider = (*Provider)(nil)

// Transcribe implements speech.Transcriber.
func (p *Provider) Transcribe(_ context.Context, pcm []int16, sampleRate int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{
		Samples:    len(pcm),
		SampleRate: sampleRate,
	})
	return p.TranscribeResult, p.TranscribeErr
}

// Reason implements speech.Reasoner.
func (p *Provider) Reason(_ context.Context, utterance string, deviceState string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReasonCalls = append(p.ReasonCalls, ReasonCall{
		Utterance:   utterance,
		DeviceState: deviceState,
	})
	return p.ReasonResult, p.ReasonErr
}

// Synthesize implements speech.Synthesizer.
func (p *Provider) Synthesize(_ context.Context, text string, voice string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{
		Text:  text,
		Voice: voice,
	})
	return p.SynthesizeResult, p.SynthesizeErr
}

// Package speech defines the interfaces to the remote
// speech/reasoning/synthesis collaborator.
//
// The three capabilities are independent calls — batch transcription of a
// recorded utterance, text reasoning with optional device-state context and
// tool calls, and speech synthesis — so they are modelled as three
// single-method interfaces. A backend that offers all three (such as the
// openai subpackage) implements Provider.
//
// Implementations must be safe for concurrent use and must respect context
// cancellation on every call; the turn orchestrator bounds each call with a
// deadline.
package speech

import "context"

// ToolDefinition describes a function the reasoning model may call. The
// Parameters map is a JSON Schema object, matching the wire format of
// function-calling APIs.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolHandler executes a tool call issued by the reasoning model and returns
// the result text fed back into the conversation. Errors are reported to the
// model as the result string by the provider.
type ToolHandler func(name string, arguments string) (string, error)

// Transcriber converts a recorded utterance into text.
type Transcriber interface {
	// Transcribe sends mono 16-bit PCM at the given rate for batch
	// transcription and returns the recognised text. An empty string with a
	// nil error means the provider heard nothing intelligible.
	Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error)
}

// Reasoner produces the assistant's reply to an utterance.
type Reasoner interface {
	// Reason generates a reply to utterance. deviceState, when non-empty, is
	// a JSON snapshot of the device injected as context so the model can
	// answer questions about lights, playback, and sensors. Providers with
	// registered tools resolve any tool calls before returning the final
	// text.
	Reason(ctx context.Context, utterance string, deviceState string) (string, error)
}

// Synthesizer converts reply text to playable audio.
type Synthesizer interface {
	// Synthesize renders text with the named voice and returns the audio
	// payload (WAV for the openai backend).
	Synthesize(ctx context.Context, text string, voice string) ([]byte, error)
}

// Provider combines all three remote capabilities.
type Provider interface {
	Transcriber
	Reasoner
	Synthesizer
}

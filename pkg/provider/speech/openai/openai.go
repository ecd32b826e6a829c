// Package openai provides a speech provider backed by the OpenAI API:
// Whisper for transcription, chat completions for reasoning, and the audio
// speech endpoint for synthesis.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/naphome/naphome/pkg/audio"
	"github.com/naphome/naphome/pkg/provider/speech"
)

// maxToolRounds bounds the number of tool-call round trips per Reason call so
// a model that keeps requesting tools cannot stall a turn indefinitely.
const maxToolRounds = 4

const defaultSystemPrompt = "You are a friendly voice assistant running on a " +
	"smart speaker. Answer briefly and conversationally, in one or two " +
	"sentences, since your reply is spoken aloud."

// Provider implements speech.Provider using the OpenAI API.
type Provider struct {
	client       oai.Client
	chatModel    string
	sttModel     string
	ttsModel     string
	systemPrompt string
	tools        []speech.ToolDefinition
	onToolCall   speech.ToolHandler
}

var _ speech.Provider = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	timeout      time.Duration
	sttModel     string
	ttsModel     string
	systemPrompt string
	tools        []speech.ToolDefinition
	onToolCall   speech.ToolHandler
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithTranscriptionModel overrides the default transcription model
// (whisper-1).
func WithTranscriptionModel(model string) Option {
	return func(c *config) {
		c.sttModel = model
	}
}

// WithSpeechModel overrides the default synthesis model (tts-1).
func WithSpeechModel(model string) Option {
	return func(c *config) {
		c.ttsModel = model
	}
}

// WithSystemPrompt replaces the built-in assistant persona.
func WithSystemPrompt(prompt string) Option {
	return func(c *config) {
		c.systemPrompt = prompt
	}
}

// WithTools registers tool definitions offered on every Reason call together
// with the handler that executes them.
func WithTools(tools []speech.ToolDefinition, handler speech.ToolHandler) Option {
	return func(c *config) {
		c.tools = tools
		c.onToolCall = handler
	}
}

// New constructs a new OpenAI speech Provider.
func New(apiKey string, chatModel string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if chatModel == "" {
		return nil, fmt.Errorf("openai: chatModel must not be empty")
	}

	cfg := &config{
		sttModel:     string(oai.AudioModelWhisper1),
		ttsModel:     string(oai.SpeechModelTTS1),
		systemPrompt: defaultSystemPrompt,
	}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{
		client:       client,
		chatModel:    chatModel,
		sttModel:     cfg.sttModel,
		ttsModel:     cfg.ttsModel,
		systemPrompt: cfg.systemPrompt,
		tools:        cfg.tools,
		onToolCall:   cfg.onToolCall,
	}, nil
}

// Transcribe implements speech.Transcriber. The PCM samples are wrapped in a
// WAV container and uploaded as a single file.
func (p *Provider) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error) {
	if len(pcm) == 0 {
		return "", fmt.Errorf("openai: transcribe: empty audio")
	}
	if sampleRate <= 0 {
		return "", fmt.Errorf("openai: transcribe: invalid sample rate %d", sampleRate)
	}

	wav := audio.EncodeWAV(pcm, sampleRate)
	resp, err := p.client.Audio.Transcriptions.New(ctx, oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model: oai.AudioModel(p.sttModel),
	})
	if err != nil {
		return "", fmt.Errorf("openai: transcription: %w", err)
	}
	return resp.Text, nil
}

// Reason implements speech.Reasoner. Registered tools are offered to the
// model and any tool calls are resolved, up to [maxToolRounds] rounds, before
// the final text is returned.
func (p *Provider) Reason(ctx context.Context, utterance string, deviceState string) (string, error) {
	messages := []oai.ChatCompletionMessageParamUnion{
		oai.SystemMessage(p.systemPrompt),
	}
	if deviceState != "" {
		messages = append(messages, oai.SystemMessage("Current device state: "+deviceState))
	}
	messages = append(messages, oai.UserMessage(utterance))

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.chatModel),
		Messages: messages,
	}
	for _, td := range p.tools {
		params.Tools = append(params.Tools, oai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        td.Name,
				Description: param.NewOpt(td.Description),
				Parameters:  shared.FunctionParameters(td.Parameters),
			},
		})
	}

	for round := 0; ; round++ {
		resp, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("openai: chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("openai: empty choices in response")
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 || p.onToolCall == nil {
			return msg.Content, nil
		}
		if round >= maxToolRounds {
			return "", fmt.Errorf("openai: tool call limit of %d rounds exceeded", maxToolRounds)
		}

		asst := oai.ChatCompletionAssistantMessageParam{}
		if msg.Content != "" {
			asst.Content.OfString = oai.String(msg.Content)
		}
		for _, tc := range msg.ToolCalls {
			asst.ToolCalls = append(asst.ToolCalls, oai.ChatCompletionMessageToolCallParam{
				ID: tc.ID,
				Function: oai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		params.Messages = append(params.Messages, oai.ChatCompletionMessageParamUnion{OfAssistant: &asst})

		for _, tc := range msg.ToolCalls {
			result, err := p.onToolCall(tc.Function.Name, tc.Function.Arguments)
			if err != nil {
				// The model gets the failure as a tool result so it can
				// apologise instead of the whole turn erroring out.
				result = "error: " + err.Error()
			}
			params.Messages = append(params.Messages, oai.ToolMessage(result, tc.ID))
		}
	}
}

// Synthesize implements speech.Synthesizer and returns WAV audio.
func (p *Provider) Synthesize(ctx context.Context, text string, voice string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("openai: synthesize: empty text")
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.ttsModel),
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatWAV,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: speech synthesis: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read synthesis response: %w", err)
	}
	return data, nil
}

package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/naphome/naphome/pkg/audio"
	"github.com/naphome/naphome/pkg/frontend"
)

const (
	// fallbackChunkSize is used when the acoustic engine reports a
	// nonsensical feed chunk size.
	fallbackChunkSize = 512
	// fallbackChannels is used when the engine reports a nonsensical
	// channel count.
	fallbackChannels = 1
)

// acousticEvent is the per-chunk outcome of running captured audio through
// the acoustic front end.
type acousticEvent struct {
	wakeHit        bool
	wakeWord       string
	wakeWordIndex  int
	triggerChannel int
	voiceActive    bool
	energy         float64
	// chunk is the mono samples this event describes. The slice is owned by
	// the receiver.
	chunk []int16
}

// analyzer adapts a [frontend.Engine] to the capture loop: it stages
// arbitrary-length capture reads into engine-sized feed chunks, runs the
// feed/fetch cycle, and fills in voice activity from signal energy when the
// engine has no VAD of its own.
type analyzer struct {
	engine         frontend.Engine
	chunkSize      int
	channels       int
	vadThreshold   float64
	vadBypassFloor float64
	staging        []int16
	logger         *slog.Logger
}

func newAnalyzer(engine frontend.Engine, vadThreshold, vadBypassFloor float64, logger *slog.Logger) *analyzer {
	if logger == nil {
		logger = slog.Default()
	}

	chunk := engine.FeedChunkSize()
	if chunk <= 0 {
		logger.Warn("engine reported invalid feed chunk size, clamping",
			"reported", chunk, "clamped", fallbackChunkSize)
		chunk = fallbackChunkSize
	}
	channels := engine.FeedChannels()
	if channels <= 0 {
		logger.Warn("engine reported invalid channel count, clamping",
			"reported", channels, "clamped", fallbackChannels)
		channels = fallbackChannels
	}

	return &analyzer{
		engine:         engine,
		chunkSize:      chunk,
		channels:       channels,
		vadThreshold:   vadThreshold,
		vadBypassFloor: vadBypassFloor,
		logger:         logger,
	}
}

// process stages samples and returns one event per full engine chunk
// consumed. Left-over samples stay staged for the next call. A feed error
// stops processing for this call; the staged remainder is preserved.
func (a *analyzer) process(samples []int16) ([]acousticEvent, error) {
	a.staging = append(a.staging, samples...)
	feedSize := a.chunkSize * a.channels

	var events []acousticEvent
	for len(a.staging) >= feedSize {
		block := a.staging[:feedSize]
		if err := a.engine.Feed(block); err != nil {
			a.staging = a.staging[:copy(a.staging, a.staging[feedSize:])]
			return events, fmt.Errorf("pipeline: feed acoustic engine: %w", err)
		}

		mono := block
		if a.channels > 1 {
			mono = audio.StereoToMono(block)
		}
		chunk := make([]int16, len(mono))
		copy(chunk, mono)

		ev := acousticEvent{
			chunk:  chunk,
			energy: audio.RectifiedMean(chunk),
		}
		if res, ok := a.engine.Fetch(); ok {
			ev.wakeHit = res.WakeHit
			ev.wakeWord = res.WakeWord
			ev.wakeWordIndex = res.WakeWordIndex
			ev.triggerChannel = res.TriggerChannel
			if res.VoiceActivityValid {
				ev.voiceActive = res.VoiceActive
			} else {
				ev.voiceActive = a.energyVAD(ev.energy)
			}
		} else {
			ev.voiceActive = a.energyVAD(ev.energy)
		}

		events = append(events, ev)
		a.staging = a.staging[:copy(a.staging, a.staging[feedSize:])]
	}
	return events, nil
}

// energyVAD is the fallback voice-activity decision from rectified mean
// energy. The bypass floor keeps quiet speech flowing when the main
// threshold is tuned high; a floor of zero disables it.
func (a *analyzer) energyVAD(energy float64) bool {
	if energy > a.vadThreshold {
		return true
	}
	return a.vadBypassFloor > 0 && energy > a.vadBypassFloor
}

// Package intent maps transcribed utterances onto local device actions.
//
// Routing is deliberately simple: an ordered list of case-insensitive keyword
// rules, checked first match wins. Keeping it local and deterministic means
// playback and light commands work even when the remote reasoning model is
// slow or unreachable, and the same transcript always yields the same
// decision.
package intent

import (
	"fmt"
	"strings"
	"sync/atomic"
	"unicode"
)

// defaultVolumeStep is the percentage change applied per volume command when
// the router is constructed without an explicit step.
const defaultVolumeStep = 10

// Action identifies a locally executable device action.
type Action int

const (
	// ActionNone means no rule matched; the utterance goes to the reasoning
	// model instead.
	ActionNone Action = iota
	// ActionMediaPlay starts playback, optionally of the named content.
	ActionMediaPlay
	// ActionMediaPause pauses playback.
	ActionMediaPause
	// ActionMediaResume resumes paused playback.
	ActionMediaResume
	// ActionMediaVolumeDelta changes playback volume by Decision.VolumeDelta.
	ActionMediaVolumeDelta
	// ActionLightsOn turns the lights on.
	ActionLightsOn
	// ActionLightsOff turns the lights off.
	ActionLightsOff
)

// String implements fmt.Stringer.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionMediaPlay:
		return "media_play"
	case ActionMediaPause:
		return "media_pause"
	case ActionMediaResume:
		return "media_resume"
	case ActionMediaVolumeDelta:
		return "media_volume_delta"
	case ActionLightsOn:
		return "lights_on"
	case ActionLightsOff:
		return "lights_off"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Decision is the outcome of routing one utterance.
type Decision struct {
	Action Action
	// Argument carries the free text after the matched keyword, currently
	// only for [ActionMediaPlay] ("play some jazz" yields "some jazz").
	Argument string
	// VolumeDelta is the signed volume change for [ActionMediaVolumeDelta].
	VolumeDelta int
}

// Router routes utterances to decisions. The zero value is not usable; use
// [NewRouter].
type Router struct {
	volumeStep atomic.Int64
}

// NewRouter returns a Router with the given volume step per volume command.
// A step of zero or less falls back to the default of 10.
func NewRouter(volumeStep int) *Router {
	r := &Router{}
	r.SetVolumeStep(volumeStep)
	return r
}

// SetVolumeStep replaces the volume step, clamping zero or less to the
// default. Safe to call while routing; config reloads use it.
func (r *Router) SetVolumeStep(step int) {
	if step <= 0 {
		step = defaultVolumeStep
	}
	r.volumeStep.Store(int64(step))
}

// Route matches utterance against the rule list and returns the decision.
// Rule order matters: "stop playing" must pause rather than start playback,
// so pause outranks play.
func (r *Router) Route(utterance string) Decision {
	lower := strings.ToLower(utterance)

	switch {
	case contains(lower, "pause", "stop"):
		return Decision{Action: ActionMediaPause}

	case contains(lower, "resume", "continue"):
		return Decision{Action: ActionMediaResume}

	case contains(lower, "volume up", "louder"):
		return Decision{Action: ActionMediaVolumeDelta, VolumeDelta: int(r.volumeStep.Load())}

	case contains(lower, "volume down", "quieter", "lower"):
		return Decision{Action: ActionMediaVolumeDelta, VolumeDelta: -int(r.volumeStep.Load())}

	case contains(lower, "play"):
		return Decision{
			Action:   ActionMediaPlay,
			Argument: argumentAfter(utterance, "play"),
		}

	case contains(lower, "lights off", "turn off the lights", "lights out", "turn lights off"):
		return Decision{Action: ActionLightsOff}

	case contains(lower, "lights on", "turn on the lights", "turn lights on", "lights up"):
		return Decision{Action: ActionLightsOn}
	}

	return Decision{Action: ActionNone}
}

// ResponseText returns the short spoken confirmation for a decision. For
// [ActionNone] it is the generic fallback used when nothing else produced a
// reply.
func ResponseText(d Decision) string {
	switch d.Action {
	case ActionMediaPlay:
		if d.Argument != "" {
			return fmt.Sprintf("Playing %s.", d.Argument)
		}
		return "Playing music."
	case ActionMediaPause:
		return "Pausing playback."
	case ActionMediaResume:
		return "Resuming playback."
	case ActionMediaVolumeDelta:
		if d.VolumeDelta > 0 {
			return "Turning it up."
		}
		return "Turning it down."
	case ActionLightsOff:
		return "Lights off."
	case ActionLightsOn:
		return "Lights on."
	default:
		return "Sorry, I didn't catch that."
	}
}

// contains reports whether lower contains any of the keywords. lower must
// already be lower-cased.
func contains(lower string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// argumentAfter returns the trimmed text following the first
// case-insensitive occurrence of keyword in utterance.
func argumentAfter(utterance, keyword string) string {
	idx := strings.Index(strings.ToLower(utterance), keyword)
	if idx < 0 {
		return ""
	}
	rest := utterance[idx+len(keyword):]
	return strings.TrimFunc(rest, unicode.IsSpace)
}

// Package actions executes routed intents against the device's controllable
// surfaces.
//
// The package owns no policy. It takes an [intent.Decision] and calls the
// matching controller method, reporting the error back to the caller so the
// turn pipeline can count the result and choose what to say.
package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/naphome/naphome/internal/intent"
)

// ErrNotSupported is returned when a decision carries no executable action,
// either because nothing matched or the action has no controller wired.
var ErrNotSupported = errors.New("actions: not supported")

// MediaController controls music playback.
type MediaController interface {
	Play(ctx context.Context, query string) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	// ChangeVolume adjusts volume by delta percentage points, clamping at the
	// device limits.
	ChangeVolume(ctx context.Context, delta int) error
}

// LightController controls the lights.
type LightController interface {
	SetLights(ctx context.Context, on bool) error
}

// Dispatcher maps decisions onto controllers. Either controller may be nil,
// in which case its actions fail with [ErrNotSupported].
type Dispatcher struct {
	media  MediaController
	lights LightController
}

// NewDispatcher returns a Dispatcher backed by the given controllers.
func NewDispatcher(media MediaController, lights LightController) *Dispatcher {
	return &Dispatcher{media: media, lights: lights}
}

// Dispatch executes the decision's action. It returns [ErrNotSupported] for
// [intent.ActionNone] so callers can distinguish "nothing to do" from a
// controller failure.
func (d *Dispatcher) Dispatch(ctx context.Context, dec intent.Decision) error {
	switch dec.Action {
	case intent.ActionMediaPlay:
		if d.media == nil {
			return ErrNotSupported
		}
		return d.media.Play(ctx, dec.Argument)

	case intent.ActionMediaPause:
		if d.media == nil {
			return ErrNotSupported
		}
		return d.media.Pause(ctx)

	case intent.ActionMediaResume:
		if d.media == nil {
			return ErrNotSupported
		}
		return d.media.Resume(ctx)

	case intent.ActionMediaVolumeDelta:
		if d.media == nil {
			return ErrNotSupported
		}
		return d.media.ChangeVolume(ctx, dec.VolumeDelta)

	case intent.ActionLightsOn, intent.ActionLightsOff:
		if d.lights == nil {
			return ErrNotSupported
		}
		return d.lights.SetLights(ctx, dec.Action == intent.ActionLightsOn)

	case intent.ActionNone:
		return ErrNotSupported

	default:
		return fmt.Errorf("actions: unknown action %v", dec.Action)
	}
}

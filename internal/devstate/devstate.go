// Package devstate maintains a snapshot of the device's controllable state
// and environmental readings.
//
// The snapshot serves two consumers: it is injected as context into every
// reasoning request so the model can answer "are the lights on", and it backs
// the tool calls the model may issue to read sensors or flip switches
// mid-conversation.
package devstate

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/naphome/naphome/pkg/provider/speech"
)

// Readings holds the most recent environmental sensor values. Valid is false
// until the first reading arrives.
type Readings struct {
	Valid        bool    `json:"valid"`
	TemperatureC float64 `json:"temperature_c"`
	HumidityRH   float64 `json:"humidity_rh"`
	CO2PPM       int     `json:"co2_ppm"`
	AmbientLux   float64 `json:"ambient_lux"`
}

// snapshot is the JSON shape handed to the reasoning model.
type snapshot struct {
	Device  deviceInfo `json:"device"`
	Lights  lightsInfo `json:"lights"`
	Audio   audioInfo  `json:"audio"`
	Broker  brokerInfo `json:"broker"`
	Sensors Readings   `json:"sensors"`
}

type deviceInfo struct {
	Name string `json:"name"`
}

type lightsInfo struct {
	On bool `json:"on"`
}

type audioInfo struct {
	Playing bool `json:"playing"`
	Muted   bool `json:"muted"`
}

type brokerInfo struct {
	Connected bool `json:"connected"`
}

// Store tracks device state. Safe for concurrent use; writers are the turn
// pipeline, the telemetry bridge, and sensor polling, readers are reasoning
// requests and tool calls.
type Store struct {
	mu         sync.Mutex
	deviceName string
	lights     bool
	playing    bool
	muted      bool
	connected  bool
	readings   Readings

	// onLights, when set, is invoked from the set_lights tool so the model's
	// request reaches the actual controller, not just the snapshot.
	onLights func(on bool) error
}

// NewStore returns a Store for the named device with everything off.
func NewStore(deviceName string) *Store {
	return &Store{deviceName: deviceName}
}

// SetLightsHandler registers the callback invoked by the set_lights tool.
func (s *Store) SetLightsHandler(fn func(on bool) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLights = fn
}

// SetLights records whether the lights are on.
func (s *Store) SetLights(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lights = on
}

// SetPlaying records whether audio playback is active.
func (s *Store) SetPlaying(playing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = playing
}

// SetMuted records whether audio output is muted.
func (s *Store) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
}

// SetConnected records whether the telemetry broker connection is up.
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

// SetReadings replaces the sensor readings and marks them valid.
func (s *Store) SetReadings(r Readings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Valid = true
	s.readings = r
}

// Connected reports whether the telemetry broker connection is up.
func (s *Store) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Muted reports whether audio output is muted.
func (s *Store) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Snapshot returns the current state as a JSON document. The boolean is
// false when encoding fails, in which case the string is empty and callers
// should proceed without device context.
func (s *Store) Snapshot() (string, bool) {
	s.mu.Lock()
	snap := snapshot{
		Device:  deviceInfo{Name: s.deviceName},
		Lights:  lightsInfo{On: s.lights},
		Audio:   audioInfo{Playing: s.playing, Muted: s.muted},
		Broker:  brokerInfo{Connected: s.connected},
		Sensors: s.readings,
	}
	s.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Tools returns the tool definitions the Store can handle.
func (s *Store) Tools() []speech.ToolDefinition {
	return []speech.ToolDefinition{
		{
			Name:        "get_device_state",
			Description: "Get the full device state as JSON: lights, audio playback, broker connection, and sensor readings.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "get_temperature",
			Description: "Get the current room temperature in Celsius and relative humidity.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "set_lights",
			Description: "Turn the lights on or off.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"on": map[string]any{
						"type":        "boolean",
						"description": "true turns the lights on, false turns them off",
					},
				},
				"required": []string{"on"},
			},
		},
		{
			Name:        "set_audio_mute",
			Description: "Mute or unmute the speaker.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"muted": map[string]any{
						"type":        "boolean",
						"description": "true mutes audio output",
					},
				},
				"required": []string{"muted"},
			},
		},
	}
}

// Handle executes a tool call against the store. It satisfies
// [speech.ToolHandler].
func (s *Store) Handle(name string, arguments string) (string, error) {
	switch name {
	case "get_device_state":
		snap, ok := s.Snapshot()
		if !ok {
			return "", fmt.Errorf("devstate: encode snapshot")
		}
		return snap, nil

	case "get_temperature":
		s.mu.Lock()
		r := s.readings
		s.mu.Unlock()
		if !r.Valid {
			return `{"note": "no temperature reading available"}`, nil
		}
		out, err := json.Marshal(map[string]any{
			"temperature_c": r.TemperatureC,
			"humidity_rh":   r.HumidityRH,
		})
		if err != nil {
			return "", fmt.Errorf("devstate: encode temperature: %w", err)
		}
		return string(out), nil

	case "set_lights":
		var args struct {
			On bool `json:"on"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("devstate: parse set_lights arguments: %w", err)
		}
		s.mu.Lock()
		onLights := s.onLights
		s.mu.Unlock()
		if onLights != nil {
			if err := onLights(args.On); err != nil {
				return "", fmt.Errorf("devstate: set lights: %w", err)
			}
		}
		s.SetLights(args.On)
		if args.On {
			return `{"success": true, "message": "lights turned on"}`, nil
		}
		return `{"success": true, "message": "lights turned off"}`, nil

	case "set_audio_mute":
		var args struct {
			Muted bool `json:"muted"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("devstate: parse set_audio_mute arguments: %w", err)
		}
		s.SetMuted(args.Muted)
		if args.Muted {
			return `{"success": true, "message": "audio muted"}`, nil
		}
		return `{"success": true, "message": "audio unmuted"}`, nil

	default:
		return "", fmt.Errorf("devstate: unknown tool %q", name)
	}
}

var _ speech.ToolHandler = (&Store{}).Handle

package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/classroom-core/internal/room"
)

// Line prefixes.
const (
	// ControlPrefix starts an inbound control command.
	ControlPrefix = "SET"

	// StatusPrefix starts an outbound status push.
	StatusPrefix = "UPDATE"
)

// Wire values for on/off fields.
const (
	stateOn  = "on"
	stateOff = "off"
)

// payloadCutset is trimmed from both ends of a payload after the prefix is removed.
const payloadCutset = " \t\r\n"

// Control is a decoded control command: the full requested actuator state.
type Control struct {
	Lights         [room.LightCount]bool
	AirConditioner room.AirConditioner
	Multimedia     room.MultimediaMode
}

// LEDState is the light section of the wire format. 1 is on, 0 is off.
type LEDState struct {
	LED1 int `json:"led1"`
	LED2 int `json:"led2"`
	LED3 int `json:"led3"`
	LED4 int `json:"led4"`
}

// ACState is the air-conditioner section of the wire format.
type ACState struct {
	State string `json:"state"`
	Mode  string `json:"mode"`
	Level int    `json:"level"`
}

// DeviceState is the "state" container shared by control and status payloads.
type DeviceState struct {
	LED            LEDState `json:"led"`
	AirConditioner ACState  `json:"air_conditioner"`
	Multimedia     string   `json:"multimedia"`
}

// ControlPayload is the JSON body of a control command.
type ControlPayload struct {
	State DeviceState `json:"state"`
}

// Pointer-typed mirrors used for decoding so that absent fields can be
// told apart from zero values.
type (
	rawControl struct {
		State *rawState `json:"state"`
	}
	rawState struct {
		LED            *rawLED `json:"led"`
		AirConditioner *rawAC  `json:"air_conditioner"`
		Multimedia     *string `json:"multimedia"`
	}
	rawLED struct {
		LED1 *int `json:"led1"`
		LED2 *int `json:"led2"`
		LED3 *int `json:"led3"`
		LED4 *int `json:"led4"`
	}
	rawAC struct {
		State *string `json:"state"`
		Mode  *string `json:"mode"`
		Level *int    `json:"level"`
	}
)

// ParseControlLine decodes one inbound line of the form "SET<json>".
// The prefix must start at the first byte of the line; whitespace
// around the payload is ignored.
func ParseControlLine(line string) (Control, error) {
	payload, ok := strings.CutPrefix(line, ControlPrefix)
	if !ok {
		return Control{}, ErrUnknownPrefix
	}
	return ParseControl([]byte(strings.Trim(payload, payloadCutset)))
}

// ParseControl decodes and validates a control payload.
//
// Returns:
//   - Control: The requested actuator state
//   - error: ErrMalformed, ErrMissingSection or ErrInvalidValue
func ParseControl(payload []byte) (Control, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || payload[0] != '{' {
		return Control{}, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}

	var raw rawControl
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Control{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	switch {
	case raw.State == nil:
		return Control{}, fmt.Errorf("%w: state", ErrMissingSection)
	case raw.State.LED == nil:
		return Control{}, fmt.Errorf("%w: state.led", ErrMissingSection)
	case raw.State.AirConditioner == nil:
		return Control{}, fmt.Errorf("%w: state.air_conditioner", ErrMissingSection)
	case raw.State.Multimedia == nil:
		return Control{}, fmt.Errorf("%w: state.multimedia", ErrMissingSection)
	}

	var c Control

	leds := []*int{raw.State.LED.LED1, raw.State.LED.LED2, raw.State.LED.LED3, raw.State.LED.LED4}
	for i, v := range leds {
		if v == nil {
			return Control{}, fmt.Errorf("%w: state.led.led%d", ErrMissingSection, i+1)
		}
		on, err := parseBit(*v)
		if err != nil {
			return Control{}, fmt.Errorf("%w: state.led.led%d: %w", ErrInvalidValue, i+1, err)
		}
		c.Lights[i] = on
	}

	ac, err := parseAC(raw.State.AirConditioner)
	if err != nil {
		return Control{}, err
	}
	c.AirConditioner = ac

	mode, err := room.ParseMultimediaMode(*raw.State.Multimedia)
	if err != nil {
		return Control{}, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	c.Multimedia = mode

	return c, nil
}

func parseAC(raw *rawAC) (room.AirConditioner, error) {
	switch {
	case raw.State == nil:
		return room.AirConditioner{}, fmt.Errorf("%w: state.air_conditioner.state", ErrMissingSection)
	case raw.Mode == nil:
		return room.AirConditioner{}, fmt.Errorf("%w: state.air_conditioner.mode", ErrMissingSection)
	case raw.Level == nil:
		return room.AirConditioner{}, fmt.Errorf("%w: state.air_conditioner.level", ErrMissingSection)
	}

	var ac room.AirConditioner
	switch *raw.State {
	case stateOn:
		ac.On = true
	case stateOff:
		ac.On = false
	default:
		return room.AirConditioner{}, fmt.Errorf("%w: state.air_conditioner.state %q", ErrInvalidValue, *raw.State)
	}

	ac.Mode = room.ACMode(*raw.Mode)
	ac.Level = *raw.Level
	if err := ac.Validate(); err != nil {
		return room.AirConditioner{}, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return ac, nil
}

func parseBit(v int) (bool, error) {
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("want 0 or 1, got %d", v)
}

// ControlFromSnapshot extracts the controllable subset of a snapshot.
func ControlFromSnapshot(snap room.Snapshot) Control {
	return Control{
		Lights:         snap.Lights,
		AirConditioner: snap.AirConditioner,
		Multimedia:     snap.Multimedia,
	}
}

// Frame prepends prefix and appends the line terminator.
func Frame(prefix string, payload []byte) []byte {
	line := make([]byte, 0, len(prefix)+len(payload)+1)
	line = append(line, prefix...)
	line = append(line, payload...)
	return append(line, '\n')
}

func deviceState(c Control) DeviceState {
	ac := ACState{State: stateOff, Mode: string(c.AirConditioner.Mode), Level: c.AirConditioner.Level}
	if c.AirConditioner.On {
		ac.State = stateOn
	}
	return DeviceState{
		LED: LEDState{
			LED1: bit(c.Lights[0]),
			LED2: bit(c.Lights[1]),
			LED3: bit(c.Lights[2]),
			LED4: bit(c.Lights[3]),
		},
		AirConditioner: ac,
		Multimedia:     string(c.Multimedia),
	}
}

func bit(on bool) int {
	if on {
		return 1
	}
	return 0
}

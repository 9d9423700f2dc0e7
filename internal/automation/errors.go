package automation

import "errors"

// Domain errors for the automation package.
//
// Invalid values are reported with the room package errors
// (room.ErrInvalidLight, room.ErrInvalidMultimedia, ...). Hardware failures
// wrap ErrGateway:
//
//	if errors.Is(err, automation.ErrGateway) {
//	    // logged already, the next tick retries
//	}
var (
	// ErrGateway is returned when an actuator write fails.
	ErrGateway = errors.New("automation: gateway write failed")

	// ErrSensorRead is returned when the sensor gateway fails.
	ErrSensorRead = errors.New("automation: sensor read failed")
)

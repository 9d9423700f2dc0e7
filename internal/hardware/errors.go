package hardware

import "errors"

// Domain errors for the hardware package.
//
//	if errors.Is(err, hardware.ErrWrite) {
//	    // transient, the next tick retries
//	}
var (
	// ErrInvalidChannel is returned for a light channel outside 0..3.
	ErrInvalidChannel = errors.New("hardware: invalid light channel")

	// ErrWrite is returned when an actuator write fails.
	ErrWrite = errors.New("hardware: write failed")

	// ErrRead is returned when the sensor source cannot be read or parsed.
	ErrRead = errors.New("hardware: read failed")
)

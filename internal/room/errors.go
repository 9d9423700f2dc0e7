package room

import "errors"

// Domain errors for the room package.
//
// All of them describe a requested value outside the valid range. The
// state is left unchanged whenever one is returned:
//
//	if errors.Is(err, room.ErrInvalidMultimedia) {
//	    // reject the command, keep the previous mode
//	}
var (
	// ErrInvalidLight is returned for a light channel index outside 0..3.
	ErrInvalidLight = errors.New("room: invalid light channel")

	// ErrInvalidLevel is returned for an air-conditioner level outside 1..3.
	ErrInvalidLevel = errors.New("room: invalid air-conditioner level")

	// ErrInvalidACMode is returned for an air-conditioner mode other than cool or heat.
	ErrInvalidACMode = errors.New("room: invalid air-conditioner mode")

	// ErrInvalidMultimedia is returned for a multimedia mode other than off, on or standby.
	ErrInvalidMultimedia = errors.New("room: invalid multimedia mode")

	// ErrInvalidClock is returned for a clock value that is not a real calendar minute.
	ErrInvalidClock = errors.New("room: invalid clock")
)

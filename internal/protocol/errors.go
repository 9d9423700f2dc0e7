package protocol

import "errors"

// Domain errors for the protocol package.
//
// Check with errors.Is; missing-section and invalid-value errors also wrap
// the specific field or room error:
//
//	if errors.Is(err, protocol.ErrMissingSection) {
//	    // drop the command
//	}
var (
	// ErrUnknownPrefix is returned for a line that is not a control command.
	ErrUnknownPrefix = errors.New("protocol: unknown prefix")

	// ErrMalformed is returned when the payload is not a well-formed JSON object
	// of the expected shape.
	ErrMalformed = errors.New("protocol: malformed payload")

	// ErrMissingSection is returned when a required section or field is absent.
	ErrMissingSection = errors.New("protocol: missing section")

	// ErrInvalidValue is returned when a field holds an out-of-range value.
	ErrInvalidValue = errors.New("protocol: invalid value")
)

package remote

import "errors"

// Domain errors for the remote package.
var (
	// ErrNotOpen is returned when the link is not open.
	ErrNotOpen = errors.New("remote: link not open")

	// ErrAckMismatch is returned when the bytes read after a write are not
	// the expected acknowledgement token.
	ErrAckMismatch = errors.New("remote: acknowledgement mismatch")

	// ErrAckTimeout is returned when no acknowledgement arrives in time.
	ErrAckTimeout = errors.New("remote: acknowledgement timeout")

	// ErrLineTooLong is reported when an inbound line exceeds the buffer limit.
	ErrLineTooLong = errors.New("remote: line too long")
)

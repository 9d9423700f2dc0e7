package clock

import "errors"

// ErrNotFound is returned by a Store that holds no clock yet.
var ErrNotFound = errors.New("clock: no stored clock")

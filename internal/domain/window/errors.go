package window

import "errors"

// Sentinel kinds for window errors.
var (
	ErrCapacity = errors.New("window capacity must be positive")
)

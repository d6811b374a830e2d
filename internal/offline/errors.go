package offline

import "errors"

// Sentinel error kinds for this package.
var (
	ErrNoTrials       = errors.New("no trial files found")
	ErrEmptyPartition = errors.New("partition has no windows")
	ErrWindow         = errors.New("invalid window parameters")
	ErrWrite          = errors.New("write tensors failed")
)

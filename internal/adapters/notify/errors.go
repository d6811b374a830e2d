package notify

import "errors"

// Sentinel error kinds for this package.
var (
	ErrDelivery = errors.New("alert delivery failed")
	ErrConnect  = errors.New("notifier connect failed")
)

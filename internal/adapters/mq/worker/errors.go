package worker

import "errors"

// ErrShutdownTimeout reports workers abandoned mid-delivery at shutdown.
var ErrShutdownTimeout = errors.New("worker shutdown timed out")

package udp

import "errors"

// Sentinel error kinds for this package.
var (
	ErrMalformedDatagram = errors.New("malformed datagram")
	ErrOversized         = errors.New("datagram exceeds size limit")
	ErrBind              = errors.New("udp bind failed")
)

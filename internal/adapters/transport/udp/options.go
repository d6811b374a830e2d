package udp

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxDatagram bounds the accepted payload size.
func WithMaxDatagram(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxDatagram = n
		}
	}
}

// WithScale sets the factor converting received values to g.
func WithScale(scale float64) Option {
	return func(s *Server) {
		if scale > 0 {
			s.scale = scale
		}
	}
}

// WithAckPayload sets the bytes written by Ack.
func WithAckPayload(p string) Option {
	return func(s *Server) {
		if p != "" {
			s.ack = []byte(p)
		}
	}
}

package udp

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/okian/fallsense/internal/domain/model"
	"github.com/okian/fallsense/pkg/logger"
	"github.com/okian/fallsense/pkg/metrics"
)

const (
	defaultMaxDatagram = 1024
	defaultAck         = "FALL"
)

// Handler receives every well-formed sample in arrival order.
// It is called from a single goroutine.
type Handler interface {
	HandleSample(ctx context.Context, s model.Sample, from net.Addr)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, s model.Sample, from net.Addr)

// HandleSample implements Handler.
func (f HandlerFunc) HandleSample(ctx context.Context, s model.Sample, from net.Addr) {
	f(ctx, s, from)
}

// Server owns the bound socket.
type Server struct {
	conn        net.PacketConn
	maxDatagram int
	scale       float64
	ack         []byte

	logger logger.Logger
}

// Listen binds addr. A bind failure wraps ErrBind.
func Listen(ctx context.Context, addr string, opts ...Option) (*Server, error) {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBind, addr, err)
	}

	s := &Server{
		conn:        conn,
		maxDatagram: defaultMaxDatagram,
		scale:       1,
		ack:         []byte(defaultAck),
		logger:      logger.Get().Named("udp"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LocalAddr returns the bound address.
func (s *Server) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Serve reads datagrams until ctx is done or the socket is closed.
// Malformed and oversized datagrams are logged and dropped.
func (s *Server) Serve(ctx context.Context, h Handler) error {
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	// One spare byte detects payloads over the limit.
	buf := make([]byte, s.maxDatagram+1)
	for {
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn(ctx, "udp read failed", logger.Error(err))
			metrics.RecordErrorByComponent("udp", "read")
			continue
		}

		source := from.String()
		metrics.RecordSampleReceived()

		if n > s.maxDatagram {
			metrics.RecordSampleRejected("oversized")
			s.logger.Debug(ctx, "datagram dropped",
				logger.String("source", source), logger.Error(ErrOversized))
			continue
		}

		sample, err := Decode(buf[:n], s.scale)
		if err != nil {
			metrics.RecordSampleRejected("malformed")
			s.logger.Debug(ctx, "datagram dropped",
				logger.String("source", source), logger.Error(err))
			continue
		}

		h.HandleSample(ctx, sample, from)
	}
}

// Ack writes the acknowledgement payload to addr.
func (s *Server) Ack(addr net.Addr) error {
	_, err := s.conn.WriteTo(s.ack, addr)
	metrics.RecordAck(err == nil)
	if err != nil {
		return fmt.Errorf("ack %s: %w", addr, err)
	}
	return nil
}

// Close releases the socket.
func (s *Server) Close() error {
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

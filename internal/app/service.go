package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/okian/fallsense/internal/adapters/mq/queue"
	"github.com/okian/fallsense/internal/adapters/mq/worker"
	"github.com/okian/fallsense/internal/adapters/notify"
	"github.com/okian/fallsense/internal/adapters/transport/udp"
	"github.com/okian/fallsense/internal/config"
	"github.com/okian/fallsense/internal/domain/classifier"
	"github.com/okian/fallsense/internal/domain/debounce"
	"github.com/okian/fallsense/pkg/logger"
	"github.com/okian/fallsense/pkg/metrics"
)

const stopTimeout = 10 * time.Second

// Service owns the live server: socket, pipeline and notification workers.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	clf      classifier.Classifier
	pipeline *Pipeline
	server   *udp.Server
	queue    *queue.InMemoryQueue
	pool     *worker.Pool
	notifier notify.Notifier
	closers  []func()
	clock    func() time.Time

	// State
	started   bool
	cancel    context.CancelFunc
	serveDone chan error

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClassifier skips loading cfg.ModelPath and uses c instead.
func WithClassifier(c classifier.Classifier) Option {
	return func(s *Service) { s.clf = c }
}

// WithNotifier replaces the notifiers derived from configuration.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithServiceClock replaces time.Now for alert timestamps and cooldowns.
func WithServiceClock(now func() time.Time) Option {
	return func(s *Service) { s.clock = now }
}

// New constructs a Service. Nothing is bound until Start.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the model, binds the socket and begins serving. Model and
// bind failures are returned and are fatal to the caller.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting fall detection service...")

	if s.clf == nil {
		clf, err := classifier.Load(ctx, s.cfg.ModelPath, classifier.WithExpectedFeatures(s.cfg.FeatureLength()))
		if err != nil {
			return err
		}
		s.clf = clf
	}

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.NotifyQueueSize))

	server, err := udp.Listen(ctx, s.cfg.ListenAddr,
		udp.WithMaxDatagram(s.cfg.MaxDatagram),
		udp.WithScale(s.cfg.SampleScale),
		udp.WithAckPayload(s.cfg.AckPayload),
	)
	if err != nil {
		return err
	}
	s.server = server

	pipeline, err := NewPipeline(s.cfg.WindowSize, s.clf,
		WithGate(s.cfg.GateHigh, s.cfg.GateLow),
		WithDebounce(debounce.New(
			debounce.WithThreshold(s.cfg.DecisionThreshold),
			debounce.WithCooldown(s.cfg.Cooldown()),
		)),
		WithEvict(s.cfg.AlertEvict),
		WithAcker(server),
		WithDispatcher(s.queue),
		WithClock(s.clock),
	)
	if err != nil {
		_ = server.Close()
		return err
	}
	s.pipeline = pipeline

	if s.notifier == nil {
		s.notifier = s.buildNotifier(ctx)
	}

	s.pool = worker.NewPool(s.cfg.NotifyWorkers, s.queue, s.notifier,
		worker.WithTimeout(s.cfg.NotifyTimeout()))

	// Workers outlive the serve context so queued alerts drain on Stop.
	s.pool.Start(context.WithoutCancel(ctx))

	serveCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.serveDone = make(chan error, 1)
	go func() { s.serveDone <- server.Serve(serveCtx, pipeline) }()

	s.started = true
	s.logger.Info(ctx, "fall detection service started",
		logger.String("listen", server.LocalAddr().String()),
		logger.Int("window", s.cfg.WindowSize),
		logger.Float64("gate_high", s.cfg.GateHigh),
		logger.Float64("gate_low", s.cfg.GateLow),
		logger.Float64("threshold", s.cfg.DecisionThreshold),
		logger.Duration("cooldown", s.cfg.Cooldown()),
		logger.String("notifier", s.notifier.Name()),
	)
	return nil
}

// buildNotifier always logs alerts and adds the webhook and MQTT sinks that
// are configured. An unreachable broker is logged and skipped.
func (s *Service) buildNotifier(ctx context.Context) notify.Notifier {
	sinks := notify.NewMulti(s.cfg.NotifyTimeout(), notify.NewLog())

	if s.cfg.NotifyURL != "" {
		sinks.Add(notify.NewWebhook(s.cfg.NotifyURL, notify.WithToken(s.cfg.NotifyToken)))
	}

	if s.cfg.MQTTBroker != "" {
		m, err := notify.NewMQTT(ctx, s.cfg.MQTTBroker, s.cfg.MQTTTopic, s.cfg.MQTTClientID)
		if err != nil {
			metrics.RecordErrorByComponent("service", "mqtt_connect")
			s.logger.Error(ctx, "mqtt notifier disabled", logger.Error(err))
		} else {
			sinks.Add(m)
			s.closers = append(s.closers, m.Close)
		}
	}

	return sinks
}

// Stop closes the socket, then drains queued alerts with a bounded wait.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping fall detection service...")

	s.cancel()
	var errs []error
	select {
	case err := <-s.serveDone:
		if err != nil {
			errs = append(errs, fmt.Errorf("serve: %w", err))
		}
	case <-time.After(stopTimeout):
		errs = append(errs, errors.New("serve loop did not exit"))
	}
	if err := s.server.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close socket: %w", err))
	}

	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	for _, c := range s.closers {
		c()
	}
	s.closers = nil

	s.started = false
	s.logger.Info(ctx, "fall detection service stopped")
	return errors.Join(errs...)
}

// Addr returns the bound UDP address, or nil before Start.
func (s *Service) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.server == nil {
		return nil
	}
	return s.server.LocalAddr()
}

// Pipeline returns the running pipeline, or nil before Start.
func (s *Service) Pipeline() *Pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pipeline
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"windowSize":      s.cfg.WindowSize,
		"gateHigh":        s.cfg.GateHigh,
		"gateLow":         s.cfg.GateLow,
		"threshold":       s.cfg.DecisionThreshold,
		"cooldownSeconds": s.cfg.CooldownSeconds,
		"notifyQueueSize": s.cfg.NotifyQueueSize,
		"notifyWorkers":   s.cfg.NotifyWorkers,
	}

	if s.started {
		ctx := context.Background()
		stats["listen"] = s.server.LocalAddr().String()
		stats["queueLength"] = s.queue.Len(ctx)
		stats["pipeline"] = s.pipeline.Stats()
		stats["notifier"] = s.notifier.Name()
	}

	return stats
}

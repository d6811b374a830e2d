// Package worker delivers queued alerts to notifiers off the ingestion path.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/fallsense/internal/adapters/mq/queue"
	"github.com/okian/fallsense/pkg/logger"
	"github.com/okian/fallsense/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultTimeout      = 3 * time.Second
	poolShutdownTimeout = 10 * time.Second
)

// Alert abstracts what workers read off the queue.
type Alert = queue.Alert

// Notifier delivers one alert. Implementations must honour ctx cancellation.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, a Alert) error
}

// Queue defines how workers receive alerts.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Alert
}

// Worker delivers alerts until its queue closes or it is shut down.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the in-flight delivery.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker. Each alert gets exactly one delivery
// attempt bounded by timeout; failures are logged and counted.
type InMemoryWorker struct {
	queue    Queue
	notifier Notifier
	name     string
	timeout  time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, n Notifier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		notifier: n,
		name:     "worker",
		timeout:  defaultTimeout,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	alerts := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case a, ok := <-alerts:
			if !ok {
				return
			}
			if err := w.deliver(ctx, a); err != nil {
				w.logger.Error(ctx, "alert delivery failed",
					logger.String("alert_id", a.ID),
					logger.String("notifier", w.notifier.Name()),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) deliver(ctx context.Context, a Alert) error {
	callCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	err := w.notifier.Notify(callCtx, a)
	latency := float64(time.Since(start).Microseconds()) / 1000

	metrics.RecordNotification(w.notifier.Name(), err == nil, latency)
	if err != nil {
		metrics.RecordErrorByComponent("worker", "delivery_failed")
		return fmt.Errorf("notify %s: %w", a.ID, err)
	}

	w.logger.Info(ctx, "alert delivered",
		logger.String("alert_id", a.ID),
		logger.String("notifier", w.notifier.Name()),
		logger.Float64("latency_ms", latency),
	)
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. Options apply to every worker.
func NewPool(workerCount int, q Queue, n Notifier, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, n, wopts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	stuck := 0
	for i, w := range p.workers {
		select {
		case <-w.done:
			continue
		default:
		}
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			stuck++
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			w.shutdownOnce.Do(func() { close(w.shutdown) })
		}
	}

	metrics.UpdateWorkerCount(0)
	if stuck > 0 {
		return fmt.Errorf("%w: %d of %d workers still delivering: %w",
			ErrShutdownTimeout, stuck, len(p.workers), shutdownCtx.Err())
	}
	return nil
}

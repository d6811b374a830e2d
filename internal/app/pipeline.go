// Package app wires the live fall-detection path: samples in, alerts out.
package app

import (
	"context"
	"fmt"
	"math"
	"net"
	"sync/atomic"
	"time"

	"github.com/okian/fallsense/internal/domain/classifier"
	"github.com/okian/fallsense/internal/domain/debounce"
	"github.com/okian/fallsense/internal/domain/gate"
	"github.com/okian/fallsense/internal/domain/model"
	"github.com/okian/fallsense/internal/domain/window"
	"github.com/okian/fallsense/pkg/logger"
	"github.com/okian/fallsense/pkg/metrics"
)

// Outcome is what happened to one ingested sample.
type Outcome int

// Outcomes.
const (
	Buffering Outcome = iota
	GateClosed
	BelowThreshold
	Suppressed
	Fired
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Buffering:
		return "buffering"
	case GateClosed:
		return "gate_closed"
	case BelowThreshold:
		return "below_threshold"
	case Suppressed:
		return "suppressed"
	case Fired:
		return "fired"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Acker acknowledges an alert to the sensor that produced it.
type Acker interface {
	Ack(to net.Addr) error
}

// Dispatcher hands alerts to asynchronous delivery. It must not block.
type Dispatcher interface {
	Enqueue(ctx context.Context, a model.Alert) bool
}

// Pipeline is the per-process ingestion state. It is owned by a single
// goroutine; only Stats may be called concurrently.
type Pipeline struct {
	buf      *window.Buffer
	gate     gate.Magnitude
	clf      classifier.Classifier
	debounce *debounce.Machine
	evict    int

	acker    Acker
	dispatch Dispatcher
	now      func() time.Time

	stats  counters
	logger logger.Logger
}

type counters struct {
	samples    atomic.Uint64
	windows    atomic.Uint64
	gateOpen   atomic.Uint64
	classified atomic.Uint64
	fired      atomic.Uint64
	suppressed atomic.Uint64
	dropped    atomic.Uint64
	failed     atomic.Uint64
	lastScore  atomic.Uint64 // math.Float64bits
	lastAlert  atomic.Int64  // unix nanos, 0 when none
}

// PipelineStats is a point-in-time copy of the pipeline counters.
type PipelineStats struct {
	Samples        uint64    `json:"samples"`
	Windows        uint64    `json:"windows"`
	GateOpen       uint64    `json:"gate_open"`
	Classified     uint64    `json:"classified"`
	Alerts         uint64    `json:"alerts"`
	Suppressed     uint64    `json:"suppressed"`
	DroppedAlerts  uint64    `json:"dropped_alerts"`
	Failures       uint64    `json:"failures"`
	LastScore      float64   `json:"last_score"`
	LastAlert      time.Time `json:"last_alert,omitempty"`
	BufferCapacity int       `json:"buffer_capacity"`
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithGate sets the magnitude gate thresholds in g.
func WithGate(high, low float64) PipelineOption {
	return func(p *Pipeline) { p.gate = gate.Magnitude{High: high, Low: low} }
}

// WithDebounce replaces the alert state machine.
func WithDebounce(m *debounce.Machine) PipelineOption {
	return func(p *Pipeline) {
		if m != nil {
			p.debounce = m
		}
	}
}

// WithEvict sets how many samples are dropped after an alert.
func WithEvict(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.evict = n
		}
	}
}

// WithAcker sets the acknowledgement sink.
func WithAcker(a Acker) PipelineOption {
	return func(p *Pipeline) { p.acker = a }
}

// WithDispatcher sets the alert delivery sink.
func WithDispatcher(d Dispatcher) PipelineOption {
	return func(p *Pipeline) { p.dispatch = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline builds a pipeline over a window of size samples. The
// classifier must accept exactly size*3 features.
func NewPipeline(size int, clf classifier.Classifier, opts ...PipelineOption) (*Pipeline, error) {
	buf, err := window.New(size)
	if err != nil {
		return nil, err
	}
	if want := model.FeatureLength(size); clf.Features() != want {
		return nil, fmt.Errorf("%w: model expects %d features, window of %d yields %d",
			classifier.ErrFeatureLength, clf.Features(), size, want)
	}

	p := &Pipeline{
		buf:      buf,
		gate:     gate.Magnitude{High: 2.0, Low: 0.5},
		clf:      clf,
		debounce: debounce.New(),
		evict:    size / 4,
		now:      time.Now,
		logger:   logger.Get().Named("pipeline"),
	}
	if p.evict < 1 {
		p.evict = 1
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.evict > size {
		p.evict = size
	}
	return p, nil
}

// HandleSample lets the pipeline serve as the UDP handler.
func (p *Pipeline) HandleSample(ctx context.Context, s model.Sample, from net.Addr) {
	p.Ingest(ctx, s, from)
}

// Ingest pushes one sample and, once the window is full, runs the gate,
// the classifier and the alert state machine over it.
func (p *Pipeline) Ingest(ctx context.Context, s model.Sample, from net.Addr) Outcome {
	p.stats.samples.Add(1)
	p.buf.Push(s)
	metrics.UpdateBufferFill(p.buf.Len())

	if !p.buf.Full() {
		return Buffering
	}

	w := p.buf.Snapshot()
	p.stats.windows.Add(1)
	metrics.RecordWindowEvaluated()

	res := p.gate.Evaluate(w)
	metrics.RecordGateDecision(res.Open, res.Max, res.Min)
	if !res.Open {
		return GateClosed
	}
	p.stats.gateOpen.Add(1)

	vec := model.Flatten(w)
	if len(vec) != p.clf.Features() {
		return p.fail(ctx, fmt.Errorf("%w: got %d, want %d", classifier.ErrFeatureLength, len(vec), p.clf.Features()))
	}

	start := time.Now()
	score, err := p.clf.Score(ctx, vec)
	if err != nil {
		return p.fail(ctx, err)
	}
	metrics.RecordClassification(float64(time.Since(start).Microseconds())/1000, score)
	p.stats.classified.Add(1)
	p.stats.lastScore.Store(math.Float64bits(score))

	now := p.now()
	d := p.debounce.Evaluate(now, score)
	switch d.Reason {
	case debounce.ReasonBelowThreshold:
		return BelowThreshold
	case debounce.ReasonCooldown:
		p.stats.suppressed.Add(1)
		metrics.RecordAlertSuppressed(string(d.Reason))
		p.logger.Debug(ctx, "alert suppressed by cooldown", logger.Float64("score", score))
		return Suppressed
	}

	p.fire(ctx, now, score, res, from)
	return Fired
}

func (p *Pipeline) fire(ctx context.Context, now time.Time, score float64, res gate.Result, from net.Addr) {
	source := ""
	if from != nil {
		source = from.String()
	}

	a := model.NewAlert(now, score, source)
	a.MaxMagnitude, a.MinMagnitude = res.Max, res.Min

	p.stats.fired.Add(1)
	p.stats.lastAlert.Store(now.UnixNano())
	metrics.RecordAlertFired(float64(now.UnixNano()) / 1e9)

	p.logger.Warn(ctx, "fall alert",
		logger.String("alert_id", a.ID),
		logger.Float64("confidence", score),
		logger.String("source", source),
		logger.Float64("max_magnitude", res.Max),
		logger.Float64("min_magnitude", res.Min),
	)

	if p.acker != nil && from != nil {
		if err := p.acker.Ack(from); err != nil {
			p.logger.Warn(ctx, "ack failed", logger.String("source", source), logger.Error(err))
		}
	}

	if p.dispatch != nil && !p.dispatch.Enqueue(ctx, a) {
		p.stats.dropped.Add(1)
		p.logger.Warn(ctx, "alert dropped by dispatcher", logger.String("alert_id", a.ID))
	}

	p.buf.Evict(p.evict)
	metrics.UpdateBufferFill(p.buf.Len())
}

func (p *Pipeline) fail(ctx context.Context, err error) Outcome {
	p.stats.failed.Add(1)
	metrics.RecordErrorByComponent("pipeline", "classify")
	p.logger.Error(ctx, "classification failed", logger.Error(err))
	return Failed
}

// BufferLen reports the number of buffered samples. Owner goroutine only.
func (p *Pipeline) BufferLen() int { return p.buf.Len() }

// Stats returns a copy of the counters. Safe for concurrent use.
func (p *Pipeline) Stats() PipelineStats {
	st := PipelineStats{
		Samples:        p.stats.samples.Load(),
		Windows:        p.stats.windows.Load(),
		GateOpen:       p.stats.gateOpen.Load(),
		Classified:     p.stats.classified.Load(),
		Alerts:         p.stats.fired.Load(),
		Suppressed:     p.stats.suppressed.Load(),
		DroppedAlerts:  p.stats.dropped.Load(),
		Failures:       p.stats.failed.Load(),
		LastScore:      math.Float64frombits(p.stats.lastScore.Load()),
		BufferCapacity: p.buf.Cap(),
	}
	if ns := p.stats.lastAlert.Load(); ns != 0 {
		st.LastAlert = time.Unix(0, ns).UTC()
	}
	return st
}

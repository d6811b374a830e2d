// Package metrics provides Prometheus metrics for the fallsense pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	constLabels    prometheus.Labels
	registry       prometheus.Registerer

	// Ingestion
	samplesReceived prometheus.Counter
	samplesRejected *prometheus.CounterVec
	bufferFill      prometheus.Gauge

	// Evaluation
	windowsEvaluated  prometheus.Counter
	gateDecisions     *prometheus.CounterVec
	windowMagnitude   *prometheus.HistogramVec
	classifierLatency prometheus.Histogram
	classifierScore   prometheus.Histogram

	// Alerts
	alertsFired      prometheus.Counter
	alertsSuppressed *prometheus.CounterVec
	acks             *prometheus.CounterVec
	lastAlertUnix    prometheus.Gauge

	// Notification delivery
	notifications       *prometheus.CounterVec
	notificationLatency *prometheus.HistogramVec

	// Queue
	queueCapacity      prometheus.Gauge
	queueSize          prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Workers
	workerCount prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the Record*/Update* helpers

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // shared exposition registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Init rebuilds the global manager on a fresh registry with opts, for
// deployment-specific buckets and constant labels. Call it once at startup,
// before anything records and before GetRegistry is handed to an exporter.
func Init(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(customRegistry))...)
}

// NewManager creates a new metrics manager registered on the configured registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "fallsense",
		subsystem:      "live",
		latencyBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		registry:       prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collector definitions
	auto := promauto.With(m.registry)

	m.samplesReceived = auto.NewCounter(m.counterOpts("samples_received_total",
		"Datagrams read from the sample socket"))
	m.samplesRejected = auto.NewCounterVec(m.counterOpts("samples_rejected_total",
		"Datagrams dropped by the decoder, by reason"), []string{"reason"})
	m.bufferFill = auto.NewGauge(m.gaugeOpts("buffer_fill",
		"Samples currently held in the sliding window"))

	m.windowsEvaluated = auto.NewCounter(m.counterOpts("windows_evaluated_total",
		"Full windows presented to the magnitude gate"))
	m.gateDecisions = auto.NewCounterVec(m.counterOpts("gate_decisions_total",
		"Magnitude gate outcomes"), []string{"decision"})
	m.windowMagnitude = auto.NewHistogramVec(m.histogramOpts("window_magnitude_g",
		"Window magnitude extrema in g", []float64{0.1, 0.25, 0.5, 0.75, 1, 1.25, 1.5, 2, 2.5, 3, 4, 6, 8, 16}),
		[]string{"extremum"})
	m.classifierLatency = auto.NewHistogram(m.histogramOpts("classifier_latency_milliseconds",
		"Classifier scoring latency in milliseconds", m.latencyBuckets))
	m.classifierScore = auto.NewHistogram(m.histogramOpts("classifier_score",
		"Fall probability returned by the classifier", prometheus.LinearBuckets(0, 0.1, 11)))

	m.alertsFired = auto.NewCounter(m.counterOpts("alerts_fired_total",
		"Fall alerts emitted by the debounce state machine"))
	m.alertsSuppressed = auto.NewCounterVec(m.counterOpts("alerts_suppressed_total",
		"Classified windows that did not fire, by reason"), []string{"reason"})
	m.acks = auto.NewCounterVec(m.counterOpts("acks_total",
		"Acknowledgements written back to sensors"), []string{"result"})
	m.lastAlertUnix = auto.NewGauge(m.gaugeOpts("last_alert_unix",
		"Unix timestamp of the most recent alert"))

	m.notifications = auto.NewCounterVec(m.counterOpts("notifications_total",
		"Notification delivery attempts by notifier and result"), []string{"notifier", "result"})
	m.notificationLatency = auto.NewHistogramVec(m.histogramOpts("notification_latency_milliseconds",
		"Notification delivery latency in milliseconds", m.latencyBuckets), []string{"notifier"})

	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum alert queue capacity"))
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Alerts waiting for delivery"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Alerts enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Alerts dequeued"))
	m.queueEnqueueErrors = auto.NewCounterVec(m.counterOpts("queue_enqueue_errors_total",
		"Alerts dropped at enqueue, by reason"), []string{"reason"})

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Notification workers running"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Ops HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"Ops HTTP request duration in milliseconds", m.latencyBuckets), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Contained errors by component and type"), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds",
		"Average GC pause time in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Ingestion.

// RecordSampleReceived counts a datagram read from the sample socket.
// Senders are not labelled: any UDP source could mint new series.
func RecordSampleReceived() {
	globalManager.samplesReceived.Inc()
}

// RecordSampleRejected counts a dropped datagram.
func RecordSampleRejected(reason string) {
	globalManager.samplesRejected.WithLabelValues(reason).Inc()
}

// UpdateBufferFill sets the sliding window occupancy.
func UpdateBufferFill(n int) {
	globalManager.bufferFill.Set(float64(n))
}

// Evaluation.

// RecordWindowEvaluated counts a full window reaching the gate.
func RecordWindowEvaluated() {
	globalManager.windowsEvaluated.Inc()
}

// RecordGateDecision counts a gate outcome and observes the window extrema.
func RecordGateDecision(open bool, maxMag, minMag float64) {
	decision := "closed"
	if open {
		decision = "open"
	}
	globalManager.gateDecisions.WithLabelValues(decision).Inc()
	globalManager.windowMagnitude.WithLabelValues("max").Observe(maxMag)
	globalManager.windowMagnitude.WithLabelValues("min").Observe(minMag)
}

// RecordClassification observes classifier latency and score.
func RecordClassification(latencyMs, score float64) {
	globalManager.classifierLatency.Observe(latencyMs)
	globalManager.classifierScore.Observe(score)
}

// Alerts.

// RecordAlertFired counts an alert and stamps its time.
func RecordAlertFired(unix float64) {
	globalManager.alertsFired.Inc()
	globalManager.lastAlertUnix.Set(unix)
}

// RecordAlertSuppressed counts a classified window that did not fire.
func RecordAlertSuppressed(reason string) {
	globalManager.alertsSuppressed.WithLabelValues(reason).Inc()
}

// RecordAck counts an acknowledgement attempt.
func RecordAck(ok bool) {
	result := "sent"
	if !ok {
		result = "failed"
	}
	globalManager.acks.WithLabelValues(result).Inc()
}

// Notification delivery.

// RecordNotification counts a delivery attempt and its latency.
func RecordNotification(notifier string, ok bool, latencyMs float64) {
	result := "sent"
	if !ok {
		result = "failed"
	}
	globalManager.notifications.WithLabelValues(notifier, result).Inc()
	globalManager.notificationLatency.WithLabelValues(notifier).Observe(latencyMs)
}

// Queue.

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts an alert dropped at enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of running notification workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// HTTP.

// RecordHTTPRequest records an ops HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records a contained error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Sum gathers the custom registry and returns the summed value of every
// counter or gauge series in the family name (fully qualified).
func Sum(name string) (float64, error) {
	families, err := customRegistry.Gather()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrGather, err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				total += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				total += metric.GetGauge().GetValue()
			}
		}
		return total, nil
	}
	return 0, nil
}

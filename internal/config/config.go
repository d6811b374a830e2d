// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New returns defaults; Load layers a YAML file and FALLSENSE_* env vars on top.
// - Validate reports every problem wrapped in ErrInvalidConfig.
package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/okian/fallsense/internal/domain/model"
)

// Config contains process configuration for both the live server and the
// offline preparation tool.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// ListenAddr is the UDP address sensors send samples to.
	ListenAddr string `koanf:"listen_addr"`

	// OpsAddr serves /healthz, /metrics and /stats. Empty disables it.
	OpsAddr string `koanf:"ops_addr"`

	// MaxDatagram bounds the accepted payload size in bytes.
	MaxDatagram int `koanf:"max_datagram"`

	// SampleScale multiplies every decoded axis to obtain g.
	// 1.0 for firmware reporting g, 1/9.81 for firmware reporting m/s².
	SampleScale float64 `koanf:"sample_scale"`

	// AckPayload is written back to the sensor when an alert fires.
	AckPayload string `koanf:"ack_payload"`

	// ModelPath points at the classifier artifact.
	ModelPath string `koanf:"model_path"`

	// WindowSize is W, shared by the live buffer and the offline windower.
	WindowSize int `koanf:"window_size"`

	// Overlap is the offline window overlap ratio in [0,1).
	Overlap float64 `koanf:"overlap"`

	// GateHigh and GateLow are the magnitude gate thresholds in g.
	GateHigh float64 `koanf:"gate_high"`
	GateLow  float64 `koanf:"gate_low"`

	// DecisionThreshold is the score a window must exceed to alert.
	DecisionThreshold float64 `koanf:"decision_threshold"`

	// CooldownSeconds is the minimum spacing between alerts.
	CooldownSeconds float64 `koanf:"cooldown_seconds"`

	// AlertEvict is how many of the oldest samples are dropped after an alert.
	// WindowSize clears the whole window.
	AlertEvict int `koanf:"alert_evict"`

	// NotifyURL is the webhook endpoint; empty disables webhook delivery.
	NotifyURL string `koanf:"notify_url"`

	// NotifyToken is the endpoint credential.
	NotifyToken string `koanf:"notify_token"`

	// NotifyTimeoutMS bounds each delivery attempt.
	NotifyTimeoutMS int `koanf:"notify_timeout_ms"`

	// NotifyQueueSize bounds pending alerts; alerts beyond it are dropped.
	NotifyQueueSize int `koanf:"notify_queue_size"`

	// NotifyWorkers is the number of delivery goroutines.
	NotifyWorkers int `koanf:"notify_workers"`

	// MQTTBroker (tcp://host:1883) enables MQTT alert publishing.
	MQTTBroker   string `koanf:"mqtt_broker"`
	MQTTTopic    string `koanf:"mqtt_topic"`
	MQTTClientID string `koanf:"mqtt_client_id"`

	// MetricsSite, when set, is attached to every metric as a constant "site" label.
	MetricsSite string `koanf:"metrics_site"`

	// MetricsLatencyBuckets overrides the latency histogram buckets, in
	// milliseconds, as a comma-separated ascending list. Empty keeps the defaults.
	MetricsLatencyBuckets string `koanf:"metrics_latency_buckets"`

	// DatasetDir is the root of archived trial files.
	DatasetDir string `koanf:"dataset_dir"`

	// OutputPath is where training tensors are written.
	OutputPath string `koanf:"output_path"`

	// SplitRatio is the train share of each subject group.
	SplitRatio float64 `koanf:"split_ratio"`

	// Downsample keeps every n-th archived row.
	Downsample int `koanf:"downsample"`

	// RawScale converts archived ADC counts to g.
	RawScale float64 `koanf:"raw_scale"`

	// MinFields is the minimum column count of a well-formed archived row.
	MinFields int `koanf:"min_fields"`

	// Seed drives the train/test split; 0 picks a time-based seed.
	Seed int64 `koanf:"seed"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		ListenAddr:        ":4210",
		OpsAddr:           ":9080",
		MaxDatagram:       1024,
		SampleScale:       1.0,
		AckPayload:        "FALL",
		ModelPath:         "fall_model.json",
		WindowSize:        200,
		Overlap:           0.5,
		GateHigh:          2.0,
		GateLow:           0.5,
		DecisionThreshold: 0.5,
		CooldownSeconds:   10,
		AlertEvict:        50,
		NotifyTimeoutMS:   3000,
		NotifyQueueSize:   64,
		NotifyWorkers:     1,
		MQTTTopic:         "fallsense/alerts",
		MQTTClientID:      "fallsense",
		DatasetDir:        "SisFall_dataset",
		OutputPath:        "processed_data.npz",
		SplitRatio:        0.8,
		Downsample:        4,
		RawScale:          0.004,
		MinFields:         9,
	}
}

// Cooldown returns CooldownSeconds as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds * float64(time.Second))
}

// NotifyTimeout returns NotifyTimeoutMS as a duration.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutMS) * time.Millisecond
}

// LatencyBuckets parses MetricsLatencyBuckets. Nil means defaults.
func (c *Config) LatencyBuckets() ([]float64, error) {
	raw := strings.TrimSpace(c.MetricsLatencyBuckets)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	buckets := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || !finitePositive(v) {
			return nil, fmt.Errorf("metrics_latency_buckets: %q is not a positive number", p)
		}
		if n := len(buckets); n > 0 && v <= buckets[n-1] {
			return nil, errors.New("metrics_latency_buckets: must be strictly ascending")
		}
		buckets = append(buckets, v)
	}
	return buckets, nil
}

// FeatureLength is the classifier input length implied by WindowSize.
func (c *Config) FeatureLength() int {
	return model.FeatureLength(c.WindowSize)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var v validator
	c.checkLive(&v)
	c.checkOffline(&v)
	return v.err()
}

// ValidateOffline checks only what the preparation tool reads, so a small
// offline window is not rejected by live-only constraints such as alert_evict.
func (c *Config) ValidateOffline() error {
	var v validator
	c.checkOffline(&v)
	return v.err()
}

func (c *Config) checkLive(v *validator) {
	v.check(strings.TrimSpace(c.ListenAddr) != "", "listen_addr must not be empty")
	v.check(c.MaxDatagram > 0, "max_datagram must be positive")
	v.check(finitePositive(c.SampleScale), "sample_scale must be a positive number")
	v.check(c.AckPayload != "", "ack_payload must not be empty")
	v.check(c.GateLow >= 0 && c.GateHigh > c.GateLow, "gate thresholds must satisfy 0 <= gate_low < gate_high")
	v.check(c.DecisionThreshold >= 0 && c.DecisionThreshold < 1, "decision_threshold must be in [0,1)")
	v.check(c.CooldownSeconds >= 0, "cooldown_seconds must not be negative")
	v.check(c.AlertEvict >= 1 && c.AlertEvict <= c.WindowSize, "alert_evict must be in [1, window_size]")
	v.check(c.NotifyTimeoutMS > 0, "notify_timeout_ms must be positive")
	v.check(c.NotifyQueueSize > 0, "notify_queue_size must be positive")
	v.check(c.NotifyWorkers > 0, "notify_workers must be positive")
	v.check(c.MQTTBroker == "" || c.MQTTTopic != "", "mqtt_topic must be set when mqtt_broker is")
	if _, err := c.LatencyBuckets(); err != nil {
		v.errs = append(v.errs, err)
	}
}

func (c *Config) checkOffline(v *validator) {
	v.check(c.WindowSize > 0, "window_size must be positive")
	v.check(c.Overlap >= 0 && c.Overlap < 1, "overlap must be in [0,1)")
	v.check(c.SplitRatio >= 0 && c.SplitRatio <= 1, "split_ratio must be in [0,1]")
	v.check(c.Downsample >= 1, "downsample must be at least 1")
	v.check(finitePositive(c.RawScale), "raw_scale must be a positive number")
	v.check(c.MinFields >= 3, "min_fields must be at least 3")
}

type validator struct {
	errs []error
}

func (v *validator) check(ok bool, format string, args ...any) {
	if !ok {
		v.errs = append(v.errs, fmt.Errorf(format, args...))
	}
}

func (v *validator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(v.errs...))
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

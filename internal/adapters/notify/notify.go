// Package notify delivers fired alerts to external systems.
//
// Every Notifier makes one attempt per alert and honours ctx for its deadline.
// Nothing is retried.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/fallsense/internal/domain/model"
	"github.com/okian/fallsense/pkg/logger"
)

// Notifier delivers one alert.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, a model.Alert) error
}

// Payload is the JSON body sent to webhooks and MQTT subscribers.
type Payload struct {
	ID           string  `json:"id"`
	Timestamp    string  `json:"timestamp"`
	Confidence   float64 `json:"confidence"`
	Source       string  `json:"source,omitempty"`
	MaxMagnitude float64 `json:"max_magnitude"`
	MinMagnitude float64 `json:"min_magnitude"`
}

// NewPayload renders an alert for the wire.
func NewPayload(a model.Alert) Payload {
	return Payload{
		ID:           a.ID,
		Timestamp:    a.Timestamp.UTC().Format(time.RFC3339Nano),
		Confidence:   a.Confidence,
		Source:       a.Source,
		MaxMagnitude: a.MaxMagnitude,
		MinMagnitude: a.MinMagnitude,
	}
}

// Log writes alerts to the structured log. It never fails.
type Log struct {
	logger logger.Logger
}

// NewLog creates a Log notifier.
func NewLog() *Log {
	return &Log{logger: logger.Get().Named("alerts")}
}

// Name implements Notifier.
func (l *Log) Name() string { return "log" }

// Notify implements Notifier.
func (l *Log) Notify(ctx context.Context, a model.Alert) error {
	l.logger.Warn(ctx, "fall detected",
		logger.String("alert_id", a.ID),
		logger.Time("timestamp", a.Timestamp),
		logger.Float64("confidence", a.Confidence),
		logger.String("source", a.Source),
		logger.Float64("max_magnitude", a.MaxMagnitude),
		logger.Float64("min_magnitude", a.MinMagnitude),
	)
	return nil
}

// Multi fans an alert out to every member concurrently. Each member gets its
// own deadline, so a stalled endpoint cannot starve the others.
type Multi struct {
	members []Notifier
	timeout time.Duration
}

// NewMulti creates a fan-out. A zero timeout leaves members on the caller's deadline.
func NewMulti(timeout time.Duration, members ...Notifier) *Multi {
	return &Multi{members: members, timeout: timeout}
}

// Add appends a member.
func (m *Multi) Add(n Notifier) { m.members = append(m.members, n) }

// Len returns the number of members.
func (m *Multi) Len() int { return len(m.members) }

// Name implements Notifier.
func (m *Multi) Name() string { return "multi" }

// Notify implements Notifier. A failing member does not stop the others;
// errors are joined in member order.
func (m *Multi) Notify(ctx context.Context, a model.Alert) error {
	errs := make([]error, len(m.members))
	var wg sync.WaitGroup
	for i, n := range m.members {
		i, n := i, n
		wg.Add(1)
		go func() {
			defer wg.Done()
			callCtx := ctx
			if m.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, m.timeout)
				defer cancel()
			}
			if err := n.Notify(callCtx, a); err != nil {
				errs[i] = fmt.Errorf("%s: %w", n.Name(), err)
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

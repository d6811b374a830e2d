// Package debounce turns per-window fall scores into at most one alert per cooldown.
package debounce

import (
	"time"
)

const (
	defaultThreshold = 0.5
	defaultCooldown  = 10 * time.Second
)

// State of the alert machine.
type State int

// States.
const (
	Idle State = iota
	Cooldown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Cooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Reason explains an Evaluate outcome.
type Reason string

// Reasons.
const (
	ReasonFired          Reason = "fired"
	ReasonBelowThreshold Reason = "below_threshold"
	ReasonCooldown       Reason = "cooldown"
)

// Decision is the result of one evaluation.
type Decision struct {
	Fire   bool
	Reason Reason
}

// Machine holds the alert state. The Cooldown -> Idle transition is implicit:
// it is observed through the elapsed-time guard on the next evaluation.
// Machine is not safe for concurrent use; it is owned by the ingestion loop.
type Machine struct {
	threshold float64
	cooldown  time.Duration

	last  time.Time
	fired bool
}

// New creates a Machine with configuration options.
func New(opts ...Option) *Machine {
	m := &Machine{
		threshold: defaultThreshold,
		cooldown:  defaultCooldown,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Evaluate applies the decision threshold and the cooldown guard to score
// observed at now. On fire the last-alert timestamp moves to now.
func (m *Machine) Evaluate(now time.Time, score float64) Decision {
	if score <= m.threshold {
		return Decision{Reason: ReasonBelowThreshold}
	}
	if m.fired && now.Sub(m.last) <= m.cooldown {
		return Decision{Reason: ReasonCooldown}
	}
	m.last = now
	m.fired = true
	return Decision{Fire: true, Reason: ReasonFired}
}

// State reports the state as observed at now.
func (m *Machine) State(now time.Time) State {
	if m.fired && now.Sub(m.last) <= m.cooldown {
		return Cooldown
	}
	return Idle
}

// LastAlert returns the time of the most recent alert, if any.
func (m *Machine) LastAlert() (time.Time, bool) {
	return m.last, m.fired
}

// Threshold returns the configured decision threshold.
func (m *Machine) Threshold() float64 { return m.threshold }

// CooldownPeriod returns the configured cooldown.
func (m *Machine) CooldownPeriod() time.Duration { return m.cooldown }

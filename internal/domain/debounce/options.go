// Package debounce turns per-window fall scores into at most one alert per cooldown.
package debounce

import "time"

// Option applies a configuration option to the Machine.
type Option func(*Machine)

// WithThreshold sets the decision threshold a score must strictly exceed.
func WithThreshold(threshold float64) Option {
	return func(m *Machine) {
		if threshold >= 0 && threshold <= 1 {
			m.threshold = threshold
		}
	}
}

// WithCooldown sets the minimum spacing between two alerts.
func WithCooldown(cooldown time.Duration) Option {
	return func(m *Machine) {
		if cooldown >= 0 {
			m.cooldown = cooldown
		}
	}
}

// Package replay streams recorded or synthetic accelerometer samples to a
// live server over UDP and reports the acknowledgements it gets back.
package replay

import "time"

// Config holds configuration for a replay run.
type Config struct {
	Target    string        // UDP address of the live server
	HealthURL string        // optional ops /healthz URL checked before sending
	TrialPath string        // archived trial to replay; empty means synthetic
	Read      ReadScale     // archived trial parsing
	Rate      float64       // samples per second; 0 sends as fast as possible
	Scale     float64       // multiplier from g to the wire unit
	Repeat    int           // number of passes over the samples
	AckWait   time.Duration // how long to keep listening after the last sample
	Seed      int64         // synthetic noise seed
	Timeout   time.Duration // health check timeout
}

// ReadScale mirrors the archived trial parsing knobs.
type ReadScale struct {
	Downsample int
	RawScale   float64
	MinFields  int
}

// Stats holds replay statistics.
type Stats struct {
	SamplesSent   int
	SendErrors    int
	Acks          int
	FirstAckAfter time.Duration // since the first sample; zero when no ack arrived
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
}

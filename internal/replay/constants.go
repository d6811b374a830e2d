package replay

import "time"

// Defaults.
const (
	DefaultTarget  = "127.0.0.1:4210"
	DefaultRate    = 50.0
	DefaultAckWait = 2 * time.Second
	DefaultTimeout = 5 * time.Second

	ackBufferSize = 64
)

// Synthetic fall shape, in samples at 50 Hz and g.
const (
	restSamples     = 150
	freeFallSamples = 15
	impactSamples   = 5
	settleSamples   = 180

	freeFallG = 0.2
	impactG   = 3.2
	noiseG    = 0.02
)

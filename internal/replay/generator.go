package replay

import (
	"math/rand"

	"github.com/okian/fallsense/internal/domain/model"
)

// SyntheticFall returns a standing, free-fall, impact, lying sequence that
// opens the magnitude gate on both thresholds.
func SyntheticFall(seed int64) []model.Sample {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // test signal, not crypto
	noise := func() float64 { return (rng.Float64()*2 - 1) * noiseG }

	out := make([]model.Sample, 0, restSamples+freeFallSamples+impactSamples+settleSamples)
	for i := 0; i < restSamples; i++ {
		out = append(out, model.Sample{AX: noise(), AY: noise(), AZ: 1 + noise()})
	}
	for i := 0; i < freeFallSamples; i++ {
		out = append(out, model.Sample{AX: noise(), AY: noise(), AZ: freeFallG + noise()})
	}
	for i := 0; i < impactSamples; i++ {
		out = append(out, model.Sample{AX: impactG * 0.6, AY: noise(), AZ: impactG * 0.8})
	}
	// Lying on the side: gravity moves to the x axis.
	for i := 0; i < settleSamples; i++ {
		out = append(out, model.Sample{AX: 1 + noise(), AY: noise(), AZ: noise()})
	}
	return out
}

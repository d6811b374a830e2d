// Package gate implements the magnitude pre-filter that decides whether a
// full window is worth classifying.
package gate

import (
	"gonum.org/v1/gonum/floats"

	"github.com/okian/fallsense/internal/domain/model"
)

// Magnitude opens when the window's peak acceleration exceeds High or its
// trough drops below Low (free fall). Thresholds are in g.
type Magnitude struct {
	High float64
	Low  float64
}

// Result carries the decision and the window extrema it was based on.
type Result struct {
	Open bool
	Max  float64
	Min  float64
}

// Evaluate computes per-sample norms over w and applies the thresholds.
// An empty window never opens the gate.
func (g Magnitude) Evaluate(w model.Window) Result {
	if len(w) == 0 {
		return Result{}
	}
	mags := make([]float64, len(w))
	for i, s := range w {
		mags[i] = s.Magnitude()
	}
	maxMag := floats.Max(mags)
	minMag := floats.Min(mags)
	return Result{
		Open: maxMag > g.High || minMag < g.Low,
		Max:  maxMag,
		Min:  minMag,
	}
}

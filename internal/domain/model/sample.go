// Package model contains domain models passed between layers.
package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Axes is the number of acceleration axes per sample.
const Axes = 3

// Sample is one tri-axial acceleration reading in g.
type Sample struct {
	AX float64
	AY float64
	AZ float64
}

// Magnitude returns the Euclidean norm of the sample.
func (s Sample) Magnitude() float64 {
	return math.Sqrt(s.AX*s.AX + s.AY*s.AY + s.AZ*s.AZ)
}

// Window is an ordered run of consecutive samples, oldest first.
type Window []Sample

// FeatureVector is the row-major flattening of a Window: sample-major, then ax, ay, az.
type FeatureVector []float64

// Flatten converts w into the classifier input layout. Both the live buffer
// and the offline windower go through this function so that a model trained
// on one is valid against the other.
func Flatten(w Window) FeatureVector {
	out := make(FeatureVector, 0, len(w)*Axes)
	for _, s := range w {
		out = append(out, s.AX, s.AY, s.AZ)
	}
	return out
}

// FeatureLength returns the feature vector length for a window of size w.
func FeatureLength(w int) int {
	return w * Axes
}

// Label is the binary training target.
type Label int

// Labels.
const (
	LabelADL  Label = 0 // activities of daily living
	LabelFall Label = 1
)

// Trial is one archived recording after preprocessing.
type Trial struct {
	Path    string
	Subject string
	Fall    bool // applies to every sample of the trial
	Samples []Sample
}

// Alert is emitted when the debounce state machine fires.
type Alert struct {
	ID           string
	Timestamp    time.Time
	Confidence   float64 // fall probability in [0,1]
	Source       string  // sensor address the triggering window came from
	MaxMagnitude float64
	MinMagnitude float64
}

// NewAlert stamps a new alert with a random ID.
func NewAlert(ts time.Time, confidence float64, source string) Alert {
	return Alert{
		ID:         uuid.NewString(),
		Timestamp:  ts,
		Confidence: confidence,
		Source:     source,
	}
}

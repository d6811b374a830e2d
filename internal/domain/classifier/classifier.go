// Package classifier defines the port over an opaque, pre-trained fall model.
//
// A Classifier maps a flattened window to the probability that it contains a
// fall. Implementations are deterministic for a fixed artifact, side-effect
// free and never retry; the only failure mode at runtime is a feature vector
// of the wrong length, which callers rule out before scoring.
package classifier

import (
	"context"
	"fmt"

	"github.com/okian/fallsense/internal/domain/model"
)

// Classifier scores feature vectors.
type Classifier interface {
	// Score returns a fall probability in [0,1].
	Score(ctx context.Context, vec model.FeatureVector) (float64, error)

	// Features returns the feature vector length the model was trained on.
	Features() int
}

// Func adapts a plain function to Classifier.
type Func struct {
	N  int
	Fn func(vec model.FeatureVector) float64
}

// Score implements Classifier.
func (f Func) Score(_ context.Context, vec model.FeatureVector) (float64, error) {
	if err := checkLength(vec, f.N); err != nil {
		return 0, err
	}
	return clamp01(f.Fn(vec)), nil
}

// Features implements Classifier.
func (f Func) Features() int { return f.N }

func checkLength(vec model.FeatureVector, n int) error {
	if len(vec) != n {
		return fmt.Errorf("%w: got %d, want %d", ErrFeatureLength, len(vec), n)
	}
	return nil
}

func clamp01(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

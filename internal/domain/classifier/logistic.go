package classifier

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/okian/fallsense/internal/domain/model"
)

// Logistic is a linear model squashed through the logistic function.
type Logistic struct {
	weights []float64
	bias    float64
}

// NewLogistic builds a logistic model; len(weights) fixes the feature count.
func NewLogistic(weights []float64, bias float64) (*Logistic, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("logistic: no weights")
	}
	return &Logistic{weights: weights, bias: bias}, nil
}

// Score implements Classifier.
func (l *Logistic) Score(_ context.Context, vec model.FeatureVector) (float64, error) {
	if err := checkLength(vec, len(l.weights)); err != nil {
		return 0, err
	}
	z := floats.Dot(l.weights, vec) + l.bias
	return 1 / (1 + math.Exp(-z)), nil
}

// Features implements Classifier.
func (l *Logistic) Features() int { return len(l.weights) }

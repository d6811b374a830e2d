package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Model kinds understood by Load.
const (
	KindForest   = "forest"
	KindLogistic = "logistic"
)

// Artifact is the on-disk model description exported by the training job.
type Artifact struct {
	Kind      string    `json:"kind"`
	NFeatures int       `json:"n_features"`
	Trees     []Tree    `json:"trees,omitempty"`
	Weights   []float64 `json:"weights,omitempty"`
	Bias      float64   `json:"bias,omitempty"`
}

// LoadOption configures Load.
type LoadOption func(*loadConfig)

type loadConfig struct {
	features int
}

// WithExpectedFeatures rejects artifacts trained on a different feature count.
// Pass model.FeatureLength(windowSize) so a model trained on another window
// size cannot be loaded.
func WithExpectedFeatures(n int) LoadOption {
	return func(c *loadConfig) {
		c.features = n
	}
}

// Load reads the artifact at path. Every failure wraps ErrModelLoad.
func Load(ctx context.Context, path string, opts ...LoadOption) (Classifier, error) {
	cfg := loadConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	var art Artifact
	if err := json.Unmarshal(raw, &art); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrModelLoad, path, err)
	}

	clf, err := FromArtifact(art)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, path, err)
	}

	if cfg.features > 0 && clf.Features() != cfg.features {
		return nil, fmt.Errorf("%w: %s expects %d features, pipeline produces %d",
			ErrModelLoad, path, clf.Features(), cfg.features)
	}
	return clf, nil
}

// FromArtifact builds a Classifier from a decoded artifact.
func FromArtifact(art Artifact) (Classifier, error) {
	switch art.Kind {
	case KindForest:
		return NewForest(art.NFeatures, art.Trees)
	case KindLogistic:
		if art.NFeatures != 0 && art.NFeatures != len(art.Weights) {
			return nil, fmt.Errorf("logistic: n_features %d != %d weights", art.NFeatures, len(art.Weights))
		}
		return NewLogistic(art.Weights, art.Bias)
	default:
		return nil, fmt.Errorf("unknown model kind %q", art.Kind)
	}
}

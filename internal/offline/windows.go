package offline

import (
	"fmt"

	"github.com/okian/fallsense/internal/domain/model"
)

// Step is the hop between window starts: W*(1-overlap), at least 1.
func Step(size int, overlap float64) int {
	step := int(float64(size) * (1 - overlap))
	if step < 1 {
		step = 1
	}
	return step
}

// Windows slices every trial into windows of size samples starting at
// 0, step, 2*step... while the window fits. A window is labelled fall when
// its trial is a fall trial.
func Windows(trials []model.Trial, size int, overlap float64) ([]model.FeatureVector, []model.Label, error) {
	if size < 1 || overlap < 0 || overlap >= 1 {
		return nil, nil, fmt.Errorf("%w: size %d, overlap %v", ErrWindow, size, overlap)
	}
	step := Step(size, overlap)

	var (
		features []model.FeatureVector
		labels   []model.Label
	)
	for _, t := range trials {
		label := model.LabelADL
		if t.Fall {
			label = model.LabelFall
		}
		for start := 0; start+size <= len(t.Samples); start += step {
			features = append(features, model.Flatten(t.Samples[start:start+size]))
			labels = append(labels, label)
		}
	}
	return features, labels, nil
}

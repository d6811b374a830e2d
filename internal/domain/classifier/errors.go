package classifier

import "errors"

// Sentinel kinds for classifier errors.
var (
	ErrModelLoad     = errors.New("model load failed")
	ErrFeatureLength = errors.New("feature vector length mismatch")
)

package classifier

import (
	"context"
	"fmt"

	"github.com/okian/fallsense/internal/domain/model"
)

// Node is one decision-tree node. Leaves have Feature < 0 and carry the
// class-1 probability in Value. Internal nodes route left when
// x[Feature] <= Threshold.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// Tree is a flat node table rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest averages leaf probabilities over its trees, matching predict_proba
// of a bagged tree ensemble.
type Forest struct {
	n     int
	trees []Tree
}

// NewForest validates the node tables against n features.
func NewForest(n int, trees []Tree) (*Forest, error) {
	if n < 1 {
		return nil, fmt.Errorf("forest: n_features must be positive, got %d", n)
	}
	if len(trees) == 0 {
		return nil, fmt.Errorf("forest: no trees")
	}
	for ti, t := range trees {
		if err := validateTree(t, n); err != nil {
			return nil, fmt.Errorf("forest: tree %d: %w", ti, err)
		}
	}
	return &Forest{n: n, trees: trees}, nil
}

func validateTree(t Tree, n int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty node table")
	}
	for i, nd := range t.Nodes {
		if nd.Feature < 0 {
			if nd.Value < 0 || nd.Value > 1 {
				return fmt.Errorf("node %d: leaf value %v outside [0,1]", i, nd.Value)
			}
			continue
		}
		if nd.Feature >= n {
			return fmt.Errorf("node %d: feature %d out of range", i, nd.Feature)
		}
		// children must point forward so traversal always terminates
		if nd.Left <= i || nd.Right <= i || nd.Left >= len(t.Nodes) || nd.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: invalid children %d/%d", i, nd.Left, nd.Right)
		}
	}
	return nil
}

// Score implements Classifier.
func (f *Forest) Score(_ context.Context, vec model.FeatureVector) (float64, error) {
	if err := checkLength(vec, f.n); err != nil {
		return 0, err
	}
	var sum float64
	for _, t := range f.trees {
		sum += t.leaf(vec)
	}
	return sum / float64(len(f.trees)), nil
}

// Features implements Classifier.
func (f *Forest) Features() int { return f.n }

func (t Tree) leaf(vec model.FeatureVector) float64 {
	i := 0
	for {
		nd := t.Nodes[i]
		if nd.Feature < 0 {
			return nd.Value
		}
		if vec[nd.Feature] <= nd.Threshold {
			i = nd.Left
		} else {
			i = nd.Right
		}
	}
}

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const leafNode = -1

// Tree mirrors the node arrays of a fitted scikit-learn decision tree
// (estimator.tree_). Value holds the per-class weights of every node.
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// Forest is a random forest dumped to JSON. Its probabilities match
// RandomForestClassifier.predict_proba: the mean of each tree's normalised
// leaf distribution.
type Forest struct {
	NFeatures int    `json:"n_features"`
	Classes   []int  `json:"classes"`
	Trees     []Tree `json:"trees"`
}

// LoadForest reads and validates a forest artifact.
func LoadForest(path string) (*Forest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open forest: %w", err)
	}
	defer f.Close()

	var forest Forest
	if err := json.NewDecoder(f).Decode(&forest); err != nil {
		return nil, fmt.Errorf("decode forest: %w", err)
	}
	if err := forest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid forest %s: %w", path, err)
	}
	return &forest, nil
}

func (f *Forest) Validate() error {
	if f.NFeatures <= 0 {
		return errors.New("n_features must be positive")
	}
	if len(f.Classes) != 2 || f.Classes[0] != int(NoCrack) || f.Classes[1] != int(Crack) {
		return fmt.Errorf("classes must be [0 1], got %v", f.Classes)
	}
	if len(f.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(f.NFeatures); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (t *Tree) validate(nFeatures int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("no nodes")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return errors.New("node arrays differ in length")
	}
	for i := 0; i < n; i++ {
		left, right := t.ChildrenLeft[i], t.ChildrenRight[i]
		if left == leafNode {
			if right != leafNode {
				return fmt.Errorf("node %d has only one child", i)
			}
			if len(t.Value[i]) != 2 {
				return fmt.Errorf("leaf %d has %d class weights", i, len(t.Value[i]))
			}
			continue
		}
		// scikit-learn numbers children after their parent, which also
		// rules out cycles.
		if left <= i || left >= n || right <= i || right >= n {
			return fmt.Errorf("node %d has out of range children %d/%d", i, left, right)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d", i, t.Feature[i])
		}
	}
	return nil
}

func (f *Forest) InputDim() int {
	return f.NFeatures
}

func (f *Forest) PredictProba(features []float32) ([]float64, error) {
	if len(features) != f.NFeatures {
		return nil, &DimensionError{Expected: f.NFeatures, Got: len(features)}
	}

	proba := make([]float64, 2)
	for i := range f.Trees {
		dist := f.Trees[i].leaf(features)
		total := dist[0] + dist[1]
		if total <= 0 {
			return nil, fmt.Errorf("tree %d reached an empty leaf", i)
		}
		proba[0] += dist[0] / total
		proba[1] += dist[1] / total
	}

	n := float64(len(f.Trees))
	proba[0] /= n
	proba[1] /= n
	return proba, nil
}

// leaf walks the tree the way scikit-learn does: features are compared as
// float32 against float64 thresholds, going left on <=.
func (t *Tree) leaf(features []float32) []float64 {
	node := 0
	for t.ChildrenLeft[node] != leafNode {
		if float64(features[t.Feature[node]]) <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

func (f *Forest) Close() error {
	return nil
}

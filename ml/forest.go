package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

type TreeNode struct {
	FeatureIdx   int       `json:"feature_idx"`
	Threshold    float64   `json:"threshold"`
	LeftChild    int       `json:"left_child"`
	RightChild   int       `json:"right_child"`
	ClassIdx     int       `json:"class_idx"`
	Distribution []float64 `json:"distribution,omitempty"`
	IsLeaf       bool      `json:"is_leaf"`
}

type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// leaf walks the tree for the given vector and returns the reached leaf node.
func (t *Tree) leaf(features []float64) (*TreeNode, error) {
	if len(t.Nodes) == 0 {
		return nil, errors.New("empty tree")
	}
	idx := 0
	for {
		node := &t.Nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return nil, fmt.Errorf("feature index %d out of range", node.FeatureIdx)
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(t.Nodes) {
			return nil, errors.New("invalid tree state")
		}
	}
}

// Forest is the serialized model artifact: a random forest, or a single
// decision tree when Trees has one element. Leaves may carry class
// distributions; when every leaf does, the forest supports probability
// output.
type Forest struct {
	ModelType          string    `json:"model_type"`
	NFeatures          int       `json:"n_features"`
	Classes            []int     `json:"classes"`
	FeatureImportances []float64 `json:"feature_importances,omitempty"`
	Trees              []Tree    `json:"trees"`

	hasProba bool
}

func (f *Forest) Metadata() Metadata {
	return Metadata{
		ModelType:             f.ModelType,
		NFeatures:             f.NFeatures,
		Classes:               append([]int(nil), f.Classes...),
		HasPredictProba:       f.hasProba,
		HasFeatureImportances: len(f.FeatureImportances) > 0,
	}
}

func (f *Forest) Predict(features []float64) (int, error) {
	if len(f.Trees) == 0 {
		return 0, errors.New("model has no trees")
	}
	if len(features) != f.NFeatures {
		return 0, fmt.Errorf("expected %d features, got %d", f.NFeatures, len(features))
	}
	if f.hasProba {
		probs, err := f.PredictProba(features)
		if err != nil {
			return 0, err
		}
		return f.Classes[argmax(probs)], nil
	}

	// Majority vote over the per-tree leaf labels.
	votes := make([]int, len(f.Classes))
	for i := range f.Trees {
		node, err := f.Trees[i].leaf(features)
		if err != nil {
			return 0, err
		}
		cls := node.ClassIdx
		if len(node.Distribution) == len(f.Classes) {
			cls = argmax(node.Distribution)
		}
		if cls < 0 || cls >= len(f.Classes) {
			return 0, fmt.Errorf("class index %d out of range", cls)
		}
		votes[cls]++
	}
	return f.Classes[argmax(intsToFloats(votes))], nil
}

// PredictProba averages the leaf distributions across trees and normalizes
// the result so it sums to 1.
func (f *Forest) PredictProba(features []float64) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, errors.New("model has no trees")
	}
	if !f.hasProba {
		return nil, ErrNoProbabilities
	}
	if len(features) != f.NFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", f.NFeatures, len(features))
	}

	sum := make([]float64, len(f.Classes))
	for i := range f.Trees {
		node, err := f.Trees[i].leaf(features)
		if err != nil {
			return nil, err
		}
		for j, p := range node.Distribution {
			sum[j] += p
		}
	}
	total := 0.0
	for _, v := range sum {
		total += v
	}
	if total <= 0 {
		return nil, errors.New("degenerate leaf distributions")
	}
	for j := range sum {
		sum[j] /= total
	}
	return sum, nil
}

func (f *Forest) PredictBatch(rows [][]float64) ([]int, error) {
	labels := make([]int, len(rows))
	for i, row := range rows {
		label, err := f.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		labels[i] = label
	}
	return labels, nil
}

func (f *Forest) Save(path string) error {
	if len(f.Trees) == 0 {
		return errors.New("model has no trees")
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// validate checks structural invariants after unmarshaling and decides
// probability support.
func (f *Forest) validate() error {
	if f.NFeatures <= 0 {
		return errors.New("n_features must be positive")
	}
	if len(f.Classes) == 0 {
		return errors.New("classes must not be empty")
	}
	if len(f.Trees) == 0 {
		return errors.New("model has no trees")
	}
	if f.ModelType == modelTypeDecisionTree && len(f.Trees) != 1 {
		return errors.New("decision_tree artifact must contain exactly one tree")
	}
	if n := len(f.FeatureImportances); n != 0 && n != f.NFeatures {
		return errors.New("feature_importances length mismatch")
	}

	f.hasProba = true
	for ti := range f.Trees {
		tree := &f.Trees[ti]
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni := range tree.Nodes {
			node := &tree.Nodes[ni]
			if node.IsLeaf {
				switch len(node.Distribution) {
				case 0:
					f.hasProba = false
					if node.ClassIdx < 0 || node.ClassIdx >= len(f.Classes) {
						return fmt.Errorf("tree %d node %d: class index out of range", ti, ni)
					}
				case len(f.Classes):
				default:
					return fmt.Errorf("tree %d node %d: distribution length mismatch", ti, ni)
				}
				continue
			}
			if node.FeatureIdx < 0 || node.FeatureIdx >= f.NFeatures {
				return fmt.Errorf("tree %d node %d: feature index out of range", ti, ni)
			}
			if node.LeftChild <= ni || node.LeftChild >= len(tree.Nodes) ||
				node.RightChild <= ni || node.RightChild >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d: child index out of range", ti, ni)
			}
		}
	}
	return nil
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func intsToFloats(values []int) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// TreeNode is one node of a CART classifier stored as a flat array. Counts
// holds the per-class training-sample counts seen at the node; leaves derive
// their class distribution from it.
type TreeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Counts    []float64 `json:"counts"`
	Leaf      bool      `json:"leaf"`
}

// DecisionTree walks nodes from index 0; samples with feature <= threshold go
// left, mirroring the split rule used at training time.
type DecisionTree struct {
	Features int        `json:"features"`
	Nodes    []TreeNode `json:"nodes"`
}

func LoadDecisionTree(path string) (*DecisionTree, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	var m DecisionTree
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	if err := m.validate(); err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	return &m, nil
}

func (m *DecisionTree) validate() error {
	if len(m.Nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, node := range m.Nodes {
		if node.Leaf {
			if len(node.Counts) != NumClasses {
				return fmt.Errorf("node %d has %d class counts, want %d", i, len(node.Counts), NumClasses)
			}
			continue
		}
		if node.Feature < 0 || node.Feature >= m.Features {
			return fmt.Errorf("node %d splits on feature %d, want < %d", i, node.Feature, m.Features)
		}
		if node.Left < 0 || node.Left >= len(m.Nodes) || node.Right < 0 || node.Right >= len(m.Nodes) {
			return fmt.Errorf("node %d has child index out of range", i)
		}
	}
	return nil
}

func (m *DecisionTree) leaf(features []float64) (*TreeNode, error) {
	if len(features) != m.Features {
		return nil, fmt.Errorf("expected %d features, got %d", m.Features, len(features))
	}
	idx := 0
	for steps := 0; steps <= len(m.Nodes); steps++ {
		node := &m.Nodes[idx]
		if node.Leaf {
			return node, nil
		}
		if features[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
	return nil, errors.New("tree walk did not terminate")
}

func (m *DecisionTree) Predict(features []float64) (int, error) {
	probs, err := m.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return argmax(probs), nil
}

func (m *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	node, err := m.leaf(features)
	if err != nil {
		return nil, err
	}
	return normalizeCounts(node.Counts), nil
}

func normalizeCounts(counts []float64) []float64 {
	total := 0.0
	for _, c := range counts {
		total += c
	}
	probs := make([]float64, len(counts))
	if total == 0 {
		return probs
	}
	for i, c := range counts {
		probs[i] = c / total
	}
	return probs
}

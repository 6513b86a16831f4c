package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// RegressionNode is one node of a boosted regression tree. Leaves carry the
// additive margin contribution for the tree's target class. Boosted splits
// send feature < threshold left, matching the booster's rule.
type RegressionNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Leaf      bool    `json:"leaf"`
}

type boostTree struct {
	Class int              `json:"class"`
	Nodes []RegressionNode `json:"nodes"`
}

// GradientBoost is a multiclass gradient-boosted tree classifier: per-class
// margins are the base score plus the sum of that class's tree outputs, and
// probabilities come from a softmax over the margins.
type GradientBoost struct {
	Features  int         `json:"features"`
	BaseScore float64     `json:"base_score"`
	Trees     []boostTree `json:"trees"`
}

func LoadGradientBoost(path string) (*GradientBoost, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	var m GradientBoost
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	if err := m.validate(); err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	return &m, nil
}

func (m *GradientBoost) validate() error {
	if len(m.Trees) == 0 {
		return errors.New("booster has no trees")
	}
	for i, tree := range m.Trees {
		if tree.Class < 0 || tree.Class >= NumClasses {
			return fmt.Errorf("tree %d targets class %d, want < %d", i, tree.Class, NumClasses)
		}
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", i)
		}
		for j, node := range tree.Nodes {
			if node.Leaf {
				continue
			}
			if node.Feature < 0 || node.Feature >= m.Features {
				return fmt.Errorf("tree %d node %d splits on feature %d, want < %d", i, j, node.Feature, m.Features)
			}
			if node.Left < 0 || node.Left >= len(tree.Nodes) || node.Right < 0 || node.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d has child index out of range", i, j)
			}
		}
	}
	return nil
}

func (t *boostTree) output(features []float64) (float64, error) {
	idx := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		node := &t.Nodes[idx]
		if node.Leaf {
			return node.Value, nil
		}
		if features[node.Feature] < node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
	return 0, errors.New("tree walk did not terminate")
}

func (m *GradientBoost) margins(features []float64) ([]float64, error) {
	if len(features) != m.Features {
		return nil, fmt.Errorf("expected %d features, got %d", m.Features, len(features))
	}
	margins := make([]float64, NumClasses)
	for k := range margins {
		margins[k] = m.BaseScore
	}
	for i := range m.Trees {
		out, err := m.Trees[i].output(features)
		if err != nil {
			return nil, err
		}
		margins[m.Trees[i].Class] += out
	}
	return margins, nil
}

func (m *GradientBoost) Predict(features []float64) (int, error) {
	probs, err := m.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return argmax(probs), nil
}

func (m *GradientBoost) PredictProba(features []float64) ([]float64, error) {
	margins, err := m.margins(features)
	if err != nil {
		return nil, err
	}
	return softmax(margins), nil
}

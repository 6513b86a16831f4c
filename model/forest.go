package model

import (
	"encoding/json"
	"errors"
	"os"
)

// RandomForest averages the class distributions of its member trees, the same
// aggregation the training library applies.
type RandomForest struct {
	Features int            `json:"features"`
	Trees    []DecisionTree `json:"trees"`
}

func LoadRandomForest(path string) (*RandomForest, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	var m RandomForest
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	if len(m.Trees) == 0 {
		return nil, &ArtifactError{Path: path, Err: errors.New("forest has no trees")}
	}
	for i := range m.Trees {
		if m.Trees[i].Features == 0 {
			m.Trees[i].Features = m.Features
		}
		if err := m.Trees[i].validate(); err != nil {
			return nil, &ArtifactError{Path: path, Err: err}
		}
	}
	return &m, nil
}

func (m *RandomForest) Predict(features []float64) (int, error) {
	probs, err := m.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return argmax(probs), nil
}

func (m *RandomForest) PredictProba(features []float64) ([]float64, error) {
	sum := make([]float64, NumClasses)
	for i := range m.Trees {
		probs, err := m.Trees[i].PredictProba(features)
		if err != nil {
			return nil, err
		}
		for k, p := range probs {
			sum[k] += p
		}
	}
	for k := range sum {
		sum[k] /= float64(len(m.Trees))
	}
	return sum, nil
}

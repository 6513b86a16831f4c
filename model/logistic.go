package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Logistic is a multinomial logistic regression classifier. Coef holds one
// weight row per class in severity order.
type Logistic struct {
	Features  int         `json:"features"`
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
}

func LoadLogistic(path string) (*Logistic, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	var m Logistic
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	if err := m.validate(); err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	return &m, nil
}

func (m *Logistic) validate() error {
	if len(m.Coef) != NumClasses || len(m.Intercept) != NumClasses {
		return errors.New("coefficient rows must match class count")
	}
	for k, row := range m.Coef {
		if len(row) != m.Features {
			return fmt.Errorf("class %d has %d coefficients, want %d", k, len(row), m.Features)
		}
	}
	return nil
}

func (m *Logistic) scores(features []float64) []float64 {
	scores := make([]float64, NumClasses)
	for k, row := range m.Coef {
		scores[k] = m.Intercept[k] + dot(row, features)
	}
	return scores
}

func (m *Logistic) Predict(features []float64) (int, error) {
	probs, err := m.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return argmax(probs), nil
}

func (m *Logistic) PredictProba(features []float64) ([]float64, error) {
	if len(features) != m.Features {
		return nil, fmt.Errorf("expected %d features, got %d", m.Features, len(features))
	}
	return softmax(m.scores(features)), nil
}

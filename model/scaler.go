package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Scaler is a fitted standard scaler exported from training. Transform maps a
// raw feature vector into the units the models were trained on.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func LoadScaler(path string) (*Scaler, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	var s Scaler
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
		return nil, &ArtifactError{Path: path, Err: errors.New("mean/scale length mismatch")}
	}
	for i, v := range s.Scale {
		if v == 0 {
			return nil, &ArtifactError{Path: path, Err: fmt.Errorf("zero scale at feature %d", i)}
		}
	}
	return &s, nil
}

// FeatureCount is the vector length the scaler was fitted on.
func (s *Scaler) FeatureCount() int { return len(s.Mean) }

func (s *Scaler) Transform(features []float64) ([]float64, error) {
	if len(features) != len(s.Mean) {
		return nil, fmt.Errorf("expected %d features, got %d", len(s.Mean), len(features))
	}
	out := make([]float64, len(features))
	for i, v := range features {
		out[i] = (v - s.Mean[i]) / s.Scale[i]
	}
	return out, nil
}

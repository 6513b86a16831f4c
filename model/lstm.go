package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// LSTM is a single-layer LSTM followed by a dense softmax head. Weight layout
// follows the exported artifact: Kernel is [features][4*units] and Recurrent
// is [units][4*units], with gates ordered input, forget, cell, output.
type LSTM struct {
	Features    int         `json:"features"`
	Units       int         `json:"units"`
	Kernel      [][]float64 `json:"kernel"`
	Recurrent   [][]float64 `json:"recurrent_kernel"`
	Bias        []float64   `json:"bias"`
	DenseKernel [][]float64 `json:"dense_kernel"`
	DenseBias   []float64   `json:"dense_bias"`
}

func LoadLSTM(path string) (*LSTM, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	var m LSTM
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	if err := m.validate(); err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	return &m, nil
}

func (m *LSTM) validate() error {
	if m.Units <= 0 {
		return errors.New("units must be positive")
	}
	gates := 4 * m.Units
	if len(m.Kernel) != m.Features {
		return fmt.Errorf("kernel has %d rows, want %d", len(m.Kernel), m.Features)
	}
	for i, row := range m.Kernel {
		if len(row) != gates {
			return fmt.Errorf("kernel row %d has %d weights, want %d", i, len(row), gates)
		}
	}
	if len(m.Recurrent) != m.Units {
		return fmt.Errorf("recurrent kernel has %d rows, want %d", len(m.Recurrent), m.Units)
	}
	for i, row := range m.Recurrent {
		if len(row) != gates {
			return fmt.Errorf("recurrent row %d has %d weights, want %d", i, len(row), gates)
		}
	}
	if len(m.Bias) != gates {
		return fmt.Errorf("bias has %d weights, want %d", len(m.Bias), gates)
	}
	if len(m.DenseKernel) != m.Units {
		return fmt.Errorf("dense kernel has %d rows, want %d", len(m.DenseKernel), m.Units)
	}
	for i, row := range m.DenseKernel {
		if len(row) != NumClasses {
			return fmt.Errorf("dense row %d has %d weights, want %d", i, len(row), NumClasses)
		}
	}
	if len(m.DenseBias) != NumClasses {
		return fmt.Errorf("dense bias has %d weights, want %d", len(m.DenseBias), NumClasses)
	}
	return nil
}

// forward runs the recurrence over a sequence of timesteps and returns the
// final hidden state.
func (m *LSTM) forward(steps [][]float64) []float64 {
	h := make([]float64, m.Units)
	c := make([]float64, m.Units)
	gates := make([]float64, 4*m.Units)

	for _, x := range steps {
		copy(gates, m.Bias)
		for i, xi := range x {
			row := m.Kernel[i]
			for j, w := range row {
				gates[j] += xi * w
			}
		}
		for i, hi := range h {
			row := m.Recurrent[i]
			for j, w := range row {
				gates[j] += hi * w
			}
		}
		for u := 0; u < m.Units; u++ {
			in := sigmoid(gates[u])
			forget := sigmoid(gates[m.Units+u])
			cell := math.Tanh(gates[2*m.Units+u])
			out := sigmoid(gates[3*m.Units+u])
			c[u] = forget*c[u] + in*cell
			h[u] = out * math.Tanh(c[u])
		}
	}
	return h
}

func (m *LSTM) Predict(features []float64) (int, error) {
	probs, err := m.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return argmax(probs), nil
}

// PredictProba treats the feature vector as a sequence of one timestep.
func (m *LSTM) PredictProba(features []float64) ([]float64, error) {
	if len(features) != m.Features {
		return nil, fmt.Errorf("expected %d features, got %d", m.Features, len(features))
	}
	h := m.forward([][]float64{features})

	logits := make([]float64, NumClasses)
	copy(logits, m.DenseBias)
	for i, hi := range h {
		for k, w := range m.DenseKernel[i] {
			logits[k] += hi * w
		}
	}
	return softmax(logits), nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

package model

import (
	"math"
	"testing"
)

const probTolerance = 1e-6

func assertDistribution(t *testing.T, probs []float64) {
	t.Helper()
	if len(probs) != NumClasses {
		t.Fatalf("expected %d probabilities, got %d", NumClasses, len(probs))
	}
	sum := 0.0
	for _, p := range probs {
		if p < 0 || p > 1 {
			t.Fatalf("probability out of range: %v", probs)
		}
		sum += p
	}
	if math.Abs(sum-1) > probTolerance {
		t.Fatalf("probabilities sum to %v, want 1: %v", sum, probs)
	}
}

func TestLogisticPredict(t *testing.T) {
	m := &Logistic{
		Features:  2,
		Coef:      [][]float64{{1, 0}, {0, 1}, {0, 0}, {0, 0}},
		Intercept: []float64{0, 0, 0, 0},
	}

	probs, err := m.PredictProba([]float64{3, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDistribution(t, probs)

	label, err := m.Predict([]float64{3, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 {
		t.Fatalf("expected class 0, got %d", label)
	}

	label, err = m.Predict([]float64{0, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 1 {
		t.Fatalf("expected class 1, got %d", label)
	}

	if _, err := m.Predict([]float64{1}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestDecisionTreePredict(t *testing.T) {
	m := &DecisionTree{
		Features: 2,
		Nodes: []TreeNode{
			{Feature: 0, Threshold: 0.5, Left: 1, Right: 2},
			{Leaf: true, Counts: []float64{10, 0, 0, 0}},
			{Leaf: true, Counts: []float64{0, 2, 0, 6}},
		},
	}

	label, err := m.Predict([]float64{0.2, 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 {
		t.Fatalf("expected class 0, got %d", label)
	}

	probs, err := m.PredictProba([]float64{0.9, 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDistribution(t, probs)
	if probs[3] != 0.75 || probs[1] != 0.25 {
		t.Fatalf("unexpected leaf distribution: %v", probs)
	}
}

func TestRandomForestAveragesTrees(t *testing.T) {
	m := &RandomForest{
		Features: 2,
		Trees: []DecisionTree{
			{Features: 2, Nodes: []TreeNode{{Leaf: true, Counts: []float64{10, 0, 0, 0}}}},
			{Features: 2, Nodes: []TreeNode{{Leaf: true, Counts: []float64{0, 10, 0, 0}}}},
		},
	}

	probs, err := m.PredictProba([]float64{0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDistribution(t, probs)
	if probs[0] != 0.5 || probs[1] != 0.5 {
		t.Fatalf("expected even split, got %v", probs)
	}

	label, err := m.Predict([]float64{0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 {
		t.Fatalf("tie should resolve to lowest class, got %d", label)
	}
}

func TestGradientBoostMargins(t *testing.T) {
	m := &GradientBoost{
		Features:  2,
		BaseScore: 0.5,
		Trees: []boostTree{
			{Class: 0, Nodes: []RegressionNode{{Leaf: true, Value: 1.0}}},
			{Class: 3, Nodes: []RegressionNode{
				{Feature: 0, Threshold: 0.5, Left: 1, Right: 2},
				{Leaf: true, Value: -1.0},
				{Leaf: true, Value: 3.0},
			}},
		},
	}

	// Left branch: class 0 margin 1.5 beats class 3 margin -0.5.
	label, err := m.Predict([]float64{0.1, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 {
		t.Fatalf("expected class 0, got %d", label)
	}

	// Right branch: class 3 margin 3.5 wins.
	label, err = m.Predict([]float64{0.9, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 3 {
		t.Fatalf("expected class 3, got %d", label)
	}

	probs, err := m.PredictProba([]float64{0.9, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDistribution(t, probs)
}

func TestLSTMPredictProba(t *testing.T) {
	m := &LSTM{
		Features:    2,
		Units:       1,
		Kernel:      [][]float64{{0, 0, 0, 0}, {0, 0, 0, 0}},
		Recurrent:   [][]float64{{0, 0, 0, 0}},
		Bias:        []float64{0, 0, 0, 0},
		DenseKernel: [][]float64{{0, 0, 0, 0}},
		DenseBias:   []float64{0, 0, 1, 0},
	}

	probs, err := m.PredictProba([]float64{0.3, 0.7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDistribution(t, probs)
	if argmax(probs) != 2 {
		t.Fatalf("expected class 2 to dominate, got %v", probs)
	}

	label, err := m.Predict([]float64{0.3, 0.7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 2 {
		t.Fatalf("expected class 2, got %d", label)
	}
}

func TestLSTMUniformTieResolvesLowest(t *testing.T) {
	m := &LSTM{
		Features:    2,
		Units:       1,
		Kernel:      [][]float64{{0, 0, 0, 0}, {0, 0, 0, 0}},
		Recurrent:   [][]float64{{0, 0, 0, 0}},
		Bias:        []float64{0, 0, 0, 0},
		DenseKernel: [][]float64{{0, 0, 0, 0}},
		DenseBias:   []float64{0, 0, 0, 0},
	}

	probs, err := m.PredictProba([]float64{1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDistribution(t, probs)
	for _, p := range probs {
		if math.Abs(p-0.25) > probTolerance {
			t.Fatalf("expected uniform distribution, got %v", probs)
		}
	}
	if argmax(probs) != 0 {
		t.Fatalf("uniform tie should resolve to class 0")
	}
}

func TestLSTMValidateRejectsBadShapes(t *testing.T) {
	m := &LSTM{
		Features:    2,
		Units:       1,
		Kernel:      [][]float64{{0, 0, 0, 0}},
		Recurrent:   [][]float64{{0, 0, 0, 0}},
		Bias:        []float64{0, 0, 0, 0},
		DenseKernel: [][]float64{{0, 0, 0, 0}},
		DenseBias:   []float64{0, 0, 0, 0},
	}
	if err := m.validate(); err == nil {
		t.Fatal("expected kernel row count error")
	}
}

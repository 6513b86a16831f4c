package model

import (
	"fmt"
	"math"
)

// ClassLabels is the fixed severity enumeration, ordered by severity index.
var ClassLabels = []string{
	"No Accident",
	"Minor Accident",
	"Moderate Accident",
	"Severe Accident",
}

const (
	NumClasses  = 4
	SevereClass = 3
)

// LabelName maps a class index to its display name.
func LabelName(label int) string {
	if label < 0 || label >= len(ClassLabels) {
		return "Unknown"
	}
	return ClassLabels[label]
}

// InputShape says how a classifier wants the feature vector presented.
type InputShape int

const (
	// FlatVector models take the features as a single row.
	FlatVector InputShape = iota
	// SingleStepSequence models take the features as one timestep of a sequence.
	SingleStepSequence
)

func (s InputShape) String() string {
	switch s {
	case FlatVector:
		return "flat-vector"
	case SingleStepSequence:
		return "single-step-sequence"
	}
	return "unknown"
}

// Classifier is a loaded, read-only model artifact. Implementations hold no
// mutable state after load and are safe for concurrent calls.
type Classifier interface {
	Predict(features []float64) (int, error)
	PredictProba(features []float64) ([]float64, error)
}

// Handle is a named, registered classifier. Capability and shape are fixed at
// load time so callers never probe behavior per request.
type Handle struct {
	Name     string
	Key      string
	Shape    InputShape
	HasProba bool
	Model    Classifier
}

// ArtifactError reports a missing or malformed model/scaler artifact.
type ArtifactError struct {
	Path string
	Err  error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("model artifact %s: %v", e.Path, e.Err)
}

func (e *ArtifactError) Unwrap() error { return e.Err }

// softmax returns the normalized exponentials of scores, shifted by the max
// for numeric stability.
func softmax(scores []float64) []float64 {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		out[i] = math.Exp(s - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// argmax returns the index of the largest value; ties resolve to the lowest
// index.
func argmax(values []float64) int {
	best := 0
	for i, v := range values[1:] {
		if v > values[best] {
			best = i + 1
		}
	}
	return best
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

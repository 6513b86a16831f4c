package predict

import "fmt"

// InvalidInputError rejects a malformed feature vector before any model is
// invoked or any side effect runs.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

// InferenceError wraps a single model's failure. The orchestrator fails the
// whole ensemble on the first one so no model is silently omitted.
type InferenceError struct {
	Model string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Model, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

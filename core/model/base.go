// Package model holds the base types shared by fit/transform components.
package model

// EstimatorState represents the lifecycle state of a fit/transform component.
type EstimatorState int

const (
	// NotFitted means no schema or parameters have been established yet.
	NotFitted EstimatorState = iota
	// Fitted means a fit call completed and the learned state is frozen.
	Fitted
)

// BaseEstimator is embedded by every stateful component that distinguishes
// a schema-establishing fit phase from a schema-reusing transform phase.
type BaseEstimator struct {
	state EstimatorState
}

// IsFitted reports whether the component has been fitted.
func (e *BaseEstimator) IsFitted() bool {
	return e.state == Fitted
}

// SetFitted marks the component as fitted.
func (e *BaseEstimator) SetFitted() {
	e.state = Fitted
}

// Reset returns the component to the unfitted state.
func (e *BaseEstimator) Reset() {
	e.state = NotFitted
}

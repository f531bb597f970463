package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidState indicates a state with NaN or Inf components.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrNotConverged indicates the step-halving loop hit its cap before the
	// deceased delta fell under the tolerance.
	ErrNotConverged = errors.New("dynamo: solution did not converge")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrStepTooSmall indicates a step that would need more than MaxSteps
	// steps to cover the horizon.
	ErrStepTooSmall = errors.New("dynamo: step too small for the horizon")

	// ErrContextCanceled indicates the simulation was interrupted.
	ErrContextCanceled = errors.New("dynamo: simulation canceled by context")
)

// ConvergenceError wraps ErrNotConverged with the state of the loop when it gave up.
type ConvergenceError struct {
	Attempts  int
	Step      float64
	LastDelta float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s after %d halvings (h=%g, delta=%g)", ErrNotConverged, e.Attempts, e.Step, e.LastDelta)
}

func (e *ConvergenceError) Unwrap() error {
	return ErrNotConverged
}

// SimError locates a failure inside a pass.
type SimError struct {
	Attempt int
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimError) Error() string {
	return fmt.Sprintf("attempt %d, step %d (t=%.4f): %v", e.Attempt, e.Step, e.Time, e.Wrapped)
}

func (e *SimError) Unwrap() error {
	return e.Wrapped
}

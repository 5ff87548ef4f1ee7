package dynamo

import "errors"

// Domain errors for simulation operations.
var (
	// ErrInvalidState indicates a particle with NaN or Inf coordinates.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrContextCanceled indicates the simulation was interrupted.
	ErrContextCanceled = errors.New("dynamo: simulation canceled by context")

	// ErrStepTooSmall indicates an encounter sub-step collapsed below the
	// stall threshold.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrDimensionMismatch indicates an index or buffer size that does not
	// match the particle array.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrNoBodies indicates a system without a central body.
	ErrNoBodies = errors.New("dynamo: system has no particles")

	// ErrAllocation indicates a buffer request beyond what can be allocated.
	ErrAllocation = errors.New("dynamo: cannot allocate integrator buffers")
)

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return e.Wrapped.Error()
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

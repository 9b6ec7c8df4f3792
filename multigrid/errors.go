package multigrid

import (
	"errors"
	"fmt"
)

// Error kinds reported by hierarchy construction and solves
var (
	// ErrRefinement indicates a base mesh that cannot be uniformly refined.
	ErrRefinement = errors.New("multigrid: invalid mesh for refinement")

	// ErrTransferMismatch indicates a transfer applied to the wrong level or field kind.
	ErrTransferMismatch = errors.New("multigrid: transfer mismatch")

	// ErrCoarseSolveFailure indicates a singular, ill-conditioned or unconverged coarse solve.
	ErrCoarseSolveFailure = errors.New("multigrid: coarse solve failed")

	// ErrDivergence indicates a non-finite residual or one past the divergence tolerance.
	ErrDivergence = errors.New("multigrid: residual diverged")

	// ErrIterationCapExceeded indicates the convergence test never passed.
	ErrIterationCapExceeded = errors.New("multigrid: iteration cap exceeded")

	// ErrInvalidConfig indicates an invalid solver configuration.
	ErrInvalidConfig = errors.New("multigrid: invalid configuration")
)

// SolveError wraps an error with the state of the solve when it occurred
type SolveError struct {
	Kind         error // one of the Err* kinds
	Level        int   // level index, -1 when not level specific
	Iteration    int   // outer iteration
	ResidualNorm float64
	Err          error // underlying cause, may be nil
}

func (e *SolveError) Error() string {
	msg := fmt.Sprintf("%v (iteration %d", e.Kind, e.Iteration)
	if e.Level >= 0 {
		msg += fmt.Sprintf(", level %d", e.Level)
	}
	msg += fmt.Sprintf(", residual %.6e)", e.ResidualNorm)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As
func (e *SolveError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// levelError tags err with kind and level unless it already carries a kind
func levelError(kind error, level int, err error) error {
	var se *SolveError
	if errors.As(err, &se) {
		return err
	}
	return &SolveError{Kind: kind, Level: level, Err: err}
}

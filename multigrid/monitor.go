package multigrid

import (
	"fmt"
	"math"
)

// Outcome is the monitor's verdict after a residual check
type Outcome uint8

const (
	Continue            Outcome = iota
	ConvergedAbsolute           // norm <= ATol
	ConvergedRelative           // norm <= RTol·norm₀
	ConvergedIterations         // cap reached with the test disabled
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case ConvergedAbsolute:
		return "converged-atol"
	case ConvergedRelative:
		return "converged-rtol"
	case ConvergedIterations:
		return "converged-its"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// Converged reports whether o ends the iteration successfully
func (o Outcome) Converged() bool { return o != Continue }

// Monitor decides after each outer iteration whether to continue. With
// Enabled false the iteration runs exactly MaxIterations times. A
// non-finite residual, or one grown past DivergenceTolerance times the
// initial norm, is an error either way.
type Monitor struct {
	Enabled             bool
	RTol, ATol          float64
	DivergenceTolerance float64 // 0 disables the divergence test
	MaxIterations       int

	history []float64
}

// NewMonitor returns a monitor configured from the outer loop settings
func NewMonitor(cfg Config) *Monitor {
	return &Monitor{
		Enabled:             cfg.ConvergenceTest,
		RTol:                cfg.RTol,
		ATol:                cfg.ATol,
		DivergenceTolerance: cfg.DivergenceTolerance,
		MaxIterations:       cfg.MaxIterations,
	}
}

// Check records the residual norm after iteration completed iterations
func (m *Monitor) Check(iteration int, norm float64) (Outcome, error) {
	m.history = append(m.history, norm)
	if math.IsNaN(norm) || math.IsInf(norm, 0) {
		return Continue, &SolveError{Kind: ErrDivergence, Level: -1, Iteration: iteration, ResidualNorm: norm}
	}
	norm0 := m.history[0]
	if m.DivergenceTolerance > 0 && norm > m.DivergenceTolerance*norm0 {
		return Continue, &SolveError{Kind: ErrDivergence, Level: -1, Iteration: iteration, ResidualNorm: norm,
			Err: fmt.Errorf("residual %.6e exceeds %g times the initial %.6e", norm, m.DivergenceTolerance, norm0)}
	}
	if !m.Enabled {
		if iteration >= m.MaxIterations {
			return ConvergedIterations, nil
		}
		return Continue, nil
	}
	switch {
	case norm <= m.ATol:
		return ConvergedAbsolute, nil
	case iteration > 0 && norm <= m.RTol*norm0:
		return ConvergedRelative, nil
	case iteration >= m.MaxIterations:
		return Continue, &SolveError{Kind: ErrIterationCapExceeded, Level: -1, Iteration: iteration, ResidualNorm: norm}
	}
	return Continue, nil
}

// History returns the recorded residual norms, the initial one first
func (m *Monitor) History() []float64 {
	return append([]float64(nil), m.history...)
}

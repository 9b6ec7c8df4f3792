package multigrid

import (
	"errors"
	"fmt"
	"math"

	"github.com/notargets/mgsolve/linalg"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DirectSolver solves the coarsest level exactly with a dense factorization
type DirectSolver struct {
	strategy CoarseStrategy
	tol      float64
	a        *linalg.CSR

	lu   mat.LU
	chol mat.Cholesky
	work []float64
}

// NewDirectSolver factors a with the configured strategy. A singular or
// ill-conditioned matrix, or a Cholesky factorization of a matrix that is
// not positive definite, fails with ErrCoarseSolveFailure.
func NewDirectSolver(cfg CoarseSolverConfig, a *linalg.CSR) (*DirectSolver, error) {
	if a.Rows != a.Cols {
		return nil, fmt.Errorf("%w: coarse operator is %dx%d", ErrCoarseSolveFailure, a.Rows, a.Cols)
	}
	ds := &DirectSolver{
		strategy: cfg.Strategy,
		tol:      cfg.ResidualTolerance,
		a:        a,
		work:     make([]float64, a.Rows),
	}
	var cond float64
	switch cfg.Strategy {
	case LU:
		ds.lu.Factorize(a.ToDense())
		cond = ds.lu.Cond()
	case Cholesky:
		sym, err := a.ToSymDense()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCoarseSolveFailure, err)
		}
		if ok := ds.chol.Factorize(sym); !ok {
			return nil, fmt.Errorf("%w: coarse operator is not positive definite", ErrCoarseSolveFailure)
		}
		cond = ds.chol.Cond()
	default:
		return nil, fmt.Errorf("%w: unknown coarse strategy %q", ErrInvalidConfig, cfg.Strategy)
	}
	if math.IsNaN(cond) || cond > mat.ConditionTolerance {
		return nil, fmt.Errorf("%w: %s factorization has condition number %g",
			ErrCoarseSolveFailure, cfg.Strategy, cond)
	}
	return ds, nil
}

// Solve overwrites x with the solution of A x = b and checks the residual
func (ds *DirectSolver) Solve(x, b []float64) error {
	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		for i := range x {
			x[i] = 0
		}
		return nil
	}
	n := len(b)
	dst := mat.NewVecDense(n, x)
	rhs := mat.NewVecDense(n, b)
	var err error
	switch ds.strategy {
	case LU:
		err = ds.lu.SolveVecTo(dst, false, rhs)
	case Cholesky:
		err = ds.chol.SolveVecTo(dst, rhs)
	}
	if err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return fmt.Errorf("%w: ill-conditioned solve: %w", ErrCoarseSolveFailure, err)
		}
		return fmt.Errorf("%w: %w", ErrCoarseSolveFailure, err)
	}
	if err := finiteOrError(x); err != nil {
		return fmt.Errorf("%w: %w", ErrCoarseSolveFailure, err)
	}
	ds.a.Residual(ds.work, b, x)
	if rnorm := floats.Norm(ds.work, 2); rnorm > ds.tol*bnorm {
		return fmt.Errorf("%w: residual %.3e exceeds %.1e of the right-hand side %.3e",
			ErrCoarseSolveFailure, rnorm, ds.tol, bnorm)
	}
	return nil
}

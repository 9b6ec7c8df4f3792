package multigrid

import (
	"fmt"
	"math"

	"github.com/notargets/mgsolve/linalg"
	"gonum.org/v1/gonum/floats"
)

// gmgStep is one Newton step: linearize on every level, solve J δ = -F(u)
// with multigrid, then u += δ
func (s *Solver) gmgStep(st *CycleState) error {
	n := s.sh.Finest().Index
	if err := s.setupLinear(st); err != nil {
		return err
	}
	b := st.g[n]
	for i, r := range st.res[n] {
		b[i] = -r
	}
	delta := st.x[n]
	if err := s.linearSolve(st, delta, b); err != nil {
		return err
	}
	floats.Add(st.u[n], delta)
	return nil
}

// setupLinear builds the level operators from the current fine state
func (s *Solver) setupLinear(st *CycleState) error {
	n := s.sh.Finest().Index
	var finer *linalg.CSR
	for l := n; l >= 0; l-- {
		var (
			a   *linalg.CSR
			err error
		)
		switch {
		case l == n:
			a, err = s.problems[l].Jacobian(st.u[l])
		case s.cfg.CoarseOperator == Galerkin:
			a, err = linalg.PtAP(finer, s.sh.Transfer(l).P)
			if err == nil {
				err = a.ZeroRowsColumns(s.fixed[l], 1)
			}
		default:
			state := st.u[n]
			if l+1 < n {
				state = st.uhat[l+1]
			}
			s.sh.Transfer(l).injectTo(st.uhat[l], state)
			a, err = s.problems[l].Jacobian(st.uhat[l])
		}
		if err != nil {
			return fmt.Errorf("level %d operator: %w", l, err)
		}
		finer = a
		if a, err = s.partitioned(l, a); err != nil {
			return err
		}
		op := &levelOperator{a: a}
		if l > 0 {
			op.smoother, err = s.smootherFor(l, a)
		} else {
			op.coarse, err = s.directFor(a)
		}
		if err != nil {
			return err
		}
		st.ops[l] = op
	}
	return nil
}

// linearSolve solves the finest linear system with the configured Krylov
// wrapper around the multigrid preconditioner
func (s *Solver) linearSolve(st *CycleState, x, b []float64) error {
	n := s.sh.Finest().Index
	a := st.ops[n].a
	for i := range x {
		x[i] = 0
	}
	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		return nil
	}
	r, z := st.kr, st.kz
	switch s.cfg.KSP {
	case PreOnly:
		return s.applyMG(st, x, b)

	case Richardson:
		for k := 0; ; k++ {
			a.Residual(r, b, x)
			rnorm := floats.Norm(r, 2)
			if rnorm <= s.cfg.LinearRTol*bnorm {
				return nil
			}
			if k == s.cfg.LinearMaxIterations {
				return s.linearFailure(n, k, rnorm/bnorm)
			}
			if err := s.applyMG(st, z, r); err != nil {
				return err
			}
			floats.Add(x, z)
		}

	case CG:
		p, ap := st.kp, st.kap
		copy(r, b)
		if err := s.applyMG(st, z, r); err != nil {
			return err
		}
		copy(p, z)
		rz := floats.Dot(r, z)
		for k := 0; k < s.cfg.LinearMaxIterations; k++ {
			a.MulVec(ap, p)
			pap := floats.Dot(p, ap)
			if !(pap > 0) || math.IsInf(pap, 0) {
				return &SolveError{Kind: ErrDivergence, Level: n,
					Err: fmt.Errorf("cg: indefinite operator or preconditioner, pᵀAp = %g", pap)}
			}
			alpha := rz / pap
			floats.AddScaled(x, alpha, p)
			floats.AddScaled(r, -alpha, ap)
			if floats.Norm(r, 2) <= s.cfg.LinearRTol*bnorm {
				return nil
			}
			if err := s.applyMG(st, z, r); err != nil {
				return err
			}
			rzNew := floats.Dot(r, z)
			beta := rzNew / rz
			rz = rzNew
			for i := range p {
				p[i] = z[i] + beta*p[i]
			}
		}
		return s.linearFailure(n, s.cfg.LinearMaxIterations, floats.Norm(r, 2)/bnorm)
	}
	return fmt.Errorf("%w: unknown ksp %q", ErrInvalidConfig, s.cfg.KSP)
}

// linearFailure reports a Krylov loop that hit its iteration limit, which
// fails the outer step like a diverged linear solve
func (s *Solver) linearFailure(level, its int, rel float64) error {
	return &SolveError{Kind: ErrDivergence, Level: level,
		Err: fmt.Errorf("%s linear solve did not reach relative tolerance %g in %d iterations, relative residual %.6e",
			s.cfg.KSP, s.cfg.LinearRTol, its, rel)}
}

// applyMG computes x = M b for the multigrid preconditioner M
func (s *Solver) applyMG(st *CycleState, x, b []float64) error {
	n := s.sh.Finest().Index
	for i := range x {
		x[i] = 0
	}
	s.metrics.cycle(s.cfg.Variant, s.cfg.Cycle)
	if s.cfg.Cycle == FullCycle {
		return s.fullMG(st, x, b)
	}
	return s.linearCycle(st, n, s.cfg.Cycle, x, b)
}

// linearCycle applies one V or F cycle on level l to A_l x = b, updating x
func (s *Solver) linearCycle(st *CycleState, l int, shape CycleType, x, b []float64) error {
	op := st.ops[l]
	if l == 0 {
		return s.coarseSolve(op.coarse, x, b)
	}
	if err := op.smoother.Smooth(x, b); err != nil {
		return levelError(ErrDivergence, l, err)
	}

	// Coarse grid correction
	r := st.res[l]
	op.a.Residual(r, b, x)
	bc, xc := st.g[l-1], st.x[l-1]
	s.prolongs[l-1].MulVecTrans(bc, r)
	s.mask(l-1, bc)
	for i := range xc {
		xc[i] = 0
	}
	if err := s.linearCycle(st, l-1, shape, xc, bc); err != nil {
		return err
	}
	if shape == FCycle && l-1 > 0 {
		if err := s.linearCycle(st, l-1, VCycle, xc, bc); err != nil {
			return err
		}
	}
	c := st.work[l]
	s.prolongs[l-1].MulVec(c, xc)
	s.mask(l, c)
	floats.Add(x, c)

	if err := op.smoother.Smooth(x, b); err != nil {
		return levelError(ErrDivergence, l, err)
	}
	return nil
}

// fullMG restricts b to every level, solves the coarsest level and works
// upward, starting each level from the prolonged coarser solution
func (s *Solver) fullMG(st *CycleState, x, b []float64) error {
	n := s.sh.Finest().Index
	rhs := func(l int) []float64 {
		if l == n {
			return b
		}
		return st.g[l]
	}
	sol := func(l int) []float64 {
		if l == n {
			return x
		}
		return st.x[l]
	}
	for l := n; l > 0; l-- {
		s.prolongs[l-1].MulVecTrans(rhs(l-1), rhs(l))
		s.mask(l-1, rhs(l-1))
	}
	if err := s.coarseSolve(st.ops[0].coarse, sol(0), rhs(0)); err != nil {
		return err
	}
	for l := 1; l <= n; l++ {
		xl := sol(l)
		s.prolongs[l-1].MulVec(xl, sol(l-1))
		s.mask(l, xl)
		// The cycle overwrites the rhs of level l-1, which is no longer needed
		if err := s.linearCycle(st, l, VCycle, xl, rhs(l)); err != nil {
			return err
		}
	}
	return nil
}

package multigrid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// fasStep is one outer FAS iteration on F_N(u) = 0
func (s *Solver) fasStep(st *CycleState) error {
	n := s.sh.Finest().Index
	for i := range st.g[n] {
		st.g[n][i] = 0
	}
	s.metrics.cycle(s.cfg.Variant, s.cfg.Cycle)
	if s.cfg.Cycle == FullCycle {
		return s.fasFull(st)
	}
	return s.fasCycle(st, n, s.cfg.Cycle)
}

// fasCycle improves u_l towards F_l(u_l) = g_l with one V or F cycle
func (s *Solver) fasCycle(st *CycleState, l int, shape CycleType) error {
	if l == 0 {
		return s.coarseNewton(st)
	}
	if err := s.relax(st, l); err != nil {
		return err
	}
	if err := s.restrictFAS(st, l); err != nil {
		return err
	}
	if err := s.fasCycle(st, l-1, shape); err != nil {
		return err
	}
	if shape == FCycle && l-1 > 0 {
		if err := s.fasCycle(st, l-1, VCycle); err != nil {
			return err
		}
	}
	s.correctFAS(st, l)
	return s.relax(st, l)
}

// fasFull runs the tau corrected down-sweep from the current fine state,
// solves the coarsest level, then corrects and cycles each finer level
func (s *Solver) fasFull(st *CycleState) error {
	n := s.sh.Finest().Index
	for l := n; l > 0; l-- {
		if err := s.restrictFAS(st, l); err != nil {
			return err
		}
	}
	if err := s.coarseNewton(st); err != nil {
		return err
	}
	for l := 1; l <= n; l++ {
		s.correctFAS(st, l)
		if err := s.fasCycle(st, l, VCycle); err != nil {
			return err
		}
	}
	return nil
}

// restrictFAS sets the level l-1 problem: û = inject(u_l), u_{l-1} = û and
// g_{l-1} = F_{l-1}(û) - Pᵀ(F_l(u_l) - g_l), with the defect masked
func (s *Solver) restrictFAS(st *CycleState, l int) error {
	t := s.sh.Transfer(l - 1)
	t.injectTo(st.uhat[l-1], st.u[l])
	copy(st.u[l-1], st.uhat[l-1])

	r := st.res[l]
	if err := s.problems[l].Residual(st.u[l], r); err != nil {
		return fmt.Errorf("level %d residual: %w", l, err)
	}
	floats.Sub(r, st.g[l])
	d := st.work[l-1]
	s.prolongs[l-1].MulVecTrans(d, r)
	s.mask(l-1, d)

	g := st.g[l-1]
	if err := s.problems[l-1].Residual(st.uhat[l-1], g); err != nil {
		return fmt.Errorf("level %d residual: %w", l-1, err)
	}
	floats.Sub(g, d)
	return nil
}

// correctFAS adds the prolonged coarse change, u_l += P(u_{l-1} - û), masked
func (s *Solver) correctFAS(st *CycleState, l int) {
	e := st.work[l-1]
	floats.SubTo(e, st.u[l-1], st.uhat[l-1])
	c := st.work[l]
	s.prolongs[l-1].MulVec(c, e)
	s.mask(l, c)
	floats.Add(st.u[l], c)
}

// relax runs the nonlinear smoother on level l: Newton steps whose
// correction equations are solved approximately by the linear smoother
func (s *Solver) relax(st *CycleState, l int) error {
	prob := s.problems[l]
	u, g, r := st.u[l], st.g[l], st.res[l]
	b, delta := st.work[l], st.x[l]
	for k := 0; k < s.cfg.Levels.NewtonIterations; k++ {
		if err := prob.Residual(u, r); err != nil {
			return fmt.Errorf("level %d residual: %w", l, err)
		}
		for i := range b {
			b[i] = g[i] - r[i]
		}
		s.mask(l, b)
		jac, err := prob.Jacobian(u)
		if err != nil {
			return fmt.Errorf("level %d jacobian: %w", l, err)
		}
		if jac, err = s.partitioned(l, jac); err != nil {
			return err
		}
		sm, err := s.smootherFor(l, jac)
		if err != nil {
			return err
		}
		for i := range delta {
			delta[i] = 0
		}
		if err := sm.Smooth(delta, b); err != nil {
			return levelError(ErrDivergence, l, err)
		}
		s.mask(l, delta)
		floats.Add(u, delta)
	}
	return nil
}

// coarseNewton solves F_0(u) = g_0 by Newton's method with a direct solve
// of each linearization
func (s *Solver) coarseNewton(st *CycleState) error {
	cfg := s.cfg.Coarse
	prob := s.problems[0]
	u, g, r := st.u[0], st.g[0], st.res[0]
	b, delta := st.work[0], st.x[0]
	var norm0 float64
	for k := 0; ; k++ {
		if err := prob.Residual(u, r); err != nil {
			return fmt.Errorf("level 0 residual: %w", err)
		}
		floats.Sub(r, g)
		norm := floats.Norm(r, 2)
		if math.IsNaN(norm) || math.IsInf(norm, 0) {
			return levelError(ErrCoarseSolveFailure, 0, fmt.Errorf("non-finite residual after %d Newton steps", k))
		}
		if k == 0 {
			norm0 = norm
		}
		if norm <= cfg.NewtonATol || (k > 0 && norm <= cfg.NewtonRTol*norm0) {
			return nil
		}
		if k >= cfg.NewtonMaxIterations {
			return levelError(ErrCoarseSolveFailure, 0,
				fmt.Errorf("Newton did not converge in %d steps, residual %.3e from %.3e", k, norm, norm0))
		}

		jac, err := prob.Jacobian(u)
		if err != nil {
			return fmt.Errorf("level 0 jacobian: %w", err)
		}
		ds, err := s.directFor(jac)
		if err != nil {
			return err
		}
		for i := range b {
			b[i] = -r[i]
		}
		s.mask(0, b)
		if err := s.coarseSolve(ds, delta, b); err != nil {
			return err
		}
		floats.Add(u, delta)
		if floats.Norm(delta, 2) <= cfg.NewtonSTol*floats.Norm(u, 2) {
			return nil
		}
	}
}

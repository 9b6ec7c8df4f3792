package multigrid

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/notargets/mgsolve/linalg"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Smoother improves an approximate solution of A x = b in place
type Smoother interface {
	Smooth(x, b []float64) error
}

// NewSmoother builds the level smoother selected by cfg for the operator a
func NewSmoother(cfg LevelSolverConfig, a *linalg.CSR) (Smoother, error) {
	if a.Rows != a.Cols {
		return nil, fmt.Errorf("smoother needs a square operator, got %dx%d", a.Rows, a.Cols)
	}
	diag := a.Diagonal()
	for i, d := range diag {
		if !(d > 0) || math.IsInf(d, 0) {
			return nil, fmt.Errorf("diagonal entry %d is %g, want positive", i, d)
		}
	}
	base := sweepConfig{
		a:       a,
		iters:   cfg.Iterations,
		test:    cfg.ConvergenceTest,
		rtol:    cfg.RTol,
		r:       make([]float64, a.Rows),
		invDiag: make([]float64, a.Rows),
	}
	for i, d := range diag {
		base.invDiag[i] = 1 / d
	}

	switch cfg.Smoother {
	case Chebyshev, Jacobi:
		lmax, err := EstimateMaxEigenvalue(a, cfg.EigenSteps)
		if err != nil {
			return nil, err
		}
		if cfg.Smoother == Jacobi {
			return &jacobiSmoother{sweepConfig: base, omega: cfg.Damping / lmax}, nil
		}
		return &chebyshevSmoother{
			sweepConfig: base,
			lower:       cfg.ChebyshevLower * lmax,
			upper:       cfg.ChebyshevUpper * lmax,
			d:           make([]float64, a.Rows),
		}, nil
	case GaussSeidel:
		return &gaussSeidelSmoother{sweepConfig: base}, nil
	default:
		return nil, fmt.Errorf("%w: unknown smoother %q", ErrInvalidConfig, cfg.Smoother)
	}
}

// sweepConfig is shared by all smoothers
type sweepConfig struct {
	a       *linalg.CSR
	invDiag []float64
	iters   int
	test    bool
	rtol    float64
	r       []float64 // residual workspace
}

// converged reports whether the current residual passes the level test
func (s *sweepConfig) converged(bnorm float64) bool {
	return s.test && floats.Norm(s.r, 2) <= s.rtol*bnorm
}

func finiteOrError(x []float64) error {
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("smoothing produced %g at DOF %d", v, i)
		}
	}
	return nil
}

// chebyshevSmoother runs the Chebyshev semi-iteration for D⁻¹A on
// [lower, upper]
type chebyshevSmoother struct {
	sweepConfig
	lower, upper float64
	d            []float64
}

func (s *chebyshevSmoother) Smooth(x, b []float64) error {
	theta := 0.5 * (s.upper + s.lower)
	delta := 0.5 * (s.upper - s.lower)
	sigma := theta / delta
	rho := 1 / sigma
	bnorm := floats.Norm(b, 2)

	s.a.Residual(s.r, b, x)
	for i := range s.d {
		s.d[i] = s.invDiag[i] * s.r[i] / theta
	}
	for k := 0; k < s.iters; k++ {
		if k > 0 {
			rhoNew := 1 / (2*sigma - rho)
			c1, c2 := rhoNew*rho, 2*rhoNew/delta
			for i := range s.d {
				s.d[i] = c1*s.d[i] + c2*s.invDiag[i]*s.r[i]
			}
			rho = rhoNew
		}
		floats.Add(x, s.d)
		s.a.Residual(s.r, b, x)
		if s.converged(bnorm) {
			break
		}
	}
	return finiteOrError(x)
}

// jacobiSmoother is damped Jacobi, x += ω D⁻¹(b - Ax)
type jacobiSmoother struct {
	sweepConfig
	omega float64
}

func (s *jacobiSmoother) Smooth(x, b []float64) error {
	bnorm := floats.Norm(b, 2)
	for k := 0; k < s.iters; k++ {
		s.a.Residual(s.r, b, x)
		if s.converged(bnorm) {
			break
		}
		for i := range x {
			x[i] += s.omega * s.invDiag[i] * s.r[i]
		}
	}
	return finiteOrError(x)
}

// gaussSeidelSmoother runs symmetric (forward then backward) sweeps
type gaussSeidelSmoother struct {
	sweepConfig
}

func (s *gaussSeidelSmoother) Smooth(x, b []float64) error {
	bnorm := floats.Norm(b, 2)
	n := s.a.Rows
	for k := 0; k < s.iters; k++ {
		for i := 0; i < n; i++ {
			s.relaxRow(i, x, b)
		}
		for i := n - 1; i >= 0; i-- {
			s.relaxRow(i, x, b)
		}
		if s.test {
			s.a.Residual(s.r, b, x)
			if s.converged(bnorm) {
				break
			}
		}
	}
	return finiteOrError(x)
}

func (s *gaussSeidelSmoother) relaxRow(i int, x, b []float64) {
	a := s.a
	sum := b[i]
	for k := a.RowPtr[i]; k < a.RowPtr[i+1]; k++ {
		if j := a.ColInd[k]; j != i {
			sum -= a.Val[k] * x[j]
		}
	}
	x[i] = sum * s.invDiag[i]
}

// EstimateMaxEigenvalue estimates the largest eigenvalue of D⁻¹A by steps
// of Lanczos on the similar matrix D^{-1/2} A D^{-1/2}. A must be symmetric
// with a positive diagonal. The start vector is fixed so repeated setups
// give identical smoothers.
func EstimateMaxEigenvalue(a *linalg.CSR, steps int) (float64, error) {
	n := a.Rows
	m := min(steps, n)
	if m < 1 {
		return 0, fmt.Errorf("cannot estimate eigenvalues with %d steps", steps)
	}
	scale := a.Diagonal()
	for i, d := range scale {
		if !(d > 0) {
			return 0, fmt.Errorf("diagonal entry %d is %g, want positive", i, d)
		}
		scale[i] = 1 / math.Sqrt(d)
	}

	rng := rand.New(rand.NewPCG(0x853c49e6748fea9b, uint64(n)))
	v := make([]float64, n)
	for i := range v {
		v[i] = 0.5 + rng.Float64()
	}
	floats.Scale(1/floats.Norm(v, 2), v)
	vPrev := make([]float64, n)
	w := make([]float64, n)
	tmp := make([]float64, n)

	alpha := make([]float64, 0, m)
	beta := make([]float64, 0, m)
	var b float64
	for j := 0; j < m; j++ {
		floats.MulTo(tmp, scale, v)
		a.MulVec(w, tmp)
		floats.Mul(w, scale)
		al := floats.Dot(w, v)
		alpha = append(alpha, al)
		floats.AddScaled(w, -al, v)
		if j > 0 {
			floats.AddScaled(w, -b, vPrev)
		}
		b = floats.Norm(w, 2)
		if j == m-1 || b <= 1.e-10*math.Abs(al) {
			break
		}
		beta = append(beta, b)
		vPrev, v = v, vPrev
		for i := range v {
			v[i] = w[i] / b
		}
	}

	k := len(alpha)
	t := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		t.SetSym(i, i, alpha[i])
		if i+1 < k {
			t.SetSym(i, i+1, beta[i])
		}
	}
	var es mat.EigenSym
	if !es.Factorize(t, false) {
		return 0, fmt.Errorf("tridiagonal eigenvalue problem of size %d failed", k)
	}
	vals := es.Values(nil)
	lmax := vals[len(vals)-1]
	if !(lmax > 0) || math.IsInf(lmax, 0) {
		return 0, fmt.Errorf("estimated largest eigenvalue %g is not positive", lmax)
	}
	return lmax, nil
}

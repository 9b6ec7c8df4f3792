package multigrid

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/notargets/mgsolve/linalg"
	"github.com/notargets/mgsolve/partitions"
	"gonum.org/v1/gonum/floats"
)

// LevelProblem is the discrete nonlinear problem F(u) = 0 on one level
type LevelProblem interface {
	NumDofs() int
	// Residual computes r = F(u)
	Residual(u, r []float64) error
	// Jacobian returns dF/du with constrained rows and columns set to the identity
	Jacobian(u []float64) (*linalg.CSR, error)
	// ConstrainedDofs lists the Dirichlet DOFs
	ConstrainedDofs() []int
	// ApplyConstraints imposes the boundary values on a state
	ApplyConstraints(u []float64)
}

// Discretization produces the problem on each level of a hierarchy
type Discretization interface {
	Problem(level *Level) (LevelProblem, error)
}

// DiscretizationFunc adapts a function to Discretization
type DiscretizationFunc func(level *Level) (LevelProblem, error)

func (f DiscretizationFunc) Problem(level *Level) (LevelProblem, error) { return f(level) }

// Result is the outcome of a successful (or capped) solve
type Result struct {
	Solution   *Field    // finest level state
	Iterations int       // outer iterations performed
	History    []float64 // fine residual norms, initial first
	Reason     Outcome
}

// Option configures a Solver
type Option func(*Solver)

// WithLogger sets a structured logger, the default discards everything
func WithLogger(logger *slog.Logger) Option {
	return func(s *Solver) {
		s.logger = logger
	}
}

// WithMetrics records solver activity on m
func WithMetrics(m *Metrics) Option {
	return func(s *Solver) {
		s.metrics = m
	}
}

// Solver runs GMG or FAS on a space hierarchy. Everything it holds is
// read-only during Solve, so one Solver may serve concurrent solves.
type Solver struct {
	sh       *SpaceHierarchy
	cfg      Config
	problems []LevelProblem
	fixed    [][]int

	// Optional row layouts per level and prolongations using them
	layouts  []*partitions.PartitionLayout
	prolongs []*linalg.CSR

	logger  *slog.Logger
	metrics *Metrics
}

// NewSolver validates cfg and discretizes the problem on every level
func NewSolver(sh *SpaceHierarchy, disc Discretization, cfg Config, opts ...Option) (*Solver, error) {
	if sh == nil || disc == nil {
		return nil, fmt.Errorf("%w: nil hierarchy or discretization", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Solver{sh: sh, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	n := sh.LevelCount()
	s.problems = make([]LevelProblem, n)
	s.fixed = make([][]int, n)
	for i := 0; i < n; i++ {
		lvl := sh.Level(i)
		p, err := disc.Problem(lvl)
		if err != nil {
			return nil, fmt.Errorf("discretizing %v: %w", lvl, err)
		}
		if p.NumDofs() != lvl.Space.NumDofs {
			return nil, fmt.Errorf("%w: %v problem has %d DOFs", ErrTransferMismatch, lvl, p.NumDofs())
		}
		s.problems[i] = p
		s.fixed[i] = p.ConstrainedDofs()
	}

	s.layouts = make([]*partitions.PartitionLayout, n)
	s.prolongs = make([]*linalg.CSR, n-1)
	strategy, err := partitions.ParseStrategy(string(cfg.PartitionStrategy))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for i := 0; i < n; i++ {
		if cfg.PartitionSize > 0 {
			layout, err := partitions.BuildRowLayout(sh.Level(i).Space.NumDofs, cfg.PartitionSize, strategy)
			if err != nil {
				return nil, fmt.Errorf("%w: level %d: %w", ErrInvalidConfig, i, err)
			}
			s.layouts[i] = layout
			stats := layout.PartitionStatistics()
			s.logger.Debug("level partitions", "level", i, "strategy", strategy.String(), "partitions", stats.NumPartitions,
				"min_rows", stats.MinRows, "max_rows", stats.MaxRows, "imbalance", stats.Imbalance)
		}
		if i > 0 {
			p, err := s.partitioned(i, sh.Transfer(i-1).P)
			if err != nil {
				return nil, err
			}
			s.prolongs[i-1] = p
		}
	}
	return s, nil
}

// Config returns the solver configuration
func (s *Solver) Config() Config { return s.cfg }

// Problem returns the discrete problem on level i
func (s *Solver) Problem(i int) LevelProblem { return s.problems[i] }

// partitioned attaches level l's row layout to a matrix with level l rows
func (s *Solver) partitioned(l int, a *linalg.CSR) (*linalg.CSR, error) {
	if s.layouts[l] == nil {
		return a, nil
	}
	return a.WithPartitions(s.layouts[l], s.cfg.Workers)
}

// mask zeroes the constrained DOFs of level l
func (s *Solver) mask(l int, v []float64) {
	for _, d := range s.fixed[l] {
		v[d] = 0
	}
}

// CycleState is the scratch space of one Solve. Nothing in it is shared
// with the hierarchy or with other solves.
type CycleState struct {
	u    [][]float64 // level states, u[N] is the outer iterate
	uhat [][]float64 // states injected from the next finer level
	g    [][]float64 // level right-hand sides
	x    [][]float64 // level corrections
	res  [][]float64
	work [][]float64

	ops []*levelOperator

	// Krylov vectors on the finest level
	kr, kz, kp, kap []float64
}

// levelOperator is a linearized level operator with its smoother, or with
// the direct solver on the coarsest level
type levelOperator struct {
	a        *linalg.CSR
	smoother Smoother
	coarse   *DirectSolver
}

func newCycleState(sh *SpaceHierarchy) *CycleState {
	n := sh.LevelCount()
	st := &CycleState{ops: make([]*levelOperator, n)}
	for _, field := range []*[][]float64{&st.u, &st.uhat, &st.g, &st.x, &st.res, &st.work} {
		*field = make([][]float64, n)
		for i := 0; i < n; i++ {
			(*field)[i] = make([]float64, sh.Level(i).Space.NumDofs)
		}
	}
	nf := sh.Finest().Space.NumDofs
	st.kr = make([]float64, nf)
	st.kz = make([]float64, nf)
	st.kp = make([]float64, nf)
	st.kap = make([]float64, nf)
	return st
}

// Solve runs the configured variant from initial, or from zero when initial
// is nil. The boundary values are imposed on the initial state first.
// On ErrIterationCapExceeded the capped Result is returned with the error.
func (s *Solver) Solve(initial *Field) (*Result, error) {
	start := time.Now()
	fine := s.sh.Finest()
	st := newCycleState(s.sh)
	if initial != nil {
		if initial.Kind != State || initial.Level != fine.Index || len(initial.Values) != fine.Space.NumDofs {
			return nil, fmt.Errorf("%w: initial guess must be a %d value state on level %d, got %s on level %d with %d values",
				ErrTransferMismatch, fine.Space.NumDofs, fine.Index, initial.Kind, initial.Level, len(initial.Values))
		}
		copy(st.u[fine.Index], initial.Values)
	}
	s.problems[fine.Index].ApplyConstraints(st.u[fine.Index])

	log := s.logger.With("solve_id", uuid.NewString(), "variant", string(s.cfg.Variant))
	log.Info("solve started", "levels", s.sh.LevelCount(), "dofs", fine.Space.NumDofs,
		"cycle", string(s.cfg.Cycle))

	var step func() error
	switch s.cfg.Variant {
	case GMG:
		step = func() error { return s.gmgStep(st) }
	case FAS:
		step = func() error { return s.fasStep(st) }
	default:
		return nil, fmt.Errorf("%w: unknown variant %q", ErrInvalidConfig, s.cfg.Variant)
	}

	res, err := s.iterate(st, log, step)

	outcome := "error"
	final := 0.
	if res != nil {
		outcome = res.Reason.String()
		final = res.History[len(res.History)-1]
	}
	switch {
	case err == nil:
		log.Info("solve converged", "reason", outcome, "iterations", res.Iterations, "residual", final)
	case res != nil:
		log.Warn("solve stopped at iteration cap", "iterations", res.Iterations, "residual", final)
		outcome = "capped"
	default:
		log.Error("solve failed", "error", err)
	}
	s.metrics.finish(s.cfg.Variant, outcome, final, time.Since(start))
	return res, err
}

// iterate is the outer loop shared by both variants
func (s *Solver) iterate(st *CycleState, log *slog.Logger, step func() error) (*Result, error) {
	n := s.sh.Finest().Index
	prob := s.problems[n]
	mon := NewMonitor(s.cfg)
	u, r := st.u[n], st.res[n]
	for it := 0; ; it++ {
		if err := prob.Residual(u, r); err != nil {
			err = levelError(ErrDivergence, n, fmt.Errorf("fine residual: %w", err))
			var se *SolveError
			if errors.As(err, &se) {
				se.Iteration, se.ResidualNorm = it, math.NaN()
			}
			return nil, err
		}
		norm := floats.Norm(r, 2)
		out, err := mon.Check(it, norm)
		log.Debug("outer iteration", "iteration", it, "residual", norm, "outcome", out.String())
		if err != nil {
			if errors.Is(err, ErrIterationCapExceeded) {
				return s.result(st, it, mon, out), err
			}
			return nil, err
		}
		if out.Converged() {
			return s.result(st, it, mon, out), nil
		}
		if err := step(); err != nil {
			var se *SolveError
			if errors.As(err, &se) {
				se.Iteration, se.ResidualNorm = it, norm
				switch {
				case errors.Is(err, ErrCoarseSolveFailure):
					log.Warn("coarse solve failed", "iteration", it, "error", err)
				case errors.Is(err, ErrDivergence):
					log.Warn("step diverged", "iteration", it, "level", se.Level, "error", err)
				}
			}
			return nil, err
		}
		s.metrics.iteration(s.cfg.Variant)
	}
}

func (s *Solver) result(st *CycleState, it int, mon *Monitor, out Outcome) *Result {
	n := s.sh.Finest().Index
	return &Result{
		Solution:   &Field{Kind: State, Level: n, Values: append([]float64(nil), st.u[n]...)},
		Iterations: it,
		History:    mon.History(),
		Reason:     out,
	}
}

// coarseSolve runs the direct solver of level 0 and records the attempt
func (s *Solver) coarseSolve(ds *DirectSolver, x, b []float64) error {
	err := ds.Solve(x, b)
	s.metrics.coarseSolve(s.cfg.Variant, err)
	if err != nil {
		return levelError(ErrCoarseSolveFailure, 0, err)
	}
	return nil
}

// smootherFor builds the level smoother of a linearized operator
func (s *Solver) smootherFor(l int, a *linalg.CSR) (Smoother, error) {
	sm, err := NewSmoother(s.cfg.Levels, a)
	if err != nil {
		return nil, levelError(ErrDivergence, l, fmt.Errorf("smoother setup: %w", err))
	}
	return sm, nil
}

// directFor factors the coarsest operator
func (s *Solver) directFor(a *linalg.CSR) (*DirectSolver, error) {
	ds, err := NewDirectSolver(s.cfg.Coarse, a)
	if err != nil {
		s.metrics.coarseSolve(s.cfg.Variant, err)
		return nil, levelError(ErrCoarseSolveFailure, 0, err)
	}
	return ds, nil
}

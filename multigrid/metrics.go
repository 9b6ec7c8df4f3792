package multigrid

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the solver's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	iterations     *prometheus.CounterVec
	cycles         *prometheus.CounterVec
	coarseSolves   *prometheus.CounterVec
	coarseFailures *prometheus.CounterVec
	solves         *prometheus.CounterVec
	residual       *prometheus.GaugeVec
	duration       *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		iterations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mgsolve_outer_iterations_total",
				Help: "Outer Newton or FAS iterations",
			},
			[]string{"variant"},
		),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mgsolve_cycles_total",
				Help: "Multigrid cycle applications",
			},
			[]string{"variant", "cycle"},
		),
		coarseSolves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mgsolve_coarse_solves_total",
				Help: "Direct solves on the coarsest level",
			},
			[]string{"variant"},
		),
		coarseFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mgsolve_coarse_solve_failures_total",
				Help: "Failed coarse factorizations or solves",
			},
			[]string{"variant"},
		),
		solves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mgsolve_solves_total",
				Help: "Completed solves by outcome",
			},
			[]string{"variant", "outcome"},
		),
		residual: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mgsolve_final_residual",
				Help: "Fine level residual norm at the end of the last solve",
			},
			[]string{"variant"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mgsolve_solve_duration_seconds",
				Help:    "Wall time of Solve",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"variant"},
		),
	}
	for _, c := range []prometheus.Collector{
		m.iterations, m.cycles, m.coarseSolves, m.coarseFailures, m.solves, m.residual, m.duration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) iteration(v Variant) {
	if m == nil {
		return
	}
	m.iterations.WithLabelValues(string(v)).Inc()
}

func (m *Metrics) cycle(v Variant, c CycleType) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(string(v), string(c)).Inc()
}

func (m *Metrics) coarseSolve(v Variant, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.coarseFailures.WithLabelValues(string(v)).Inc()
		return
	}
	m.coarseSolves.WithLabelValues(string(v)).Inc()
}

func (m *Metrics) finish(v Variant, outcome string, residual float64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.solves.WithLabelValues(string(v), outcome).Inc()
	m.residual.WithLabelValues(string(v)).Set(residual)
	m.duration.WithLabelValues(string(v)).Observe(elapsed.Seconds())
}

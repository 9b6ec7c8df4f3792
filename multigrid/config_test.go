package multigrid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresets(t *testing.T) {
	g := GMGPreset()
	require.NoError(t, g.Validate())
	assert.Equal(t, GMG, g.Variant)
	assert.Equal(t, FullCycle, g.Cycle)
	assert.Equal(t, PreOnly, g.KSP)
	assert.Equal(t, 1, g.MaxIterations)
	assert.Equal(t, Chebyshev, g.Levels.Smoother)
	assert.Equal(t, 2, g.Levels.Iterations)
	assert.Equal(t, LU, g.Coarse.Strategy)
	assert.Equal(t, BlockRows, g.PartitionStrategy)

	f := FASPreset()
	require.NoError(t, f.Validate())
	assert.Equal(t, FAS, f.Variant)
	assert.Equal(t, 1, f.Levels.NewtonIterations)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"variant", func(c *Config) { c.Variant = "amg" }},
		{"cycle", func(c *Config) { c.Cycle = "w" }},
		{"ksp", func(c *Config) { c.KSP = "gmres" }},
		{"max iterations", func(c *Config) { c.MaxIterations = 0 }},
		{"negative rtol", func(c *Config) { c.RTol = -1 }},
		{"smoother", func(c *Config) { c.Levels.Smoother = "ilu" }},
		{"damping", func(c *Config) { c.Levels.Damping = 3 }},
		{"chebyshev interval", func(c *Config) { c.Levels.ChebyshevUpper = 0.05 }},
		{"coarse strategy", func(c *Config) { c.Coarse.Strategy = "qr" }},
		{"residual tolerance", func(c *Config) { c.Coarse.ResidualTolerance = 0 }},
		{"coarse operator", func(c *Config) { c.CoarseOperator = "algebraic" }},
		{"workers", func(c *Config) { c.Workers = -2 }},
		{"partition strategy", func(c *Config) { c.PartitionStrategy = "metis" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GMGPreset()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestParseOptions(t *testing.T) {
	cfg, err := ParseOptions(map[string]any{
		"variant": "fas",
		"cycle":   "v",
		"levels": map[string]any{
			"iterations": 3,
			"smoother":   "jacobi",
		},
		"coarse": map[string]any{"strategy": "cholesky"},
	})
	require.NoError(t, err)
	assert.Equal(t, FAS, cfg.Variant)
	assert.Equal(t, VCycle, cfg.Cycle)
	assert.Equal(t, 3, cfg.Levels.Iterations)
	assert.Equal(t, Jacobi, cfg.Levels.Smoother)
	assert.Equal(t, Cholesky, cfg.Coarse.Strategy)
	// Untouched fields keep their preset values
	assert.Equal(t, 0.1, cfg.Levels.ChebyshevLower)
	assert.Equal(t, 50, cfg.Coarse.NewtonMaxIterations)

	_, err = ParseOptions(map[string]any{"smoothr": "jacobi"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParseOptions(map[string]any{"levels": map[string]any{"damping": 5.0}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfig(t *testing.T) {
	doc := `
variant: gmg
cycle: v
ksp: cg
max_iterations: 4
convergence_test: true
rtol: 1e-10
levels:
  smoother: sgs
  iterations: 1
coarse_operator: galerkin
partition_size: 128
partition_strategy: round_robin
`
	cfg, err := LoadConfig(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, CG, cfg.KSP)
	assert.Equal(t, 4, cfg.MaxIterations)
	assert.True(t, cfg.ConvergenceTest)
	assert.InDelta(t, 1.e-10, cfg.RTol, 1.e-20)
	assert.Equal(t, GaussSeidel, cfg.Levels.Smoother)
	assert.Equal(t, Galerkin, cfg.CoarseOperator)
	assert.Equal(t, 128, cfg.PartitionSize)
	assert.Equal(t, RoundRobinRows, cfg.PartitionStrategy)

	empty, err := LoadConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, GMGPreset(), empty)

	_, err = LoadConfig(strings.NewReader("cycle: [v"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = LoadConfig(strings.NewReader("unknown_key: 1"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

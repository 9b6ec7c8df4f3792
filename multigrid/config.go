package multigrid

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Variant selects the outer algorithm
type Variant string

const (
	GMG Variant = "gmg" // Newton with a multigrid preconditioned linear solve
	FAS Variant = "fas" // full approximation scheme
)

// CycleType selects the shape of one multigrid application
type CycleType string

const (
	VCycle    CycleType = "v"
	FCycle    CycleType = "f"
	FullCycle CycleType = "full"
)

// KSPType selects the linear solver wrapped around the GMG preconditioner
type KSPType string

const (
	PreOnly    KSPType = "preonly"
	Richardson KSPType = "richardson"
	CG         KSPType = "cg"
)

// SmootherType selects the level smoother
type SmootherType string

const (
	Chebyshev   SmootherType = "chebyshev"
	Jacobi      SmootherType = "jacobi"
	GaussSeidel SmootherType = "sgs"
)

// CoarseStrategy selects the coarsest level factorization
type CoarseStrategy string

const (
	LU       CoarseStrategy = "lu"
	Cholesky CoarseStrategy = "cholesky"
)

// CoarseOperatorType selects how GMG forms coarse level operators
type CoarseOperatorType string

const (
	Rediscretize CoarseOperatorType = "rediscretize"
	Galerkin     CoarseOperatorType = "galerkin"
)

// LevelSolverConfig configures the smoother run on every level but the coarsest
type LevelSolverConfig struct {
	Smoother   SmootherType `mapstructure:"smoother" validate:"oneof=chebyshev jacobi sgs"`
	Iterations int          `mapstructure:"iterations" validate:"min=1"`

	// With ConvergenceTest false exactly Iterations sweeps run
	ConvergenceTest bool    `mapstructure:"convergence_test"`
	RTol            float64 `mapstructure:"rtol" validate:"gte=0"`

	// Jacobi weight is Damping/λmax(D⁻¹A)
	Damping float64 `mapstructure:"damping" validate:"gt=0,lt=2"`

	// Chebyshev interval as fractions of the estimated λmax(D⁻¹A)
	ChebyshevLower float64 `mapstructure:"chebyshev_lower" validate:"gt=0"`
	ChebyshevUpper float64 `mapstructure:"chebyshev_upper" validate:"gtfield=ChebyshevLower"`
	EigenSteps     int     `mapstructure:"eigen_steps" validate:"min=1"`

	// Newton steps per nonlinear relaxation (FAS only)
	NewtonIterations int `mapstructure:"newton_iterations" validate:"min=1"`
}

// CoarseSolverConfig configures the direct solve on the coarsest level
type CoarseSolverConfig struct {
	Strategy CoarseStrategy `mapstructure:"strategy" validate:"oneof=lu cholesky"`

	// Newton loop around the factorization (FAS only)
	NewtonMaxIterations int     `mapstructure:"newton_max_iterations" validate:"min=1"`
	NewtonRTol          float64 `mapstructure:"newton_rtol" validate:"gte=0"`
	NewtonATol          float64 `mapstructure:"newton_atol" validate:"gte=0"`
	NewtonSTol          float64 `mapstructure:"newton_stol" validate:"gte=0"`

	// A solve whose residual exceeds ResidualTolerance·‖b‖ has failed
	ResidualTolerance float64 `mapstructure:"residual_tolerance" validate:"gt=0"`
}

// PartitionOrder selects how the rows of a level are grouped into partitions
type PartitionOrder string

const (
	BlockRows      PartitionOrder = "block"       // consecutive rows
	RoundRobinRows PartitionOrder = "round_robin" // rows dealt out cyclically
)

// Config is the complete solver configuration
type Config struct {
	Variant Variant   `mapstructure:"variant" validate:"oneof=gmg fas"`
	Cycle   CycleType `mapstructure:"cycle" validate:"oneof=v f full"`

	// Outer loop, checked by the convergence monitor
	MaxIterations       int     `mapstructure:"max_iterations" validate:"min=1"`
	ConvergenceTest     bool    `mapstructure:"convergence_test"`
	RTol                float64 `mapstructure:"rtol" validate:"gte=0"`
	ATol                float64 `mapstructure:"atol" validate:"gte=0"`
	DivergenceTolerance float64 `mapstructure:"divergence_tolerance" validate:"gte=0"`

	// Linear solve of each GMG Newton step
	KSP                 KSPType `mapstructure:"ksp" validate:"oneof=preonly richardson cg"`
	LinearMaxIterations int     `mapstructure:"linear_max_iterations" validate:"min=1"`
	LinearRTol          float64 `mapstructure:"linear_rtol" validate:"gte=0"`

	Levels         LevelSolverConfig  `mapstructure:"levels"`
	Coarse         CoarseSolverConfig `mapstructure:"coarse"`
	CoarseOperator CoarseOperatorType `mapstructure:"coarse_operator" validate:"oneof=rediscretize galerkin"`

	// Rows per partition for data-parallel kernels, 0 runs serially
	PartitionSize     int            `mapstructure:"partition_size" validate:"gte=0"`
	PartitionStrategy PartitionOrder `mapstructure:"partition_strategy" validate:"oneof=block round_robin"`
	// Concurrent partitions, 0 means unlimited
	Workers int `mapstructure:"workers" validate:"gte=0"`
}

func defaultLevels() LevelSolverConfig {
	return LevelSolverConfig{
		Smoother:         Chebyshev,
		Iterations:       2,
		RTol:             1.e-5,
		Damping:          1,
		ChebyshevLower:   0.1,
		ChebyshevUpper:   1.1,
		EigenSteps:       20,
		NewtonIterations: 1,
	}
}

func defaultCoarse() CoarseSolverConfig {
	return CoarseSolverConfig{
		Strategy:            LU,
		NewtonMaxIterations: 50,
		NewtonRTol:          1.e-8,
		NewtonATol:          1.e-50,
		NewtonSTol:          1.e-8,
		ResidualTolerance:   1.e-8,
	}
}

// GMGPreset is a single Newton step whose linear solve is one full
// multigrid cycle with two Chebyshev/Jacobi sweeps per level and an LU
// coarse solve
func GMGPreset() Config {
	return Config{
		Variant:             GMG,
		Cycle:               FullCycle,
		MaxIterations:       1,
		RTol:                1.e-8,
		ATol:                1.e-50,
		DivergenceTolerance: 1.e4,
		KSP:                 PreOnly,
		LinearMaxIterations: 10000,
		LinearRTol:          1.e-5,
		Levels:              defaultLevels(),
		Coarse:              defaultCoarse(),
		CoarseOperator:      Rediscretize,
		PartitionStrategy:   BlockRows,
	}
}

// FASPreset is one full FAS cycle with one Newton step of two
// Chebyshev/Jacobi sweeps per level and Newton with LU on the coarsest level
func FASPreset() Config {
	cfg := GMGPreset()
	cfg.Variant = FAS
	return cfg
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks every field of the configuration
func (c Config) Validate() error {
	validateOnce.Do(func() { validate = validator.New() })
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s fails %q (value %v)", ErrInvalidConfig, fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ParseOptions decodes an option map over the preset named by its
// "variant" key (GMG when absent). Unknown keys are errors.
func ParseOptions(opts map[string]any) (Config, error) {
	cfg := GMGPreset()
	if v, ok := opts["variant"]; ok {
		if s, ok := v.(string); ok && Variant(s) == FAS {
			cfg = FASPreset()
		}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &cfg,
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(opts); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads YAML options and decodes them with ParseOptions
func LoadConfig(r io.Reader) (Config, error) {
	opts := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: reading yaml: %w", ErrInvalidConfig, err)
	}
	return ParseOptions(opts)
}

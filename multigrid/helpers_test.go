package multigrid

import (
	"math"
	"testing"

	"github.com/notargets/mgsolve/fem"
	"github.com/notargets/mgsolve/mesh"
	"github.com/stretchr/testify/require"
)

var allMarkers = []int{mesh.Left, mesh.Right, mesh.Bottom, mesh.Top}

func unitHierarchy(t testing.TB, n, refinements, degree int) *SpaceHierarchy {
	t.Helper()
	base, err := mesh.UnitSquareMesh(n, n)
	require.NoError(t, err)
	h, err := BuildHierarchy(base, refinements)
	require.NoError(t, err)
	sh, err := MakeFunctionSpace(h, "CG", degree)
	require.NoError(t, err)
	return sh
}

func poissonDisc(p *fem.SemilinearPoisson) Discretization {
	return DiscretizationFunc(func(l *Level) (LevelProblem, error) {
		return p.OnSpace(l.Space)
	})
}

// manufacturedExact is the exact solution for manufacturedSource with zero
// boundary values; it is not an eigenmode of the Laplacian
func manufacturedExact(x, y float64) float64 {
	return math.Sin(math.Pi*x) * math.Tan(math.Pi*x*0.25) * math.Sin(math.Pi*y)
}

func manufacturedSource(x, y float64) float64 {
	return -0.5 * math.Pi * math.Pi *
		(4*math.Cos(math.Pi*x) - 5*math.Cos(math.Pi*x*0.5) + 2) * math.Sin(math.Pi*y)
}

func manufacturedPoisson() *fem.SemilinearPoisson {
	return &fem.SemilinearPoisson{
		Source:    manufacturedSource,
		Dirichlet: allMarkers,
	}
}

func isDecreasing(h []float64) bool {
	for i := 1; i < len(h); i++ {
		if !(h[i] < h[i-1]) {
			return false
		}
	}
	return true
}

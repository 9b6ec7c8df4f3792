package fem

import (
	"math"
	"testing"

	"github.com/notargets/mgsolve/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitSpace(t *testing.T, n, degree int) *FunctionSpace {
	t.Helper()
	m, err := mesh.UnitSquareMesh(n, n)
	require.NoError(t, err)
	fs, err := NewFunctionSpace(m, "CG", degree)
	require.NoError(t, err)
	return fs
}

func TestTriangleQuadratureExactness(t *testing.T) {
	// ∫ over the reference triangle of ((1+r)/2)^a ((1+s)/2)^b = 4·a!b!/(a+b+2)!
	fact := func(n int) float64 { return math.Gamma(float64(n) + 1) }
	for _, order := range []int{1, 4, 8} {
		q := TriangleQuadrature(order)
		for a := 0; a <= order; a++ {
			for b := 0; a+b <= order; b++ {
				var sum float64
				for p := range q.W {
					sum += q.W[p] * math.Pow((1+q.R[p])/2, float64(a)) * math.Pow((1+q.S[p])/2, float64(b))
				}
				want := 4 * fact(a) * fact(b) / fact(a+b+2)
				assert.InDelta(t, want, sum, 1e-14, "order %d monomial (%d,%d)", order, a, b)
			}
		}
	}
	assert.Equal(t, 25, TriangleQuadrature(8).NumPoints())
	assert.Equal(t, 9, TriangleQuadrature(4).NumPoints())
}

func TestFunctionSpaceDofs(t *testing.T) {
	fs1 := unitSpace(t, 4, 1)
	assert.Equal(t, 25, fs1.NumDofs)
	assert.Len(t, fs1.BoundaryDofs(), 16)

	fs2 := unitSpace(t, 4, 2)
	assert.Equal(t, 81, fs2.NumDofs)
	assert.Len(t, fs2.BoundaryDofs(), 32)
	assert.Len(t, fs2.BoundaryDofs(mesh.Left), 9)

	// Edge DOFs sit at the edge midpoints of the cell
	for k, dofs := range fs2.CellDofs {
		for i := 0; i < 3; i++ {
			a, b := fs2.Mesh.EToV[k][i], fs2.Mesh.EToV[k][(i+1)%3]
			assert.InDelta(t, 0.5*(fs2.DofX[a]+fs2.DofX[b]), fs2.DofX[dofs[3+i]], 1e-15)
			assert.InDelta(t, 0.5*(fs2.DofY[a]+fs2.DofY[b]), fs2.DofY[dofs[3+i]], 1e-15)
		}
	}

	_, err := NewFunctionSpace(fs2.Mesh, "CG", 3)
	assert.Error(t, err)
}

func TestL2NormAndMass(t *testing.T) {
	fs := unitSpace(t, 3, 2)
	one := fs.Interpolate(func(_, _ float64) float64 { return 1 })
	assert.InDelta(t, 1.0, fs.L2Norm(one), 1e-13)

	// ∫ x² over the unit square is 1/3 and x is reproduced exactly by P2
	x := fs.Interpolate(func(x, _ float64) float64 { return x })
	assert.InDelta(t, math.Sqrt(1./3), fs.L2Norm(x), 1e-13)

	m := fs.MassMatrix()
	mx := make([]float64, fs.NumDofs)
	m.MulVec(mx, x)
	var xmx float64
	for i := range x {
		xmx += x[i] * mx[i]
	}
	assert.InDelta(t, 1./3, xmx, 1e-13)

	assert.InDelta(t, 0.0, fs.L2Error(x, func(x, _ float64) float64 { return x }), 1e-13)
}

func TestProlongationReproducesCoarseFunctions(t *testing.T) {
	for _, degree := range []int{1, 2} {
		coarseMesh, err := mesh.UnitSquareMesh(3, 2)
		require.NoError(t, err)
		fineMesh, parent, err := coarseMesh.Refine()
		require.NoError(t, err)
		coarse, err := NewFunctionSpace(coarseMesh, "CG", degree)
		require.NoError(t, err)
		fine, err := NewFunctionSpace(fineMesh, "CG", degree)
		require.NoError(t, err)

		p, err := Prolongation(coarse, fine, parent)
		require.NoError(t, err)
		assert.Equal(t, fine.NumDofs, p.Rows)
		assert.Equal(t, coarse.NumDofs, p.Cols)

		f := func(x, y float64) float64 { return 1 + 2*x - y }
		if degree == 2 {
			f = func(x, y float64) float64 { return 1 + 2*x - y + x*y - 3*y*y }
		}
		uf := make([]float64, fine.NumDofs)
		p.MulVec(uf, coarse.Interpolate(f))
		assert.InDeltaSlice(t, fine.Interpolate(f), uf, 1e-12)

		// Rows are a partition of unity
		rowSum := make([]float64, fine.NumDofs)
		ones := make([]float64, coarse.NumDofs)
		for i := range ones {
			ones[i] = 1
		}
		p.MulVec(rowSum, ones)
		for _, v := range rowSum {
			assert.InDelta(t, 1.0, v, 1e-13)
		}

		_, err = Prolongation(coarse, fine, parent[1:])
		assert.Error(t, err)
	}
}

func TestPoissonResidualVanishesForLinearSolution(t *testing.T) {
	fs := unitSpace(t, 4, 2)
	exact := func(x, y float64) float64 { return 2*x - y + 0.5 }
	prob := &SemilinearPoisson{
		Dirichlet: []int{mesh.Left, mesh.Right, mesh.Bottom, mesh.Top},
		Boundary:  exact,
	}
	pl, err := prob.OnSpace(fs)
	require.NoError(t, err)

	u := make([]float64, fs.NumDofs)
	pl.ApplyConstraints(u)
	r := make([]float64, fs.NumDofs)
	require.NoError(t, pl.Residual(u, r))
	// Interior rows see the wrong interior values, constrained rows do not
	for _, d := range pl.ConstrainedDofs() {
		assert.Equal(t, 0.0, r[d])
	}

	u = fs.Interpolate(exact)
	require.NoError(t, pl.Residual(u, r))
	assert.InDeltaSlice(t, make([]float64, fs.NumDofs), r, 1e-11)

	assert.Error(t, pl.Residual(u[1:], r))
}

func TestPoissonJacobianFiniteDifference(t *testing.T) {
	fs := unitSpace(t, 3, 2)
	prob := &SemilinearPoisson{
		Kappa:     3,
		Source:    func(x, y float64) float64 { return x + y },
		Dirichlet: []int{mesh.Bottom, mesh.Left},
	}
	pl, err := prob.OnSpace(fs)
	require.NoError(t, err)

	n := fs.NumDofs
	u := fs.Interpolate(func(x, y float64) float64 { return math.Sin(3*x) * math.Cos(2*y) })
	v := fs.Interpolate(func(x, y float64) float64 { return x*x - y + 0.3 })
	for _, d := range pl.ConstrainedDofs() {
		v[d] = 0
	}

	jac, err := pl.Jacobian(u)
	require.NoError(t, err)
	jv := make([]float64, n)
	jac.MulVec(jv, v)

	const h = 1e-6
	up := make([]float64, n)
	um := make([]float64, n)
	for i := range u {
		up[i] = u[i] + h*v[i]
		um[i] = u[i] - h*v[i]
	}
	rp := make([]float64, n)
	rm := make([]float64, n)
	require.NoError(t, pl.Residual(up, rp))
	require.NoError(t, pl.Residual(um, rm))
	for i := range jv {
		assert.InDelta(t, (rp[i]-rm[i])/(2*h), jv[i], 1e-7, "row %d", i)
	}

	// The Jacobian is symmetric
	d := jac.ToDense()
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			assert.InDelta(t, d.At(i, j), d.At(j, i), 1e-13)
		}
	}

	// Constrained rows and columns are those of the identity
	for _, c := range pl.ConstrainedDofs() {
		for j := 0; j < n; j++ {
			want := 0.
			if j == c {
				want = 1
			}
			assert.Equal(t, want, d.At(c, j), "row %d col %d", c, j)
			assert.Equal(t, want, d.At(j, c), "row %d col %d", j, c)
		}
	}
}

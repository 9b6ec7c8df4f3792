package fem

import (
	"fmt"
	"math"

	"github.com/notargets/mgsolve/linalg"
)

// SemilinearPoisson describes -Δu + κu³ = f with Dirichlet data u = g on
// the boundary edges carrying one of the Dirichlet markers. The weak form is
//
//	F_i(u) = ∫ ∇u·∇φ_i + κu³φ_i - f_h φ_i
//
// where f_h is the interpolant of Source in the level's space. Constrained
// rows are replaced by F_i = u_i - g_i.
type SemilinearPoisson struct {
	Kappa     float64
	Source    func(x, y float64) float64 // nil means f = 0
	Dirichlet []int                      // boundary markers, empty means no constraints
	Boundary  func(x, y float64) float64 // nil means g = 0

	// QuadratureOrder defaults to 4·degree, exact for the κu³φ term
	QuadratureOrder int
}

// PoissonLevel is a SemilinearPoisson discretized on one function space
type PoissonLevel struct {
	Space *FunctionSpace

	kappa       float64
	source      []float64
	boundary    []float64
	constrained []int
	isFixed     []bool

	quad Quadrature
	tab  tabulation
}

// OnSpace discretizes the problem on fs
func (p *SemilinearPoisson) OnSpace(fs *FunctionSpace) (*PoissonLevel, error) {
	if fs == nil {
		return nil, fmt.Errorf("nil function space")
	}
	if math.IsNaN(p.Kappa) || math.IsInf(p.Kappa, 0) {
		return nil, fmt.Errorf("invalid kappa %g", p.Kappa)
	}
	order := p.QuadratureOrder
	if order <= 0 {
		order = 4 * fs.Degree
	}
	pl := &PoissonLevel{
		Space:   fs,
		kappa:   p.Kappa,
		isFixed: make([]bool, fs.NumDofs),
		quad:    TriangleQuadrature(order),
	}
	pl.tab = tabulate(fs.Element, pl.quad)

	if p.Source != nil {
		pl.source = fs.Interpolate(p.Source)
	} else {
		pl.source = make([]float64, fs.NumDofs)
	}
	if p.Boundary != nil {
		pl.boundary = fs.Interpolate(p.Boundary)
	} else {
		pl.boundary = make([]float64, fs.NumDofs)
	}
	if len(p.Dirichlet) > 0 {
		pl.constrained = fs.BoundaryDofs(p.Dirichlet...)
	}
	for _, d := range pl.constrained {
		pl.isFixed[d] = true
	}
	return pl, nil
}

// NumDofs returns the number of unknowns
func (pl *PoissonLevel) NumDofs() int { return pl.Space.NumDofs }

// ConstrainedDofs returns the Dirichlet DOFs in ascending order
func (pl *PoissonLevel) ConstrainedDofs() []int { return pl.constrained }

// ApplyConstraints sets the Dirichlet values of u
func (pl *PoissonLevel) ApplyConstraints(u []float64) {
	for _, d := range pl.constrained {
		u[d] = pl.boundary[d]
	}
}

// cellKernel holds per cell scratch space
type cellKernel struct {
	dx, dy [][]float64 // physical basis gradients [point][basis]
}

func (pl *PoissonLevel) newKernel() *cellKernel {
	np := pl.Space.Np()
	ck := &cellKernel{
		dx: make([][]float64, pl.quad.NumPoints()),
		dy: make([][]float64, pl.quad.NumPoints()),
	}
	for p := range ck.dx {
		ck.dx[p] = make([]float64, np)
		ck.dy[p] = make([]float64, np)
	}
	return ck
}

func (pl *PoissonLevel) gradients(ck *cellKernel, k int) {
	for p := range pl.quad.W {
		pl.Space.Transform.PhysicalGradient(k, pl.tab.dr[p], pl.tab.ds[p], ck.dx[p], ck.dy[p])
	}
}

func (pl *PoissonLevel) checkLength(name string, v []float64) error {
	if len(v) != pl.Space.NumDofs {
		return fmt.Errorf("%s has length %d, want %d", name, len(v), pl.Space.NumDofs)
	}
	return nil
}

// Residual computes r = F(u)
func (pl *PoissonLevel) Residual(u, r []float64) error {
	if err := pl.checkLength("state", u); err != nil {
		return err
	}
	if err := pl.checkLength("residual", r); err != nil {
		return err
	}
	for i := range r {
		r[i] = 0
	}
	ck := pl.newKernel()
	np := pl.Space.Np()
	for k, dofs := range pl.Space.CellDofs {
		pl.gradients(ck, k)
		jac := math.Abs(pl.Space.Transform.J[k])
		for p, w := range pl.quad.W {
			phi := pl.tab.phi[p]
			var uq, fq, ux, uy float64
			for i, d := range dofs {
				uq += u[d] * phi[i]
				fq += pl.source[d] * phi[i]
				ux += u[d] * ck.dx[p][i]
				uy += u[d] * ck.dy[p][i]
			}
			wj := w * jac
			reaction := pl.kappa*uq*uq*uq - fq
			for i := 0; i < np; i++ {
				r[dofs[i]] += wj * (ux*ck.dx[p][i] + uy*ck.dy[p][i] + reaction*phi[i])
			}
		}
	}
	for _, d := range pl.constrained {
		r[d] = u[d] - pl.boundary[d]
	}
	return nil
}

// Jacobian assembles dF/du at u with the constrained rows and columns
// replaced by those of the identity
func (pl *PoissonLevel) Jacobian(u []float64) (*linalg.CSR, error) {
	if err := pl.checkLength("state", u); err != nil {
		return nil, err
	}
	ck := pl.newKernel()
	np := pl.Space.Np()
	t := linalg.NewTriplets(pl.Space.NumDofs, pl.Space.NumDofs, pl.Space.Mesh.NumElements*np*np)
	local := make([]float64, np*np)
	for k, dofs := range pl.Space.CellDofs {
		pl.gradients(ck, k)
		jac := math.Abs(pl.Space.Transform.J[k])
		for i := range local {
			local[i] = 0
		}
		for p, w := range pl.quad.W {
			phi := pl.tab.phi[p]
			var uq float64
			for i, d := range dofs {
				uq += u[d] * phi[i]
			}
			wj := w * jac
			dReaction := 3 * pl.kappa * uq * uq
			for i := 0; i < np; i++ {
				for j := 0; j < np; j++ {
					local[i*np+j] += wj * (ck.dx[p][i]*ck.dx[p][j] + ck.dy[p][i]*ck.dy[p][j] +
						dReaction*phi[i]*phi[j])
				}
			}
		}
		for i := 0; i < np; i++ {
			for j := 0; j < np; j++ {
				t.Add(dofs[i], dofs[j], local[i*np+j])
			}
		}
	}
	return t.ToConstrainedCSR(pl.constrained, 1)
}

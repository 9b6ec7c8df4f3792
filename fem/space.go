// Package fem provides continuous Lagrange function spaces on triangle
// meshes, interpolation between nested spaces and the assembly of the
// semilinear Poisson family of problems.
package fem

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/mgsolve/element"
	"github.com/notargets/mgsolve/linalg"
	"github.com/notargets/mgsolve/mesh"
)

// FunctionSpace is a continuous Lagrange space of degree 1 or 2 on a mesh.
// DOFs are numbered vertices first, then (degree 2) one per edge, so DOF
// NumVertices+e sits at the midpoint of edge e.
type FunctionSpace struct {
	Mesh    *mesh.TriMesh
	Element element.ReferenceElement
	Family  string
	Degree  int
	NumDofs int

	// CellDofs[k] lists the global DOFs of cell k in element node order
	CellDofs [][]int
	// DOF coordinates
	DofX, DofY []float64

	Transform element.GeometricTransform
}

// NewFunctionSpace builds the DOF map of a Lagrange space on m
func NewFunctionSpace(m *mesh.TriMesh, family string, degree int) (*FunctionSpace, error) {
	if m == nil {
		return nil, fmt.Errorf("nil mesh")
	}
	el, err := element.NewElement(family, degree)
	if err != nil {
		return nil, err
	}
	fs := &FunctionSpace{
		Mesh:      m,
		Element:   el,
		Family:    el.GetProperties().Family,
		Degree:    degree,
		Transform: element.NewGeometricTransform(m.VX, m.VY, m.EToV),
	}
	np := el.GetProperties().Np
	fs.NumDofs = m.NumVertices
	if degree == 2 {
		fs.NumDofs += m.NumEdges
	}

	fs.CellDofs = make([][]int, m.NumElements)
	for k, cell := range m.EToV {
		dofs := make([]int, np)
		copy(dofs, cell[:])
		if degree == 2 {
			for i := 0; i < 3; i++ {
				dofs[3+i] = m.NumVertices + m.CellEdges[k][i]
			}
		}
		fs.CellDofs[k] = dofs
	}

	fs.DofX = make([]float64, fs.NumDofs)
	fs.DofY = make([]float64, fs.NumDofs)
	copy(fs.DofX, m.VX)
	copy(fs.DofY, m.VY)
	if degree == 2 {
		for e := 0; e < m.NumEdges; e++ {
			fs.DofX[m.NumVertices+e], fs.DofY[m.NumVertices+e] = m.EdgeMidpoint(e)
		}
	}
	return fs, nil
}

// Np returns the number of DOFs per cell
func (fs *FunctionSpace) Np() int { return len(fs.CellDofs[0]) }

// Interpolate returns the nodal interpolant of f
func (fs *FunctionSpace) Interpolate(f func(x, y float64) float64) []float64 {
	u := make([]float64, fs.NumDofs)
	for i := range u {
		u[i] = f(fs.DofX[i], fs.DofY[i])
	}
	return u
}

// BoundaryDofs returns the sorted DOFs lying on boundary edges with any of
// the given markers, or on any boundary edge when none are given
func (fs *FunctionSpace) BoundaryDofs(markers ...int) []int {
	m := fs.Mesh
	onBoundary := make(map[int]struct{})
	for _, e := range m.BoundaryEdges(markers...) {
		onBoundary[m.Edges[e][0]] = struct{}{}
		onBoundary[m.Edges[e][1]] = struct{}{}
		if fs.Degree == 2 {
			onBoundary[m.NumVertices+e] = struct{}{}
		}
	}
	dofs := make([]int, 0, len(onBoundary))
	for d := range onBoundary {
		dofs = append(dofs, d)
	}
	sort.Ints(dofs)
	return dofs
}

// Evaluate returns the value of u at reference point (r,s) of cell k
func (fs *FunctionSpace) Evaluate(u []float64, k int, r, s float64) float64 {
	phi := make([]float64, fs.Np())
	fs.Element.Basis(r, s, phi)
	var val float64
	for i, d := range fs.CellDofs[k] {
		val += u[d] * phi[i]
	}
	return val
}

// MassMatrix assembles M_ij = ∫ φ_i φ_j
func (fs *FunctionSpace) MassMatrix() *linalg.CSR {
	np := fs.Np()
	q := TriangleQuadrature(2 * fs.Degree)
	tab := tabulate(fs.Element, q)
	t := linalg.NewTriplets(fs.NumDofs, fs.NumDofs, fs.Mesh.NumElements*np*np)
	for k, dofs := range fs.CellDofs {
		jac := math.Abs(fs.Transform.J[k])
		for i := 0; i < np; i++ {
			for j := 0; j < np; j++ {
				var mij float64
				for p := range q.W {
					mij += q.W[p] * tab.phi[p][i] * tab.phi[p][j]
				}
				t.Add(dofs[i], dofs[j], mij*jac)
			}
		}
	}
	return t.ToCSR()
}

// L2Norm returns sqrt(∫ u_h²) for the finite element function with DOFs u
func (fs *FunctionSpace) L2Norm(u []float64) float64 {
	if len(u) != fs.NumDofs {
		panic(fmt.Sprintf("L2Norm: %d values for %d DOFs", len(u), fs.NumDofs))
	}
	q := TriangleQuadrature(2 * fs.Degree)
	tab := tabulate(fs.Element, q)
	var sum float64
	for k, dofs := range fs.CellDofs {
		jac := math.Abs(fs.Transform.J[k])
		for p := range q.W {
			var uq float64
			for i, d := range dofs {
				uq += u[d] * tab.phi[p][i]
			}
			sum += q.W[p] * jac * uq * uq
		}
	}
	return math.Sqrt(sum)
}

// L2Error returns the L2 distance between u_h and the interpolant of exact
func (fs *FunctionSpace) L2Error(u []float64, exact func(x, y float64) float64) float64 {
	e := fs.Interpolate(exact)
	for i := range e {
		e[i] -= u[i]
	}
	return fs.L2Norm(e)
}

// tabulation holds basis values and reference gradients at quadrature points
type tabulation struct {
	phi, dr, ds [][]float64 // [point][basis]
}

func tabulate(el element.ReferenceElement, q Quadrature) tabulation {
	np := el.GetProperties().Np
	tab := tabulation{
		phi: make([][]float64, q.NumPoints()),
		dr:  make([][]float64, q.NumPoints()),
		ds:  make([][]float64, q.NumPoints()),
	}
	for p := range q.W {
		tab.phi[p] = make([]float64, np)
		tab.dr[p] = make([]float64, np)
		tab.ds[p] = make([]float64, np)
		el.Basis(q.R[p], q.S[p], tab.phi[p])
		el.Gradient(q.R[p], q.S[p], tab.dr[p], tab.ds[p])
	}
	return tab
}

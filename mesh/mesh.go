package mesh

import (
	"fmt"
	"math"
)

// Boundary markers used by UnitSquareMesh and RectangleMesh
const (
	Left   = 1 // x = x0
	Right  = 2 // x = x1
	Bottom = 3 // y = y0
	Top    = 4 // y = y1
)

// Interior marks an edge shared by two cells
const Interior = 0

// TriMesh is a conforming 2D triangle mesh with edge connectivity
type TriMesh struct {
	// Vertex coordinates
	VX, VY []float64

	// Cell to vertex connectivity, counter-clockwise or clockwise
	EToV [][3]int

	// Unique edges as sorted vertex pairs
	Edges [][2]int
	// CellEdges[k][i] joins local vertices i and (i+1)%3 of cell k
	CellEdges [][3]int
	// EdgeCells[e] holds one or two cells; boundary edges have one
	EdgeCells [][]int
	// EdgeMarker is Interior for shared edges, >0 for boundary edges
	EdgeMarker []int

	NumElements int
	NumVertices int
	NumEdges    int

	edgeIndex map[[2]int]int
}

// MarkerFunc assigns a boundary marker to a boundary edge from its midpoint
type MarkerFunc func(xm, ym float64) int

// NewTriMesh builds a mesh and its edge connectivity. Every boundary edge
// gets marker(xm, ym), or 1 when marker is nil.
func NewTriMesh(vx, vy []float64, etov [][3]int, marker MarkerFunc) (*TriMesh, error) {
	if len(vx) != len(vy) {
		return nil, &RefinementError{Cell: -1, Reason: fmt.Sprintf("vertex coordinate lengths differ: %d != %d", len(vx), len(vy))}
	}
	if len(etov) == 0 {
		return nil, &RefinementError{Cell: -1, Reason: "mesh has no cells"}
	}
	m := &TriMesh{
		VX:          vx,
		VY:          vy,
		EToV:        etov,
		NumElements: len(etov),
		NumVertices: len(vx),
	}
	if err := m.validateCells(); err != nil {
		return nil, err
	}
	if err := m.buildEdges(); err != nil {
		return nil, err
	}
	for e := range m.Edges {
		if len(m.EdgeCells[e]) == 1 {
			xm, ym := m.EdgeMidpoint(e)
			if marker != nil {
				m.EdgeMarker[e] = marker(xm, ym)
			} else {
				m.EdgeMarker[e] = 1
			}
		}
	}
	return m, nil
}

// validateCells rejects out of range, repeated and degenerate cells
func (m *TriMesh) validateCells() error {
	for k, cell := range m.EToV {
		for _, v := range cell {
			if v < 0 || v >= m.NumVertices {
				return &RefinementError{Cell: k, Reason: fmt.Sprintf("vertex %d out of range [0,%d)", v, m.NumVertices)}
			}
		}
		if cell[0] == cell[1] || cell[1] == cell[2] || cell[0] == cell[2] {
			return &RefinementError{Cell: k, Reason: "repeated vertex"}
		}
		area := m.SignedArea(k)
		if math.IsNaN(area) || math.Abs(area) < degenerateArea*m.scale(k) {
			return &RefinementError{Cell: k, Reason: fmt.Sprintf("degenerate cell, area %g", area)}
		}
	}
	return nil
}

const degenerateArea = 1.e-12

// scale returns the squared longest edge of cell k, used to make the
// degeneracy test relative
func (m *TriMesh) scale(k int) float64 {
	var s float64
	for i := 0; i < 3; i++ {
		a, b := m.EToV[k][i], m.EToV[k][(i+1)%3]
		dx, dy := m.VX[b]-m.VX[a], m.VY[b]-m.VY[a]
		s = math.Max(s, dx*dx+dy*dy)
	}
	return s
}

// buildEdges finds unique edges with a canonical sorted vertex key, the same
// way face signatures are matched for tet connectivity
func (m *TriMesh) buildEdges() error {
	m.edgeIndex = make(map[[2]int]int, 3*m.NumElements/2+m.NumVertices)
	m.CellEdges = make([][3]int, m.NumElements)
	for k, cell := range m.EToV {
		for i := 0; i < 3; i++ {
			key := edgeKey(cell[i], cell[(i+1)%3])
			e, found := m.edgeIndex[key]
			if !found {
				e = len(m.Edges)
				m.edgeIndex[key] = e
				m.Edges = append(m.Edges, key)
				m.EdgeCells = append(m.EdgeCells, nil)
			}
			if len(m.EdgeCells[e]) == 2 {
				return &RefinementError{Cell: k,
					Reason: fmt.Sprintf("non-manifold edge (%d,%d) shared by more than two cells", key[0], key[1])}
			}
			m.EdgeCells[e] = append(m.EdgeCells[e], k)
			m.CellEdges[k][i] = e
		}
	}
	m.NumEdges = len(m.Edges)
	m.EdgeMarker = make([]int, m.NumEdges)
	return nil
}

func edgeKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// EdgeID returns the edge joining vertices a and b, or -1
func (m *TriMesh) EdgeID(a, b int) int {
	if e, ok := m.edgeIndex[edgeKey(a, b)]; ok {
		return e
	}
	return -1
}

// EdgeMidpoint returns the midpoint of edge e
func (m *TriMesh) EdgeMidpoint(e int) (x, y float64) {
	a, b := m.Edges[e][0], m.Edges[e][1]
	return 0.5 * (m.VX[a] + m.VX[b]), 0.5 * (m.VY[a] + m.VY[b])
}

// SignedArea returns the signed area of cell k, positive when counter-clockwise
func (m *TriMesh) SignedArea(k int) float64 {
	v := m.EToV[k]
	x0, y0 := m.VX[v[0]], m.VY[v[0]]
	x1, y1 := m.VX[v[1]], m.VY[v[1]]
	x2, y2 := m.VX[v[2]], m.VY[v[2]]
	return 0.5 * ((x1-x0)*(y2-y0) - (x2-x0)*(y1-y0))
}

// BoundaryEdges returns the boundary edges, optionally filtered by marker.
// With no markers all boundary edges are returned.
func (m *TriMesh) BoundaryEdges(markers ...int) []int {
	var edges []int
	for e, mk := range m.EdgeMarker {
		if mk == Interior {
			continue
		}
		if len(markers) == 0 || containsInt(markers, mk) {
			edges = append(edges, e)
		}
	}
	return edges
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// String returns a short summary of the mesh
func (m *TriMesh) String() string {
	return fmt.Sprintf("TriMesh: %d cells, %d vertices, %d edges (%d boundary)",
		m.NumElements, m.NumVertices, m.NumEdges, len(m.BoundaryEdges()))
}

// RectangleMesh builds an nx×ny structured mesh of [x0,x1]×[y0,y1], each
// square split along the diagonal from its lower-left to upper-right corner.
// Boundary edges are marked Left, Right, Bottom and Top.
func RectangleMesh(nx, ny int, x0, x1, y0, y1 float64) (*TriMesh, error) {
	if nx < 1 || ny < 1 {
		return nil, &RefinementError{Cell: -1, Reason: fmt.Sprintf("invalid mesh size %dx%d", nx, ny)}
	}
	if !(x1 > x0) || !(y1 > y0) {
		return nil, &RefinementError{Cell: -1, Reason: "empty domain"}
	}
	nv := (nx + 1) * (ny + 1)
	vx := make([]float64, nv)
	vy := make([]float64, nv)
	hx := (x1 - x0) / float64(nx)
	hy := (y1 - y0) / float64(ny)
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			v := j*(nx+1) + i
			vx[v] = x0 + float64(i)*hx
			vy[v] = y0 + float64(j)*hy
		}
	}
	// Pin the far sides exactly so boundary tests are exact
	for j := 0; j <= ny; j++ {
		vx[j*(nx+1)+nx] = x1
	}
	for i := 0; i <= nx; i++ {
		vy[ny*(nx+1)+i] = y1
	}

	etov := make([][3]int, 0, 2*nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			v00 := j*(nx+1) + i
			v10 := v00 + 1
			v01 := v00 + nx + 1
			v11 := v01 + 1
			etov = append(etov, [3]int{v00, v10, v11}, [3]int{v00, v11, v01})
		}
	}

	tol := 1.e-10 * math.Max(x1-x0, y1-y0)
	marker := func(xm, ym float64) int {
		switch {
		case math.Abs(xm-x0) < tol:
			return Left
		case math.Abs(xm-x1) < tol:
			return Right
		case math.Abs(ym-y0) < tol:
			return Bottom
		default:
			return Top
		}
	}
	return NewTriMesh(vx, vy, etov, marker)
}

// UnitSquareMesh builds an nx×ny mesh of the unit square
func UnitSquareMesh(nx, ny int) (*TriMesh, error) {
	return RectangleMesh(nx, ny, 0, 1, 0, 1)
}

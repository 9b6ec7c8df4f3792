package mesh

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitSquareMesh(t *testing.T) {
	m, err := UnitSquareMesh(3, 2)
	require.NoError(t, err)
	assert.Equal(t, 12, m.NumElements)
	assert.Equal(t, 12, m.NumVertices)
	// Euler: V - E + F = 1 for a disk
	assert.Equal(t, 1, m.NumVertices-m.NumEdges+m.NumElements)
	assert.Len(t, m.BoundaryEdges(), 10)
	assert.Len(t, m.BoundaryEdges(Left), 2)
	assert.Len(t, m.BoundaryEdges(Bottom, Top), 6)

	area := 0.
	for k := 0; k < m.NumElements; k++ {
		a := m.SignedArea(k)
		assert.Greater(t, a, 0.)
		area += a
	}
	assert.InDelta(t, 1.0, area, 1e-14)

	for _, e := range m.BoundaryEdges(Right) {
		x, _ := m.EdgeMidpoint(e)
		assert.Equal(t, 1.0, x)
	}
}

func TestEdgeConnectivity(t *testing.T) {
	m, err := UnitSquareMesh(1, 1)
	require.NoError(t, err)
	// The diagonal 0-3 is shared
	e := m.EdgeID(3, 0)
	require.GreaterOrEqual(t, e, 0)
	assert.Equal(t, Interior, m.EdgeMarker[e])
	assert.ElementsMatch(t, []int{0, 1}, m.EdgeCells[e])
	assert.Equal(t, -1, m.EdgeID(1, 2))
	for k, cell := range m.EToV {
		for i := 0; i < 3; i++ {
			assert.Equal(t, m.EdgeID(cell[i], cell[(i+1)%3]), m.CellEdges[k][i])
		}
	}
}

func TestNewTriMeshRejectsInvalidMeshes(t *testing.T) {
	vx := []float64{0, 1, 0, 1}
	vy := []float64{0, 0, 1, 1}
	tests := []struct {
		name string
		vx   []float64
		etov [][3]int
		cell int
	}{
		{"degenerate", []float64{0, 1, 2, 1}, [][3]int{{0, 1, 2}}, 0},
		{"repeated vertex", vx, [][3]int{{0, 1, 2}, {1, 1, 3}}, 1},
		{"out of range", vx, [][3]int{{0, 1, 7}}, 0},
		{"non-manifold edge", vx, [][3]int{{0, 1, 2}, {0, 1, 3}, {1, 0, 3}}, 2},
		{"no cells", vx, nil, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vyUse := vy
			if tt.name == "degenerate" {
				vyUse = []float64{0, 0, 0, 1}
			}
			_, err := NewTriMesh(tt.vx, vyUse, tt.etov, nil)
			require.Error(t, err)
			var re *RefinementError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tt.cell, re.Cell)
		})
	}

	_, err := UnitSquareMesh(0, 2)
	assert.Error(t, err)
	_, err = RectangleMesh(2, 2, 1, 0, 0, 1)
	assert.Error(t, err)
}

func TestRefine(t *testing.T) {
	m, err := RectangleMesh(2, 3, -1, 2, 0, 0.5)
	require.NoError(t, err)
	fine, parent, err := m.Refine()
	require.NoError(t, err)

	assert.Equal(t, 4*m.NumElements, fine.NumElements)
	assert.Equal(t, m.NumVertices+m.NumEdges, fine.NumVertices)
	assert.Equal(t, 2*m.NumEdges+3*m.NumElements, fine.NumEdges)
	require.Len(t, parent, fine.NumElements)

	// Children cover their parent with the parent's orientation
	childArea := make([]float64, m.NumElements)
	for k, p := range parent {
		a := fine.SignedArea(k)
		assert.Equal(t, math.Signbit(m.SignedArea(p)), math.Signbit(a))
		childArea[p] += a
	}
	for k := range childArea {
		assert.InDelta(t, m.SignedArea(k), childArea[k], 1e-14)
	}

	// Boundary edges split in two and keep their markers
	for _, mk := range []int{Left, Right, Bottom, Top} {
		assert.Len(t, fine.BoundaryEdges(mk), 2*len(m.BoundaryEdges(mk)))
	}
	assert.Contains(t, fine.String(), "48 cells")
}

package multigrid

import (
	"errors"
	"testing"

	"github.com/notargets/mgsolve/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHierarchy(t *testing.T) {
	base, err := mesh.UnitSquareMesh(2, 3)
	require.NoError(t, err)
	h, err := BuildHierarchy(base, 3)
	require.NoError(t, err)

	assert.Equal(t, 4, h.LevelCount())
	assert.Same(t, base, h.Coarsest())
	assert.Nil(t, h.ParentCells(0))
	for i := 1; i < h.LevelCount(); i++ {
		assert.Equal(t, 4*h.Mesh(i-1).NumElements, h.Mesh(i).NumElements)
		assert.Len(t, h.ParentCells(i), h.Mesh(i).NumElements)
	}
	assert.Equal(t, 12*64, h.Finest().NumElements)
	assert.NoError(t, h.Validate())

	// A corrupted parent map is caught
	h.parents[2][5] = h.parents[2][4] + 1
	assert.Error(t, h.Validate())
}

func TestBuildHierarchyZeroRefinements(t *testing.T) {
	base, err := mesh.UnitSquareMesh(2, 2)
	require.NoError(t, err)
	h, err := BuildHierarchy(base, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, h.LevelCount())

	sh, err := MakeFunctionSpace(h, "CG", 1)
	require.NoError(t, err)
	lvl := sh.Finest()
	assert.Same(t, sh.Coarsest(), lvl)
	assert.True(t, lvl.Position.Has(Coarsest))
	assert.True(t, lvl.Position.Has(Finest))
	assert.Equal(t, "coarsest|finest", lvl.Position.String())
}

func TestBuildHierarchyRejectsBadInput(t *testing.T) {
	base, err := mesh.UnitSquareMesh(2, 2)
	require.NoError(t, err)
	_, err = BuildHierarchy(base, -1)
	assert.ErrorIs(t, err, ErrRefinement)

	tests := []struct {
		name   string
		vx, vy []float64
		etov   [][3]int
	}{
		{"degenerate", []float64{0, 1, 2}, []float64{0, 0, 0}, [][3]int{{0, 1, 2}}},
		{"non-manifold", []float64{0, 1, 0, 1, 0.5}, []float64{0, 0, 1, 1, -1},
			[][3]int{{0, 1, 2}, {0, 1, 3}, {1, 0, 4}}},
		{"repeated vertex", []float64{0, 1, 0}, []float64{0, 0, 1}, [][3]int{{0, 1, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Assembled by hand, bypassing NewTriMesh
			m := &mesh.TriMesh{VX: tt.vx, VY: tt.vy, EToV: tt.etov,
				NumElements: len(tt.etov), NumVertices: len(tt.vx)}
			h, err := BuildHierarchy(m, 2)
			assert.Nil(t, h)
			require.ErrorIs(t, err, ErrRefinement)
			var re *mesh.RefinementError
			assert.True(t, errors.As(err, &re))
		})
	}
}

func TestSpaceHierarchyLevels(t *testing.T) {
	sh := unitHierarchy(t, 2, 2, 2)
	require.Equal(t, 3, sh.LevelCount())

	assert.Equal(t, Coarsest, sh.Level(0).Position)
	assert.Equal(t, Intermediate, sh.Level(1).Position)
	assert.Equal(t, Finest, sh.Level(2).Position)
	assert.Nil(t, sh.Level(0).Coarser())
	assert.Same(t, sh.Level(1), sh.Level(0).Finer())
	assert.Same(t, sh.Level(1), sh.Level(2).Coarser())
	assert.Nil(t, sh.Level(2).Finer())
	// P2 on an n×n mesh has (2n+1)² DOFs
	assert.Equal(t, 25, sh.Level(0).Space.NumDofs)
	assert.Equal(t, 81, sh.Level(1).Space.NumDofs)
	assert.Equal(t, 289, sh.Level(2).Space.NumDofs)

	tr, err := sh.TransferBetween(2, 1)
	require.NoError(t, err)
	assert.Same(t, sh.Transfer(1), tr)
	_, err = sh.TransferBetween(2, 0)
	assert.ErrorIs(t, err, ErrTransferMismatch)
	_, err = sh.TransferBetween(1, 2)
	assert.ErrorIs(t, err, ErrTransferMismatch)

	_, err = MakeFunctionSpace(sh.Hierarchy, "CG", 4)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

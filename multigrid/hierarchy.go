package multigrid

import (
	"fmt"
	"math"
	"strings"

	"github.com/notargets/mgsolve/fem"
	"github.com/notargets/mgsolve/mesh"
)

// Position tags a level by where it sits in the hierarchy
type Position uint8

const (
	Coarsest Position = 1 << iota
	Intermediate
	Finest
)

// Has reports whether p includes q
func (p Position) Has(q Position) bool { return p&q != 0 }

func (p Position) String() string {
	var parts []string
	for _, n := range positionNames {
		if p.Has(n.pos) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

var positionNames = []struct {
	pos  Position
	name string
}{
	{Coarsest, "coarsest"},
	{Intermediate, "intermediate"},
	{Finest, "finest"},
}

func positionOf(index, count int) Position {
	var p Position
	if index == 0 {
		p |= Coarsest
	}
	if index == count-1 {
		p |= Finest
	}
	if p == 0 {
		p = Intermediate
	}
	return p
}

// Hierarchy is a sequence of uniformly refined meshes. Level 0 is the base
// mesh; level i+1 refines level i. It is immutable after construction.
type Hierarchy struct {
	meshes  []*mesh.TriMesh
	parents [][]int // parents[i][k] is the level i-1 cell containing level i cell k
}

// BuildHierarchy refines base the given number of times
func BuildHierarchy(base *mesh.TriMesh, refinements int) (*Hierarchy, error) {
	if base == nil {
		return nil, fmt.Errorf("%w: nil base mesh", ErrRefinement)
	}
	if refinements < 0 {
		return nil, fmt.Errorf("%w: negative refinement count %d", ErrRefinement, refinements)
	}
	// Re-check the base mesh, it may have been assembled by hand
	if _, err := mesh.NewTriMesh(base.VX, base.VY, base.EToV, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefinement, err)
	}
	if len(base.Edges) == 0 || len(base.CellEdges) != base.NumElements {
		return nil, fmt.Errorf("%w: base mesh has no edge connectivity", ErrRefinement)
	}

	h := &Hierarchy{
		meshes:  []*mesh.TriMesh{base},
		parents: [][]int{nil},
	}
	for i := 0; i < refinements; i++ {
		fine, parent, err := h.meshes[i].Refine()
		if err != nil {
			return nil, fmt.Errorf("%w: level %d: %w", ErrRefinement, i+1, err)
		}
		h.meshes = append(h.meshes, fine)
		h.parents = append(h.parents, parent)
	}
	return h, nil
}

// LevelCount returns the number of levels, refinements+1
func (h *Hierarchy) LevelCount() int { return len(h.meshes) }

// Mesh returns the mesh of level i
func (h *Hierarchy) Mesh(i int) *mesh.TriMesh { return h.meshes[i] }

func (h *Hierarchy) Finest() *mesh.TriMesh   { return h.meshes[len(h.meshes)-1] }
func (h *Hierarchy) Coarsest() *mesh.TriMesh { return h.meshes[0] }

// ParentCells maps level i cells to level i-1 cells, nil for level 0
func (h *Hierarchy) ParentCells(i int) []int { return h.parents[i] }

// Validate checks that every coarse cell is covered by exactly four fine
// cells whose areas sum to the parent area
func (h *Hierarchy) Validate() error {
	for i := 1; i < len(h.meshes); i++ {
		coarse, fine := h.meshes[i-1], h.meshes[i]
		if len(h.parents[i]) != fine.NumElements {
			return fmt.Errorf("level %d: parent map has %d entries for %d cells",
				i, len(h.parents[i]), fine.NumElements)
		}
		count := make([]int, coarse.NumElements)
		area := make([]float64, coarse.NumElements)
		for k, p := range h.parents[i] {
			if p < 0 || p >= coarse.NumElements {
				return fmt.Errorf("level %d: cell %d has parent %d out of range", i, k, p)
			}
			count[p]++
			area[p] += math.Abs(fine.SignedArea(k))
		}
		for p := range count {
			if count[p] != mesh.ChildrenPerCell {
				return fmt.Errorf("level %d: cell %d has %d children", i-1, p, count[p])
			}
			parentArea := math.Abs(coarse.SignedArea(p))
			if math.Abs(area[p]-parentArea) > 1.e-10*parentArea {
				return fmt.Errorf("level %d: children of cell %d cover area %g, parent %g",
					i-1, p, area[p], parentArea)
			}
		}
	}
	return nil
}

// Level is one rung of a SpaceHierarchy
type Level struct {
	Index    int
	Position Position
	Mesh     *mesh.TriMesh
	Space    *fem.FunctionSpace

	coarser, finer *Level
}

// Coarser returns the next coarser level, nil on the coarsest
func (l *Level) Coarser() *Level { return l.coarser }

// Finer returns the next finer level, nil on the finest
func (l *Level) Finer() *Level { return l.finer }

func (l *Level) String() string {
	return fmt.Sprintf("level %d (%s, %d dofs)", l.Index, l.Position, l.Space.NumDofs)
}

// SpaceHierarchy pairs every mesh of a Hierarchy with a function space and
// every adjacent pair of levels with a Transfer. It is immutable and safe
// for concurrent read-only use.
type SpaceHierarchy struct {
	Hierarchy *Hierarchy
	Family    string
	Degree    int

	levels    []*Level
	transfers []*Transfer // transfers[i] joins level i and i+1
}

// MakeFunctionSpace builds a Lagrange space of the given family and degree
// on every level of h
func MakeFunctionSpace(h *Hierarchy, family string, degree int) (*SpaceHierarchy, error) {
	sh := &SpaceHierarchy{Hierarchy: h, Family: family, Degree: degree}
	n := h.LevelCount()
	for i := 0; i < n; i++ {
		fs, err := fem.NewFunctionSpace(h.Mesh(i), family, degree)
		if err != nil {
			return nil, fmt.Errorf("%w: level %d: %w", ErrInvalidConfig, i, err)
		}
		lvl := &Level{Index: i, Position: positionOf(i, n), Mesh: h.Mesh(i), Space: fs}
		if i > 0 {
			lvl.coarser = sh.levels[i-1]
			sh.levels[i-1].finer = lvl
		}
		sh.levels = append(sh.levels, lvl)
	}
	for i := 0; i+1 < n; i++ {
		t, err := newTransfer(sh.levels[i], sh.levels[i+1], h.ParentCells(i+1))
		if err != nil {
			return nil, err
		}
		sh.transfers = append(sh.transfers, t)
	}
	return sh, nil
}

// LevelCount returns the number of levels
func (sh *SpaceHierarchy) LevelCount() int { return len(sh.levels) }

// Level returns level i
func (sh *SpaceHierarchy) Level(i int) *Level { return sh.levels[i] }

func (sh *SpaceHierarchy) Finest() *Level   { return sh.levels[len(sh.levels)-1] }
func (sh *SpaceHierarchy) Coarsest() *Level { return sh.levels[0] }

// Transfer returns the transfer between level i and level i+1
func (sh *SpaceHierarchy) Transfer(i int) *Transfer { return sh.transfers[i] }

// TransferBetween returns the transfer joining two adjacent levels
func (sh *SpaceHierarchy) TransferBetween(fine, coarse int) (*Transfer, error) {
	if fine != coarse+1 || coarse < 0 || fine >= len(sh.levels) {
		return nil, fmt.Errorf("%w: no transfer between levels %d and %d",
			ErrTransferMismatch, fine, coarse)
	}
	return sh.transfers[coarse], nil
}

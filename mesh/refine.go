package mesh

import "fmt"

// RefinementError reports a mesh that cannot be uniformly refined
type RefinementError struct {
	Cell   int // offending cell, or -1 when not cell specific
	Reason string
}

func (e *RefinementError) Error() string {
	if e.Cell >= 0 {
		return fmt.Sprintf("mesh refinement: cell %d: %s", e.Cell, e.Reason)
	}
	return "mesh refinement: " + e.Reason
}

// ChildrenPerCell is the number of fine cells covering one coarse cell
const ChildrenPerCell = 4

// Refine splits every cell into four by joining the edge midpoints. The
// returned parent slice maps each fine cell to its coarse cell. Boundary
// markers are inherited by the two halves of each boundary edge.
//
// Child cells of coarse cell k are 4k..4k+3: three corner cells followed by
// the middle cell, all with the orientation of the parent.
func (m *TriMesh) Refine() (fine *TriMesh, parent []int, err error) {
	nv := m.NumVertices + m.NumEdges
	vx := make([]float64, nv)
	vy := make([]float64, nv)
	copy(vx, m.VX)
	copy(vy, m.VY)
	for e := range m.Edges {
		vx[m.NumVertices+e], vy[m.NumVertices+e] = m.EdgeMidpoint(e)
	}

	etov := make([][3]int, 0, ChildrenPerCell*m.NumElements)
	parent = make([]int, 0, ChildrenPerCell*m.NumElements)
	for k, cell := range m.EToV {
		a, b, c := cell[0], cell[1], cell[2]
		mab := m.NumVertices + m.CellEdges[k][0]
		mbc := m.NumVertices + m.CellEdges[k][1]
		mca := m.NumVertices + m.CellEdges[k][2]
		etov = append(etov,
			[3]int{a, mab, mca},
			[3]int{mab, b, mbc},
			[3]int{mca, mbc, c},
			[3]int{mab, mbc, mca},
		)
		parent = append(parent, k, k, k, k)
	}

	// Markers are copied from the parent edges after connectivity is built
	fine, err = NewTriMesh(vx, vy, etov, func(_, _ float64) int { return Interior })
	if err != nil {
		return nil, nil, fmt.Errorf("refining %d cells: %w", m.NumElements, err)
	}
	for e, mk := range m.EdgeMarker {
		if mk == Interior {
			continue
		}
		mid := m.NumVertices + e
		for _, end := range m.Edges[e] {
			fe := fine.EdgeID(end, mid)
			if fe < 0 {
				return nil, nil, &RefinementError{Cell: -1,
					Reason: fmt.Sprintf("lost boundary edge (%d,%d) during refinement", end, mid)}
			}
			fine.EdgeMarker[fe] = mk
		}
	}
	return fine, parent, nil
}

package fem

import (
	"fmt"
	"math"

	"github.com/notargets/mgsolve/linalg"
)

// basisCutoff drops basis values that are zero up to rounding and snaps
// those that are one up to rounding
const basisCutoff = 1.e-13

// Prolongation assembles the natural embedding of a coarse space into a
// nested fine space, P[f][c] = φ_c(x_f). parent maps each fine cell to the
// coarse cell containing it.
func Prolongation(coarse, fine *FunctionSpace, parent []int) (*linalg.CSR, error) {
	if coarse.Degree != fine.Degree || coarse.Family != fine.Family {
		return nil, fmt.Errorf("spaces differ: %s%d and %s%d",
			coarse.Family, coarse.Degree, fine.Family, fine.Degree)
	}
	if len(parent) != fine.Mesh.NumElements {
		return nil, fmt.Errorf("parent map has %d cells, fine mesh has %d",
			len(parent), fine.Mesh.NumElements)
	}
	np := coarse.Np()
	phi := make([]float64, np)
	done := make([]bool, fine.NumDofs)
	t := linalg.NewTriplets(fine.NumDofs, coarse.NumDofs, fine.NumDofs*np)
	for kf, dofs := range fine.CellDofs {
		kc := parent[kf]
		if kc < 0 || kc >= coarse.Mesh.NumElements {
			return nil, fmt.Errorf("fine cell %d: parent %d out of range", kf, kc)
		}
		for _, df := range dofs {
			if done[df] {
				continue
			}
			done[df] = true
			r, s := coarse.Transform.ToReference(kc, fine.DofX[df], fine.DofY[df])
			if !insideReference(r, s) {
				return nil, fmt.Errorf("fine DOF %d at (%g,%g) is outside parent cell %d",
					df, fine.DofX[df], fine.DofY[df], kc)
			}
			coarse.Element.Basis(r, s, phi)
			for j, dc := range coarse.CellDofs[kc] {
				if math.Abs(phi[j]-1) < basisCutoff {
					phi[j] = 1
				}
				if math.Abs(phi[j]) > basisCutoff {
					t.Add(df, dc, phi[j])
				}
			}
		}
	}
	return t.ToCSR(), nil
}

func insideReference(r, s float64) bool {
	const tol = 1.e-10
	return r >= -1-tol && s >= -1-tol && r+s <= tol
}

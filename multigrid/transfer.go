package multigrid

import (
	"fmt"
	"math"

	"github.com/notargets/mgsolve/fem"
	"github.com/notargets/mgsolve/linalg"
)

// Transfer moves fields between two adjacent levels of nested spaces.
// Prolongation is the natural embedding P, defect restriction is its exact
// transpose and state restriction is injection at coincident nodes.
type Transfer struct {
	Coarse, Fine *Level

	P *linalg.CSR

	// inject[c] is the fine DOF located at coarse DOF c
	inject []int
}

const injectionTol = 1.e-12

func newTransfer(coarse, fine *Level, parent []int) (*Transfer, error) {
	p, err := fem.Prolongation(coarse.Space, fine.Space, parent)
	if err != nil {
		return nil, fmt.Errorf("%w: levels %d-%d: %w", ErrTransferMismatch, coarse.Index, fine.Index, err)
	}
	t := &Transfer{Coarse: coarse, Fine: fine, P: p, inject: make([]int, p.Cols)}
	for c := range t.inject {
		t.inject[c] = -1
	}
	// A fine row with a single unit entry is a coincident node
	for f := 0; f < p.Rows; f++ {
		lo, hi := p.RowPtr[f], p.RowPtr[f+1]
		if hi-lo == 1 && math.Abs(p.Val[lo]-1) < injectionTol {
			t.inject[p.ColInd[lo]] = f
		}
	}
	for c, f := range t.inject {
		if f < 0 {
			return nil, fmt.Errorf("%w: coarse DOF %d of level %d has no coincident fine DOF",
				ErrTransferMismatch, c, coarse.Index)
		}
	}
	return t, nil
}

func (t *Transfer) check(f Field, level int, kinds ...FieldKind) error {
	if f.Level != level {
		return fmt.Errorf("%w: %s field on level %d, transfer expects level %d",
			ErrTransferMismatch, f.Kind, f.Level, level)
	}
	n := t.Fine.Space.NumDofs
	if level == t.Coarse.Index {
		n = t.Coarse.Space.NumDofs
	}
	if len(f.Values) != n {
		return fmt.Errorf("%w: field has %d values, level %d has %d DOFs",
			ErrTransferMismatch, len(f.Values), level, n)
	}
	for _, k := range kinds {
		if f.Kind == k {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot transfer a %s field this way", ErrTransferMismatch, f.Kind)
}

// Prolong maps a coarse correction or state to the fine level, u_f = P u_c
func (t *Transfer) Prolong(coarse Field) (Field, error) {
	if err := t.check(coarse, t.Coarse.Index, Correction, State); err != nil {
		return Field{}, err
	}
	out := Field{Kind: coarse.Kind, Level: t.Fine.Index, Values: make([]float64, t.P.Rows)}
	t.P.MulVec(out.Values, coarse.Values)
	return out, nil
}

// RestrictDefect maps a fine defect to the coarse level, r_c = Pᵀ r_f
func (t *Transfer) RestrictDefect(fine Field) (Field, error) {
	if err := t.check(fine, t.Fine.Index, Defect); err != nil {
		return Field{}, err
	}
	out := Field{Kind: Defect, Level: t.Coarse.Index, Values: make([]float64, t.P.Cols)}
	t.P.MulVecTrans(out.Values, fine.Values)
	return out, nil
}

// RestrictState injects a fine state into the coarse space
func (t *Transfer) RestrictState(fine Field) (Field, error) {
	if err := t.check(fine, t.Fine.Index, State); err != nil {
		return Field{}, err
	}
	out := Field{Kind: State, Level: t.Coarse.Index, Values: make([]float64, len(t.inject))}
	t.injectTo(out.Values, fine.Values)
	return out, nil
}

func (t *Transfer) injectTo(coarse, fine []float64) {
	for c, f := range t.inject {
		coarse[c] = fine[f]
	}
}

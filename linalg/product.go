package linalg

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"github.com/notargets/mgsolve/partitions"
	"golang.org/x/sync/errgroup"
)

// WithPartitions returns a shallow copy of a whose MulVec runs the partitions
// of layout concurrently, at most workers at a time (workers <= 0 means no
// limit). The layout must cover exactly a.Rows rows.
func (a *CSR) WithPartitions(layout *partitions.PartitionLayout, workers int) (*CSR, error) {
	if layout == nil {
		b := *a
		b.layout = nil
		return &b, nil
	}
	if layout.TotalRows != a.Rows {
		return nil, fmt.Errorf("layout covers %d rows, matrix has %d", layout.TotalRows, a.Rows)
	}
	b := *a
	b.layout = layout
	b.workers = workers
	return &b, nil
}

// Partitioned reports whether products run over a row layout
func (a *CSR) Partitioned() bool { return a.layout != nil && a.layout.NumPartitions > 1 }

// MulVec computes dst = A x
func (a *CSR) MulVec(dst, x []float64) {
	if len(x) != a.Cols || len(dst) != a.Rows {
		panic(fmt.Sprintf("MulVec: %dx%d matrix with x of %d and dst of %d",
			a.Rows, a.Cols, len(x), len(dst)))
	}
	// Serial and partitioned products share rowDot so both round alike
	if !a.Partitioned() {
		for i := 0; i < a.Rows; i++ {
			dst[i] = a.rowDot(i, x)
		}
		return
	}
	var g errgroup.Group
	if a.workers > 0 {
		g.SetLimit(a.workers)
	}
	for _, p := range a.layout.Partitions {
		rows := p.Rows
		g.Go(func() error {
			for _, i := range rows {
				dst[i] = a.rowDot(i, x)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (a *CSR) rowDot(i int, x []float64) float64 {
	var sum float64
	for k := a.RowPtr[i]; k < a.RowPtr[i+1]; k++ {
		sum += a.Val[k] * x[a.ColInd[k]]
	}
	return sum
}

// MulVecTrans computes dst = Aᵀ x
func (a *CSR) MulVecTrans(dst, x []float64) {
	if len(x) != a.Rows || len(dst) != a.Cols {
		panic(fmt.Sprintf("MulVecTrans: %dx%d matrix with x of %d and dst of %d",
			a.Rows, a.Cols, len(x), len(dst)))
	}
	clear(dst)
	a.m.MulVecTo(dst, true, x)
}

// Residual computes dst = b - A x
func (a *CSR) Residual(dst, b, x []float64) {
	a.MulVec(dst, x)
	for i := range dst {
		dst[i] = b[i] - dst[i]
	}
}

// Transpose returns Aᵀ as a new CSR matrix
func (a *CSR) Transpose() *CSR {
	csc, ok := a.m.T().(*sparse.CSC)
	if !ok {
		panic("linalg: transpose of a CSR matrix is not CSC")
	}
	return canonical(csc.ToCSR())
}

// Mul returns the sparse product A B
func (a *CSR) Mul(b *CSR) (*CSR, error) {
	if a.Cols != b.Rows {
		return nil, fmt.Errorf("cannot multiply %dx%d by %dx%d", a.Rows, a.Cols, b.Rows, b.Cols)
	}
	var c sparse.CSR
	c.Mul(a.m, b.m)
	return canonical(&c), nil
}

// PtAP returns the Galerkin product Pᵀ A P
func PtAP(a, p *CSR) (*CSR, error) {
	if a.Rows != a.Cols || a.Cols != p.Rows {
		return nil, fmt.Errorf("PtAP: A is %dx%d, P is %dx%d", a.Rows, a.Cols, p.Rows, p.Cols)
	}
	ap, err := a.Mul(p)
	if err != nil {
		return nil, err
	}
	return p.Transpose().Mul(ap)
}

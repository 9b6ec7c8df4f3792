// Package linalg holds the compressed sparse row matrices used by the level
// operators, with the products needed to form Galerkin coarse operators.
package linalg

import (
	"fmt"
	"sort"

	"github.com/james-bowman/sparse"
	"github.com/notargets/mgsolve/partitions"
	"gonum.org/v1/gonum/mat"
)

// CSR is a sparse matrix in compressed sparse row form backed by a
// sparse.CSR. Column indices are sorted and unique within each row.
// RowPtr, ColInd and Val alias the storage of the backing matrix, so
// writes through Val are seen by the library products.
type CSR struct {
	Rows, Cols int
	RowPtr     []int // length Rows+1
	ColInd     []int
	Val        []float64

	m *sparse.CSR

	// Optional row partitioning for data-parallel products
	layout  *partitions.PartitionLayout
	workers int
}

var _ mat.Matrix = (*CSR)(nil)

func wrap(m *sparse.CSR) *CSR {
	raw := m.RawMatrix()
	return &CSR{
		Rows: raw.I, Cols: raw.J,
		RowPtr: raw.Indptr,
		ColInd: raw.Ind,
		Val:    raw.Data,
		m:      m,
	}
}

// NewCSR wraps CSR arrays after checking their structure
func NewCSR(rows, cols int, rowPtr, colInd []int, val []float64) (*CSR, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", rows, cols)
	}
	if len(rowPtr) != rows+1 || rowPtr[0] != 0 {
		return nil, fmt.Errorf("row pointer length %d, want %d starting at 0", len(rowPtr), rows+1)
	}
	nnz := rowPtr[rows]
	if len(colInd) != nnz || len(val) != nnz {
		return nil, fmt.Errorf("nnz %d does not match %d column indices and %d values",
			nnz, len(colInd), len(val))
	}
	for i := 0; i < rows; i++ {
		if rowPtr[i+1] < rowPtr[i] {
			return nil, fmt.Errorf("row pointer decreases at row %d", i)
		}
		for k := rowPtr[i]; k < rowPtr[i+1]; k++ {
			c := colInd[k]
			if c < 0 || c >= cols {
				return nil, fmt.Errorf("row %d: column %d out of range", i, c)
			}
			if k > rowPtr[i] && colInd[k-1] >= c {
				return nil, fmt.Errorf("row %d: columns not strictly increasing", i)
			}
		}
	}
	return wrap(sparse.NewCSR(rows, cols, rowPtr, colInd, val)), nil
}

// canonical sorts the columns of each row of m and sums repeated columns.
// Library conversions and products leave rows in insertion order.
func canonical(m *sparse.CSR) *CSR {
	raw := m.RawMatrix()
	rows, cols := raw.I, raw.J
	rowPtr := make([]int, rows+1)
	colInd := make([]int, 0, len(raw.Ind))
	val := make([]float64, 0, len(raw.Data))
	for i := 0; i < rows; i++ {
		start := len(colInd)
		colInd = append(colInd, raw.Ind[raw.Indptr[i]:raw.Indptr[i+1]]...)
		val = append(val, raw.Data[raw.Indptr[i]:raw.Indptr[i+1]]...)
		sortRow(colInd[start:], val[start:])
		out := start
		for k := start; k < len(colInd); k++ {
			if out > start && colInd[out-1] == colInd[k] {
				val[out-1] += val[k]
				continue
			}
			colInd[out] = colInd[k]
			val[out] = val[k]
			out++
		}
		colInd, val = colInd[:out], val[:out]
		rowPtr[i+1] = out
	}
	return wrap(sparse.NewCSR(rows, cols, rowPtr, colInd, val))
}

// Triplets accumulates (i, j, v) entries for assembly through a sparse.COO;
// duplicates are summed on conversion
type Triplets struct {
	rows, cols int
	I, J       []int
	V          []float64
}

// NewTriplets returns an empty rows×cols triplet list with room for capacity entries
func NewTriplets(rows, cols, capacity int) *Triplets {
	return &Triplets{
		rows: rows, cols: cols,
		I: make([]int, 0, capacity),
		J: make([]int, 0, capacity),
		V: make([]float64, 0, capacity),
	}
}

// Add appends an entry, panicking on an index outside the matrix
func (t *Triplets) Add(i, j int, v float64) {
	if i < 0 || i >= t.rows || j < 0 || j >= t.cols {
		panic(fmt.Sprintf("triplet (%d,%d) outside %dx%d", i, j, t.rows, t.cols))
	}
	t.I = append(t.I, i)
	t.J = append(t.J, j)
	t.V = append(t.V, v)
}

// ToCSR converts to CSR, summing duplicate entries. Explicit zeros are kept
// so the sparsity pattern does not depend on the values.
func (t *Triplets) ToCSR() *CSR {
	return convert(t.rows, t.cols, t.I, t.J, t.V)
}

// ToConstrainedCSR converts to CSR after dropping every entry in the listed
// rows and columns and placing diag on their diagonals, so constrained
// rows and columns are those of a scaled identity.
func (t *Triplets) ToConstrainedCSR(idx []int, diag float64) (*CSR, error) {
	if t.rows != t.cols {
		return nil, fmt.Errorf("matrix is %dx%d, not square", t.rows, t.cols)
	}
	marked := make([]bool, t.rows)
	for _, i := range idx {
		if i < 0 || i >= t.rows {
			return nil, fmt.Errorf("row %d out of range", i)
		}
		marked[i] = true
	}
	n := len(t.V) + len(idx)
	I, J, V := make([]int, 0, n), make([]int, 0, n), make([]float64, 0, n)
	for k := range t.V {
		if marked[t.I[k]] || marked[t.J[k]] {
			continue
		}
		I, J, V = append(I, t.I[k]), append(J, t.J[k]), append(V, t.V[k])
	}
	for i, m := range marked {
		if m {
			I, J, V = append(I, i), append(J, i), append(V, diag)
		}
	}
	return convert(t.rows, t.cols, I, J, V), nil
}

func convert(rows, cols int, I, J []int, V []float64) *CSR {
	coo := sparse.NewCOO(rows, cols,
		append([]int(nil), I...), append([]int(nil), J...), append([]float64(nil), V...))
	return canonical(coo.ToCSR())
}

type rowSorter struct {
	cols []int
	vals []float64
}

func (r rowSorter) Len() int           { return len(r.cols) }
func (r rowSorter) Less(i, j int) bool { return r.cols[i] < r.cols[j] }
func (r rowSorter) Swap(i, j int) {
	r.cols[i], r.cols[j] = r.cols[j], r.cols[i]
	r.vals[i], r.vals[j] = r.vals[j], r.vals[i]
}

func sortRow(cols []int, vals []float64) {
	if !sort.IsSorted(rowSorter{cols, vals}) {
		sort.Stable(rowSorter{cols, vals})
	}
}

// Dims returns the matrix dimensions
func (a *CSR) Dims() (r, c int) { return a.Rows, a.Cols }

// At returns entry (i, j), zero when it is not stored
func (a *CSR) At(i, j int) float64 { return a.m.At(i, j) }

// T returns the transpose as a sparse.CSC sharing storage with a
func (a *CSR) T() mat.Matrix { return a.m.T() }

// NNZ returns the number of stored entries
func (a *CSR) NNZ() int { return a.m.NNZ() }

// Diagonal returns a copy of the main diagonal
func (a *CSR) Diagonal() []float64 {
	n := min(a.Rows, a.Cols)
	d := make([]float64, n)
	for i := 0; i < n; i++ {
		for k := a.RowPtr[i]; k < a.RowPtr[i+1]; k++ {
			if a.ColInd[k] == i {
				d[i] = a.Val[k]
				break
			}
		}
	}
	return d
}

// ToDense expands the matrix into a gonum dense matrix
func (a *CSR) ToDense() *mat.Dense { return a.m.ToDense() }

// ToSymDense expands a symmetric matrix using its upper triangle
func (a *CSR) ToSymDense() (*mat.SymDense, error) {
	if a.Rows != a.Cols {
		return nil, fmt.Errorf("matrix is %dx%d, not square", a.Rows, a.Cols)
	}
	s := mat.NewSymDense(a.Rows, nil)
	for i := 0; i < a.Rows; i++ {
		for k := a.RowPtr[i]; k < a.RowPtr[i+1]; k++ {
			if j := a.ColInd[k]; j >= i {
				s.SetSym(i, j, a.Val[k])
			}
		}
	}
	return s, nil
}

// ZeroRowsColumns replaces the listed rows and columns of an assembled
// matrix with those of the identity scaled by diag. Every listed row must
// store its diagonal.
func (a *CSR) ZeroRowsColumns(idx []int, diag float64) error {
	if a.Rows != a.Cols {
		return fmt.Errorf("matrix is %dx%d, not square", a.Rows, a.Cols)
	}
	marked := make([]bool, a.Rows)
	for _, i := range idx {
		if i < 0 || i >= a.Rows {
			return fmt.Errorf("row %d out of range", i)
		}
		marked[i] = true
	}
	for i := 0; i < a.Rows; i++ {
		hasDiag := false
		for k := a.RowPtr[i]; k < a.RowPtr[i+1]; k++ {
			j := a.ColInd[k]
			switch {
			case marked[i] && j == i:
				a.Val[k] = diag
				hasDiag = true
			case marked[i] || marked[j]:
				a.Val[k] = 0
			}
		}
		if marked[i] && !hasDiag {
			return fmt.Errorf("row %d has no stored diagonal", i)
		}
	}
	return nil
}

package linalg

import (
	"testing"

	"github.com/notargets/mgsolve/partitions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"pgregory.net/rapid"
)

func laplacian1D(n int) *CSR {
	t := NewTriplets(n, n, 3*n)
	for i := 0; i < n; i++ {
		t.Add(i, i, 2)
		if i > 0 {
			t.Add(i, i-1, -1)
		}
		if i < n-1 {
			t.Add(i, i+1, -1)
		}
	}
	return t.ToCSR()
}

func TestTripletsSumDuplicates(t *testing.T) {
	tr := NewTriplets(2, 3, 0)
	tr.Add(1, 2, 1)
	tr.Add(0, 1, 2)
	tr.Add(1, 0, 3)
	tr.Add(1, 2, 4)
	tr.Add(0, 1, -2)
	a := tr.ToCSR()

	assert.Equal(t, []int{0, 1, 3}, a.RowPtr)
	assert.Equal(t, []int{1, 0, 2}, a.ColInd)
	assert.Equal(t, []float64{0, 3, 5}, a.Val)
	assert.Equal(t, 5.0, a.At(1, 2))
	assert.Equal(t, 0.0, a.At(0, 0))

	_, err := NewCSR(a.Rows, a.Cols, a.RowPtr, a.ColInd, a.Val)
	assert.NoError(t, err)
}

func TestNewCSRRejectsBadStructure(t *testing.T) {
	_, err := NewCSR(2, 2, []int{0, 1}, []int{0}, []float64{1})
	assert.Error(t, err)
	_, err = NewCSR(1, 2, []int{0, 2}, []int{1, 0}, []float64{1, 1})
	assert.Error(t, err)
	_, err = NewCSR(1, 2, []int{0, 1}, []int{2}, []float64{1})
	assert.Error(t, err)
}

func TestMulVecMatchesDense(t *testing.T) {
	a := laplacian1D(6)
	x := []float64{1, 2, 3, 4, 5, 6}
	got := make([]float64, 6)
	a.MulVec(got, x)

	var want mat.VecDense
	want.MulVec(a.ToDense(), mat.NewVecDense(6, x))
	assert.InDeltaSlice(t, want.RawVector().Data, got, 1e-14)

	res := make([]float64, 6)
	a.Residual(res, got, x)
	assert.InDeltaSlice(t, make([]float64, 6), res, 1e-14)
}

func TestPartitionedMulVec(t *testing.T) {
	n := 37
	a := laplacian1D(n)
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i*i) - 3
	}
	serial := make([]float64, n)
	a.MulVec(serial, x)

	for _, strategy := range []partitions.PartitionStrategy{partitions.BlockPartition, partitions.RoundRobin} {
		layout, err := partitions.BuildRowLayout(n, 8, strategy)
		require.NoError(t, err)
		pa, err := a.WithPartitions(layout, 2)
		require.NoError(t, err)
		assert.True(t, pa.Partitioned())
		assert.False(t, a.Partitioned())

		parallel := make([]float64, n)
		pa.MulVec(parallel, x)
		assert.Equal(t, serial, parallel, strategy.String())
	}

	_, err := a.WithPartitions(&partitions.PartitionLayout{TotalRows: n + 1}, 2)
	assert.Error(t, err)
}

func TestTransposeAndMul(t *testing.T) {
	tr := NewTriplets(3, 2, 0)
	tr.Add(0, 0, 1)
	tr.Add(1, 0, 0.5)
	tr.Add(1, 1, 0.5)
	tr.Add(2, 1, 1)
	p := tr.ToCSR()

	pt := p.Transpose()
	assert.True(t, mat.Equal(pt.ToDense(), mat.DenseCopyOf(p.T())))

	a := laplacian1D(3)
	g, err := PtAP(a, p)
	require.NoError(t, err)

	var ap, want mat.Dense
	ap.Mul(a.ToDense(), p.ToDense())
	want.Mul(p.ToDense().T(), &ap)
	assert.True(t, mat.EqualApprox(g.ToDense(), &want, 1e-14))

	_, err = a.Mul(pt)
	assert.Error(t, err)
}

func TestZeroRowsColumns(t *testing.T) {
	a := laplacian1D(4)
	require.NoError(t, a.ZeroRowsColumns([]int{0, 3}, 1))
	want := mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 2, -1, 0,
		0, -1, 2, 0,
		0, 0, 0, 1,
	})
	assert.True(t, mat.Equal(a.ToDense(), want))
	assert.Equal(t, []float64{1, 2, 2, 1}, a.Diagonal())

	s, err := a.ToSymDense()
	require.NoError(t, err)
	assert.True(t, mat.Equal(s, want))

	assert.Error(t, a.ZeroRowsColumns([]int{4}, 1))
}

func TestToConstrainedCSRMatchesZeroRowsColumns(t *testing.T) {
	n := 5
	tr := NewTriplets(n, n, 3*n)
	for i := 0; i < n; i++ {
		tr.Add(i, i, 2)
		if i > 0 {
			tr.Add(i, i-1, -1)
			tr.Add(i-1, i, -1)
		}
	}
	fixed := []int{0, 4}
	a, err := tr.ToConstrainedCSR(fixed, 1)
	require.NoError(t, err)

	want := tr.ToCSR()
	require.NoError(t, want.ZeroRowsColumns(fixed, 1))
	assert.True(t, mat.Equal(a.ToDense(), want.ToDense()))
	// constrained couplings are dropped, not stored as zeros
	assert.Equal(t, want.NNZ()-4, a.NNZ())

	_, err = tr.ToConstrainedCSR([]int{n}, 1)
	assert.Error(t, err)
	_, err = NewTriplets(2, 3, 0).ToConstrainedCSR(nil, 1)
	assert.Error(t, err)
}

func TestMulVecTransIsAdjoint(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rows := rapid.IntRange(1, 8).Draw(t, "rows")
		cols := rapid.IntRange(1, 8).Draw(t, "cols")
		tr := NewTriplets(rows, cols, 0)
		nnz := rapid.IntRange(0, 20).Draw(t, "nnz")
		for k := 0; k < nnz; k++ {
			tr.Add(rapid.IntRange(0, rows-1).Draw(t, "i"),
				rapid.IntRange(0, cols-1).Draw(t, "j"),
				rapid.Float64Range(-1, 1).Draw(t, "v"))
		}
		a := tr.ToCSR()
		x := rapid.SliceOfN(rapid.Float64Range(-1, 1), cols, cols).Draw(t, "x")
		y := rapid.SliceOfN(rapid.Float64Range(-1, 1), rows, rows).Draw(t, "y")

		ax := make([]float64, rows)
		aty := make([]float64, cols)
		a.MulVec(ax, x)
		a.MulVecTrans(aty, y)
		lhs := mat.Dot(mat.NewVecDense(rows, y), mat.NewVecDense(rows, ax))
		rhs := mat.Dot(mat.NewVecDense(cols, x), mat.NewVecDense(cols, aty))
		if d := lhs - rhs; d > 1e-12 || d < -1e-12 {
			t.Fatalf("<y,Ax>=%g != <Aᵀy,x>=%g", lhs, rhs)
		}
	})
}

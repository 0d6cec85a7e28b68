package vector_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/ligerdb/errs"
	"github.com/erigontech/ligerdb/vector"
)

func TestVariantRankOrdering(t *testing.T) {
	f64 := vector.NewF64(1)
	f32 := vector.NewF32(1)
	i64 := vector.NewI64(1)
	i32 := vector.NewI32(1)
	i16 := vector.NewI16(1)
	require.Equal(t, -1, f64.Compare(f32))
	require.Equal(t, -1, f32.Compare(i64))
	require.Equal(t, -1, i64.Compare(i32))
	require.Equal(t, -1, i32.Compare(i16))
}

func TestEqualBitPattern(t *testing.T) {
	a := vector.NewF64(math.NaN())
	b := vector.NewF64(math.NaN())
	require.True(t, a.Equal(b))

	c := vector.NewF64(0)
	d := vector.NewF64(math.Copysign(0, -1))
	require.False(t, c.Equal(d))
}

func TestEuclidean(t *testing.T) {
	a := vector.NewF64(0, 0)
	b := vector.NewF64(3, 4)
	d, err := vector.Euclidean(a, b)
	require.NoError(t, err)
	require.InDelta(t, 5.0, d, 1e-9)
}

func TestManhattanChebyshev(t *testing.T) {
	a := vector.NewF64(0, 0)
	b := vector.NewF64(3, 4)
	d, err := vector.Manhattan(a, b)
	require.NoError(t, err)
	require.InDelta(t, 7.0, d, 1e-9)

	d2, err := vector.Chebyshev(a, b)
	require.NoError(t, err)
	require.InDelta(t, 4.0, d2, 1e-9)
}

func TestMinkowskiMatchesEuclideanAtP2(t *testing.T) {
	a := vector.NewF64(1, 2, 3)
	b := vector.NewF64(4, 5, 6)
	mk, err := vector.Minkowski(a, b, 2)
	require.NoError(t, err)
	eu, err := vector.Euclidean(a, b)
	require.NoError(t, err)
	require.InDelta(t, eu, mk, 1e-9)
}

func TestHamming(t *testing.T) {
	a := vector.NewI32(1, 2, 3)
	b := vector.NewI32(1, 0, 3)
	d, err := vector.Hamming(a, b)
	require.NoError(t, err)
	require.Equal(t, 1.0, d)
}

func TestCosineIdentical(t *testing.T) {
	a := vector.NewF64(1, 2, 3)
	d, err := vector.Cosine(a, a)
	require.NoError(t, err)
	require.InDelta(t, 0.0, d, 1e-9)
}

func TestCosineZeroMagnitude(t *testing.T) {
	a := vector.NewF64(0, 0)
	b := vector.NewF64(1, 1)
	d, err := vector.Cosine(a, b)
	require.NoError(t, err)
	require.Equal(t, 0.0, d)
}

func TestJaccard(t *testing.T) {
	a := vector.NewI64(1, 2, 3)
	b := vector.NewI64(2, 3, 4)
	d, err := vector.Jaccard(a, b)
	require.NoError(t, err)
	require.InDelta(t, 1-2.0/4.0, d, 1e-9)
}

func TestPearsonPerfectCorrelation(t *testing.T) {
	a := vector.NewF64(1, 2, 3, 4)
	b := vector.NewF64(2, 4, 6, 8)
	d, err := vector.Pearson(a, b)
	require.NoError(t, err)
	require.InDelta(t, 0.0, d, 1e-9)
}

func TestDimensionMismatch(t *testing.T) {
	a := vector.NewF64(1, 2)
	b := vector.NewF64(1, 2, 3)
	_, err := vector.Euclidean(a, b)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindDimensionMismatch))
}

func TestSumGeneric(t *testing.T) {
	require.Equal(t, int64(6), vector.Sum([]int64{1, 2, 3}))
	require.InDelta(t, 6.0, vector.Sum([]float64{1, 2, 3}), 1e-9)
}

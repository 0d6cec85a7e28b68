package numeric_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/ligerdb/internal/numeric"
)

func TestAbsoluteDifference(t *testing.T) {
	require.Equal(t, uint64(5), numeric.AbsoluteDifference(10, 5))
	require.Equal(t, uint64(5), numeric.AbsoluteDifference(5, 10))
	require.Equal(t, uint64(0), numeric.AbsoluteDifference(7, 7))
}

func TestSafeAddOverflow(t *testing.T) {
	sum, overflow := numeric.SafeAdd(10, 20)
	require.False(t, overflow)
	require.Equal(t, uint64(30), sum)

	_, overflow = numeric.SafeAdd(math.MaxUint64, 1)
	require.True(t, overflow)
}

func TestSafeMulOverflow(t *testing.T) {
	prod, overflow := numeric.SafeMul(3, 4)
	require.False(t, overflow)
	require.Equal(t, uint64(12), prod)

	_, overflow = numeric.SafeMul(math.MaxUint64, 2)
	require.True(t, overflow)
}

func TestCeilDiv(t *testing.T) {
	require.Equal(t, 4, numeric.CeilDiv(10, 3))
	require.Equal(t, 0, numeric.CeilDiv(10, 0))
	require.Equal(t, 5, numeric.CeilDiv(10, 2))
}

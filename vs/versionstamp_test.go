package vs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/ligerdb/vs"
)

func TestOrdering(t *testing.T) {
	a := vs.New(1, 0)
	b := vs.New(1, 1)
	c := vs.New(2, 0)
	require.Equal(t, -1, a.Compare(b))
	require.Equal(t, -1, b.Compare(c))
	require.Equal(t, 0, a.Compare(a))
	require.Equal(t, 1, c.Compare(a))
}

func TestBytesRoundTrip(t *testing.T) {
	v := vs.New(0xdeadbeef, 7)
	got := vs.FromBytes(v.Bytes())
	require.Equal(t, v, got)
}

func TestGeneratorMonotonic(t *testing.T) {
	var g vs.Generator
	prev := g.Next()
	for i := 0; i < 100; i++ {
		next := g.Next()
		require.Equal(t, -1, prev.Compare(next))
		prev = next
	}
}

func TestGeneratorNextNSharesSeq(t *testing.T) {
	var g vs.Generator
	mk := g.NextN()
	v0 := mk(0)
	v1 := mk(1)
	require.Equal(t, v0.Seq(), v1.Seq())
	require.Equal(t, -1, v0.Compare(v1))
}

func TestTimestampIndex(t *testing.T) {
	var idx vs.TimestampIndex
	v1 := vs.New(1, 0)
	v2 := vs.New(2, 0)
	idx.Record(100, v1)
	idx.Record(200, v2)

	require.Equal(t, vs.Zero, idx.Lookup(50))
	require.Equal(t, v1, idx.Lookup(150))
	require.Equal(t, v2, idx.Lookup(250))
	require.Equal(t, v1, idx.Lookup(100))
}

package docid_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/ligerdb/docid"
)

func TestSequenceNeverReuses(t *testing.T) {
	ctx := context.Background()
	seq := docid.NewSequence(4)
	seen := make(map[uint64]bool)
	for i := 0; i < 20; i++ {
		id, err := seq.NextID(ctx)
		require.NoError(t, err)
		require.False(t, seen[id], "id %d reused", id)
		seen[id] = true
	}
	require.NoError(t, seq.Release(ctx, 0))
	id, err := seq.NextID(ctx)
	require.NoError(t, err)
	require.False(t, seen[id])
}

func TestSequenceShardsIndependent(t *testing.T) {
	ctx := context.Background()
	seq := docid.NewSequence(10)
	a, err := seq.NextIDForShard(ctx, 1)
	require.NoError(t, err)
	b, err := seq.NextIDForShard(ctx, 2)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestBTreeResolveDocIDReuse(t *testing.T) {
	ctx := context.Background()
	bt, err := docid.NewBTree(16, 1024)
	require.NoError(t, err)

	id0, created, err := bt.ResolveDocID(ctx, "a")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, uint64(0), id0)

	id1, created, err := bt.ResolveDocID(ctx, "b")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, uint64(1), id1)

	// Resolving an existing key returns the same id without allocating.
	again, created, err := bt.ResolveDocID(ctx, "a")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, id0, again)

	// Removing "a" frees id0, and the next allocation reuses it before
	// advancing past the highest id ever handed out.
	freed, err := bt.RemoveDoc(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, id0, freed)

	id2, created, err := bt.ResolveDocID(ctx, "c")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, id0, id2)
}

func TestBTreeGetDocKey(t *testing.T) {
	ctx := context.Background()
	bt, err := docid.NewBTree(16, 1024)
	require.NoError(t, err)

	id, _, err := bt.ResolveDocID(ctx, "hello")
	require.NoError(t, err)

	key, ok := bt.GetDocKey(ctx, id)
	require.True(t, ok)
	require.Equal(t, "hello", key)

	_, ok = bt.GetDocKey(ctx, id+100)
	require.False(t, ok)
}

func TestBTreeStatistics(t *testing.T) {
	ctx := context.Background()
	bt, err := docid.NewBTree(16, 1024)
	require.NoError(t, err)

	_, _, err = bt.ResolveDocID(ctx, "a")
	require.NoError(t, err)
	_, _, err = bt.ResolveDocID(ctx, "b")
	require.NoError(t, err)
	_, err = bt.RemoveDoc(ctx, "a")
	require.NoError(t, err)

	stats, err := bt.Statistics(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), stats.Allocated)
	require.Equal(t, uint64(1), stats.FreeCount)
}

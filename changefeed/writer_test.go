package changefeed_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/ligerdb/changefeed"
	"github.com/erigontech/ligerdb/kv/memkv"
	"github.com/erigontech/ligerdb/value"
	"github.com/erigontech/ligerdb/vs"
)

var cfg = changefeed.TableConfig{Expiry: time.Hour, StoreDiff: true}

func TestRecordChangeSetWithDiff(t *testing.T) {
	w := changefeed.NewWriter(nil)
	key := changefeed.ChangeKey{NS: "test", DB: "test", Table: "person"}
	previous := value.Object{"name": value.String("old")}
	current := value.Object{"name": value.String("new")}
	w.RecordChange(key, cfg, "1", previous, current)

	var gen vs.Generator
	writes := w.Flush(&gen)
	require.Len(t, writes, 1)
}

func TestRecordChangeDeleteWithOriginal(t *testing.T) {
	w := changefeed.NewWriter(nil)
	key := changefeed.ChangeKey{NS: "test", DB: "test", Table: "person"}
	previous := value.Object{"name": value.String("old")}
	w.RecordChange(key, cfg, "1", previous, nil)

	var gen vs.Generator
	writes := w.Flush(&gen)
	require.Len(t, writes, 1)
}

func TestRecordChangeNoStoreDiffAlwaysSet(t *testing.T) {
	w := changefeed.NewWriter(nil)
	noCfg := changefeed.TableConfig{Expiry: time.Hour, StoreDiff: false}
	key := changefeed.ChangeKey{NS: "test", DB: "test", Table: "person"}
	previous := value.Object{"name": value.String("old")}
	current := value.Object{"name": value.String("new")}
	w.RecordChange(key, noCfg, "1", previous, current)
	w.RecordChange(key, noCfg, "2", previous, nil)

	var gen vs.Generator
	writes := w.Flush(&gen)
	require.Len(t, writes, 1)
}

// TestChangefeedReadWriteOrdering mirrors the original's
// changefeed_read_write test scenario: transactions committing out of
// program order (tx1, tx3, tx2) still appear in commit (versionstamp)
// order when replayed via ShowChanges.
func TestChangefeedReadWriteOrdering(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	key := changefeed.ChangeKey{NS: "test", DB: "test", Table: "person"}
	var gen vs.Generator

	commit := func(id string, val value.Value) {
		w := changefeed.NewWriter(nil)
		w.RecordChange(key, cfg, id, nil, val)
		writes := w.Flush(&gen)
		tx, err := db.BeginRw(ctx)
		require.NoError(t, err)
		for _, pw := range writes {
			require.NoError(t, tx.Set(ctx, pw.Key, pw.Value))
		}
		_, err = tx.Commit(ctx)
		require.NoError(t, err)
	}

	commit("tx1", value.Object{"n": value.Int(1)})
	commit("tx3", value.Object{"n": value.Int(3)})
	commit("tx2", value.Object{"n": value.Int(2)})

	ro, err := db.BeginRo(ctx)
	require.NoError(t, err)
	changes, err := changefeed.ShowChanges(ctx, ro, key, vs.Zero, 0)
	require.NoError(t, err)
	require.Len(t, changes, 3)
	require.Equal(t, "tx1", changes[0].Mutations[0].RecordID)
	require.Equal(t, "tx3", changes[1].Mutations[0].RecordID)
	require.Equal(t, "tx2", changes[2].Mutations[0].RecordID)
}

func TestShowChangesSinceOffset(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	key := changefeed.ChangeKey{NS: "test", DB: "test", Table: "person"}
	var gen vs.Generator

	var firstVS vs.Versionstamp
	for i, id := range []string{"a", "b", "c"} {
		w := changefeed.NewWriter(nil)
		w.RecordChange(key, cfg, id, nil, value.Object{"n": value.Int(int64(i))})
		writes := w.Flush(&gen)
		tx, _ := db.BeginRw(ctx)
		for _, pw := range writes {
			require.NoError(t, tx.Set(ctx, pw.Key, pw.Value))
		}
		_, err := tx.Commit(ctx)
		require.NoError(t, err)
		if i == 0 {
			firstVS = vs.FromBytes(writes[0].Key[len(writes[0].Key)-vs.Size:])
		}
	}

	ro, _ := db.BeginRo(ctx)
	changes, err := changefeed.ShowChanges(ctx, ro, key, firstVS, 0)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	require.Equal(t, "b", changes[0].Mutations[0].RecordID)
	require.Equal(t, "c", changes[1].Mutations[0].RecordID)
}

func TestGCRemovesOlderThanWatermark(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	key := changefeed.ChangeKey{NS: "test", DB: "test", Table: "person"}
	var gen vs.Generator

	var watermark vs.Versionstamp
	for i, id := range []string{"a", "b", "c"} {
		w := changefeed.NewWriter(nil)
		w.RecordChange(key, cfg, id, nil, value.Object{"n": value.Int(int64(i))})
		writes := w.Flush(&gen)
		tx, _ := db.BeginRw(ctx)
		for _, pw := range writes {
			require.NoError(t, tx.Set(ctx, pw.Key, pw.Value))
		}
		_, err := tx.Commit(ctx)
		require.NoError(t, err)
		if id == "b" {
			watermark = vs.FromBytes(writes[0].Key[len(writes[0].Key)-vs.Size:])
		}
	}

	tx, err := db.BeginRw(ctx)
	require.NoError(t, err)
	n, err := changefeed.GC(ctx, tx, key, watermark, nil)
	require.NoError(t, err)
	require.Equal(t, 1, n) // only "a" precedes the watermark
	_, err = tx.Commit(ctx)
	require.NoError(t, err)

	ro, _ := db.BeginRo(ctx)
	remaining, err := changefeed.ShowChanges(ctx, ro, key, vs.Zero, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
}

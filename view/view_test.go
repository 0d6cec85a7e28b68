package view_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/ligerdb/codec"
	"github.com/erigontech/ligerdb/kv"
	"github.com/erigontech/ligerdb/kv/memkv"
	"github.com/erigontech/ligerdb/session"
	"github.com/erigontech/ligerdb/value"
	"github.com/erigontech/ligerdb/view"
)

func recordKeyFor(table, id string) []byte {
	return kv.RecordKey("test", "test", table, id)
}

func idiom(name string) func(value.Value) value.Value {
	return func(doc value.Value) value.Value {
		obj, ok := doc.(value.Object)
		if !ok {
			return value.Null{}
		}
		if v, ok := obj[name]; ok {
			return v
		}
		return value.Null{}
	}
}

func readRow(t *testing.T, ctx context.Context, db *memkv.DB, key []byte) (value.Object, bool) {
	t.Helper()
	ro, err := db.BeginRo(ctx)
	require.NoError(t, err)
	defer ro.Cancel()
	raw, found, err := ro.Get(ctx, key)
	require.NoError(t, err)
	if !found {
		return nil, false
	}
	v, err := codec.Decode(raw)
	require.NoError(t, err)
	obj, _ := v.(value.Object)
	return obj, true
}

// contribute opens its own read-write transaction, runs m.Contribute
// through it, and commits, mirroring how engine.Put/Delete drive a view
// contribution within the same transaction as the base record write.
func contribute(t *testing.T, ctx context.Context, db *memkv.DB, m *view.Materializer, defs []view.Def, previous, current value.Value, isDelete, forced bool) {
	t.Helper()
	tx, err := db.BeginRw(ctx)
	require.NoError(t, err)
	defer tx.Cancel()
	require.NoError(t, m.Contribute(ctx, tx, session.New(), "test", "test", defs, previous, current, isDelete, forced))
	_, err = tx.Commit(ctx)
	require.NoError(t, err)
}

func TestCountRollsUpOnCreateAndDownOnDelete(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	m := &view.Materializer{}

	def := view.Def{
		Table: "city_counts",
		Group: []func(value.Value) value.Value{idiom("city")},
		Fields: []view.FieldSpec{
			{Name: "count", Rolling: view.RollingCount, Compute: func(value.Value) value.Value { return value.Int(1) }},
		},
	}

	doc1 := value.Object{"city": value.String("nyc")}
	doc2 := value.Object{"city": value.String("nyc")}

	contribute(t, ctx, db, m, []view.Def{def}, nil, doc1, false, false)
	contribute(t, ctx, db, m, []view.Def{def}, nil, doc2, false, false)

	row, found := readRow(t, ctx, db, recordKeyFor("city_counts", "nyc"))
	require.True(t, found)
	require.Equal(t, value.Float(2), row["count"])

	contribute(t, ctx, db, m, []view.Def{def}, doc1, nil, true, false)
	row, found = readRow(t, ctx, db, recordKeyFor("city_counts", "nyc"))
	require.True(t, found)
	require.Equal(t, value.Float(1), row["count"])
}

func TestCountPurgesRowAtZero(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	m := &view.Materializer{}

	def := view.Def{
		Table: "city_counts",
		Group: []func(value.Value) value.Value{idiom("city")},
		Fields: []view.FieldSpec{
			{Name: "count", Rolling: view.RollingCount, Compute: func(value.Value) value.Value { return value.Int(1) }},
		},
	}
	doc := value.Object{"city": value.String("sf")}
	contribute(t, ctx, db, m, []view.Def{def}, nil, doc, false, false)
	contribute(t, ctx, db, m, []view.Def{def}, doc, nil, true, false)

	_, found := readRow(t, ctx, db, recordKeyFor("city_counts", "sf"))
	require.False(t, found)
}

func TestMeanTracksRunningAverage(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	m := &view.Materializer{}

	def := view.Def{
		Table: "city_stats",
		Group: []func(value.Value) value.Value{idiom("city")},
		Fields: []view.FieldSpec{
			{Name: "avg_age", Rolling: view.RollingMean, Compute: idiom("age")},
		},
	}

	contribute(t, ctx, db, m, []view.Def{def}, nil,
		value.Object{"city": value.String("nyc"), "age": value.Int(10)}, false, false)
	contribute(t, ctx, db, m, []view.Def{def}, nil,
		value.Object{"city": value.String("nyc"), "age": value.Int(20)}, false, false)

	row, found := readRow(t, ctx, db, recordKeyFor("city_stats", "nyc"))
	require.True(t, found)
	require.Equal(t, value.Float(15), row["avg_age"])
}

func TestUngroupedViewCopiesSourceID(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	m := &view.Materializer{}

	def := view.Def{
		Table: "person_view",
		Fields: []view.FieldSpec{
			{Name: "name", Compute: idiom("name")},
		},
	}
	doc := value.Object{"name": value.String("ada")}
	contribute(t, ctx, db, m, []view.Def{def}, nil, doc, false, false)

	row, found := readRow(t, ctx, db, recordKeyFor("person_view", doc.String()))
	require.True(t, found)
	require.Equal(t, value.String("ada"), row["name"])
}

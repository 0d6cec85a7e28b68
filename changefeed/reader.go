package changefeed

import (
	"context"

	"github.com/erigontech/ligerdb/codec"
	"github.com/erigontech/ligerdb/errs"
	"github.com/erigontech/ligerdb/internal/diff"
	"github.com/erigontech/ligerdb/kv"
	"github.com/erigontech/ligerdb/value"
	"github.com/erigontech/ligerdb/vs"
)

// Change is one decoded, versionstamped change-feed entry as returned by
// ShowChanges.
type Change struct {
	At        vs.Versionstamp
	Mutations []Mutation
}

// ShowChanges scans a table's change feed starting at (but not including)
// since, in commit order, up to limit entries (DefaultShowChangesLimit if
// limit is 0).
func ShowChanges(ctx context.Context, tx kv.Tx, key ChangeKey, since vs.Versionstamp, limit int) ([]Change, error) {
	if limit <= 0 {
		limit = DefaultShowChangesLimit
	}
	prefix := kv.ChangeFeedKeyPrefixFor(key.NS, key.DB, key.Table)
	from := append(append([]byte(nil), prefix...), since.Bytes()...)
	// from is inclusive in Scan; since itself was already delivered to a
	// prior caller, so start one past it.
	from = incrementKey(from)

	var out []Change
	err := tx.Scan(ctx, from, prefixEnd(prefix), false, func(p kv.Pair) (bool, error) {
		v := vs.FromBytes(p.Key[len(p.Key)-vs.Size:])
		decoded, err := codec.Decode(p.Value)
		if err != nil {
			return false, err
		}
		obj, ok := decoded.(value.Object)
		if !ok {
			return false, errs.Unreachable("changefeed.ShowChanges: entry not an object")
		}
		muts, err := decodeMutations(obj)
		if err != nil {
			return false, err
		}
		out = append(out, Change{At: v, Mutations: muts})
		return len(out) < limit, nil
	})
	return out, err
}

func decodeMutations(obj value.Object) ([]Mutation, error) {
	arr, ok := obj["mutations"].(value.Array)
	if !ok {
		return nil, nil
	}
	out := make([]Mutation, 0, len(arr))
	for _, mv := range arr {
		mo, ok := mv.(value.Object)
		if !ok {
			continue
		}
		kindNum, _ := mo["kind"].(value.Number)
		m := Mutation{
			Kind:     MutationKind(kindNum.Int),
			RecordID: string(mo["id"].(value.String)),
			Value:    mo["value"],
		}
		if p, ok := mo["patch"].(value.Array); ok {
			m.Patch = decodePatch(p)
		}
		out = append(out, m)
	}
	return out, nil
}

func decodePatch(arr value.Array) []diff.Op {
	out := make([]diff.Op, 0, len(arr))
	for _, ov := range arr {
		oo, ok := ov.(value.Object)
		if !ok {
			continue
		}
		kindNum, _ := oo["kind"].(value.Number)
		pathArr, _ := oo["path"].(value.Array)
		path := make([]string, len(pathArr))
		for i, p := range pathArr {
			path[i] = string(p.(value.String))
		}
		out = append(out, diff.Op{Kind: diff.OpKind(kindNum.Int), Path: path, Value: oo["value"]})
	}
	return out
}

func incrementKey(k []byte) []byte {
	out := append([]byte(nil), k...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xff {
			out[i]++
			return out
		}
		out[i] = 0
	}
	return append(out, 0)
}

func prefixEnd(prefix []byte) []byte {
	return incrementKey(append([]byte(nil), prefix...))
}

// Entry adapts a single-mutation Change into kv.ChangeEntry, for use by
// kv.AsOfReader when replaying a specific record's history backward.
// Apply returns the previous value by undoing this change: applying the
// stored patch (already in current->previous direction) for
// SetWithDiff/DelWithOriginal, or reporting "cannot replay further" for a
// bare Set/Del that carries no diff.
type Entry struct {
	Change   Change
	Mutation Mutation
}

func (e Entry) At() vs.Versionstamp { return e.Change.At }

func (e Entry) Apply(current value.Value) (value.Value, bool) {
	switch e.Mutation.Kind {
	case KindSetWithDiff:
		return diff.Apply(current, e.Mutation.Patch), true
	case KindDelWithOriginal:
		return e.Mutation.Value, true
	default:
		return nil, false
	}
}

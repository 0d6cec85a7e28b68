package kv

import (
	"context"

	"github.com/erigontech/ligerdb/value"
	"github.com/erigontech/ligerdb/vs"
)

// ChangeEntry is the minimal shape of a change-feed entry AsOfReader needs
// to replay history: the versionstamp it was committed at, and enough
// information to reconstruct the value as of that point. Packages with a
// richer entry type (changefeed.Entry) satisfy this via a small adapter,
// keeping this package free of a dependency on changefeed.
type ChangeEntry interface {
	At() vs.Versionstamp
	// Apply transforms current into the value as of the moment before
	// this entry's mutation committed (i.e. walking backward in time),
	// returning ok=false if this entry cannot be replayed backward (a
	// bare Set/Del with no stored diff); ReadAsOf then stops and reports
	// the record as absent at the requested version.
	Apply(current value.Value) (value.Value, bool)
}

// AsOfReader serves session.Options.Version ("AS OF") reads by walking a
// record's buffered change-feed history backward from its current value
// until reaching an entry at or before the requested version. This is
// the same "read a value as of a historical point" shape the teacher's
// HistoryReaderV3.ReadAccountData uses via ttx.GetAsOf(domain, key,
// txNum), generalized here from per-domain Ethereum account/storage state
// to per-record change-feed replay.
type AsOfReader struct {
	// History returns a record's change entries in reverse-chronological
	// (newest first) order, typically backed by a table's changefeed
	// buffer/committed log.
	History func(ctx context.Context, recordKey []byte) ([]ChangeEntry, error)
}

// ReadAsOf returns the record's value as it was at or immediately before
// target, starting from its current value and walking the change history
// backward. If the record did not exist yet at target, it returns
// (nil, false, nil).
func (r *AsOfReader) ReadAsOf(ctx context.Context, recordKey []byte, current value.Value, target vs.Versionstamp) (value.Value, bool, error) {
	entries, err := r.History(ctx, recordKey)
	if err != nil {
		return nil, false, err
	}
	v := current
	for _, e := range entries {
		if e.At().Compare(target) <= 0 {
			// This entry and everything older already precede target;
			// v already reflects the state as of just after it applied.
			break
		}
		next, ok := e.Apply(v)
		if !ok {
			return nil, false, nil
		}
		v = next
	}
	if v == nil {
		return nil, false, nil
	}
	return v, true, nil
}

// Package vs implements the 10-byte versionstamp that orders every write
// across the whole keyspace: a monotonic token assigned at transaction
// commit, composed of an 8-byte big-endian transaction sequence and a
// 2-byte big-endian intra-transaction sub-order.
package vs

import (
	"encoding/binary"
	"sync/atomic"
)

// Size is the encoded byte length of a Versionstamp.
const Size = 10

// Versionstamp is a 10-byte monotonic token: commit-order || sub-order.
type Versionstamp [Size]byte

// Zero is the smallest possible versionstamp, ordering before any real one.
var Zero Versionstamp

// New composes a Versionstamp from a transaction sequence and a
// sub-transaction order (the position of this key's write within the
// committing transaction, for transactions that write more than one
// versionstamped key).
func New(seq uint64, sub uint16) Versionstamp {
	var v Versionstamp
	binary.BigEndian.PutUint64(v[0:8], seq)
	binary.BigEndian.PutUint16(v[8:10], sub)
	return v
}

// Seq returns the transaction-sequence component.
func (v Versionstamp) Seq() uint64 { return binary.BigEndian.Uint64(v[0:8]) }

// Sub returns the intra-transaction sub-order component.
func (v Versionstamp) Sub() uint16 { return binary.BigEndian.Uint16(v[8:10]) }

// Compare returns -1, 0, or 1 as v orders before, equal to, or after other.
// Byte-wise comparison of the big-endian encoding is equivalent to integer
// comparison of (Seq, Sub), which is what gives versionstamped keys their
// lexicographic = chronological ordering in the KV substrate.
func (v Versionstamp) Compare(other Versionstamp) int {
	for i := range v {
		if v[i] != other[i] {
			if v[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Bytes returns the 10-byte big-endian encoding.
func (v Versionstamp) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, v[:])
	return b
}

// FromBytes decodes a 10-byte big-endian versionstamp. It panics if b is
// shorter than Size, matching the KV substrate's guarantee that it never
// stores a versionstamp key of the wrong width.
func FromBytes(b []byte) Versionstamp {
	var v Versionstamp
	copy(v[:], b[:Size])
	return v
}

// Generator hands out monotonically increasing versionstamps for
// transaction commits on a single database. It is safe for concurrent use.
type Generator struct {
	seq uint64
}

// Next atomically increments and returns the next commit sequence as a
// Versionstamp with sub-order 0. Callers needing more than one
// versionstamped key in the same commit should use NextN.
func (g *Generator) Next() Versionstamp {
	seq := atomic.AddUint64(&g.seq, 1)
	return New(seq, 0)
}

// NextN reserves a commit sequence and returns a function producing the
// i-th versionstamp within that commit (sub-order i), for transactions
// that write more than one versionstamped key atomically.
func (g *Generator) NextN() func(sub uint16) Versionstamp {
	seq := atomic.AddUint64(&g.seq, 1)
	return func(sub uint16) Versionstamp { return New(seq, sub) }
}

// TimestampIndex maps wall-clock timestamps (nanoseconds since epoch) to
// the versionstamp that was current as of that time, serving
// versionstamp_from_timestamp. Entries are recorded each time the caller
// ticks the clock forward (typically once per commit, or explicitly in
// tests), mirroring the original's changefeed_process_at helper.
type TimestampIndex struct {
	entries []tsEntry
}

type tsEntry struct {
	nanos uint64
	vs    Versionstamp
}

// Record associates nanos with the versionstamp current at that instant.
// Entries must be recorded in non-decreasing nanos order.
func (t *TimestampIndex) Record(nanos uint64, v Versionstamp) {
	t.entries = append(t.entries, tsEntry{nanos: nanos, vs: v})
}

// Lookup returns the versionstamp in effect at or immediately before
// nanos. If nanos precedes every recorded entry, it returns Zero.
func (t *TimestampIndex) Lookup(nanos uint64) Versionstamp {
	best := Zero
	for _, e := range t.entries {
		if e.nanos <= nanos {
			best = e.vs
		} else {
			break
		}
	}
	return best
}

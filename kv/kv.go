// Package kv defines the ordered key-value substrate contract every
// storage adapter implements: begin/get/set/del/scan/commit/cancel plus
// versionstamp_from_timestamp, named and shaped after erigon-lib's own
// kv_interface.go conventions (Has/Getter/Putter/Deleter composed into
// read-only and read-write transaction interfaces).
//
// Variables naming, carried over from the teacher:
//
//	tx  - database transaction
//	k   - key
//	v   - value
//	vs  - versionstamp
package kv

import (
	"context"

	"github.com/erigontech/ligerdb/vs"
)

// Pair is one key/value entry returned by Scan.
type Pair struct {
	Key   []byte
	Value []byte
}

// Has reports whether a key exists.
type Has interface {
	Has(ctx context.Context, key []byte) (bool, error)
}

// Getter wraps the read operations available inside any transaction.
type Getter interface {
	Has
	// Get returns the value for key, or (nil, false, nil) if absent.
	Get(ctx context.Context, key []byte) (val []byte, found bool, err error)
	// Scan iterates [from, to) in key order if reverse is false, or the
	// same range in reverse key order if reverse is true (mirroring
	// spec's forward/backward scan direction), calling walker for each
	// entry until it returns false or the range is exhausted.
	Scan(ctx context.Context, from, to []byte, reverse bool, walker func(Pair) (bool, error)) error
}

// Putter wraps the write operations available inside a read-write
// transaction.
type Putter interface {
	Set(ctx context.Context, key, value []byte) error
}

// Deleter wraps the delete operation available inside a read-write
// transaction.
type Deleter interface {
	Del(ctx context.Context, key []byte) error
}

// Tx is a read-only transaction: a consistent snapshot as of Begin time.
type Tx interface {
	Getter
	// Cancel abandons the transaction. Safe to call after Commit/Cancel
	// already ran (no-op).
	Cancel()
}

// RwTx is a read-write transaction. Reads observe this transaction's own
// uncommitted writes. Commit detects write-write conflicts against keys
// read by this transaction that changed since Begin (optimistic
// concurrency), returning errs.Conflict on a lost race.
type RwTx interface {
	Tx
	Putter
	Deleter
	// Commit assigns a versionstamp to the transaction and makes its
	// writes visible to subsequent Begin/BeginRw callers. On conflict the
	// transaction's writes are discarded and an errs.Conflict error is
	// returned; the caller should retry.
	Commit(ctx context.Context) (vs.Versionstamp, error)
}

// DB is the substrate's top-level handle: something a caller can Begin
// read-only or read-write transactions against.
type DB interface {
	BeginRo(ctx context.Context) (Tx, error)
	BeginRw(ctx context.Context) (RwTx, error)
	// VersionstampFromTimestamp resolves the versionstamp that was current
	// at or immediately before the given nanosecond timestamp, serving
	// SHOW CHANGES SINCE semantics when a caller supplies a time instead
	// of an explicit versionstamp.
	VersionstampFromTimestamp(ctx context.Context, nanos uint64) vs.Versionstamp
	Close()
}

// Package docid implements the two document-id allocator variants a table
// can be configured with: Sequence, a sharded batch allocator with no free
// list, and BTree, a trie-keyed B-tree allocator backed by a roaring-bitmap
// free list that reuses ids after deletion.
package docid

import "context"

// Allocator is the contract both variants satisfy. NextID returns a fresh
// id for a new document. Release returns an id to the allocator after its
// document was deleted, for reuse by a future NextID call (the Sequence
// variant ignores Release: it never reuses ids, matching the original's
// "no free list" design).
type Allocator interface {
	NextID(ctx context.Context) (uint64, error)
	Release(ctx context.Context, id uint64) error
	// Statistics reports the allocator's current size/free-list counters,
	// mirroring btdocids.rs's statistics() used by table introspection.
	Statistics(ctx context.Context) (Statistics, error)
}

// Statistics mirrors the counters the original exposes for table
// introspection (`INFO FOR TABLE`-style diagnostics, out of scope for
// this module's surface, but the counters themselves are useful for
// tests and operational logging).
type Statistics struct {
	Allocated uint64 // BTree: highest id ever handed out + 1; Sequence: ids reserved by shard batches so far
	FreeCount uint64 // ids available for reuse (BTree only; always 0 for Sequence)
}

// TxAllocator is satisfied by both allocator variants (see txn.go): it
// resolves/removes a document key's doc id, persisting the forward
// (key->doc_id) and inverse (doc_id->key) mapping through the caller's
// transaction so it commits atomically with the caller's record write,
// per spec.md §4.4's "removal deletes both atomically" invariant.
type TxAllocator interface {
	ResolveInTxn(ctx context.Context, tx TxWriter, ns, db, table, index, key string) (id uint64, created bool, err error)
	RemoveInTxn(ctx context.Context, tx TxWriter, ns, db, table, index, key string) error
}

// Finisher is implemented by allocator variants that persist a final,
// once-per-transaction state snapshot. Only the B-tree variant needs
// this: its free list and next-id counter are cheaper to snapshot once
// than to write on every mutation.
type Finisher interface {
	Finish(ctx context.Context, tx TxWriter, ns, db, table, index string) error
}

package docid

import (
	"bytes"
	"context"
	"encoding/binary"

	roaring64 "github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/erigontech/ligerdb/errs"
	"github.com/erigontech/ligerdb/kv"
)

// TxWriter is the subset of a read-write KV transaction the allocator
// needs to persist its forward/inverse mappings atomically alongside the
// caller's record write (spec.md §4.4: "removal deletes both atomically").
type TxWriter interface {
	kv.Getter
	kv.Putter
	kv.Deleter
}

// ResolveInTxn resolves key to a doc id under the Sequence variant,
// consulting and updating the forward/inverse entries through tx so the
// mapping commits atomically with the caller's record write. The
// Sequence allocator keeps no private key->id table of its own (see
// sequence.go), so tx is the sole source of truth for "have we seen this
// key before".
func (s *Sequence) ResolveInTxn(ctx context.Context, tx TxWriter, ns, db, table, index, key string) (uint64, bool, error) {
	fwd := kv.IndexForwardKey(ns, db, table, index, []byte(key))
	if raw, found, err := tx.Get(ctx, fwd); err != nil {
		return 0, false, err
	} else if found {
		return decodeBE64(raw), false, nil
	}

	id, err := s.NextID(ctx)
	if err != nil {
		return 0, false, err
	}
	if err := tx.Set(ctx, fwd, encodeBE64(id)); err != nil {
		return 0, false, err
	}
	if err := tx.Set(ctx, kv.IndexInverseKey(ns, db, table, index, id), []byte(key)); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// RemoveInTxn deletes key's forward/inverse mapping through tx and then
// calls Release, which is a no-op for the Sequence variant: the id is
// never made available for reuse.
func (s *Sequence) RemoveInTxn(ctx context.Context, tx TxWriter, ns, db, table, index, key string) error {
	fwd := kv.IndexForwardKey(ns, db, table, index, []byte(key))
	raw, found, err := tx.Get(ctx, fwd)
	if err != nil || !found {
		return err
	}
	id := decodeBE64(raw)
	if err := tx.Del(ctx, fwd); err != nil {
		return err
	}
	if err := tx.Del(ctx, kv.IndexInverseKey(ns, db, table, index, id)); err != nil {
		return err
	}
	return s.Release(ctx, id)
}

// ResolveInTxn resolves key to a doc id under the B-tree variant: the
// allocation itself is served from the in-memory trie (ResolveDocID), and
// a newly allocated id's forward/inverse entries are additionally
// persisted through tx so they survive a restart even before the next
// Finish snapshot.
func (b *BTree) ResolveInTxn(ctx context.Context, tx TxWriter, ns, db, table, index, key string) (uint64, bool, error) {
	id, created, err := b.ResolveDocID(ctx, key)
	if err != nil || !created {
		return id, created, err
	}
	if err := tx.Set(ctx, kv.IndexForwardKey(ns, db, table, index, []byte(key)), encodeBE64(id)); err != nil {
		return 0, false, err
	}
	if err := tx.Set(ctx, kv.IndexInverseKey(ns, db, table, index, id), []byte(key)); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// RemoveInTxn deletes key's mapping from the in-memory trie and its
// forward/inverse entries through tx, atomically with the caller's
// record delete.
func (b *BTree) RemoveInTxn(ctx context.Context, tx TxWriter, ns, db, table, index, key string) error {
	id, err := b.RemoveDoc(ctx, key)
	if err != nil {
		return err
	}
	if err := tx.Del(ctx, kv.IndexForwardKey(ns, db, table, index, []byte(key))); err != nil {
		return err
	}
	return tx.Del(ctx, kv.IndexInverseKey(ns, db, table, index, id))
}

// Finish persists the B-tree allocator's generation state (next_doc_id,
// free-list) under the well-known BTreeDocIdsRootKey, mirroring
// btdocids.rs's finish(txn): the per-key forward/inverse entries written
// by ResolveInTxn/RemoveInTxn are already durable, but the free list and
// next-id counter only need to survive as one snapshot taken at commit
// time rather than a write per mutation.
func (b *BTree) Finish(ctx context.Context, tx TxWriter, ns, db, table, index string) error {
	b.mu.Lock()
	next := b.next
	var buf bytes.Buffer
	_, writeErr := b.free.WriteTo(&buf)
	b.mu.Unlock()
	if writeErr != nil {
		return errs.Wrap(errs.KindUnreachable, writeErr, "docid: serialize free list")
	}

	state := make([]byte, 8, 8+buf.Len())
	binary.BigEndian.PutUint64(state, next)
	state = append(state, buf.Bytes()...)
	return tx.Set(ctx, kv.BTreeDocIdsRootKey(ns, db, table, index), state)
}

// LoadState restores next_doc_id and the free list from a snapshot
// previously written by Finish, for reopening a table whose allocator
// state must survive a restart.
func (b *BTree) LoadState(ctx context.Context, tx kv.Getter, ns, db, table, index string) error {
	raw, found, err := tx.Get(ctx, kv.BTreeDocIdsRootKey(ns, db, table, index))
	if err != nil || !found {
		return err
	}
	if len(raw) < 8 {
		return errs.New(errs.KindUnreachable, "docid: truncated allocator state")
	}
	next := binary.BigEndian.Uint64(raw[:8])
	free := roaring64.New()
	if _, err := free.ReadFrom(bytes.NewReader(raw[8:])); err != nil {
		return errs.Wrap(errs.KindUnreachable, err, "docid: parse free list")
	}

	b.mu.Lock()
	b.next = next
	b.free = free
	b.mu.Unlock()
	return nil
}

func encodeBE64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func decodeBE64(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

package docid

import (
	"context"
	"hash"
	"hash/fnv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/bloomfilter/v2"
	"github.com/tidwall/btree"

	roaring64 "github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/erigontech/ligerdb/errs"
)

// entry is the item stored in the trie-keyed B-tree: a document key
// mapped to its allocated doc id, ordered lexicographically by key so a
// range scan over the tree visits documents in key order.
type entry struct {
	key string
	id  uint64
}

func lessEntry(a, b entry) bool { return a.key < b.key }

// BTree is a single-writer doc-id allocator keyed by document key,
// backed by a trie-ordered B-tree plus a roaring-bitmap free list.
// get_next_doc_id prefers reusing a freed id over advancing next_doc_id,
// matching the original's allocation order (btdocids.rs).
type BTree struct {
	mu sync.Mutex

	tree    *btree.BTreeG[entry]
	reverse map[uint64]string

	free    *roaring64.Bitmap
	next    uint64
	cache   *lru.Cache[uint64, string]
	present *bloomfilter.Filter // negative lookup gate: Contains(key)==false implies key is absent
}

// NewBTree constructs a BTree allocator. cacheSize bounds the recently
// touched id->key page cache; bloomCapacity sizes the negative-lookup
// filter, both mirroring btdocids.rs's constructor parameters.
func NewBTree(cacheSize int, bloomCapacity uint64) (*BTree, error) {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	c, err := lru.New[uint64, string](cacheSize)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnreachable, err, "docid: allocate node cache")
	}
	if bloomCapacity == 0 {
		bloomCapacity = 1 << 20
	}
	f, err := bloomfilter.NewOptimal(bloomCapacity, 0.01)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnreachable, err, "docid: allocate bloom filter")
	}
	return &BTree{
		tree:    btree.NewBTreeG[entry](lessEntry),
		reverse: make(map[uint64]string),
		free:    roaring64.New(),
		cache:   c,
		present: f,
	}, nil
}

func keyHash(key string) hash.Hash64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h
}

// ResolveDocID returns the doc id for key, allocating a fresh one (from
// the free list if available, else by advancing next_doc_id) if key has
// never been seen before. The second return value reports whether a new
// id was allocated.
func (b *BTree) ResolveDocID(ctx context.Context, key string) (uint64, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.present.Contains(keyHash(key)) {
		if e, ok := b.tree.Get(entry{key: key}); ok {
			return e.id, false, nil
		}
	}

	id := b.getNextDocIDLocked()
	b.tree.Set(entry{key: key, id: id})
	b.reverse[id] = key
	b.cache.Add(id, key)
	b.present.Add(keyHash(key))
	return id, true, nil
}

// getNextDocIDLocked must be called with mu held. It prefers the free
// list before advancing next_doc_id, matching btdocids.rs's
// get_next_doc_id.
func (b *BTree) getNextDocIDLocked() uint64 {
	if !b.free.IsEmpty() {
		id := b.free.Minimum()
		b.free.Remove(id)
		return id
	}
	id := b.next
	b.next++
	return id
}

// RemoveDoc deletes key's mapping and returns its id to the free list for
// reuse by a future ResolveDocID call.
func (b *BTree) RemoveDoc(ctx context.Context, key string) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.tree.Delete(entry{key: key})
	if !ok {
		return 0, errs.New(errs.KindUnreachable, "docid: remove unknown key %q", key)
	}
	delete(b.reverse, e.id)
	b.cache.Remove(e.id)
	b.free.Add(e.id)
	// The bloom filter has no remove operation; a stale positive merely
	// costs one extra tree lookup on the next ResolveDocID for this key,
	// which then correctly reports absence via the tree itself.
	return e.id, nil
}

// GetDocKey returns the document key for a doc id, consulting the node
// cache before falling back to the reverse map.
func (b *BTree) GetDocKey(ctx context.Context, id uint64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if key, ok := b.cache.Get(id); ok {
		return key, true
	}
	key, ok := b.reverse[id]
	if ok {
		b.cache.Add(id, key)
	}
	return key, ok
}

// NextID satisfies Allocator for callers that don't need a key mapping:
// it allocates a bare id (free list first) with no key attached, so
// GetDocKey does not resolve it.
func (b *BTree) NextID(ctx context.Context) (uint64, error) {
	b.mu.Lock()
	id := b.getNextDocIDLocked()
	b.mu.Unlock()
	return id, nil
}

// Release returns id to the free list directly, for callers that
// allocated via NextID and have no key mapping to remove.
func (b *BTree) Release(ctx context.Context, id uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if key, ok := b.reverse[id]; ok {
		b.tree.Delete(entry{key: key})
		delete(b.reverse, id)
		b.cache.Remove(id)
	}
	b.free.Add(id)
	return nil
}

func (b *BTree) Statistics(ctx context.Context) (Statistics, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Statistics{Allocated: b.next, FreeCount: b.free.GetCardinality()}, nil
}

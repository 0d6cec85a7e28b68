// Package memkv implements an in-memory kv.DB adapter on top of an
// ordered google/btree index, with optimistic concurrency: a read-write
// transaction tracks the write-sequence it observed for every key it
// read, and Commit fails with errs.Conflict if any of those keys changed
// since Begin.
//
// This is the one concrete KV substrate adapter this module ships: the
// teacher's real storage engine (mdbx-go) is a cgo binding that cannot be
// vendored here (see DESIGN.md), so memkv plays the same structural role
// erigon-lib's own in-memory/mock kv implementations play in its test
// suite, generalized into a production-shaped adapter behind the same
// kv.DB contract any real engine would implement.
package memkv

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/erigontech/ligerdb/errs"
	"github.com/erigontech/ligerdb/kv"
	"github.com/erigontech/ligerdb/vs"
)

var (
	commitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ligerdb_memkv_commits_total",
		Help: "Total committed read-write transactions.",
	})
	conflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ligerdb_memkv_conflicts_total",
		Help: "Total read-write transactions that lost an optimistic-concurrency race.",
	})
)

func init() {
	prometheus.MustRegister(commitsTotal, conflictsTotal)
}

type item struct {
	key      []byte
	value    []byte
	writeSeq uint64 // sequence of the transaction that last wrote this key
	deleted  bool
}

func lessItem(a, b item) bool { return bytes.Compare(a.key, b.key) < 0 }

// DB is an in-memory kv.DB.
type DB struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[item]
	seq  uint64 // global monotonic commit sequence

	gen *vs.Generator
	ts  vs.TimestampIndex
}

// New constructs an empty in-memory database.
func New() *DB {
	return &DB{
		tree: btree.NewG(32, lessItem),
		gen:  &vs.Generator{},
	}
}

func (db *DB) Close() {}

func (db *DB) BeginRo(ctx context.Context) (kv.Tx, error) {
	db.mu.RLock()
	snapshot := db.snapshotLocked()
	seq := db.seq
	db.mu.RUnlock()
	return &tx{db: db, snapshot: snapshot, beginSeq: seq}, nil
}

func (db *DB) BeginRw(ctx context.Context) (kv.RwTx, error) {
	db.mu.RLock()
	snapshot := db.snapshotLocked()
	seq := db.seq
	db.mu.RUnlock()
	return &rwTx{
		tx:       tx{db: db, snapshot: snapshot, beginSeq: seq},
		readSeqs: make(map[string]uint64),
		writes:   make(map[string]*pendingWrite),
	}, nil
}

func (db *DB) snapshotLocked() *btree.BTreeG[item] {
	return db.tree.Clone()
}

// VersionstampFromTimestamp resolves the versionstamp current as of nanos.
func (db *DB) VersionstampFromTimestamp(ctx context.Context, nanos uint64) vs.Versionstamp {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.ts.Lookup(nanos)
}

// RecordTimestamp associates the wall-clock time nanos with the
// versionstamp v, so a later VersionstampFromTimestamp(nanos) call
// resolves it. Callers typically invoke this once per commit using the
// commit's own versionstamp and current wall-clock time.
func (db *DB) RecordTimestamp(nanos uint64, v vs.Versionstamp) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.ts.Record(nanos, v)
}

type pendingWrite struct {
	value   []byte
	deleted bool
}

type tx struct {
	db       *DB
	snapshot *btree.BTreeG[item]
	beginSeq uint64
	closed   bool
}

func (t *tx) Has(ctx context.Context, key []byte) (bool, error) {
	_, found, err := t.Get(ctx, key)
	return found, err
}

func (t *tx) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	it, ok := t.snapshot.Get(item{key: key})
	if !ok || it.deleted {
		return nil, false, nil
	}
	return it.value, true, nil
}

func (t *tx) Scan(ctx context.Context, from, to []byte, reverse bool, walker func(kv.Pair) (bool, error)) error {
	var walkErr error
	iter := func(it item) bool {
		if it.deleted {
			return true
		}
		cont, err := walker(kv.Pair{Key: it.key, Value: it.value})
		if err != nil {
			walkErr = err
			return false
		}
		return cont
	}
	if reverse {
		// Walk [from, to) backward; DescendRange would cover (from, to].
		t.snapshot.DescendLessOrEqual(item{key: to}, func(it item) bool {
			if bytes.Compare(it.key, from) < 0 {
				return false
			}
			if bytes.Equal(it.key, to) {
				return true
			}
			return iter(it)
		})
	} else {
		t.snapshot.AscendRange(item{key: from}, item{key: to}, iter)
	}
	return walkErr
}

func (t *tx) Cancel() { t.closed = true }

type rwTx struct {
	tx
	readSeqs map[string]uint64 // key -> writeSeq observed at read time (0 = key absent at read time)
	writes   map[string]*pendingWrite
	mu       sync.Mutex
}

func (t *rwTx) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	t.mu.Lock()
	if w, ok := t.writes[string(key)]; ok {
		t.mu.Unlock()
		if w.deleted {
			return nil, false, nil
		}
		return w.value, true, nil
	}
	t.mu.Unlock()

	it, ok := t.snapshot.Get(item{key: key})
	t.mu.Lock()
	if ok && !it.deleted {
		t.readSeqs[string(key)] = it.writeSeq
	} else {
		t.readSeqs[string(key)] = 0
	}
	t.mu.Unlock()
	if !ok || it.deleted {
		return nil, false, nil
	}
	return it.value, true, nil
}

func (t *rwTx) Has(ctx context.Context, key []byte) (bool, error) {
	_, found, err := t.Get(ctx, key)
	return found, err
}

func (t *rwTx) Scan(ctx context.Context, from, to []byte, reverse bool, walker func(kv.Pair) (bool, error)) error {
	// Overlay pending writes onto the snapshot scan. Simpler approach:
	// materialize the merged view for the requested range.
	merged := map[string]*pendingWrite{}
	var walkErr error
	collect := func(it item) bool {
		k := string(it.key)
		if _, overridden := t.writes[k]; overridden {
			return true
		}
		if it.deleted {
			return true
		}
		merged[k] = &pendingWrite{value: it.value}
		return true
	}
	// Collection order does not matter: the merged keys are sorted below.
	t.snapshot.AscendRange(item{key: from}, item{key: to}, collect)
	for k, w := range t.writes {
		if !w.deleted && keyInRange([]byte(k), from, to) {
			merged[k] = w
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sortStrings(keys, reverse)
	for _, k := range keys {
		cont, err := walker(kv.Pair{Key: []byte(k), Value: merged[k].value})
		if err != nil {
			walkErr = err
			break
		}
		if !cont {
			break
		}
	}
	return walkErr
}

func keyInRange(key, from, to []byte) bool {
	if from != nil && bytes.Compare(key, from) < 0 {
		return false
	}
	if to != nil && bytes.Compare(key, to) >= 0 {
		return false
	}
	return true
}

func sortStrings(s []string, reverse bool) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0; j-- {
			less := s[j-1] < s[j]
			if reverse {
				less = s[j-1] > s[j]
			}
			if less {
				break
			}
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func (t *rwTx) Set(ctx context.Context, key, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := append([]byte(nil), value...)
	t.writes[string(key)] = &pendingWrite{value: cp}
	return nil
}

func (t *rwTx) Del(ctx context.Context, key []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes[string(key)] = &pendingWrite{deleted: true}
	return nil
}

// Commit validates the transaction's read set against the live tree, then
// applies its write set atomically, assigning it a fresh versionstamp.
func (t *rwTx) Commit(ctx context.Context) (vs.Versionstamp, error) {
	db := t.db
	db.mu.Lock()
	defer db.mu.Unlock()

	for k, observedSeq := range t.readSeqs {
		cur, ok := db.tree.Get(item{key: []byte(k)})
		var curSeq uint64
		if ok && !cur.deleted {
			curSeq = cur.writeSeq
		}
		if curSeq != observedSeq {
			conflictsTotal.Inc()
			return vs.Versionstamp{}, errs.Conflict()
		}
	}

	db.seq++
	commitSeq := db.seq
	for k, w := range t.writes {
		if w.deleted {
			db.tree.Delete(item{key: []byte(k)})
			continue
		}
		db.tree.ReplaceOrInsert(item{key: []byte(k), value: w.value, writeSeq: commitSeq})
	}
	commitsTotal.Inc()
	return db.gen.Next(), nil
}

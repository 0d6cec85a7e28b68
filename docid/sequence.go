package docid

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// DefaultBatchSize is the number of ids a shard hands out per underlying
// allocation round, matching the batch size named in the original design
// ("sharded sequence that hands out batches").
const DefaultBatchSize = 1000

// Sequence is a sharded batch allocator: each shard owns a private
// [next, next+BatchSize) window drawn from a single global counter, so
// concurrent callers on different shards almost never contend, and
// concurrent callers on the SAME shard collapse into one underlying
// allocation round via singleflight. It never reuses released ids.
type Sequence struct {
	global    atomic.Uint64
	batchSize uint64

	mu     sync.Mutex
	shards map[uint32]*shardWindow
	group  singleflight.Group
}

type shardWindow struct {
	next uint64
	end  uint64 // exclusive
}

// NewSequence constructs a Sequence allocator with the given per-shard
// batch size. A batchSize of 0 uses DefaultBatchSize.
func NewSequence(batchSize uint64) *Sequence {
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}
	return &Sequence{
		batchSize: batchSize,
		shards:    make(map[uint32]*shardWindow),
	}
}

// NextIDForShard allocates the next id for the given shard, pulling a new
// batch from the global counter when the shard's current window is
// exhausted. Concurrent callers for the same shard that race past an
// exhausted window collapse into a single batch-advance via singleflight,
// so the global counter never over-allocates under contention.
func (s *Sequence) NextIDForShard(ctx context.Context, shard uint32) (uint64, error) {
	for {
		s.mu.Lock()
		w, ok := s.shards[shard]
		if ok && w.next < w.end {
			id := w.next
			w.next++
			s.mu.Unlock()
			return id, nil
		}
		s.mu.Unlock()

		key := shardKey(shard)
		_, err, _ := s.group.Do(key, func() (any, error) {
			s.mu.Lock()
			w, ok := s.shards[shard]
			if ok && w.next < w.end {
				s.mu.Unlock()
				return nil, nil
			}
			s.mu.Unlock()

			start := s.global.Add(s.batchSize) - s.batchSize
			s.mu.Lock()
			s.shards[shard] = &shardWindow{next: start, end: start + s.batchSize}
			s.mu.Unlock()
			return nil, nil
		})
		if err != nil {
			return 0, err
		}
	}
}

// NextID allocates from shard 0, for callers that don't shard by table
// partition.
func (s *Sequence) NextID(ctx context.Context) (uint64, error) {
	return s.NextIDForShard(ctx, 0)
}

// Release is a no-op: Sequence never reuses ids.
func (s *Sequence) Release(ctx context.Context, id uint64) error { return nil }

func (s *Sequence) Statistics(ctx context.Context) (Statistics, error) {
	return Statistics{Allocated: s.global.Load()}, nil
}

func shardKey(shard uint32) string {
	b := make([]byte, 4)
	b[0] = byte(shard >> 24)
	b[1] = byte(shard >> 16)
	b[2] = byte(shard >> 8)
	b[3] = byte(shard)
	return string(b)
}

// Package readcache implements the project/agent read cache: two
// categories, each with two lookup indexes, adaptive per-entry TTL, and
// a 16-shard deferred-touch queue for coalesced last_active_ts updates.
// Grounded on the teacher's debounced persistence idiom
// (internal/persistence/store.go's scheduleSave pattern) generalized
// from "debounce one save" to "per-entry adaptive expiry with LRU
// eviction", and on internal/metrics/collector.go for lock-free counters
// via go.uber.org/atomic.
package readcache

import (
	"container/list"
	"sync"
	"time"

	"go.uber.org/atomic"
)

const (
	// BaseTTL is the default entry lifetime before access-based doubling.
	BaseTTL = 300 * time.Second
	// HotAccessThreshold is the access_count at/above which TTL doubles.
	HotAccessThreshold = 5
	// MaxEntriesPerIndex bounds each index's live entry count.
	MaxEntriesPerIndex = 16384
	// TouchShards is the number of deferred-touch queue shards.
	TouchShards = 16
	// MinFlushInterval is the minimum interval between touch-queue drains.
	MinFlushInterval = 30 * time.Second
)

type cacheEntry[V any] struct {
	key          string
	value        V
	inserted     time.Time
	lastAccessed time.Time
	accessCount  int
}

// index is one LRU + adaptive-TTL lookup table keyed by a string (slug,
// human_key, "(project_id, name)", or "id" — callers choose the key
// encoding).
type index[V any] struct {
	mu    sync.Mutex
	ll    *list.List
	items map[string]*list.Element

	hits   atomic.Uint64
	misses atomic.Uint64
}

func newIndex[V any]() *index[V] {
	return &index[V]{ll: list.New(), items: make(map[string]*list.Element)}
}

func (ix *index[V]) ttlFor(e *cacheEntry[V]) time.Duration {
	if e.accessCount >= HotAccessThreshold {
		return BaseTTL * 2
	}
	return BaseTTL
}

func (ix *index[V]) expired(e *cacheEntry[V], now time.Time) bool {
	return now.Sub(e.inserted) > ix.ttlFor(e)
}

// Get returns the live value for key, touching it to the LRU tail.
// Expired entries are removed and counted as a miss.
func (ix *index[V]) Get(key string, now time.Time) (V, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	el, ok := ix.items[key]
	if !ok {
		ix.misses.Inc()
		var zero V
		return zero, false
	}
	e := el.Value.(*cacheEntry[V])
	if ix.expired(e, now) {
		ix.ll.Remove(el)
		delete(ix.items, key)
		ix.misses.Inc()
		var zero V
		return zero, false
	}
	e.lastAccessed = now
	e.accessCount++
	ix.ll.MoveToBack(el)
	ix.hits.Inc()
	return e.value, true
}

// Put inserts or replaces key, evicting expired entries first and then
// LRU-evicting from the front until the index is under capacity.
func (ix *index[V]) Put(key string, val V, now time.Time) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if el, ok := ix.items[key]; ok {
		e := el.Value.(*cacheEntry[V])
		e.value = val
		e.inserted = now
		e.lastAccessed = now
		ix.ll.MoveToBack(el)
		return
	}

	ix.evictToCapacity(now, MaxEntriesPerIndex-1)

	e := &cacheEntry[V]{key: key, value: val, inserted: now, lastAccessed: now}
	el := ix.ll.PushBack(e)
	ix.items[key] = el
}

// Invalidate removes key unconditionally (used on write-through delete).
func (ix *index[V]) Invalidate(key string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if el, ok := ix.items[key]; ok {
		ix.ll.Remove(el)
		delete(ix.items, key)
	}
}

func (ix *index[V]) evictToCapacity(now time.Time, limit int) {
	// First drop expired entries.
	for el := ix.ll.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*cacheEntry[V])
		if ix.expired(e, now) {
			ix.ll.Remove(el)
			delete(ix.items, e.key)
		}
		el = next
	}
	// Then LRU-evict the front until under the limit.
	for ix.ll.Len() > limit {
		front := ix.ll.Front()
		if front == nil {
			break
		}
		e := front.Value.(*cacheEntry[V])
		ix.ll.Remove(front)
		delete(ix.items, e.key)
	}
}

// Stats reports lock-free hit/miss counters for this index.
func (ix *index[V]) Stats() (hits, misses uint64) {
	return ix.hits.Load(), ix.misses.Load()
}

func (ix *index[V]) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.ll.Len()
}

// Category is one cache category (projects or agents) with two named
// indexes, e.g. by-slug and by-human-key for projects, or by-composite-name
// and by-id for agents.
type Category[V any] struct {
	primary   *index[V]
	secondary *index[V]
}

// NewCategory builds a category with two independent indexes.
func NewCategory[V any]() *Category[V] {
	return &Category[V]{primary: newIndex[V](), secondary: newIndex[V]()}
}

func (c *Category[V]) GetPrimary(key string) (V, bool)   { return c.primary.Get(key, time.Now()) }
func (c *Category[V]) GetSecondary(key string) (V, bool) { return c.secondary.Get(key, time.Now()) }

// Put inserts val under both keys (write-through on mutation).
func (c *Category[V]) Put(primaryKey, secondaryKey string, val V) {
	now := time.Now()
	c.primary.Put(primaryKey, val, now)
	if secondaryKey != "" {
		c.secondary.Put(secondaryKey, val, now)
	}
}

// Invalidate removes val from both indexes.
func (c *Category[V]) Invalidate(primaryKey, secondaryKey string) {
	c.primary.Invalidate(primaryKey)
	if secondaryKey != "" {
		c.secondary.Invalidate(secondaryKey)
	}
}

// WarmUp bulk-inserts entries into the primary and secondary indexes at
// startup, bypassing per-call overhead.
func (c *Category[V]) WarmUp(entries []struct {
	Primary   string
	Secondary string
	Value     V
}) {
	now := time.Now()
	for _, e := range entries {
		c.primary.Put(e.Primary, e.Value, now)
		if e.Secondary != "" {
			c.secondary.Put(e.Secondary, e.Value, now)
		}
	}
}

// Stats reports combined hit/miss counts across both indexes.
func (c *Category[V]) Stats() (hits, misses uint64) {
	h1, m1 := c.primary.Stats()
	h2, m2 := c.secondary.Stats()
	return h1 + h2, m1 + m2
}

// TouchQueue is the 16-shard deferred-touch queue for coalesced
// last_active_ts updates, keyed by agent_id mod 16.
type TouchQueue struct {
	mu         [TouchShards]sync.Mutex
	pending    [TouchShards]map[int64]int64
	flushMu    sync.Mutex
	lastFlush  time.Time
}

// NewTouchQueue builds an empty deferred-touch queue.
func NewTouchQueue() *TouchQueue {
	tq := &TouchQueue{lastFlush: time.Now()}
	for i := range tq.pending {
		tq.pending[i] = make(map[int64]int64)
	}
	return tq
}

func shardFor(agentID int64) int64 {
	s := agentID % TouchShards
	if s < 0 {
		s += TouchShards
	}
	return s
}

// EnqueueTouch records that agentID was active at tsMicros, coalescing
// by keeping the maximum timestamp seen for that agent since the last drain.
func (tq *TouchQueue) EnqueueTouch(agentID int64, tsMicros int64) {
	shard := shardFor(agentID)
	tq.mu[shard].Lock()
	defer tq.mu[shard].Unlock()
	if cur, ok := tq.pending[shard][agentID]; !ok || tsMicros > cur {
		tq.pending[shard][agentID] = tsMicros
	}
}

// DrainTouches merges all 16 shards into a single map of agentID ->
// max timestamp, clears the shards, and resets the flush clock. Callers
// should only call this when ReadyToFlush reports true (interval >= 30s),
// though DrainTouches itself does not enforce the interval.
func (tq *TouchQueue) DrainTouches() map[int64]int64 {
	merged := make(map[int64]int64)
	for i := 0; i < TouchShards; i++ {
		tq.mu[i].Lock()
		for agentID, ts := range tq.pending[i] {
			if cur, ok := merged[agentID]; !ok || ts > cur {
				merged[agentID] = ts
			}
		}
		tq.pending[i] = make(map[int64]int64)
		tq.mu[i].Unlock()
	}
	tq.flushMu.Lock()
	tq.lastFlush = time.Now()
	tq.flushMu.Unlock()
	return merged
}

// ReadyToFlush reports whether at least MinFlushInterval has elapsed
// since the last drain.
func (tq *TouchQueue) ReadyToFlush() bool {
	tq.flushMu.Lock()
	defer tq.flushMu.Unlock()
	return time.Since(tq.lastFlush) >= MinFlushInterval
}

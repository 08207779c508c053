// Package cache is a two-tier cache: an in-memory map in front of a
// persistent Store. Reads past the TTL are misses. Persistent writes happen
// in the background and never fail the caller.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/ramadan-times/internal/metrics"
)

const (
	// DefaultTTL is how long an entry stays valid.
	DefaultTTL = 24 * time.Hour
	// DefaultQueueSize bounds pending persistent writes.
	DefaultQueueSize = 256
	// evictFraction of own entries is removed when the store is full.
	evictFraction = 0.2

	storeTimeout = 5 * time.Second
)

type opKind int

const (
	opSet opKind = iota
	opDelete
	opPurge
	opBarrier
)

type op struct {
	kind  opKind
	entry Entry
	done  chan struct{}
}

// Cache is safe for concurrent use.
type Cache struct {
	mu  sync.RWMutex
	mem map[string]Entry

	store   Store
	ttl     time.Duration
	now     func() time.Time
	logger  zerolog.Logger
	metrics metrics.Recorder

	queueSize int
	queue     chan op
	qmu       sync.RWMutex
	closed    bool
	done      chan struct{}
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source used for timestamps and TTL checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithQueueSize overrides DefaultQueueSize.
func WithQueueSize(n int) Option {
	return func(c *Cache) { c.queueSize = n }
}

// New creates a cache over store and rehydrates the memory tier from it.
// A nil store gives a memory-only cache.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		mem:       make(map[string]Entry),
		store:     store,
		ttl:       DefaultTTL,
		now:       time.Now,
		logger:    zerolog.Nop(),
		metrics:   metrics.NewNoOpCollector(),
		queueSize: DefaultQueueSize,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.queueSize < 1 {
		c.queueSize = 1
	}

	if c.store == nil {
		close(c.done)
		return c
	}

	c.rehydrate()

	c.queue = make(chan op, c.queueSize)
	go c.writer()
	return c
}

// rehydrate loads every valid persisted entry and removes expired ones.
func (c *Cache) rehydrate() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	entries, err := c.store.List(ctx, Prefix)
	if err != nil {
		c.logger.Warn().Err(err).Msg("cache rehydrate failed")
	}

	now := c.now()
	loaded, expired := 0, 0
	for _, e := range entries {
		if !e.Valid(now, c.ttl) {
			if err := c.store.Delete(ctx, e.Key); err != nil {
				c.logger.Debug().Err(err).Str("key", e.Key).Msg("cache delete failed")
			}
			expired++
			continue
		}
		c.mem[e.Key] = e
		loaded++
	}
	c.logger.Debug().Int("loaded", loaded).Int("expired", expired).Msg("cache rehydrated")
}

// Get returns the payload for key. Expired entries are removed from both
// tiers and reported as a miss. On a memory miss the persistent tier is read
// through.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.mem[key]
	c.mu.RUnlock()

	if ok {
		if e.Valid(now, c.ttl) {
			c.metrics.RecordCacheRequest(metrics.TierMemory, true)
			return e.Payload, true
		}
		c.expire(key)
		c.metrics.RecordCacheRequest(metrics.TierMemory, false)
		return nil, false
	}
	c.metrics.RecordCacheRequest(metrics.TierMemory, false)

	if c.store == nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("persistent cache read failed")
	}
	if !ok || err != nil {
		c.metrics.RecordCacheRequest(metrics.TierPersistent, false)
		return nil, false
	}
	if !e.Valid(now, c.ttl) {
		c.expire(key)
		c.metrics.RecordCacheRequest(metrics.TierPersistent, false)
		return nil, false
	}

	c.mu.Lock()
	c.mem[key] = e
	c.mu.Unlock()
	c.metrics.RecordCacheRequest(metrics.TierPersistent, true)
	return e.Payload, true
}

// GetJSON decodes the payload for key into v. A payload that no longer
// decodes is dropped and reported as a miss.
func (c *Cache) GetJSON(key string, v any) bool {
	payload, ok := c.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, v); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("dropping undecodable cache entry")
		c.Delete(key)
		return false
	}
	return true
}

// Set stores payload under key. The memory tier is updated before Set
// returns; the persistent write is queued.
func (c *Cache) Set(key string, payload json.RawMessage) {
	e := Entry{Key: key, Payload: payload, Timestamp: c.now()}

	c.mu.Lock()
	c.mem[key] = e
	c.mu.Unlock()

	c.enqueue(op{kind: opSet, entry: e})
}

// SetJSON encodes v and stores it under key.
func (c *Cache) SetJSON(key string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache value not encodable")
		return
	}
	c.Set(key, payload)
}

// Delete removes key from both tiers.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.mem, key)
	c.mu.Unlock()

	c.enqueue(op{kind: opDelete, entry: Entry{Key: key}})
}

// DeletePrefix removes every key starting with prefix from both tiers.
func (c *Cache) DeletePrefix(prefix string) {
	c.mu.Lock()
	var keys []string
	for k := range c.mem {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
			delete(c.mem, k)
		}
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.enqueue(op{kind: opDelete, entry: Entry{Key: k}})
	}
}

// Purge removes every entry this subsystem owns from both tiers.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.mem = make(map[string]Entry)
	c.mu.Unlock()

	c.enqueue(op{kind: opPurge})
}

// Len returns the number of entries in the memory tier.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.mem)
}

// Flush blocks until every queued persistent write has been attempted.
func (c *Cache) Flush() {
	c.qmu.RLock()
	if c.closed || c.queue == nil {
		c.qmu.RUnlock()
		return
	}
	done := make(chan struct{})
	c.queue <- op{kind: opBarrier, done: done}
	c.qmu.RUnlock()
	<-done
}

// Close drains pending writes, stops the writer and closes the store.
func (c *Cache) Close() error {
	c.qmu.Lock()
	if c.closed {
		c.qmu.Unlock()
		return nil
	}
	c.closed = true
	if c.queue != nil {
		close(c.queue)
	}
	c.qmu.Unlock()

	<-c.done
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

func (c *Cache) expire(key string) {
	c.mu.Lock()
	// Another goroutine may have refreshed the entry meanwhile.
	if e, ok := c.mem[key]; ok && e.Valid(c.now(), c.ttl) {
		c.mu.Unlock()
		return
	}
	delete(c.mem, key)
	c.mu.Unlock()

	c.enqueue(op{kind: opDelete, entry: Entry{Key: key}})
}

// enqueue never blocks; a full queue drops the write.
func (c *Cache) enqueue(o op) {
	c.qmu.RLock()
	defer c.qmu.RUnlock()
	if c.closed || c.queue == nil {
		return
	}
	select {
	case c.queue <- o:
	default:
		c.logger.Warn().Str("key", o.entry.Key).Msg("cache write queue full, dropping write")
	}
}

func (c *Cache) writer() {
	defer close(c.done)
	for o := range c.queue {
		switch o.kind {
		case opSet:
			c.persist(o.entry)
		case opDelete:
			c.withStore(func(ctx context.Context) error { return c.store.Delete(ctx, o.entry.Key) }, o.entry.Key)
		case opPurge:
			c.purgeStore()
		case opBarrier:
			close(o.done)
		}
	}
}

func (c *Cache) withStore(fn func(ctx context.Context) error, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("persistent cache operation failed")
	}
}

// persist writes e, evicting the oldest entries and retrying once when the
// store is full. A second failure drops the write.
func (c *Cache) persist(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	err := c.store.Set(ctx, e)
	if err == nil {
		return
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		c.logger.Warn().Err(err).Str("key", e.Key).Msg("persistent cache write failed")
		return
	}

	c.evict(ctx, e.Key)

	if err := c.store.Set(ctx, e); err != nil {
		c.logger.Warn().Err(err).Str("key", e.Key).Msg("persistent cache write failed after eviction, dropping")
	}
}

// evict removes the oldest fifth (at least one) of this subsystem's entries,
// never the key currently being written.
func (c *Cache) evict(ctx context.Context, writing string) {
	entries, err := c.store.List(ctx, Prefix)
	if err != nil {
		c.logger.Warn().Err(err).Msg("listing cache entries for eviction failed")
		return
	}

	candidates := entries[:0]
	for _, e := range entries {
		if e.Key != writing {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Timestamp.Before(candidates[j].Timestamp)
	})

	n := int(float64(len(candidates)) * evictFraction)
	if n < 1 {
		n = 1
	}

	evicted := 0
	for _, e := range candidates[:n] {
		if err := c.store.Delete(ctx, e.Key); err != nil {
			c.logger.Debug().Err(err).Str("key", e.Key).Msg("eviction delete failed")
			continue
		}
		c.mu.Lock()
		if cur, ok := c.mem[e.Key]; ok && !cur.Timestamp.After(e.Timestamp) {
			delete(c.mem, e.Key)
		}
		c.mu.Unlock()
		evicted++
	}

	c.metrics.RecordEvictions(evicted)
	c.logger.Info().Int("evicted", evicted).Int("total", len(candidates)).Msg("cache store full, evicted oldest entries")
}

func (c *Cache) purgeStore() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	entries, err := c.store.List(ctx, Prefix)
	if err != nil {
		c.logger.Warn().Err(err).Msg("listing cache entries for purge failed")
		return
	}
	for _, e := range entries {
		if err := c.store.Delete(ctx, e.Key); err != nil {
			c.logger.Debug().Err(err).Str("key", e.Key).Msg("purge delete failed")
		}
	}
}

package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jonwraymond/tagcache/observe"
)

// MemoryCache is an in-memory cache with TTLs, size-bounded eviction, tag
// and glob invalidation, and a background expiration pass.
//
// One mutex guards the store, the tag index and the counters together, so
// every operation, including a cleanup pass, is atomic with respect to the
// others.
type MemoryCache struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*entry
	tags    tagIndex
	stats   statsCollector
	seq     uint64
	closed  bool

	logger  observe.Logger
	metrics observe.CacheMetrics
	now     func() time.Time

	shutdown  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryCache creates a cache and, when cfg.CleanupInterval is positive,
// starts its background expiration goroutine. Call Destroy to stop it.
func NewMemoryCache(cfg Config, opts ...Option) (*MemoryCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.EvictionStrategy, _ = ParseEvictionStrategy(string(cfg.EvictionStrategy))

	o := options{
		name:    "default",
		logger:  observe.NopLogger(),
		metrics: observe.NopCacheMetrics(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !cfg.EnableStats {
		o.metrics = observe.NopCacheMetrics()
	}

	c := &MemoryCache{
		cfg:      cfg,
		entries:  make(map[string]*entry),
		tags:     newTagIndex(),
		logger:   o.logger.With(observe.F("cache.name", o.name)),
		metrics:  o.metrics,
		now:      o.now,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}

	if cfg.EnableCompression {
		c.logger.Warn(context.Background(), "compression is not implemented; enable_compression is ignored")
	}

	if cfg.CleanupInterval > 0 {
		go c.cleanupLoop(cfg.CleanupInterval)
	} else {
		close(c.done)
	}

	return c, nil
}

// Config returns the configuration the cache was built with.
func (c *MemoryCache) Config() Config {
	return c.cfg
}

// Get returns the value stored under key. Expired entries are removed on
// access and reported as a miss.
func (c *MemoryCache) Get(ctx context.Context, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.entries[key]
	if !ok {
		c.recordMiss(ctx, key)
		return nil, false
	}

	if e.expired(now) {
		c.removeLocked(key, e)
		c.metrics.RecordExpiration(ctx, 1)
		c.recordMiss(ctx, key)
		return nil, false
	}

	e.touch(now)
	c.stats.hits++
	c.metrics.RecordHit(ctx)
	c.logger.Debug(ctx, "cache hit", observe.F("key", key))
	return e.value, true
}

func (c *MemoryCache) recordMiss(ctx context.Context, key string) {
	c.stats.misses++
	c.metrics.RecordMiss(ctx)
	c.logger.Debug(ctx, "cache miss", observe.F("key", key))
}

// Set stores value under key, replacing any previous entry and its tags.
// Admitting a new key into a full cache evicts one entry first.
//
// Failed writes are logged and returned; the cache is left unchanged.
func (c *MemoryCache) Set(ctx context.Context, key string, value any, opts ...SetOption) error {
	var so setOptions
	for _, opt := range opts {
		opt(&so)
	}

	tags, err := c.validateSet(key, so)
	if err != nil {
		c.logger.Error(ctx, "cache set failed", observe.F("key", key), observe.F("error", err))
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Error(ctx, "cache set failed", observe.F("key", key), observe.F("error", ErrClosed))
		return ErrClosed
	}

	now := c.now()
	ttl := c.cfg.DefaultTTL
	if so.hasTTL {
		ttl = so.ttl
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	prev, exists := c.entries[key]
	if !exists && len(c.entries) >= c.cfg.MaxSize {
		c.evictLocked(ctx)
	}

	e := &entry{
		value:          value,
		createdAt:      now,
		expiresAt:      expiresAt,
		lastAccessedAt: now,
		tags:           tags,
	}
	if exists {
		e.seq = prev.seq
		c.tags.replace(key, prev.tags, tags)
	} else {
		c.seq++
		e.seq = c.seq
		c.tags.replace(key, nil, tags)
	}
	c.entries[key] = e

	c.stats.sets++
	c.metrics.RecordSet(ctx)
	c.logger.Debug(ctx, "cache set",
		observe.F("key", key),
		observe.F("ttl_ms", ttl.Milliseconds()),
		observe.F("tags", tags),
		observe.F("overwrite", exists),
	)
	return nil
}

func (c *MemoryCache) validateSet(key string, so setOptions) ([]string, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if so.hasTTL && so.ttl < 0 {
		return nil, ErrInvalidTTL
	}
	return normalizeTags(so.tags)
}

// evictLocked removes the strategy's victim. An empty store is a no-op.
func (c *MemoryCache) evictLocked(ctx context.Context) {
	key, ok := selectVictim(c.entries, c.cfg.EvictionStrategy)
	if !ok {
		return
	}
	c.removeLocked(key, c.entries[key])
	c.stats.evictions++
	c.metrics.RecordEviction(ctx, string(c.cfg.EvictionStrategy))
	c.logger.Debug(ctx, "cache entry evicted",
		observe.F("key", key),
		observe.F("strategy", string(c.cfg.EvictionStrategy)),
	)
}

// removeLocked drops key from the store and the tag index without
// touching any counter.
func (c *MemoryCache) removeLocked(key string, e *entry) {
	c.tags.replace(key, e.tags, nil)
	delete(c.entries, key)
}

// deleteLocked is the shared delete path. It reports whether key existed.
func (c *MemoryCache) deleteLocked(key string) bool {
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(key, e)
	c.stats.deletes++
	return true
}

// Delete removes key. Idempotent - no error on miss.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deleteLocked(key) {
		c.metrics.RecordDelete(ctx, 1)
		c.logger.Debug(ctx, "cache delete", observe.F("key", key))
	}
	return nil
}

// DeleteMany deletes each key in turn and returns how many existed.
func (c *MemoryCache) DeleteMany(ctx context.Context, keys ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range keys {
		if c.deleteLocked(key) {
			removed++
		}
	}
	c.metrics.RecordDelete(ctx, removed)
	c.logger.Debug(ctx, "cache delete many",
		observe.F("requested", len(keys)),
		observe.F("removed", removed),
	)
	return removed
}

// InvalidateByTags deletes every entry carrying at least one of tags.
func (c *MemoryCache) InvalidateByTags(ctx context.Context, tags ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.tags.union(tags) {
		if c.deleteLocked(key) {
			removed++
		}
	}
	c.metrics.RecordDelete(ctx, removed)
	c.logger.Info(ctx, "cache invalidated by tags",
		observe.F("tags", tags),
		observe.F("removed", removed),
	)
	return removed
}

// InvalidateByPattern deletes every entry whose key matches glob.
// See Pattern for the glob syntax.
func (c *MemoryCache) InvalidateByPattern(ctx context.Context, glob string) int {
	p := CompilePattern(glob)

	c.mu.Lock()
	defer c.mu.Unlock()

	var matched []string
	for key := range c.entries {
		if p.Match(key) {
			matched = append(matched, key)
		}
	}
	for _, key := range matched {
		c.deleteLocked(key)
	}
	c.metrics.RecordDelete(ctx, len(matched))
	c.logger.Info(ctx, "cache invalidated by pattern",
		observe.F("pattern", glob),
		observe.F("removed", len(matched)),
	)
	return len(matched)
}

// Clear removes every entry and resets all counters.
func (c *MemoryCache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := len(c.entries)
	c.entries = make(map[string]*entry)
	c.tags = newTagIndex()
	c.stats.reset()
	c.logger.Info(ctx, "cache cleared", observe.F("removed", size))
}

// Stats returns a snapshot of the counters. CurrentSize is live and
// LastUpdated is the time of the call.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.snapshot(len(c.entries), c.cfg.MaxSize, c.now())
}

// ResetStats zeroes the counters. Entries are untouched.
func (c *MemoryCache) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.reset()
}

// Metadata returns the bookkeeping of key without counting as a read.
// An expired entry is removed and reported as absent, the same as Get.
func (c *MemoryCache) Metadata(ctx context.Context, key string) (Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.liveLocked(ctx, key)
	if !ok {
		return Metadata{}, false
	}
	return e.metadata(), true
}

// Has reports whether key holds a live entry. It does not count as a read.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.liveLocked(ctx, key)
	return ok
}

// liveLocked returns the entry under key, expiring it lazily if needed.
func (c *MemoryCache) liveLocked(ctx context.Context, key string) (*entry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(c.now()) {
		c.removeLocked(key, e)
		c.metrics.RecordExpiration(ctx, 1)
		return nil, false
	}
	return e, true
}

// Len returns the number of stored entries, including expired ones not yet
// cleaned up.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the sorted keys of all unexpired entries.
func (c *MemoryCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	keys := make([]string, 0, len(c.entries))
	for key, e := range c.entries {
		if !e.expired(now) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys
}

// Cleanup runs one expiration pass and returns the number of entries
// removed. The cleanup counter only moves when something was removed.
func (c *MemoryCache) Cleanup(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0
	}

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			c.removeLocked(key, e)
			removed++
		}
	}
	if removed == 0 {
		return 0
	}

	c.stats.cleanups++
	c.metrics.RecordExpiration(ctx, removed)
	c.metrics.RecordCleanup(ctx, removed)
	c.logger.Info(ctx, "cache cleanup removed expired entries",
		observe.F("removed", removed),
		observe.F("remaining", len(c.entries)),
	)
	return removed
}

func (c *MemoryCache) cleanupLoop(interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.shutdown:
			return
		case <-ticker.C:
			c.Cleanup(context.Background())
		}
	}
}

// Destroy stops the background expiration pass and releases all entries.
// It is idempotent. After Destroy, reads miss and Set returns ErrClosed.
func (c *MemoryCache) Destroy() {
	c.closeOnce.Do(func() {
		close(c.shutdown)
		<-c.done

		c.mu.Lock()
		size := len(c.entries)
		c.closed = true
		c.entries = make(map[string]*entry)
		c.tags = newTagIndex()
		c.mu.Unlock()

		c.logger.Info(context.Background(), "cache destroyed", observe.F("released", size))
	})
}

// Closed reports whether Destroy has been called.
func (c *MemoryCache) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

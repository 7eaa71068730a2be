// Package cache provides an in-process key/value cache with TTL expiry,
// size-bounded eviction (LRU, FIFO or LFU), tag and glob-pattern bulk
// invalidation, a background expiration pass, and hit/miss statistics.
//
// MemoryCache is the engine. Entries are written with optional per-call
// TTL and tags:
//
//	c, err := cache.NewMemoryCache(cache.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer c.Destroy()
//
//	_ = c.Set(ctx, "user:42", u, cache.WithTTL(time.Minute), cache.WithTags("users", "user:42"))
//	c.InvalidateByTags(ctx, "users")
//	c.InvalidateByPattern(ctx, "session:*")
//
// Expired entries are removed lazily when read and actively by a periodic
// pass every Config.CleanupInterval. ReadThrough adds load-on-miss with
// per-key call deduplication, keyed by a Keyer.
package cache

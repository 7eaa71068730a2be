package cache

import (
	"context"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Cache is the minimal read/write contract of a cache.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: ctx carries logging/tracing scope; operations do not block on it.
// - Errors: Get never errors; it returns (nil, false) on miss or expiry.
type Cache interface {
	// Get retrieves a cached value. Returns (nil, false) on miss.
	Get(ctx context.Context, key string) (any, bool)

	// Set stores a value. See WithTTL and WithTags.
	Set(ctx context.Context, key string, value any, opts ...SetOption) error

	// Delete removes a cached value. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error
}

// Invalidator is the bulk-removal side of a cache, as driven by the
// invalidation rule engine.
type Invalidator interface {
	// InvalidateByTags removes every entry carrying any of tags.
	InvalidateByTags(ctx context.Context, tags ...string) int

	// InvalidateByPattern removes every entry whose key matches the glob.
	InvalidateByPattern(ctx context.Context, glob string) int

	// DeleteMany removes each key, returning how many existed.
	DeleteMany(ctx context.Context, keys ...string) int
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

var (
	_ Cache       = (*MemoryCache)(nil)
	_ Invalidator = (*MemoryCache)(nil)
)

package cache

import "errors"

// Sentinel errors for cache operations.
var (
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
	ErrInvalidTTL = errors.New("cache: ttl must not be negative")
	ErrInvalidTag = errors.New("cache: tag is invalid")

	// ErrClosed is returned by writes after Destroy.
	ErrClosed = errors.New("cache: cache is destroyed")
)

// Configuration errors.
var (
	ErrInvalidConfig           = errors.New("cache: invalid configuration")
	ErrUnknownEvictionStrategy = errors.New("cache: unknown eviction strategy")
)

package cache

import (
	"fmt"
	"strings"
	"time"
)

// EvictionStrategy selects the victim when a full cache admits a new key.
type EvictionStrategy string

const (
	// EvictLRU evicts the entry that was read least recently.
	EvictLRU EvictionStrategy = "LRU"
	// EvictFIFO evicts the entry that was written earliest.
	EvictFIFO EvictionStrategy = "FIFO"
	// EvictLFU evicts the entry with the fewest reads.
	EvictLFU EvictionStrategy = "LFU"
)

// ParseEvictionStrategy parses a strategy name case-insensitively.
// The empty string selects EvictLRU.
func ParseEvictionStrategy(s string) (EvictionStrategy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "LRU":
		return EvictLRU, nil
	case "FIFO":
		return EvictFIFO, nil
	case "LFU":
		return EvictLFU, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEvictionStrategy, s)
	}
}

// UnmarshalText lets configuration files spell strategies in any case.
func (s *EvictionStrategy) UnmarshalText(text []byte) error {
	parsed, err := ParseEvictionStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Config configures a MemoryCache.
type Config struct {
	// DefaultTTL applies when Set is called without WithTTL.
	// Zero means entries never expire unless a TTL is given per call.
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// MaxSize is the entry-count ceiling. Inserting a new key into a full
	// cache evicts exactly one entry first. Must be at least 1.
	MaxSize int `yaml:"max_size"`

	// EnableStats controls metric export only. The counters reported by
	// Stats are always maintained.
	EnableStats bool `yaml:"enable_stats"`

	// EnableEventInvalidation tells the host whether to wire an
	// invalidation engine. The cache itself never reads it.
	EnableEventInvalidation bool `yaml:"enable_event_invalidation"`

	// CleanupInterval is the period of the background expiration pass.
	// Zero disables the background pass; expiry is then lazy only.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// EvictionStrategy is LRU, FIFO or LFU. Empty means LRU.
	EvictionStrategy EvictionStrategy `yaml:"eviction_strategy"`

	// EnableCompression is accepted for compatibility and has no effect.
	EnableCompression bool `yaml:"enable_compression"`
}

// DefaultConfig returns the default cache configuration.
// DefaultTTL: 5 minutes, MaxSize: 1000, CleanupInterval: 1 minute, LRU.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:              5 * time.Minute,
		MaxSize:                 1000,
		EnableStats:             true,
		EnableEventInvalidation: true,
		CleanupInterval:         time.Minute,
		EvictionStrategy:        EvictLRU,
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.DefaultTTL < 0 {
		return fmt.Errorf("%w: default ttl must not be negative, got %s", ErrInvalidConfig, c.DefaultTTL)
	}
	if c.MaxSize < 1 {
		return fmt.Errorf("%w: max size must be at least 1, got %d", ErrInvalidConfig, c.MaxSize)
	}
	if c.CleanupInterval < 0 {
		return fmt.Errorf("%w: cleanup interval must not be negative, got %s", ErrInvalidConfig, c.CleanupInterval)
	}
	if _, err := ParseEvictionStrategy(string(c.EvictionStrategy)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

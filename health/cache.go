package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/tagcache/cache"
)

// CacheSource is the part of a cache the checker inspects.
// *cache.MemoryCache satisfies it.
type CacheSource interface {
	Stats() cache.Stats
	Closed() bool
}

// CacheCheckerConfig configures a CacheChecker.
type CacheCheckerConfig struct {
	// Name is reported by Name(). Default: "cache".
	Name string `yaml:"name"`

	// FillWarning is the size/max ratio at or above which the cache is
	// degraded. Default: 0.9.
	FillWarning float64 `yaml:"fill_warning"`

	// MinHitRate below which the cache is degraded, once MinSamples lookups
	// have been counted. Zero disables the check.
	MinHitRate float64 `yaml:"min_hit_rate"`

	// MinSamples is the lookup count required before MinHitRate applies.
	// Default: 100.
	MinSamples uint64 `yaml:"min_samples"`
}

// CacheChecker reports cache health from its statistics.
type CacheChecker struct {
	source CacheSource
	config CacheCheckerConfig
}

// NewCacheChecker creates a checker for source.
func NewCacheChecker(source CacheSource, config CacheCheckerConfig) *CacheChecker {
	if config.Name == "" {
		config.Name = "cache"
	}
	if config.FillWarning <= 0 || config.FillWarning > 1 {
		config.FillWarning = 0.9
	}
	if config.MinSamples == 0 {
		config.MinSamples = 100
	}
	return &CacheChecker{source: source, config: config}
}

// Name returns the configured checker name.
func (c *CacheChecker) Name() string {
	return c.config.Name
}

// Check reports Unhealthy for a destroyed cache, Degraded when it is nearly
// full or its hit rate is poor, and Healthy otherwise.
func (c *CacheChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}
	if c.source.Closed() {
		return Unhealthy("cache is closed", ErrCacheClosed)
	}

	s := c.source.Stats()
	fill := 0.0
	if s.MaxSize > 0 {
		fill = float64(s.CurrentSize) / float64(s.MaxSize)
	}
	lookups := s.Hits + s.Misses

	details := map[string]any{
		"size":      s.CurrentSize,
		"max_size":  s.MaxSize,
		"fill":      fill,
		"hits":      s.Hits,
		"misses":    s.Misses,
		"hit_rate":  s.HitRate,
		"evictions": s.Evictions,
		"cleanups":  s.Cleanups,
	}

	if fill >= c.config.FillWarning {
		return Degraded(fmt.Sprintf("cache %.0f%% full", fill*100)).WithDetails(details)
	}
	if c.config.MinHitRate > 0 && lookups >= c.config.MinSamples && s.HitRate < c.config.MinHitRate {
		return Degraded(fmt.Sprintf("hit rate %.2f below %.2f", s.HitRate, c.config.MinHitRate)).
			WithDetails(details)
	}
	return Healthy(fmt.Sprintf("%d/%d entries", s.CurrentSize, s.MaxSize)).WithDetails(details)
}

var _ CacheSource = (*cache.MemoryCache)(nil)

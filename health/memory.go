package health

import (
	"context"
	"fmt"
	"runtime"
)

// MemoryCheckerConfig configures a MemoryChecker.
type MemoryCheckerConfig struct {
	// MaxHeapBytes is the heap size the process is expected to stay under.
	// Zero uses the memory obtained from the OS, which only catches
	// fragmentation.
	MaxHeapBytes uint64 `yaml:"max_heap_bytes"`

	// WarningThreshold is the heap ratio that degrades. Default: 0.8.
	WarningThreshold float64 `yaml:"warning_threshold"`

	// CriticalThreshold is the heap ratio that fails. Default: 0.95.
	CriticalThreshold float64 `yaml:"critical_threshold"`
}

// MemoryChecker reports process heap usage. An in-memory cache's entries
// live on this heap, so it complements CacheChecker's entry-count view.
type MemoryChecker struct {
	config  MemoryCheckerConfig
	readMem  func(*runtime.MemStats)
}

// NewMemoryChecker creates a heap checker.
func NewMemoryChecker(config MemoryCheckerConfig) *MemoryChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.8
	}
	if config.CriticalThreshold <= config.WarningThreshold || config.CriticalThreshold > 1 {
		config.CriticalThreshold = max(0.95, config.WarningThreshold)
	}
	return &MemoryChecker{config: config, readMem: runtime.ReadMemStats}
}

// Name returns "memory".
func (m *MemoryChecker) Name() string {
	return "memory"
}

// Check compares the live heap against the configured limit.
func (m *MemoryChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	var stats runtime.MemStats
	m.readMem(&stats)

	limit := m.config.MaxHeapBytes
	if limit == 0 {
		limit = stats.HeapSys
	}
	if limit == 0 {
		return Healthy("memory stats unavailable")
	}

	ratio := float64(stats.HeapAlloc) / float64(limit)
	details := map[string]any{
		"heap_alloc_bytes": stats.HeapAlloc,
		"heap_limit_bytes": limit,
		"heap_objects":     stats.HeapObjects,
		"usage_percent":    ratio * 100,
		"num_gc":           stats.NumGC,
		"goroutines":       runtime.NumGoroutine(),
	}

	switch {
	case ratio >= m.config.CriticalThreshold:
		return Unhealthy(fmt.Sprintf("heap usage critical: %.1f%%", ratio*100), ErrCheckFailed).
			WithDetails(details)
	case ratio >= m.config.WarningThreshold:
		return Degraded(fmt.Sprintf("heap usage high: %.1f%%", ratio*100)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("heap usage normal: %.1f%%", ratio*100)).WithDetails(details)
	}
}

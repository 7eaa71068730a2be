package cache

import "time"

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Sets      uint64 `json:"sets"`
	Deletes   uint64 `json:"deletes"`
	Cleanups  uint64 `json:"cleanups"`
	Evictions uint64 `json:"evictions"`

	CurrentSize int       `json:"current_size"`
	MaxSize     int       `json:"max_size"`
	HitRate     float64   `json:"hit_rate"`
	LastUpdated time.Time `json:"last_updated"`
}

// statsCollector holds the monotonic counters. It is guarded by the
// owning cache's lock, not its own.
type statsCollector struct {
	hits      uint64
	misses    uint64
	sets      uint64
	deletes   uint64
	cleanups  uint64
	evictions uint64
}

func (s *statsCollector) reset() {
	*s = statsCollector{}
}

func (s *statsCollector) snapshot(size, maxSize int, now time.Time) Stats {
	return Stats{
		Hits:        s.hits,
		Misses:      s.misses,
		Sets:        s.sets,
		Deletes:     s.deletes,
		Cleanups:    s.cleanups,
		Evictions:   s.evictions,
		CurrentSize: size,
		MaxSize:     maxSize,
		HitRate:     hitRate(s.hits, s.misses),
		LastUpdated: now,
	}
}

// hitRate is hits/(hits+misses), or 0 before any lookup.
func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

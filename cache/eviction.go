package cache

// selectVictim scans entries and picks the one the strategy ranks lowest.
// Ties go to the earliest-inserted key. It reports false for an empty store.
func selectVictim(entries map[string]*entry, strategy EvictionStrategy) (string, bool) {
	var (
		victimKey string
		victim    *entry
	)
	for key, e := range entries {
		if victim == nil || evictsBefore(strategy, e, victim) {
			victimKey, victim = key, e
		}
	}
	return victimKey, victim != nil
}

// evictsBefore reports whether a should be evicted ahead of b.
func evictsBefore(strategy EvictionStrategy, a, b *entry) bool {
	switch strategy {
	case EvictFIFO:
		if !a.createdAt.Equal(b.createdAt) {
			return a.createdAt.Before(b.createdAt)
		}
	case EvictLFU:
		if a.accessCount != b.accessCount {
			return a.accessCount < b.accessCount
		}
	default:
		if !a.lastAccessedAt.Equal(b.lastAccessedAt) {
			return a.lastAccessedAt.Before(b.lastAccessedAt)
		}
	}
	return a.seq < b.seq
}

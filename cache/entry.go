package cache

import (
	"slices"
	"time"
)

type entry struct {
	value          any
	createdAt      time.Time
	expiresAt      time.Time // zero => never expires
	lastAccessedAt time.Time
	accessCount    uint64
	tags           []string

	// seq is the insertion order of the key. It survives overwrites and
	// breaks eviction ties in favour of the earliest-inserted key.
	seq uint64
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func (e *entry) touch(now time.Time) {
	e.lastAccessedAt = now
	e.accessCount++
}

// Metadata is a read-only view of an entry's bookkeeping.
type Metadata struct {
	// ExpiresAt is zero for entries that never expire.
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	AccessCount    uint64    `json:"access_count"`
	Tags           []string  `json:"tags,omitempty"`
}

func (e *entry) metadata() Metadata {
	return Metadata{
		ExpiresAt:      e.expiresAt,
		CreatedAt:      e.createdAt,
		LastAccessedAt: e.lastAccessedAt,
		AccessCount:    e.accessCount,
		Tags:           slices.Clone(e.tags),
	}
}

// normalizeTags drops duplicates, keeping first-seen order.
func normalizeTags(tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			return nil, ErrInvalidTag
		}
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out, nil
}

package invalidation

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Event is a domain event that may invalidate cache entries.
type Event struct {
	Type       string    `json:"type"`
	Data       any       `json:"data,omitempty"`
	OccurredAt time.Time `json:"occurred_at,omitzero"`
}

// KeyGenerator derives the cache keys an event invalidates.
// It must be a pure function of the event.
type KeyGenerator func(Event) ([]string, error)

// Rule maps an event type to the tags and keys it invalidates.
type Rule struct {
	// ID identifies the rule. Unique per Engine.
	ID string

	// EventType is matched exactly, or as a prefix when it ends in '*'.
	EventType string

	// Tags are invalidated with InvalidateByTags when the rule fires.
	Tags []string

	// KeyGenerator, when set, yields keys deleted when the rule fires.
	KeyGenerator KeyGenerator

	// Enabled rules take part in matching.
	Enabled bool

	// Priority orders matching rules; higher runs first.
	Priority int
}

// Matches reports whether the rule fires for eventType. Disabled rules
// never match.
func (r Rule) Matches(eventType string) bool {
	if !r.Enabled {
		return false
	}
	if prefix, ok := strings.CutSuffix(r.EventType, "*"); ok {
		return strings.HasPrefix(eventType, prefix)
	}
	return r.EventType == eventType
}

// Validate checks that the rule is registrable.
func (r Rule) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidRule)
	case r.EventType == "":
		return fmt.Errorf("%w: rule %q has no event type", ErrInvalidRule, r.ID)
	case len(r.Tags) == 0 && r.KeyGenerator == nil:
		return fmt.Errorf("%w: rule %q has neither tags nor a key generator", ErrInvalidRule, r.ID)
	case slices.Contains(r.Tags, ""):
		return fmt.Errorf("%w: rule %q has an empty tag", ErrInvalidRule, r.ID)
	}
	return nil
}

func (r Rule) clone() Rule {
	r.Tags = slices.Clone(r.Tags)
	return r
}

// Invalidator is the cache surface the engine drives.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Both methods return the number of entries removed.
type Invalidator interface {
	InvalidateByTags(ctx context.Context, tags ...string) int
	DeleteMany(ctx context.Context, keys ...string) int
}

// Result summarizes one HandleEvent call.
type Result struct {
	// Matched lists the IDs of fired rules in evaluation order.
	Matched []string `json:"matched"`

	// Invalidated counts entries removed across all rules.
	Invalidated int `json:"invalidated"`

	// Failed lists the IDs of rules whose key generator failed.
	Failed []string `json:"failed,omitempty"`
}

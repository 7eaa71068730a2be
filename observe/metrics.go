package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CacheMetrics records cache engine activity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly; callers may hold locks.
// - Errors: implementations must not panic.
type CacheMetrics interface {
	RecordHit(ctx context.Context)
	RecordMiss(ctx context.Context)
	RecordSet(ctx context.Context)
	RecordDelete(ctx context.Context, n int)
	RecordEviction(ctx context.Context, strategy string)
	RecordExpiration(ctx context.Context, n int)
	RecordCleanup(ctx context.Context, removed int)
}

// RuleMetrics records invalidation rule engine activity.
type RuleMetrics interface {
	// RecordEvent records one handled event and how long handling took.
	RecordEvent(ctx context.Context, eventType string, matched int, duration time.Duration)

	// RecordRuleMatch records that a rule fired.
	RecordRuleMatch(ctx context.Context, ruleID string)

	// RecordRuleFailure records that a rule's key generator failed.
	RecordRuleFailure(ctx context.Context, ruleID string)
}

type cacheMetrics struct {
	attrs       metric.MeasurementOption
	hits        metric.Int64Counter
	misses      metric.Int64Counter
	sets        metric.Int64Counter
	deletes     metric.Int64Counter
	evictions   metric.Int64Counter
	expirations metric.Int64Counter
	cleanups    metric.Int64Counter
}

// NewCacheMetrics creates CacheMetrics backed by meter. Every measurement
// carries a cache.name attribute.
func NewCacheMetrics(meter metric.Meter, cacheName string) (CacheMetrics, error) {
	m := &cacheMetrics{
		attrs: metric.WithAttributes(attribute.String("cache.name", cacheName)),
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.hits, "tagcache.cache.hits", "Number of cache hits", "{hit}"},
		{&m.misses, "tagcache.cache.misses", "Number of cache misses", "{miss}"},
		{&m.sets, "tagcache.cache.sets", "Number of cache writes", "{set}"},
		{&m.deletes, "tagcache.cache.deletes", "Number of entries deleted", "{entry}"},
		{&m.evictions, "tagcache.cache.evictions", "Number of entries evicted at capacity", "{entry}"},
		{&m.expirations, "tagcache.cache.expirations", "Number of expired entries removed", "{entry}"},
		{&m.cleanups, "tagcache.cache.cleanups", "Number of cleanup passes that removed entries", "{pass}"},
	}

	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	return m, nil
}

func (m *cacheMetrics) RecordHit(ctx context.Context)  { m.hits.Add(ctx, 1, m.attrs) }
func (m *cacheMetrics) RecordMiss(ctx context.Context) { m.misses.Add(ctx, 1, m.attrs) }
func (m *cacheMetrics) RecordSet(ctx context.Context)  { m.sets.Add(ctx, 1, m.attrs) }

func (m *cacheMetrics) RecordDelete(ctx context.Context, n int) {
	if n > 0 {
		m.deletes.Add(ctx, int64(n), m.attrs)
	}
}

func (m *cacheMetrics) RecordEviction(ctx context.Context, strategy string) {
	m.evictions.Add(ctx, 1, m.attrs, metric.WithAttributes(attribute.String("cache.eviction_strategy", strategy)))
}

func (m *cacheMetrics) RecordExpiration(ctx context.Context, n int) {
	if n > 0 {
		m.expirations.Add(ctx, int64(n), m.attrs)
	}
}

func (m *cacheMetrics) RecordCleanup(ctx context.Context, removed int) {
	if removed > 0 {
		m.cleanups.Add(ctx, 1, m.attrs)
	}
}

type ruleMetrics struct {
	events       metric.Int64Counter
	matches      metric.Int64Counter
	failures     metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewRuleMetrics creates RuleMetrics backed by meter.
func NewRuleMetrics(meter metric.Meter) (RuleMetrics, error) {
	events, err := meter.Int64Counter(
		"tagcache.events.handled",
		metric.WithDescription("Number of domain events handled by the invalidation engine"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	matches, err := meter.Int64Counter(
		"tagcache.rule.matches",
		metric.WithDescription("Number of invalidation rules fired"),
		metric.WithUnit("{match}"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"tagcache.rule.failures",
		metric.WithDescription("Number of invalidation rules whose key generator failed"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"tagcache.events.duration_ms",
		metric.WithDescription("Event handling duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &ruleMetrics{
		events:       events,
		matches:      matches,
		failures:     failures,
		durationHist: durationHist,
	}, nil
}

func (m *ruleMetrics) RecordEvent(ctx context.Context, eventType string, matched int, duration time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("event.type", eventType),
		attribute.Bool("event.matched", matched > 0),
	)
	m.events.Add(ctx, 1, opt)
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *ruleMetrics) RecordRuleMatch(ctx context.Context, ruleID string) {
	m.matches.Add(ctx, 1, metric.WithAttributes(attribute.String("rule.id", ruleID)))
}

func (m *ruleMetrics) RecordRuleFailure(ctx context.Context, ruleID string) {
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("rule.id", ruleID)))
}

type nopCacheMetrics struct{}

// NopCacheMetrics returns CacheMetrics that record nothing.
func NopCacheMetrics() CacheMetrics { return nopCacheMetrics{} }

func (nopCacheMetrics) RecordHit(context.Context)              {}
func (nopCacheMetrics) RecordMiss(context.Context)             {}
func (nopCacheMetrics) RecordSet(context.Context)              {}
func (nopCacheMetrics) RecordDelete(context.Context, int)      {}
func (nopCacheMetrics) RecordEviction(context.Context, string) {}
func (nopCacheMetrics) RecordExpiration(context.Context, int)  {}
func (nopCacheMetrics) RecordCleanup(context.Context, int)     {}

type nopRuleMetrics struct{}

// NopRuleMetrics returns RuleMetrics that record nothing.
func NopRuleMetrics() RuleMetrics { return nopRuleMetrics{} }

func (nopRuleMetrics) RecordEvent(context.Context, string, int, time.Duration) {}
func (nopRuleMetrics) RecordRuleMatch(context.Context, string)                 {}
func (nopRuleMetrics) RecordRuleFailure(context.Context, string)               {}

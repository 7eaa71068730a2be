// Package observe provides observability primitives for the cache engine and
// the invalidation rule engine.
//
// It is a pure instrumentation library: no caching, no transport, no I/O
// beyond exporter setup and log writes. The cache and invalidation packages
// depend only on the Logger, CacheMetrics, RuleMetrics and Tracer
// abstractions; hosts build concrete ones from an Observer.
package observe

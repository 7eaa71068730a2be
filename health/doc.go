// Package health reports the health of a cache host.
//
// A Checker reports one component as Healthy, Degraded or Unhealthy.
// CacheChecker derives that from a cache's statistics and MemoryChecker
// from the process heap. An Aggregator runs several checkers together
// and the HTTP handlers expose the result as probes:
//
//	agg := health.NewAggregator()
//	agg.Register("cache", health.NewCacheChecker(memCache, health.CacheCheckerConfig{}))
//	agg.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{}))
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg) // /healthz, /readyz, /health
package health

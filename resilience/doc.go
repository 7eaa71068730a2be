// Package resilience protects cache-miss loaders.
//
// A Guard composes an optional circuit breaker, retry policy and per-attempt
// timeout around a loader call. cache.ReadThrough accepts any value with a
// matching Execute method, so a Guard plugs in directly:
//
//	g := resilience.NewGuard(resilience.GuardConfig{
//	    Timeout: 2 * time.Second,
//	    Retry:   resilience.RetryConfig{MaxAttempts: 3},
//	    Breaker: resilience.BreakerConfig{MaxFailures: 5},
//	})
//	rt := cache.NewReadThrough(c, nil, nil, cache.WithLoadGuard(g))
//
// Loader errors are never cached by ReadThrough, so a failed guarded load
// is simply retried on the next miss once the breaker allows it.
package resilience

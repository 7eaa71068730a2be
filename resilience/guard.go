package resilience

import (
	"context"
	"errors"
	"time"
)

// GuardConfig configures a Guard. Zero values disable each layer.
type GuardConfig struct {
	// Timeout bounds a single loader attempt.
	Timeout time.Duration `yaml:"timeout"`
	Retry   RetryConfig   `yaml:"retry"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// Guard runs loaders through breaker, retry and timeout, outermost first.
// The breaker sees one outcome per guarded call, after retries.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: returns the loader's last error, ErrTimeout, or ErrCircuitOpen.
type Guard struct {
	timeout time.Duration
	retry   *Retry
	breaker *Breaker
}

// NewGuard builds a Guard from config.
func NewGuard(config GuardConfig) *Guard {
	g := &Guard{timeout: config.Timeout}
	if config.Retry.MaxAttempts > 1 {
		g.retry = NewRetry(config.Retry)
	}
	if config.Breaker.MaxFailures > 0 {
		g.breaker = NewBreaker(config.Breaker)
	}
	return g
}

// Breaker returns the guard's breaker, or nil if none is configured.
func (g *Guard) Breaker() *Breaker { return g.breaker }

// Execute runs op under the configured layers.
func (g *Guard) Execute(ctx context.Context, op func(context.Context) error) error {
	run := op
	if g.timeout > 0 {
		inner := run
		run = func(ctx context.Context) error { return withTimeout(ctx, g.timeout, inner) }
	}
	if g.retry != nil {
		inner := run
		run = func(ctx context.Context) error { return g.retry.Execute(ctx, inner) }
	}
	if g.breaker != nil {
		inner := run
		run = func(ctx context.Context) error { return g.breaker.Execute(ctx, inner) }
	}
	return run(ctx)
}

// withTimeout runs op with a deadline. A loader that ignores its context is
// abandoned; its result is dropped.
func withTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(ctx) }()

	select {
	case err := <-done:
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}

package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryConfig configures Retry. A MaxAttempts of 0 or 1 disables retries.
type RetryConfig struct {
	// MaxAttempts counts the first call.
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay is the wait before the second attempt. Default: 50ms
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay caps the doubled delay. Default: 2s
	MaxDelay time.Duration `yaml:"max_delay"`

	// Jitter adds up to 25% random delay to each wait.
	Jitter bool `yaml:"jitter"`

	// RetryIf reports whether err is worth another attempt. By default every
	// error except ErrCircuitOpen and caller cancellation is retried.
	RetryIf func(err error) bool `yaml:"-"`
}

// Retry re-runs a failed loader with exponential backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a Retry, filling unset delays with defaults.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 50 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 2 * time.Second
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return !errors.Is(err, ErrCircuitOpen) }
	}
	return &Retry{config: config}
}

// Execute calls op until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached. The last error is returned.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = op(ctx)
		if err == nil || ctx.Err() != nil || !r.config.RetryIf(err) || attempt >= r.config.MaxAttempts {
			return err
		}

		timer := time.NewTimer(r.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// delay returns the wait after the given failed attempt.
func (r *Retry) delay(attempt int) time.Duration {
	d := r.config.InitialDelay
	for range attempt - 1 {
		d *= 2
		if d >= r.config.MaxDelay {
			break
		}
	}
	d = min(d, r.config.MaxDelay)

	if r.config.Jitter && d >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		d += time.Duration(rand.Int64N(int64(d / 4)))
	}
	return d
}

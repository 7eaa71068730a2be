package resilience

import (
	"context"
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Breaker. A zero MaxFailures disables the
// breaker inside a Guard.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures int `yaml:"max_failures"`

	// Cooldown is how long the breaker stays open before admitting a probe.
	// Default: 30s
	Cooldown time.Duration `yaml:"cooldown"`

	// IsFailure reports whether err counts against the breaker. By default
	// every non-nil error does.
	IsFailure func(err error) bool `yaml:"-"`

	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(from, to State) `yaml:"-"`
}

// Breaker stops calling a failing loader after MaxFailures consecutive
// failures. After Cooldown one probe call is admitted; its outcome closes
// or reopens the breaker.
//
// Context cancellation by the caller is not counted as a failure.
type Breaker struct {
	config BreakerConfig
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed Breaker.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	return &Breaker{config: config, now: time.Now}
}

// Execute runs op unless the breaker is open.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := op(ctx)
	b.record(ctx, err)
	return err
}

// State reports the current state, moving an expired open breaker to half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	from, to := b.refreshLocked()
	state := b.state
	b.mu.Unlock()
	b.notify(from, to)
	return state
}

// Failures reports the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the breaker and clears its failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.probing = false
	b.mu.Unlock()
	b.notify(from, StateClosed)
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	from, to := b.refreshLocked()
	var err error
	switch b.state {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if b.probing {
			err = ErrCircuitOpen
		} else {
			b.probing = true
		}
	}
	b.mu.Unlock()
	b.notify(from, to)
	return err
}

func (b *Breaker) record(ctx context.Context, err error) {
	failed := ctx.Err() == nil && b.config.IsFailure(err)

	b.mu.Lock()
	from := b.state
	switch b.state {
	case StateClosed:
		if !failed {
			b.failures = 0
			break
		}
		b.failures++
		if b.failures >= b.config.MaxFailures {
			b.open()
		}
	case StateHalfOpen:
		b.probing = false
		if failed {
			b.open()
		} else {
			b.state = StateClosed
			b.failures = 0
		}
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
}

func (b *Breaker) open() {
	b.state = StateOpen
	b.openedAt = b.now()
}

func (b *Breaker) refreshLocked() (from, to State) {
	from = b.state
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.config.Cooldown {
		b.state = StateHalfOpen
		b.probing = false
	}
	return from, b.state
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.config.OnStateChange != nil {
		b.config.OnStateChange(from, to)
	}
}

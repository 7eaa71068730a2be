package invalidation

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/tagcache/observe"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the diagnostic sink. Default: observe.NopLogger().
func WithLogger(l observe.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the rule metrics recorder. Default: observe.NopRuleMetrics().
func WithMetrics(m observe.RuleMetrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracer sets the tracer for HandleEvent spans. Default: observe.NopTracer().
func WithTracer(t observe.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

type registeredRule struct {
	rule Rule
	seq  uint64
}

// Engine evaluates events against registered rules and drives the cache.
//
// Contract:
//   - Concurrency: all methods are safe for concurrent use. The rule set is
//     snapshotted before invalidating, so rules may change while an event is
//     being handled without affecting it.
//   - Errors: HandleEvent only fails on key generator errors, and still
//     applies every other matching rule.
type Engine struct {
	target Invalidator

	mu    sync.RWMutex
	rules map[string]*registeredRule
	seq   uint64

	logger  observe.Logger
	metrics observe.RuleMetrics
	tracer  observe.Tracer
}

// NewEngine creates an engine driving target.
func NewEngine(target Invalidator, opts ...Option) (*Engine, error) {
	if target == nil {
		return nil, ErrNilInvalidator
	}
	e := &Engine{
		target:  target,
		rules:   make(map[string]*registeredRule),
		logger:  observe.NopLogger(),
		metrics: observe.NopRuleMetrics(),
		tracer:  observe.NopTracer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RegisterRule adds a rule. IDs must be unique.
func (e *Engine) RegisterRule(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[r.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateRule, r.ID)
	}
	e.seq++
	e.rules[r.ID] = &registeredRule{rule: r.clone(), seq: e.seq}

	e.logger.Info(context.Background(), "invalidation rule registered",
		observe.F("rule.id", r.ID),
		observe.F("event_type", r.EventType),
		observe.F("priority", r.Priority),
		observe.F("enabled", r.Enabled),
	)
	return nil
}

// UnregisterRule removes the rule with id.
func (e *Engine) UnregisterRule(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.rules[id]; !ok {
		return fmt.Errorf("%w: %q", ErrRuleNotFound, id)
	}
	delete(e.rules, id)

	e.logger.Info(context.Background(), "invalidation rule unregistered", observe.F("rule.id", id))
	return nil
}

// SetEnabled turns a rule on or off without changing its position.
func (e *Engine) SetEnabled(id string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	reg, ok := e.rules[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrRuleNotFound, id)
	}
	reg.rule.Enabled = enabled
	return nil
}

// Rule returns a copy of the rule with id.
func (e *Engine) Rule(id string) (Rule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	reg, ok := e.rules[id]
	if !ok {
		return Rule{}, false
	}
	return reg.rule.clone(), true
}

// Rules returns every registered rule, enabled or not, in evaluation order.
func (e *Engine) Rules() []Rule {
	return e.snapshot(func(Rule) bool { return true })
}

// MatchingRules returns the enabled rules that fire for eventType, in
// evaluation order.
func (e *Engine) MatchingRules(eventType string) []Rule {
	return e.snapshot(func(r Rule) bool { return r.Matches(eventType) })
}

func (e *Engine) snapshot(keep func(Rule) bool) []Rule {
	e.mu.RLock()
	regs := make([]*registeredRule, 0, len(e.rules))
	for _, reg := range e.rules {
		if keep(reg.rule) {
			regs = append(regs, &registeredRule{rule: reg.rule.clone(), seq: reg.seq})
		}
	}
	e.mu.RUnlock()

	slices.SortFunc(regs, func(a, b *registeredRule) int {
		if c := cmp.Compare(b.rule.Priority, a.rule.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]Rule, len(regs))
	for i, reg := range regs {
		out[i] = reg.rule
	}
	return out
}

// HandleEvent applies every matching rule to the cache. For each rule, tags
// are invalidated first, then generated keys are deleted.
//
// Generator errors and panics are recovered per rule, logged, and returned
// joined with ErrKeyGenerator once all rules have run.
func (e *Engine) HandleEvent(ctx context.Context, ev Event) (Result, error) {
	start := time.Now()
	ctx, span := e.tracer.StartSpan(ctx, "invalidation.handle_event",
		attribute.String("event.type", ev.Type),
	)

	rules := e.MatchingRules(ev.Type)
	res := Result{Matched: make([]string, 0, len(rules))}
	var errs []error

	for _, r := range rules {
		res.Matched = append(res.Matched, r.ID)
		e.metrics.RecordRuleMatch(ctx, r.ID)

		removed, err := e.apply(ctx, r, ev)
		res.Invalidated += removed
		if err != nil {
			res.Failed = append(res.Failed, r.ID)
			errs = append(errs, err)
			e.metrics.RecordRuleFailure(ctx, r.ID)
			e.logger.Error(ctx, "invalidation rule failed",
				observe.F("rule.id", r.ID),
				observe.F("event_type", ev.Type),
				observe.F("error", err),
			)
			continue
		}

		e.logger.Debug(ctx, "invalidation rule applied",
			observe.F("rule.id", r.ID),
			observe.F("event_type", ev.Type),
			observe.F("removed", removed),
		)
	}

	var err error
	if len(errs) > 0 {
		err = errors.Join(append([]error{ErrKeyGenerator}, errs...)...)
	}

	span.SetAttributes(
		attribute.Int("rules.matched", len(res.Matched)),
		attribute.Int("keys.invalidated", res.Invalidated),
	)
	e.tracer.EndSpan(span, err)
	e.metrics.RecordEvent(ctx, ev.Type, len(res.Matched), time.Since(start))

	if len(rules) == 0 {
		e.logger.Debug(ctx, "no invalidation rules matched", observe.F("event_type", ev.Type))
	}
	return res, err
}

// apply runs both effects of r. Tag invalidation happens even when the key
// generator later fails.
func (e *Engine) apply(ctx context.Context, r Rule, ev Event) (removed int, err error) {
	if len(r.Tags) > 0 {
		removed += e.target.InvalidateByTags(ctx, r.Tags...)
	}
	if r.KeyGenerator == nil {
		return removed, nil
	}

	keys, err := generateKeys(r, ev)
	if err != nil {
		return removed, err
	}
	if len(keys) > 0 {
		removed += e.target.DeleteMany(ctx, keys...)
	}
	return removed, nil
}

func generateKeys(r Rule, ev Event) (keys []string, err error) {
	defer func() {
		if p := recover(); p != nil {
			keys = nil
			err = fmt.Errorf("rule %q: key generator panicked: %v", r.ID, p)
		}
	}()

	keys, err = r.KeyGenerator(ev)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", r.ID, err)
	}
	return keys, nil
}

// Run handles events from ch until ch is closed (returning nil) or ctx is
// done (returning ctx.Err()). Handling errors are logged, never returned.
func (e *Engine) Run(ctx context.Context, ch <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if ev.OccurredAt.IsZero() {
				ev.OccurredAt = time.Now()
			}
			// Failures are already logged per rule.
			_, _ = e.HandleEvent(ctx, ev)
		}
	}
}

package cache

import (
	"time"

	"github.com/jonwraymond/tagcache/observe"
)

// Option configures a MemoryCache.
type Option func(*options)

type options struct {
	name    string
	logger  observe.Logger
	metrics observe.CacheMetrics
	now     func() time.Time
}

// WithName names the cache in log entries. Default: "default".
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the diagnostic sink. Default: observe.NopLogger().
func WithLogger(l observe.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder. It is ignored when
// Config.EnableStats is false.
func WithMetrics(m observe.CacheMetrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// SetOption configures a single Set call.
type SetOption func(*setOptions)

type setOptions struct {
	ttl    time.Duration
	hasTTL bool
	tags   []string
}

// WithTTL overrides Config.DefaultTTL for one write. Zero means the entry
// never expires.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = ttl
		o.hasTTL = true
	}
}

// WithTags attaches tags to the entry, replacing any it had before.
func WithTags(tags ...string) SetOption {
	return func(o *setOptions) {
		o.tags = append(o.tags, tags...)
	}
}

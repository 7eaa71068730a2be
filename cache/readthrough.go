package cache

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/tagcache/observe"
)

// Loader produces the value for a cache miss.
type Loader func(ctx context.Context) (any, error)

// LoadGuard runs a loader attempt under some protection policy, such as
// resilience.Guard.
type LoadGuard interface {
	Execute(ctx context.Context, op func(context.Context) error) error
}

// ReadThroughOption configures a ReadThrough.
type ReadThroughOption func(*ReadThrough)

// WithLoadGuard routes every loader call through g.
func WithLoadGuard(g LoadGuard) ReadThroughOption {
	return func(r *ReadThrough) { r.guard = g }
}

// ReadThrough fills a cache from loaders on miss. Concurrent misses for
// the same key share a single loader call. Errors are never cached.
type ReadThrough struct {
	cache *MemoryCache
	keyer Keyer
	mw    *observe.Middleware
	guard LoadGuard
	group singleflight.Group
}

// NewReadThrough creates a read-through front for c. A nil keyer selects
// DefaultKeyer; a nil middleware leaves loaders uninstrumented.
func NewReadThrough(c *MemoryCache, keyer Keyer, mw *observe.Middleware, opts ...ReadThroughOption) *ReadThrough {
	if keyer == nil {
		keyer = NewDefaultKeyer()
	}
	r := &ReadThrough{cache: c, keyer: keyer, mw: mw}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load returns the cached value for (namespace, input), calling load on a
// miss and storing its result with opts. If no key can be derived the
// loader runs without caching.
func (r *ReadThrough) Load(ctx context.Context, namespace string, input any, load Loader, opts ...SetOption) (any, error) {
	if r.mw != nil {
		load = Loader(r.mw.Wrap(namespace, observe.LoadFunc(load)))
	}

	key, err := r.keyer.Key(namespace, input)
	if err != nil {
		return r.call(ctx, load)
	}
	return r.getOrLoad(ctx, key, load, opts)
}

// GetOrLoad is Load with an explicit key.
func (r *ReadThrough) GetOrLoad(ctx context.Context, key string, load Loader, opts ...SetOption) (any, error) {
	return r.getOrLoad(ctx, key, load, opts)
}

func (r *ReadThrough) getOrLoad(ctx context.Context, key string, load Loader, opts []SetOption) (any, error) {
	if v, ok := r.cache.Get(ctx, key); ok {
		return v, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		v, err := r.call(ctx, load)
		if err != nil {
			return nil, err
		}
		// A rejected write is logged by Set; the caller still gets the value.
		_ = r.cache.Set(ctx, key, v, opts...)
		return v, nil
	})
	return v, err
}

// call runs load, under the guard when one is set. Each guarded attempt
// passes through the middleware separately.
func (r *ReadThrough) call(ctx context.Context, load Loader) (any, error) {
	if r.guard == nil {
		return load(ctx)
	}
	var v any
	err := r.guard.Execute(ctx, func(ctx context.Context) error {
		var err error
		v, err = load(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

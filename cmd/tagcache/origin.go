package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/tagcache/cache"
	"github.com/jonwraymond/tagcache/resilience"
)

const maxOriginBody = 4 << 20

var errOriginNotFound = errors.New("origin: not found")

// OriginConfig points GET /cache/{key} at an upstream HTTP service that is
// queried on a miss. Without a URL the route only serves cached entries.
type OriginConfig struct {
	URL   string                 `yaml:"url"`
	TTL   time.Duration          `yaml:"ttl"` // 0 uses cache.default_ttl
	Tags  []string               `yaml:"tags"`
	Guard resilience.GuardConfig `yaml:"guard"`
}

func (o OriginConfig) validate() error {
	if o.URL == "" {
		return nil
	}
	u, err := url.Parse(o.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("origin: url must be an absolute http(s) URL, got %q", o.URL)
	}
	if o.TTL < 0 {
		return fmt.Errorf("origin: ttl must not be negative, got %s", o.TTL)
	}
	return nil
}

func (o OriginConfig) setOptions() []cache.SetOption {
	var opts []cache.SetOption
	if o.TTL > 0 {
		opts = append(opts, cache.WithTTL(o.TTL))
	}
	if len(o.Tags) > 0 {
		opts = append(opts, cache.WithTags(o.Tags...))
	}
	return opts
}

// originLoader fetches <base>/<key>. JSON bodies are kept as raw JSON,
// anything else as a string.
func originLoader(client *http.Client, base, key string) cache.Loader {
	target := strings.TrimRight(base, "/") + "/" + url.PathEscape(key)
	return func(ctx context.Context) (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, errOriginNotFound
		case resp.StatusCode >= 300:
			return nil, fmt.Errorf("origin: %s returned %d", target, resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxOriginBody))
		if err != nil {
			return nil, err
		}
		if json.Valid(body) {
			return json.RawMessage(body), nil
		}
		return string(body), nil
	}
}

// newOriginGuard builds the loader guard. A missing key is an answer, not
// an outage: it is neither retried nor counted by the breaker.
func newOriginGuard(cfg resilience.GuardConfig) *resilience.Guard {
	cfg.Retry.RetryIf = func(err error) bool {
		return !errors.Is(err, errOriginNotFound) && !errors.Is(err, resilience.ErrCircuitOpen)
	}
	cfg.Breaker.IsFailure = func(err error) bool {
		return err != nil && !errors.Is(err, errOriginNotFound)
	}
	return resilience.NewGuard(cfg)
}

type entryView struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (a *app) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var (
		value any
		err   error
	)
	if a.readThrough == nil {
		v, ok := a.cache.Get(r.Context(), key)
		if !ok {
			err = errOriginNotFound
		}
		value = v
	} else {
		value, err = a.readThrough.GetOrLoad(r.Context(), key,
			originLoader(a.client, a.origin.URL, key), a.origin.setOptions()...)
	}

	if err != nil {
		http.Error(w, err.Error(), originStatus(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entryView{Key: key, Value: value})
}

func originStatus(err error) int {
	switch {
	case errors.Is(err, errOriginNotFound):
		return http.StatusNotFound
	case errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, resilience.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

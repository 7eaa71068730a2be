package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/tagcache/cache"
	"github.com/jonwraymond/tagcache/invalidation"
	"github.com/jonwraymond/tagcache/resilience"
)

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Cache.CleanupInterval = 0
	cfg.Observe.Metrics.Enabled = false
	cfg.Observe.Logging.Enabled = false
	cfg.Health.Memory.MaxHeapBytes = 1 << 40
	cfg.Rules = []RuleConfig{
		{ID: "user", EventType: "user.*", Tags: []string{"users"}, Keys: []string{"profile:{id}"}},
	}
	return cfg
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	return newTestAppWith(t, testConfig())
}

func newTestAppWith(t *testing.T, cfg Config) *app {
	t.Helper()
	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	t.Cleanup(func() { _ = a.close(context.Background()) })
	return a
}

func TestApp_EventFlow(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	_ = a.cache.Set(ctx, "users:list", []string{"a"}, cache.WithTags("users"))
	_ = a.cache.Set(ctx, "profile:7", "alice")
	_ = a.cache.Set(ctx, "profile:8", "bob")

	ch := make(chan invalidation.Event, 1)
	go func() {
		_ = readEvents(ctx, strings.NewReader(`{"type":"user.updated","data":{"id":7}}`), ch, a.logger)
	}()
	if err := a.engine.Run(ctx, ch); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := a.cache.Keys(); len(got) != 1 || got[0] != "profile:8" {
		t.Errorf("Keys = %v, want [profile:8]", got)
	}
}

func TestApp_Routes(t *testing.T) {
	a := newTestApp(t)
	_ = a.cache.Set(context.Background(), "k", 1)
	mux := a.routes()

	for _, path := range []string{"/healthz", "/readyz", "/health", "/metrics"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: Code = %d, want 200", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	var stats cache.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.CurrentSize != 1 || stats.Sets != 1 {
		t.Errorf("stats = %+v", stats)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rules", nil))
	if !strings.Contains(rec.Body.String(), `"id":"user"`) || !strings.Contains(rec.Body.String(), `"has_keys":true`) {
		t.Errorf("/rules body = %s", rec.Body.String())
	}
}

func TestApp_ReadinessAfterClose(t *testing.T) {
	a := newTestApp(t)
	a.cache.Destroy()

	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Code = %d, want 503 after Destroy", rec.Code)
	}
}

func TestApp_EventPumpDrainsFeed(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	_ = a.cache.Set(ctx, "profile:7", "alice")
	_ = a.cache.Set(ctx, "profile:8", "bob")

	feed := `{"type":"user.updated","data":{"id":7}}` + "\n" + `{"type":"user.deleted","data":{"id":8}}` + "\n"
	done := a.startEventPump(ctx, strings.NewReader(feed))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event pump did not finish at end of feed")
	}
	if n := a.cache.Len(); n != 0 {
		t.Errorf("Len = %d, want 0", n)
	}
}

func TestApp_EventPumpStopsOnCancel(t *testing.T) {
	a := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = a.cache.Set(ctx, "profile:7", "alice")

	pr, pw := io.Pipe()
	defer pw.Close()
	done := a.startEventPump(ctx, pr)

	go func() { _, _ = io.WriteString(pw, `{"type":"user.updated","data":{"id":7}}`+"\n") }()
	deadline := time.Now().Add(2 * time.Second)
	for a.cache.Has(ctx, "profile:7") {
		if time.Now().After(deadline) {
			t.Fatal("event was not applied")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event pump still running after cancel")
	}

	// The feed is still open; once the pump is done the cache can be
	// destroyed without an event racing it.
	a.cache.Destroy()
	if !a.cache.Closed() {
		t.Error("cache should be closed")
	}
}

func TestApp_CacheRouteWithoutOrigin(t *testing.T) {
	a := newTestApp(t)
	_ = a.cache.Set(context.Background(), "greeting", "hello")
	mux := a.routes()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cache/greeting", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Code = %d, want 200", rec.Code)
	}
	var got entryView
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Key != "greeting" || got.Value != "hello" {
		t.Errorf("entry = %+v", got)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cache/absent", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Code = %d, want 404", rec.Code)
	}
}

func TestApp_CacheRouteReadThrough(t *testing.T) {
	var hits = map[string]*atomic.Int32{
		"/user:1": {},
		"/absent": {},
		"/broken": {},
	}
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := hits[r.URL.Path]; ok {
			c.Add(1)
		}
		switch r.URL.Path {
		case "/user:1":
			_, _ = io.WriteString(w, `{"name":"alice"}`)
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer origin.Close()

	cfg := testConfig()
	cfg.Origin = OriginConfig{
		URL:  origin.URL,
		Tags: []string{"users"},
		Guard: resilience.GuardConfig{
			Timeout: time.Second,
			Retry:   resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond},
			Breaker: resilience.BreakerConfig{MaxFailures: 5},
		},
	}
	a := newTestAppWith(t, cfg)
	mux := a.routes()

	get := func(key string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cache/"+key, nil))
		return rec
	}

	for range 2 {
		rec := get("user:1")
		if rec.Code != http.StatusOK {
			t.Fatalf("Code = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), `"value":{"name":"alice"}`) {
			t.Errorf("body = %s", rec.Body.String())
		}
	}
	if n := hits["/user:1"].Load(); n != 1 {
		t.Errorf("origin hits for user:1 = %d, want 1", n)
	}
	if n := a.cache.InvalidateByTags(context.Background(), "users"); n != 1 {
		t.Errorf("InvalidateByTags = %d, want 1", n)
	}

	if rec := get("absent"); rec.Code != http.StatusNotFound {
		t.Errorf("absent: Code = %d, want 404", rec.Code)
	}
	if n := hits["/absent"].Load(); n != 1 {
		t.Errorf("origin hits for absent = %d, want 1 (not retried)", n)
	}

	if rec := get("broken"); rec.Code != http.StatusBadGateway {
		t.Errorf("broken: Code = %d, want 502", rec.Code)
	}
	if n := hits["/broken"].Load(); n != 2 {
		t.Errorf("origin hits for broken = %d, want 2 (retried)", n)
	}
	if a.cache.Has(context.Background(), "broken") {
		t.Error("failed load was cached")
	}
}

func TestOriginStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errOriginNotFound, http.StatusNotFound},
		{resilience.ErrCircuitOpen, http.StatusServiceUnavailable},
		{resilience.ErrTimeout, http.StatusGatewayTimeout},
		{io.ErrUnexpectedEOF, http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := originStatus(tt.err); got != tt.want {
			t.Errorf("originStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

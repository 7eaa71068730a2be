// Command tagcache runs an in-memory cache whose entries are invalidated by
// domain events read as JSON lines from stdin. It serves health probes and
// Prometheus metrics over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/tagcache/cache"
	"github.com/jonwraymond/tagcache/health"
	"github.com/jonwraymond/tagcache/invalidation"
	"github.com/jonwraymond/tagcache/observe"
)

var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("TAGCACHE_CONFIG"), "path to YAML config (env: TAGCACHE_CONFIG)")
	addr := flag.String("addr", "", "HTTP listen address, overrides the config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("tagcache", version)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tagcache:", err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdin); err != nil {
		fmt.Fprintln(os.Stderr, "tagcache:", err)
		os.Exit(1)
	}
}

// app is the wired set of components the host runs.
type app struct {
	obs    observe.Observer
	logger observe.Logger
	cache  *cache.MemoryCache
	engine *invalidation.Engine
	health *health.Aggregator

	origin      OriginConfig
	client      *http.Client
	readThrough *cache.ReadThrough
}

func newApp(ctx context.Context, cfg Config) (*app, error) {
	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, fmt.Errorf("observer: %w", err)
	}
	logger := obs.Logger()

	cacheMetrics, err := observe.NewCacheMetrics(obs.Meter(), "main")
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}
	mc, err := cache.NewMemoryCache(cfg.Cache,
		cache.WithName("main"),
		cache.WithLogger(logger),
		cache.WithMetrics(cacheMetrics),
	)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	ruleMetrics, err := observe.NewRuleMetrics(obs.Meter())
	if err != nil {
		mc.Destroy()
		return nil, fmt.Errorf("rule metrics: %w", err)
	}
	engine, err := invalidation.NewEngine(mc,
		invalidation.WithLogger(logger),
		invalidation.WithMetrics(ruleMetrics),
		invalidation.WithTracer(observe.NewTracer(obs.Tracer())),
	)
	if err != nil {
		mc.Destroy()
		return nil, err
	}
	for _, rc := range cfg.Rules {
		if err := engine.RegisterRule(rc.rule()); err != nil {
			mc.Destroy()
			return nil, err
		}
	}

	agg := health.NewAggregator(cfg.Health.Aggregator)
	agg.Register("cache", health.NewCacheChecker(mc, cfg.Health.Cache))
	agg.Register("memory", health.NewMemoryChecker(cfg.Health.Memory))

	a := &app{
		obs:    obs,
		logger: logger,
		cache:  mc,
		engine: engine,
		health: agg,
		origin: cfg.Origin,
		client: &http.Client{},
	}
	if cfg.Origin.URL != "" {
		mw, err := observe.MiddlewareFromObserver(obs)
		if err != nil {
			mc.Destroy()
			return nil, fmt.Errorf("load middleware: %w", err)
		}
		a.readThrough = cache.NewReadThrough(mc, nil, mw,
			cache.WithLoadGuard(newOriginGuard(cfg.Origin.Guard)))
		logger.Info(ctx, "read-through origin configured", observe.F("url", cfg.Origin.URL))
	}
	return a, nil
}

func (a *app) routes() *http.ServeMux {
	mux := http.NewServeMux()
	health.RegisterHandlers(mux, a.health)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /cache/{key}", a.handleGetEntry)
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a.cache.Stats())
	})
	mux.HandleFunc("/rules", func(w http.ResponseWriter, r *http.Request) {
		type ruleView struct {
			ID        string   `json:"id"`
			EventType string   `json:"event_type"`
			Tags      []string `json:"tags,omitempty"`
			HasKeys   bool     `json:"has_keys"`
			Enabled   bool     `json:"enabled"`
			Priority  int      `json:"priority"`
		}
		rules := a.engine.Rules()
		out := make([]ruleView, len(rules))
		for i, rule := range rules {
			out[i] = ruleView{rule.ID, rule.EventType, rule.Tags, rule.KeyGenerator != nil, rule.Enabled, rule.Priority}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
	return mux
}

func (a *app) close(ctx context.Context) error {
	a.cache.Destroy()
	return a.obs.Shutdown(ctx)
}

// startEventPump feeds events from r through the rule engine until r is
// exhausted or ctx is done. The returned channel closes once the engine has
// finished its last event. A reader blocked on input exits at its next line.
func (a *app) startEventPump(ctx context.Context, r io.Reader) <-chan struct{} {
	ch := make(chan invalidation.Event, 64)
	done := make(chan struct{})

	go func() {
		if err := readEvents(ctx, r, ch, a.logger); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error(ctx, "event feed failed", observe.F("error", err))
		}
	}()
	go func() {
		defer close(done)
		if err := a.engine.Run(ctx, ch); err == nil {
			a.logger.Info(ctx, "event feed closed")
		}
	}()
	return done
}

func run(ctx context.Context, cfg Config, events io.Reader) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.close(shutdownCtx); err != nil {
			fmt.Fprintln(os.Stderr, "tagcache: shutdown:", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() {
		a.logger.Info(ctx, "http server listening", observe.F("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	var pumpDone <-chan struct{}
	if cfg.Cache.EnableEventInvalidation {
		pumpDone = a.startEventPump(ctx, events)
	} else {
		a.logger.Info(ctx, "event invalidation disabled")
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-srvErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	a.logger.Info(context.Background(), "shutting down")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}

	// The cache is destroyed by the deferred close; no event may still be
	// invalidating when that happens.
	if pumpDone != nil {
		select {
		case <-pumpDone:
		case <-shutdownCtx.Done():
			a.logger.Warn(context.Background(), "event pump did not stop before shutdown deadline")
		}
	}
	return runErr
}

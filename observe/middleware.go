package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LoadFunc produces a value for a cache miss.
type LoadFunc func(ctx context.Context) (any, error)

// Middleware wraps cache-miss loaders with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe LoadFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped loader are recorded and propagated unchanged.
type Middleware struct {
	tracer   Tracer
	logger   Logger
	loads    metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMiddleware creates a Middleware recording into meter.
func NewMiddleware(tracer Tracer, meter metric.Meter, logger Logger) (*Middleware, error) {
	loads, err := meter.Int64Counter(
		"tagcache.load.total",
		metric.WithDescription("Number of cache-miss loads"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"tagcache.load.errors",
		metric.WithDescription("Number of failed cache-miss loads"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"tagcache.load.duration_ms",
		metric.WithDescription("Cache-miss load duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	if tracer == nil {
		tracer = NopTracer()
	}
	if logger == nil {
		logger = NopLogger()
	}

	return &Middleware{
		tracer:   tracer,
		logger:   logger,
		loads:    loads,
		failures: failures,
		duration: duration,
	}, nil
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	return NewMiddleware(NewTracer(obs.Tracer()), obs.Meter(), obs.Logger())
}

// Wrap instruments fn. namespace identifies the loader in spans, metrics and logs.
func (m *Middleware) Wrap(namespace string, fn LoadFunc) LoadFunc {
	return func(ctx context.Context) (any, error) {
		ctx, span := m.tracer.StartSpan(ctx, "tagcache.load."+namespace,
			attribute.String("cache.namespace", namespace),
		)

		start := time.Now()
		value, err := fn(ctx)
		elapsed := time.Since(start)

		m.tracer.EndSpan(span, err)

		opt := metric.WithAttributes(attribute.String("cache.namespace", namespace))
		m.loads.Add(ctx, 1, opt)
		m.duration.Record(ctx, float64(elapsed.Milliseconds()), opt)

		fields := []Field{
			F("namespace", namespace),
			F("duration_ms", float64(elapsed.Milliseconds())),
		}
		if err != nil {
			m.failures.Add(ctx, 1, opt)
			m.logger.Error(ctx, "cache load failed", append(fields, F("error", err))...)
		} else {
			m.logger.Debug(ctx, "cache load completed", fields...)
		}

		return value, err
	}
}

package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer() (Tracer, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return NewTracer(tp.Tracer("test")), sr
}

func TestTracer_SpanAttributesAndStatus(t *testing.T) {
	tracer, sr := newRecordingTracer()

	_, span := tracer.StartSpan(context.Background(), "invalidation.handle_event",
		attribute.String("event.type", "user.updated"),
	)
	tracer.EndSpan(span, nil)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != "invalidation.handle_event" {
		t.Errorf("unexpected span name %q", s.Name())
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("expected Ok status, got %v", s.Status().Code)
	}

	found := false
	for _, kv := range s.Attributes() {
		if kv.Key == "event.type" && kv.Value.AsString() == "user.updated" {
			found = true
		}
	}
	if !found {
		t.Error("event.type attribute missing")
	}
}

func TestTracer_RecordsError(t *testing.T) {
	tracer, sr := newRecordingTracer()

	_, span := tracer.StartSpan(context.Background(), "op")
	tracer.EndSpan(span, errors.New("generator failed"))

	s := sr.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Errorf("expected Error status, got %v", s.Status().Code)
	}
	if s.Status().Description != "generator failed" {
		t.Errorf("unexpected status description %q", s.Status().Description)
	}
	if len(s.Events()) == 0 {
		t.Error("expected the error to be recorded as a span event")
	}
}

func TestNewTracer_NilFallsBackToNop(t *testing.T) {
	tracer := NewTracer(nil)
	_, span := tracer.StartSpan(context.Background(), "op")
	tracer.EndSpan(span, nil)
}

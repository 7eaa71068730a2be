package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jonwraymond/tagcache/invalidation"
	"github.com/jonwraymond/tagcache/observe"
)

func TestReadEvents(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"user.updated","data":{"id":1}}`,
		``,
		`not json`,
		`{"data":{"id":2}}`,
		`{"type":"post.created","occurred_at":"2025-01-01T00:00:00Z"}`,
	}, "\n")

	var logs bytes.Buffer
	ch := make(chan invalidation.Event, 10)
	err := readEvents(context.Background(), strings.NewReader(input), ch,
		observe.NewLoggerWithWriter("warn", &logs))
	if err != nil {
		t.Fatalf("readEvents failed: %v", err)
	}

	var got []invalidation.Event
	for ev := range ch {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Type != "user.updated" {
		t.Errorf("event 0 type = %q", got[0].Type)
	}
	data, ok := got[0].Data.(map[string]any)
	if !ok || data["id"] != json.Number("1") {
		t.Errorf("event 0 data = %#v", got[0].Data)
	}
	if got[1].OccurredAt.IsZero() {
		t.Error("event 1 occurred_at should be parsed")
	}

	if n := strings.Count(logs.String(), "skipping"); n != 2 {
		t.Errorf("expected 2 skipped lines logged, got %d:\n%s", n, logs.String())
	}
}

func TestReadEvents_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := make(chan invalidation.Event) // unbuffered, nobody reads
	err := readEvents(ctx, strings.NewReader(`{"type":"e"}`+"\n"), ch, observe.NopLogger())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if _, open := <-ch; open {
		t.Error("channel should be closed")
	}
}

func TestReadEvents_LargeIntegerIDs(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"user.updated","data":{"id":9007199254740993}}`,
		`{"type":"order.paid","data":{"order":{"id":18446744073709551615},"amount":12.5}}`,
	}, "\n")

	ch := make(chan invalidation.Event, 2)
	if err := readEvents(context.Background(), strings.NewReader(input), ch, observe.NopLogger()); err != nil {
		t.Fatalf("readEvents failed: %v", err)
	}

	tests := []struct {
		template string
		want     []string
	}{
		{"user:{id}", []string{"user:9007199254740993"}},
		{"order:{order.id}:{amount}", []string{"order:18446744073709551615:12.5"}},
	}
	for _, tt := range tests {
		ev, ok := <-ch
		if !ok {
			t.Fatalf("feed closed before %q", tt.template)
		}
		got, err := invalidation.TemplateKeys(tt.template)(ev)
		if err != nil {
			t.Fatalf("TemplateKeys(%q) failed: %v", tt.template, err)
		}
		if len(got) != 1 || got[0] != tt.want[0] {
			t.Errorf("TemplateKeys(%q) = %v, want %v", tt.template, got, tt.want)
		}
	}
}

func TestDecodeEvent_TrailingData(t *testing.T) {
	var ev invalidation.Event
	if err := decodeEvent([]byte(`{"type":"a"} {"type":"b"}`), &ev); err == nil {
		t.Error("expected error for two objects on one line")
	}
}

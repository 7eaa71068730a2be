package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/jonwraymond/tagcache/invalidation"
	"github.com/jonwraymond/tagcache/observe"
)

const maxEventLine = 1 << 20

// decodeEvent keeps numbers in event data as json.Number so that integer
// IDs beyond float64 precision render unchanged in key templates.
func decodeEvent(raw []byte, ev *invalidation.Event) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(ev); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after event")
	}
	return nil
}

// readEvents decodes one JSON event per line from r into out and closes
// out when r is exhausted or ctx is done. Malformed lines are logged and
// skipped.
func readEvents(ctx context.Context, r io.Reader, out chan<- invalidation.Event, logger observe.Logger) error {
	defer close(out)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventLine)

	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		var ev invalidation.Event
		if err := decodeEvent(raw, &ev); err != nil {
			logger.Warn(ctx, "skipping malformed event", observe.F("line", line), observe.F("error", err))
			continue
		}
		if ev.Type == "" {
			logger.Warn(ctx, "skipping event without type", observe.F("line", line))
			continue
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return sc.Err()
}

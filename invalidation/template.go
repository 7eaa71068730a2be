package invalidation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TemplateKeys returns a KeyGenerator rendering each template against the
// event data. A placeholder "{field}" is replaced by that field's value;
// "{a.b}" walks nested objects.
//
// Data may be a map[string]any or anything that marshals to a JSON object,
// such as a struct. A missing field fails the whole generator with
// ErrMissingField.
func TemplateKeys(templates ...string) KeyGenerator {
	parsed := make([]keyTemplate, len(templates))
	var parseErr error
	for i, t := range templates {
		kt, err := parseTemplate(t)
		if err != nil && parseErr == nil {
			parseErr = err
		}
		parsed[i] = kt
	}

	return func(ev Event) ([]string, error) {
		if parseErr != nil {
			return nil, parseErr
		}

		var fields map[string]any
		keys := make([]string, 0, len(parsed))
		for _, kt := range parsed {
			if fields == nil && kt.hasFields() {
				f, err := eventFields(ev.Data)
				if err != nil {
					return nil, err
				}
				fields = f
			}
			key, err := kt.render(fields)
			if err != nil {
				return nil, err
			}
			keys = append(keys, key)
		}
		return keys, nil
	}
}

// keyTemplate alternates literal text and field paths. parts[i] is a field
// path when i is odd.
type keyTemplate struct {
	raw   string
	parts []string
}

func parseTemplate(s string) (keyTemplate, error) {
	kt := keyTemplate{raw: s}
	rest := s
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return kt, fmt.Errorf("invalidation: template %q: unexpected '}'", s)
			}
			kt.parts = append(kt.parts, rest)
			return kt, nil
		}
		if strings.IndexByte(rest[:open], '}') >= 0 {
			return kt, fmt.Errorf("invalidation: template %q: unexpected '}'", s)
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return kt, fmt.Errorf("invalidation: template %q: unterminated placeholder", s)
		}
		field := rest[open+1 : open+end]
		if field == "" || strings.ContainsAny(field, "{") {
			return kt, fmt.Errorf("invalidation: template %q: bad placeholder %q", s, field)
		}
		kt.parts = append(kt.parts, rest[:open], field)
		rest = rest[open+end+1:]
	}
}

func (kt keyTemplate) hasFields() bool {
	return len(kt.parts) > 1
}

func (kt keyTemplate) render(fields map[string]any) (string, error) {
	var b strings.Builder
	for i, part := range kt.parts {
		if i%2 == 0 {
			b.WriteString(part)
			continue
		}
		v, ok := lookup(fields, part)
		if !ok {
			return "", fmt.Errorf("%w: %q in template %q", ErrMissingField, part, kt.raw)
		}
		b.WriteString(formatValue(v))
	}
	return b.String(), nil
}

func lookup(fields map[string]any, path string) (any, bool) {
	var cur any = fields
	for seg := range strings.SplitSeq(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// eventFields normalizes event data into a JSON-shaped map.
func eventFields(data any) (map[string]any, error) {
	switch d := data.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return d, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("invalidation: encode event data: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("invalidation: event data is not an object: %w", err)
	}
	return fields, nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

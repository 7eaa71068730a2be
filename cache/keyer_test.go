package cache

import (
	"errors"
	"strings"
	"testing"
)

func mustKey(t *testing.T, k Keyer, namespace string, input any) string {
	t.Helper()
	key, err := k.Key(namespace, input)
	if err != nil {
		t.Fatalf("Key(%q) error = %v", namespace, err)
	}
	return key
}

func TestKeyer_MapOrderIrrelevant(t *testing.T) {
	keyer := NewDefaultKeyer()

	inputs := []map[string]any{
		{"b": 2, "a": 1, "c": 3},
		{"a": 1, "c": 3, "b": 2},
		{"c": 3, "b": 2, "a": 1},
	}

	first := mustKey(t, keyer, "users", inputs[0])
	for _, in := range inputs[1:] {
		if got := mustKey(t, keyer, "users", in); got != first {
			t.Errorf("keys differ for equal maps: %s vs %s", first, got)
		}
	}
}

func TestKeyer_NestedMaps(t *testing.T) {
	keyer := NewDefaultKeyer()

	a := map[string]any{
		"filter": map[string]any{"z": 26, "a": 1, "m": []any{map[string]any{"y": 1, "x": 2}}},
		"page":   1,
	}
	b := map[string]any{
		"page":   1,
		"filter": map[string]any{"m": []any{map[string]any{"x": 2, "y": 1}}, "a": 1, "z": 26},
	}

	if mustKey(t, keyer, "search", a) != mustKey(t, keyer, "search", b) {
		t.Error("nested maps with equal content should produce equal keys")
	}
}

func TestKeyer_Distinguishes(t *testing.T) {
	keyer := NewDefaultKeyer()

	tests := []struct {
		name string
		nsA  string
		inA  any
		nsB  string
		inB  any
	}{
		{"array order", "q", map[string]any{"ids": []any{1, 2}}, "q", map[string]any{"ids": []any{2, 1}}},
		{"namespace", "users", "42", "posts", "42"},
		{"nil vs empty map", "q", nil, "q", map[string]any{}},
		{"string vs number", "q", "1", "q", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if mustKey(t, keyer, tt.nsA, tt.inA) == mustKey(t, keyer, tt.nsB, tt.inB) {
				t.Error("expected different keys")
			}
		})
	}
}

func TestKeyer_KeyFormat(t *testing.T) {
	keyer := NewDefaultKeyer()

	key := mustKey(t, keyer, "user-profile", struct {
		ID int `json:"id"`
	}{ID: 7})

	prefix := "user-profile:"
	if !strings.HasPrefix(key, prefix) {
		t.Fatalf("key %q should start with %q", key, prefix)
	}

	hash := strings.TrimPrefix(key, prefix)
	if len(hash) != 16 {
		t.Errorf("hash should be 16 characters, got %d: %q", len(hash), hash)
	}
	for _, c := range hash {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			t.Fatalf("hash should be lowercase hex, got %q", hash)
		}
	}

	if !MatchPattern("user-profile:*", key) {
		t.Error("namespace pattern should match derived keys")
	}
}

func TestKeyer_EmptyNamespace(t *testing.T) {
	_, err := NewDefaultKeyer().Key("", map[string]any{"a": 1})
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestKeyer_Unmarshalable(t *testing.T) {
	_, err := NewDefaultKeyer().Key("q", map[string]any{"fn": func() {}})
	if err == nil {
		t.Error("expected error for non-JSON input")
	}
}

package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Keyer derives deterministic cache keys from a namespace and an input.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map iteration order.
// - Concurrency: implementations must be safe for concurrent use.
// - Keys start with "<namespace>:" so a "<namespace>:*" pattern invalidates them all.
type Keyer interface {
	Key(namespace string, input any) (string, error)
}

// DefaultKeyer generates SHA-256 based cache keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key generates a deterministic cache key.
// Format: <namespace>:<hash>
// where hash is the first 16 hex characters of SHA-256(canonical JSON(input)).
func (k *DefaultKeyer) Key(namespace string, input any) (string, error) {
	if namespace == "" {
		return "", fmt.Errorf("%w: namespace is required", ErrInvalidKey)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, input); err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize input: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	key := namespace + ":" + hex.EncodeToString(sum[:8])
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// writeCanonical writes JSON with object keys sorted at every depth.
func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil

	case map[string]any:
		buf.WriteByte('{')
		for i, k := range slices.Sorted(maps.Keys(val)) {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(name)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil

	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil

	default:
		// Structs and typed maps already marshal deterministically.
		data, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(data)
		return nil
	}
}

var _ Keyer = (*DefaultKeyer)(nil)

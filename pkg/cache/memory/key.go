package memory

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
)

// Key derives the cache key for an operation and its parameters.
//
// Parameters are serialized to canonical JSON: object members are sorted by
// name and numbers keep their literal form, while array order is preserved.
// Two calls with equivalent parameters therefore share a key. The operation
// name stays readable as the key prefix so Invalidate can target one
// operation.
func Key(operation string, params any) (string, error) {
	canonical, err := Canonicalize(params)
	if err != nil {
		return "", fmt.Errorf("cache key for %q: %w", operation, err)
	}
	return Hash(operation, canonical), nil
}

// Hash builds the key for operation from already canonical parameters.
func Hash(operation string, canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return operation + ":" + hex.EncodeToString(sum[:])
}

// Canonicalize returns the canonical JSON encoding of v. Raw JSON inputs
// ([]byte or json.RawMessage) are decoded first so that member order in the
// input does not matter.
func Canonicalize(v any) ([]byte, error) {
	var raw []byte
	switch p := v.(type) {
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		raw = b
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte("null"), nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("decode params: unexpected data after JSON value")
	}
	// encoding/json writes map keys in sorted order.
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	return out, nil
}

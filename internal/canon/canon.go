// Package canon implements the one canonicalization rule used throughout
// the store and fingerprint: JSON with key-sorted objects and no
// insignificant whitespace.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// JSON re-encodes v with sorted object keys and no insignificant
// whitespace. v is marshaled, decoded back into map[string]any form, and
// re-marshaled: encoding/json sorts map keys on Marshal but emits struct
// fields in declaration order, so the round-trip is what makes struct
// values key-sorted too.
func JSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var decoded any
	if err := json.Unmarshal(b, &decoded); err != nil {
		return "", err
	}
	b, err = json.Marshal(decoded)
	if err != nil {
		return "", err
	}
	return compact(b)
}

// JSONString canonicalizes an already-serialized JSON document.
func JSONString(raw string) (string, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return "", err
	}
	return JSON(v)
}

func compact(b []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Sha256Hex returns the SHA-256 hex digest of the canonicalized textual
// form of s. For non-JSON text content, s is hashed verbatim (the
// canonicalization rule only applies to JSON content fields, per the
// Content hashes invariant).
func Sha256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// Sha256HexJSON canonicalizes raw as JSON and returns the SHA-256 hex
// digest of the canonical form. If raw is not valid JSON, it is hashed
// verbatim instead (callers use this for content fields that may be
// plain text or JSON).
func Sha256HexJSON(raw string) string {
	if c, err := JSONString(raw); err == nil {
		return Sha256Hex(c)
	}
	return Sha256Hex(raw)
}

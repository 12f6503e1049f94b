package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash used for reproducibility fingerprints.
type Hash string

// NewHash creates a new hash from data.
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation.
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty.
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal.
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// ConfigHash and ScenarioHash distinguish the two hash domains the pipeline
// keys caches off: a generation/guardrail config fingerprint, and a
// whole-run reproducibility fingerprint.
type (
	ConfigHash   Hash
	ScenarioHash Hash
)

func NewConfigHash(data []byte) ConfigHash     { return ConfigHash(NewHash(data)) }
func NewScenarioHash(data []byte) ScenarioHash { return ScenarioHash(NewHash(data)) }

func (h ConfigHash) String() string   { return Hash(h).String() }
func (h ScenarioHash) String() string { return Hash(h).String() }

// ComputeSortedHash hashes a set of string keys after sorting them, so the
// result is independent of caller-supplied ordering. Used for candidate-id
// set fingerprints (scenario cache keys).
func ComputeSortedHash(keys []string) Hash {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	var b strings.Builder
	for _, k := range sorted {
		b.WriteString(k)
		b.WriteByte('\x1f')
	}
	return NewHash([]byte(b.String()))
}

// ComputeMapHash hashes a map of string->value pairs deterministically by
// sorting keys first, so map iteration order never affects the fingerprint.
func ComputeMapHash(values map[string]interface{}) Hash {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		fmt.Fprintf(&b, "%v", values[k])
		b.WriteByte('\x1f')
	}
	return NewHash([]byte(b.String()))
}

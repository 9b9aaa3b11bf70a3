// Package sha256 provides the content fingerprint implementation.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements watch.Hasher using SHA-256.
//
// The digest is computed over the exact fetched bytes; no whitespace or
// markup normalization happens first, so any byte-level difference
// counts as a page change.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Package sha256 names archived payloads by content digest.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements menu.Hasher.
type Hasher struct{}

// New returns a Hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex SHA-256 digest of data.
func (*Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

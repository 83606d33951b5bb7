// Package apikey mints plaintext API keys, fingerprints them for storage and
// records when they were last used.
package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Prefix marks every key issued by this service.
const Prefix = "ojb_"

const keyBytes = 32

// Hash returns the lowercase hex SHA-256 digest of key.
func Hash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Generate returns a new plaintext key: Prefix followed by 64 hex characters.
func Generate() (string, error) {
	return generate(rand.Reader)
}

func generate(r io.Reader) (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return Prefix + hex.EncodeToString(buf), nil
}

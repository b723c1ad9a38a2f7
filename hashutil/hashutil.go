// Package hashutil holds the single hash function every ledger structure is built on.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length of a hex encoded digest.
const Size = sha256.Size * 2

// SHA256Hex returns the lowercase hex SHA-256 digest of the concatenated parts.
func SHA256Hex(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// String hashes the concatenation of s.
func String(s ...string) string {
	parts := make([][]byte, len(s))
	for i, p := range s {
		parts[i] = []byte(p)
	}
	return SHA256Hex(parts...)
}

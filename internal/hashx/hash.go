// Package hashx turns sensitive identifiers into lookup keys.
//
// A digest is a plain, unkeyed SHA-256 rendered as lowercase hex. Equal inputs
// always give equal digests, which is what makes equality lookups on indexed
// columns possible without storing the identifier itself. Digests are never
// used to authenticate or encrypt anything.
package hashx

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length of a digest in hex characters.
const Size = sha256.Size * 2

// DigestBytes returns the hex SHA-256 digest of b.
func DigestBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Digest returns the hex SHA-256 digest of s.
func Digest(s string) string {
	return DigestBytes([]byte(s))
}

package crypto

import "crypto/sha256"

// Hash() returns the sha256 digest of msg, the hash committed to in blob metadata
func Hash(msg []byte) []byte {
	h := sha256.Sum256(msg)
	return h[:]
}

package prompt

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the hex sha256 of a rendered prompt.
func Digest(text string) string {
	return computeDigest([]byte(text))
}

func computeDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

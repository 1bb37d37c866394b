package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashString derives a stable cache key from arbitrary text, typically video
// titles or caption excerpts. Not used for anything security sensitive.
func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:16])
}

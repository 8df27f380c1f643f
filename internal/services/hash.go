package services

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashContent returns the lowercase hex SHA-256 of input (always 64 characters).
// It keys generated assets by prompt and mirrored objects by source URL.
func HashContent(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

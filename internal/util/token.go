package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// NewRefreshValue returns an opaque refresh token value.
func NewRefreshValue() string {
	return uuid.NewString()
}

// HashToken returns the hex SHA-256 digest stored in place of a refresh value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(value)))
	return hex.EncodeToString(sum[:])
}

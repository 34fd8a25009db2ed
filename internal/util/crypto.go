package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// TokenBytes is the entropy of session and sync tokens.
const TokenBytes = 32

const guestIDPrefix = "guest_"

// GenerateToken returns TokenBytes of crypto randomness, hex encoded.
func GenerateToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken is the storage key form of a device session token; raw tokens
// are never persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewGuestID mints an anonymous guest identity from a v4 UUID.
func NewGuestID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate guest id: %w", err)
	}
	return guestIDPrefix + id.String(), nil
}

// MaskCode keeps the first two characters of a link code for logs.
func MaskCode(code string) string {
	if len(code) <= 2 {
		return "****"
	}
	return code[:2] + "****"
}

// TokenFingerprint is a short, non-reversible tag for logging a token.
func TokenFingerprint(token string) string {
	return HashToken(token)[:12]
}

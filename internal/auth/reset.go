package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

// DefaultResetTokenTTL bounds how long an issued reset token stays usable.
const DefaultResetTokenTTL = 30 * time.Minute

const resetTokenBytes = 32

// newResetToken returns a random URL-safe token and the digest to store for it.
func newResetToken() (plaintext, digest string, err error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate reset token: %w", err)
	}
	plaintext = base64.RawURLEncoding.EncodeToString(buf)
	return plaintext, HashResetToken(plaintext), nil
}

// HashResetToken is the at-rest form of a reset token.
func HashResetToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

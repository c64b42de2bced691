// Package auth implements credential hashing for user accounts.
//
// Stored credentials are hex-encoded single-round SHA-256 digests of the UTF-8
// password. The scheme is unsalted, which is a known weakness kept so that
// existing account tables keep working. Accounts can be moved to
// bcrypt(sha256hex) with Upgrade; Verify accepts both forms.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const DefaultAdminPassword = "123"

func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether passwordHash, a client supplied SHA-256 hex digest,
// matches the stored credential.
func Verify(stored string, passwordHash string) bool {
	stored = strings.TrimSpace(stored)
	passwordHash = strings.ToLower(strings.TrimSpace(passwordHash))
	if stored == "" || passwordHash == "" {
		return false
	}
	if IsUpgraded(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(passwordHash)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(stored)), []byte(passwordHash)) == 1
}

// VerifyPassword hashes a plain password and checks it against stored.
func VerifyPassword(stored string, password string) bool {
	if password == "" {
		return false
	}
	return Verify(stored, HashPassword(password))
}

// Upgrade wraps a legacy digest in bcrypt. Upgraded values are returned unchanged.
func Upgrade(stored string) (string, error) {
	if IsUpgraded(stored) {
		return stored, nil
	}
	out, err := bcrypt.GenerateFromPassword([]byte(strings.ToLower(stored)), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func IsUpgraded(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword checks a password against a stored hash. Legacy unsalted
// SHA-256 hexdigests still verify; needsUpgrade is true for those so the
// caller can rewrite the hash with bcrypt after a successful login.
func VerifyPassword(password, storedHash string) (ok bool, needsUpgrade bool) {
	if strings.HasPrefix(storedHash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil, false
	}

	// Legacy scheme: hex(sha256(password)).
	if len(storedHash) == 64 {
		sum := sha256.Sum256([]byte(password))
		computed := hex.EncodeToString(sum[:])
		if subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(storedHash))) == 1 {
			return true, true
		}
	}
	return false, false
}

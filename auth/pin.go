package auth

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// hashPin returns the bcrypt hash stored under securestore.KeyPin.
func hashPin(pin string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(pin), cost)
	return string(bytes), err
}

// comparePin checks pin against the stored value. Values written before
// hashing was introduced are plaintext; legacy reports that case so the
// caller can rehash.
func comparePin(stored, pin string) (match, legacy bool) {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(pin)) == nil, false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(pin)) == 1, true
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

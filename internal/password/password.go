package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hash derives a salted bcrypt hash from a plaintext password.
func Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify compares a stored bcrypt hash against a supplied password. The
// comparison is constant-time inside the primitive; plaintext is never
// compared directly.
func Verify(storedHash, supplied string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(supplied)) == nil
}

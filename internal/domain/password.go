package domain

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword derives a storable digest from a plaintext password.
func HashPassword(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// VerifyPassword reports whether the plaintext password matches the digest.
func VerifyPassword(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// CheckPasswordStrength returns an empty string for an acceptable password,
// otherwise a message listing what is missing.
func CheckPasswordStrength(password string) string {
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	var sb strings.Builder
	if !hasDigit {
		sb.WriteString("You must have at least one number in password\n")
	}
	if !hasLetter {
		sb.WriteString("You must have at least one letter in password\n")
	}
	if sb.Len() > 0 {
		sb.WriteString("Please try again with a new password")
	}
	return sb.String()
}

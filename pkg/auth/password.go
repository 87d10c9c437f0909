package auth

import (
	"errors"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`[0-9]`)
	specialRe = regexp.MustCompile(`[@$!%*?&#]`)
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// VerifyPassword compares a plain password with a hashed password
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePasswordStrength checks if an admin password meets the rules
func ValidatePasswordStrength(password string) error {
	if len(password) < 10 {
		return errors.New("password must be at least 10 characters long")
	}
	if len(password) > 128 {
		return errors.New("password must not exceed 128 characters")
	}
	if !upperRe.MatchString(password) {
		return errors.New("password must contain at least one uppercase letter")
	}
	if !lowerRe.MatchString(password) {
		return errors.New("password must contain at least one lowercase letter")
	}
	if !digitRe.MatchString(password) {
		return errors.New("password must contain at least one number")
	}
	if !specialRe.MatchString(password) {
		return errors.New("password must contain at least one special character (@$!%*?&#)")
	}
	return nil
}

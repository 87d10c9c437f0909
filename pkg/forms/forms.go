// Package forms normalizes and validates the fields submitted through the
// storefront's public forms (newsletter, contact, pre-order).
package forms

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	digitRe = regexp.MustCompile(`\D`)

	strictPolicy = bluemonday.StrictPolicy()
)

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail validates an email address format
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if len(email) < 3 || len(email) > 254 {
		return false
	}
	return emailRe.MatchString(email)
}

// NormalizePhone accepts Indonesian numbers written as +62..., 62... or 0...
// (spaces, dashes and dots allowed) and returns them as +62 followed by the
// subscriber number. ok is false when the number does not look Indonesian.
func NormalizePhone(phone string) (string, bool) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", false
	}
	digits := digitRe.ReplaceAllString(phone, "")

	var rest string
	switch {
	case strings.HasPrefix(digits, "62"):
		rest = digits[2:]
	case strings.HasPrefix(digits, "0"):
		rest = digits[1:]
	default:
		return "", false
	}
	if len(rest) < 8 || len(rest) > 13 || rest[0] == '0' {
		return "", false
	}
	return "+62" + rest, true
}

// StripMarkup removes every HTML tag from user input and returns plain text.
// The sanitizer escapes what it keeps, so entities are decoded again; output
// is escaped where it is rendered.
func StripMarkup(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// TitleName collapses whitespace and title-cases a person's name
func TitleName(name string) string {
	name = strings.Join(strings.Fields(StripMarkup(name)), " ")
	// Casers carry state, so each call gets its own.
	return cases.Title(language.Indonesian).String(strings.ToLower(name))
}

// RuneLen counts characters rather than bytes
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

package utils

import (
	"regexp"
	"strings"
)

var (
	slugStripRe = regexp.MustCompile(`[^a-z0-9]+`)
	slugRe      = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// Slugify lowercases s and joins its alphanumeric runs with dashes
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugStripRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// IsSlug reports whether s is already a valid slug
func IsSlug(s string) bool {
	return len(s) <= 120 && slugRe.MatchString(s)
}

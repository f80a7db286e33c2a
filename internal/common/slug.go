package common

import (
	"regexp"
	"strings"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// IsSlug reports whether s is a lowercase, hyphen separated URL-safe slug.
func IsSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// NormalizeSlug lowercases and trims a slug candidate.
func NormalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

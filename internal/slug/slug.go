// Package slug derives report cache keys from free-text queries.
package slug

import (
	"regexp"
	"strings"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	invalid    = regexp.MustCompile(`[^a-z0-9-]`)
	hyphens    = regexp.MustCompile(`-{2,}`)
)

// Normalize lowercases query, turns whitespace runs into hyphens, drops every
// other character outside [a-z0-9-] and collapses repeated hyphens.
// "Email  Automation!" and "email-automation" share the slug "email-automation".
func Normalize(query string) string {
	s := strings.ToLower(strings.TrimSpace(query))
	s = whitespace.ReplaceAllString(s, "-")
	s = invalid.ReplaceAllString(s, "")
	s = hyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

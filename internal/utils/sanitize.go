package utils

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// SanitizeContent truncates raw to at most max characters and then strips
// all HTML markup, keeping only visible text. Truncation happens first so
// the sanitizer never chews through unbounded input.
func SanitizeContent(raw string, max int) string {
	if max > 0 {
		runes := []rune(raw)
		if len(runes) > max {
			raw = string(runes[:max])
		}
	}
	return html.UnescapeString(strict.Sanitize(raw))
}

package core

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// StripMarkup removes any HTML from user-entered text.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return s
	}
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// CleanText trims, strips markup and truncates to max runes, returning
// fallback for blank input.
func CleanText(value, fallback string, max int) string {
	text := StripMarkup(strings.TrimSpace(value))
	if text == "" {
		return fallback
	}
	if max > 0 {
		if r := []rune(text); len(r) > max {
			text = string(r[:max])
		}
	}
	return text
}

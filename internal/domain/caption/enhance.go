// Package caption normalizes captions and derives the fallback heuristic
// caption from pixel data.
package caption

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Enhance trims raw, upper-cases its first character and terminates it with a
// period unless it already ends in '.', '!' or '?'. Blank input yields "".
func Enhance(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	first, size := utf8.DecodeRuneInString(s)
	s = string(unicode.ToUpper(first)) + s[size:]

	last, _ := utf8.DecodeLastRuneInString(s)
	switch last {
	case '.', '!', '?':
	default:
		s += "."
	}
	return s
}

package util

import (
	"strings"
	"unicode"
)

// SanitizeName strips control and invisible characters from a display name
// and collapses runs of whitespace into single spaces.
func SanitizeName(name string) string {
	builder := strings.Builder{}
	builder.Grow(len(name))

	for _, char := range name {
		if isInvisibleUnicode(char) {
			continue
		}
		if unicode.IsControl(char) {
			if unicode.IsSpace(char) {
				builder.WriteRune(' ')
			}
			continue
		}
		builder.WriteRune(char)
	}

	return strings.Join(strings.Fields(builder.String()), " ")
}

func isInvisibleUnicode(r rune) bool {
	switch r {
	case
		'\u200B', // zero width space
		'\u200C',
		'\u200D',
		'\u2060', // word joiner
		'\uFEFF': // BOM
		return true
	}

	return unicode.Is(unicode.Cf, r)
}

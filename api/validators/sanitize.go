package validators

import (
	"strings"
	"unicode"
)

// SanitizeString collapses whitespace runs, drops control characters and
// truncates to maxLen runes. maxLen <= 0 disables truncation.
func SanitizeString(input string, maxLen int) string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
	out := []rune(strings.Join(fields, " "))
	if maxLen > 0 && len(out) > maxLen {
		out = []rune(strings.TrimSpace(string(out[:maxLen])))
	}
	return string(out)
}

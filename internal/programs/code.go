package programs

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	minTitleLength = 5
	maxTitleLength = 200
	maxCodeWords   = 4
)

var titlePattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-,./&()]+$`)

// ValidTitle reports whether a trimmed title has an allowed length and charset.
func ValidTitle(title string) bool {
	trimmed := strings.TrimSpace(title)
	if n := len(trimmed); n < minTitleLength || n > maxTitleLength {
		return false
	}
	return titlePattern.MatchString(trimmed)
}

// CodePrefix returns the INITIALS-YEAR part of a generated program code.
func CodePrefix(title string, year int) string {
	var initials strings.Builder
	for _, word := range strings.Fields(title) {
		if initials.Len() == maxCodeWords {
			break
		}
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				initials.WriteRune(unicode.ToUpper(r))
				break
			}
		}
	}
	if initials.Len() == 0 {
		initials.WriteString("PRG")
	}
	return fmt.Sprintf("%s-%d", initials.String(), year)
}

// FormatCode appends the zero-padded sequence to a prefix.
func FormatCode(prefix string, sequence int64) string {
	return fmt.Sprintf("%s-%03d", prefix, sequence)
}

// NormalizeCode upper-cases and trims a caller-supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

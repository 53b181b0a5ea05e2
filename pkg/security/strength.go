package security

import (
	"fmt"
	"strings"
	"unicode"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

var weakPasswordPatterns = []string{"123456", "password", "qwerty", "abc123", "admin"}

// ValidatePasswordStrength returns the list of rules the password fails, or nil.
func ValidatePasswordStrength(password string) []string {
	var problems []string
	if len(password) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("must be at least %d characters long", MinPasswordLength))
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if !upper {
		problems = append(problems, "must contain an uppercase letter")
	}
	if !lower {
		problems = append(problems, "must contain a lowercase letter")
	}
	if !digit {
		problems = append(problems, "must contain a digit")
	}
	if !special {
		problems = append(problems, "must contain a special character")
	}

	lowered := strings.ToLower(password)
	for _, pattern := range weakPasswordPatterns {
		if strings.Contains(lowered, pattern) {
			problems = append(problems, "contains a common weak pattern")
			break
		}
	}
	return problems
}

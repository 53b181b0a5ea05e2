// Package phone validates and normalizes Philippine mobile numbers.
package phone

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Region is the numbering plan every stored number belongs to.
const Region = "PH"

// ErrInvalidFormat is returned for anything that is not a PH mobile number.
var ErrInvalidFormat = fmt.Errorf("invalid philippine mobile number")

// Normalize accepts a PH mobile number in international (+63 / 63) or national
// (09XX / 9XX) form, ignoring spaces, dashes, dots and parentheses, and returns
// 09XX-XXX-XXXX.
func Normalize(raw string) (string, error) {
	cleaned, ok := stripSeparators(raw)
	if !ok {
		return "", ErrInvalidFormat
	}

	num, err := phonenumbers.Parse(cleaned, Region)
	if err != nil || !phonenumbers.IsValidNumberForRegion(num, Region) {
		return "", ErrInvalidFormat
	}
	switch phonenumbers.GetNumberType(num) {
	case phonenumbers.MOBILE, phonenumbers.FIXED_LINE_OR_MOBILE:
	default:
		return "", ErrInvalidFormat
	}

	local := "0" + phonenumbers.GetNationalSignificantNumber(num)
	if len(local) != 11 {
		return "", ErrInvalidFormat
	}
	return fmt.Sprintf("%s-%s-%s", local[:4], local[4:7], local[7:]), nil
}

// NormalizeOptional normalizes a pointer value; nil and blank stay nil.
func NormalizeOptional(raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	normalized, err := Normalize(*raw)
	if err != nil {
		return nil, err
	}
	return &normalized, nil
}

// stripSeparators keeps digits and a leading plus. Letters are refused here
// because the parser would otherwise read them as keypad digits.
func stripSeparators(raw string) (string, bool) {
	var b strings.Builder
	digits := 0
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ', r == '-', r == '.', r == '(', r == ')':
		default:
			return "", false
		}
	}
	return b.String(), digits > 0
}

package companieshouse

import (
	"errors"
	"strings"
)

// ErrInvalidNumber is returned for company numbers that cannot be registry identifiers.
var ErrInvalidNumber = errors.New("invalid company number")

// NormalizeNumber upper-cases a company number and left-pads all-digit numbers to eight characters.
func NormalizeNumber(raw string) (string, error) {
	n := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
	if n == "" || len(n) > 10 {
		return "", ErrInvalidNumber
	}
	digits := true
	for _, r := range n {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z':
			digits = false
		default:
			return "", ErrInvalidNumber
		}
	}
	if digits && len(n) < 8 {
		n = strings.Repeat("0", 8-len(n)) + n
	}
	return n, nil
}

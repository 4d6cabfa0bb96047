package notification

import (
	"errors"
	"regexp"
	"strings"
)

var ErrInvalidPhone = errors.New("phone number cannot be normalized to a PH mobile number")

var mobilePattern = regexp.MustCompile(`^639\d{9}$`)

// NormalizePhone turns local PH mobile formats (09XXXXXXXXX, 9XXXXXXXXX,
// +63 9XX XXX XXXX) into 639XXXXXXXXX.
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", ErrInvalidPhone
		}
	}

	n := digits.String()
	switch {
	case len(n) == 11 && strings.HasPrefix(n, "09"):
		n = "63" + n[1:]
	case len(n) == 10 && strings.HasPrefix(n, "9"):
		n = "63" + n
	}

	if !mobilePattern.MatchString(n) {
		return "", ErrInvalidPhone
	}
	return n, nil
}

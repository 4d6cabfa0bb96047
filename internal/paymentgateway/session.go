package paymentgateway

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrSessionIDMissing means the redirect carried no usable id, such as an
	// empty value or a template placeholder the gateway never expanded.
	ErrSessionIDMissing = errors.New("checkout session id missing")
	ErrInvalidSessionID = errors.New("invalid checkout session id")
)

var sessionIDPattern = regexp.MustCompile(`^cs_[A-Za-z0-9]{6,64}$`)

// ParseSessionID checks a raw session id before it is sent anywhere.
func ParseSessionID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if IsPlaceholder(id) {
		return "", ErrSessionIDMissing
	}
	if !sessionIDPattern.MatchString(id) {
		return "", ErrInvalidSessionID
	}
	return id, nil
}

// IsPlaceholder reports whether id is empty or an unexpanded template token
// like {CHECKOUT_SESSION_ID}.
func IsPlaceholder(id string) bool {
	if id == "" {
		return true
	}
	lower := strings.ToLower(id)
	switch lower {
	case "null", "undefined", "none":
		return true
	}
	if strings.HasPrefix(lower, "{") || strings.HasSuffix(lower, "}") {
		return true
	}
	return strings.Contains(lower, "%7b") || strings.Contains(lower, "%7d")
}

// Package phone normalizes Brazilian phone numbers and derives the
// deterministic session identifiers used across the registry, the token
// store and the scheduler.
package phone

import (
	"strings"

	"zapcentral/internal/constants"
)

// SanitizeDigits strips every non-digit character from the input.
func SanitizeDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeLocal reduces sanitized digits to the local form (DDD + number).
// A leading country code is stripped only when more than 11 digits remain,
// so an 11-digit local number starting with 55 is left untouched.
func NormalizeLocal(digits string) string {
	if strings.HasPrefix(digits, constants.DefaultCountryCode) && len(digits) > 11 {
		return digits[len(constants.DefaultCountryCode):]
	}
	return digits
}

// EnsureCountryCode prefixes the country code when absent.
func EnsureCountryCode(localDigits string) string {
	if localDigits == "" {
		return ""
	}
	if strings.HasPrefix(localDigits, constants.DefaultCountryCode) {
		return localDigits
	}
	return constants.DefaultCountryCode + localDigits
}

// SessionID derives the stable session identifier for a raw phone input.
// Deriving twice from the same digits yields the same id whether or not
// the country code was already present.
func SessionID(raw string) string {
	local := NormalizeLocal(SanitizeDigits(raw))
	return constants.SessionIDPrefix + EnsureCountryCode(local)
}

// DigitsFromSessionID recovers the international digits encoded in a
// session identifier. Returns empty when the id does not match the
// naming convention.
func DigitsFromSessionID(sessionID string) string {
	if !strings.HasPrefix(sessionID, constants.SessionIDPrefix) {
		return ""
	}
	digits := sessionID[len(constants.SessionIDPrefix):]
	if digits == "" || SanitizeDigits(digits) != digits {
		return ""
	}
	return digits
}

// ChatID renders the individual chat address for international digits.
func ChatID(intlDigits string) string {
	return intlDigits + "@c.us"
}

// IsGroupTarget reports whether the target carries the group-address marker.
func IsGroupTarget(target string) bool {
	return strings.Contains(target, "@g.us")
}

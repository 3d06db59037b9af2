package util

import (
	"strings"
)

// minLocalDigits is the shortest subscriber number we will strip a country code from.
const minLocalDigits = 8

// NormalizePhone reduces user or provider input to the national significant number:
// non-digits removed, then an international prefix ("00"), the country code,
// or a single local trunk zero stripped.
//
//	"050-123-4567"             -> "501234567"
//	"whatsapp:+972501234567"   -> "501234567"
func NormalizePhone(raw, countryCode string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	s := b.String()

	international := strings.HasPrefix(strings.TrimSpace(raw), "+") || strings.Contains(raw, ":+")
	if strings.HasPrefix(s, "00") {
		s = s[2:]
		international = true
	}
	if countryCode != "" && (international || len(s) > len(countryCode)+minLocalDigits) &&
		strings.HasPrefix(s, countryCode) && len(s)-len(countryCode) >= minLocalDigits {
		return strings.TrimPrefix(s[len(countryCode):], "0")
	}
	if international {
		return s
	}

	return strings.TrimPrefix(s, "0")
}

// E164 formats a normalized number for the transport.
func E164(normalized, countryCode string) string {
	if countryCode == "" || strings.HasPrefix(normalized, countryCode) && len(normalized) > len(countryCode)+minLocalDigits {
		return "+" + normalized
	}
	return "+" + countryCode + normalized
}

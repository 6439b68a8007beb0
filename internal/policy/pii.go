package policy

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailPattern  = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	cardPattern   = regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`)
	phonePattern  = regexp.MustCompile(`(?:\+?\d[\d()\-\s.]{7,}\d)`)
	lineIDPattern = regexp.MustCompile(`\bU[0-9a-f]{32}\b`)
)

// MaskPIIString redacts contact details and card numbers from free text.
func MaskPIIString(value string) string {
	masked := emailPattern.ReplaceAllString(value, "[email_redacted]")
	masked = cardPattern.ReplaceAllStringFunc(masked, maskCardNumber)
	masked = phonePattern.ReplaceAllString(masked, "[phone_redacted]")
	return masked
}

// MaskUserID keeps a short prefix of a LINE user id for log correlation.
func MaskUserID(userID string) string {
	if !lineIDPattern.MatchString(userID) {
		if len(userID) <= 4 {
			return userID
		}
		return userID[:4] + "…"
	}
	return userID[:7] + "…"
}

// Preview is what logs may carry of a user message: masked and shortened.
func Preview(value string, maxRunes int) string {
	masked := strings.Join(strings.Fields(MaskPIIString(value)), " ")
	if maxRunes <= 0 || utf8.RuneCountInString(masked) <= maxRunes {
		return masked
	}
	return string([]rune(masked)[:maxRunes]) + "…"
}

func maskCardNumber(value string) string {
	digits := make([]rune, 0, len(value))
	for _, char := range value {
		if char >= '0' && char <= '9' {
			digits = append(digits, char)
		}
	}
	if len(digits) < 8 {
		return "[card_redacted]"
	}

	last4 := string(digits[len(digits)-4:])
	return "**** **** **** " + last4
}

package notify

import (
	"regexp"
	"strings"
)

var phonePattern = regexp.MustCompile(`^\+\d{10,15}$`)

// FormatPhoneNumber normalizes a phone number to E.164-ish form: strips
// everything but digits and a leading plus, then prefixes "+" when missing.
func FormatPhoneNumber(phoneNumber string) string {
	var b strings.Builder
	b.Grow(len(phoneNumber) + 1)

	for i, r := range phoneNumber {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if !strings.HasPrefix(cleaned, "+") {
		cleaned = "+" + cleaned
	}
	return cleaned
}

// IsValidPhoneNumber reports whether the number, once formatted, looks
// deliverable: a plus followed by 10 to 15 digits.
func IsValidPhoneNumber(phoneNumber string) bool {
	return phonePattern.MatchString(FormatPhoneNumber(phoneNumber))
}

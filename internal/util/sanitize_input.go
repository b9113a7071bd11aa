package util

import (
	"html"
	"net/mail"
	"strings"
)

// SanitizeInput trims and escapes HTML/script-like characters
func SanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return html.EscapeString(s)
}

// MaskEmail keeps the first character of the local part for log output
func MaskEmail(email string) string {
	addr, err := mail.ParseAddress(email)
	if err == nil {
		email = addr.Address
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

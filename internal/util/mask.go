package util

import "strings"

// MaskSecret hides all but the last four characters of a credential.
// OAuth secrets and bearer tokens go through this before reaching a log line.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return "..." + s[len(s)-4:]
}

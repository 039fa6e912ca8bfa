package utils

import "strings"

// MaskEmail reduces an email address to its first local character and domain
// so OTP throttle logs never carry the full address.
// "user@example.com" becomes "u***@example.com".
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	masked := "***"
	if local != "" {
		masked = local[:1] + "***"
	}
	return masked + "@" + domain
}

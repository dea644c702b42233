package identity

import "strings"

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DefaultName derives a display name for a profile synthesized on first
// sight of an account: the local part of the email, the whole string when it
// has no "@", or a plain placeholder when the account carries no email.
func DefaultName(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	if email != "" {
		return email
	}
	return "user"
}

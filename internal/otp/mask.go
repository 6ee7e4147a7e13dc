package otp

import "strings"

// MaskIdentity hides the middle of a phone number for logs, events and tickets:
// "+15550000" becomes "+155***00". Values of six characters or fewer are fully masked.
func MaskIdentity(identity string) string {
	r := []rune(identity)
	if len(r) <= 6 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:4]) + strings.Repeat("*", len(r)-6) + string(r[len(r)-2:])
}

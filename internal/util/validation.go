package util

import (
	"regexp"
	"strings"
)

var (
	hexTokenRegex = regexp.MustCompile(`^[0-9a-f]{64}$`)
	guestIDRegex  = regexp.MustCompile(`^guest_[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// IsValidToken reports whether s has the shape produced by GenerateToken.
func IsValidToken(s string) bool {
	return hexTokenRegex.MatchString(s)
}

// IsValidGuestID reports whether s has the shape produced by NewGuestID.
func IsValidGuestID(s string) bool {
	return guestIDRegex.MatchString(s)
}

// NormalizeCode strips all whitespace and upper-cases a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), ""))
}

// Package utils holds small helpers shared across the relay.
package utils

// MaskToken redacts a secret for logging, keeping just enough of the ends
// to tell two tokens apart.
func MaskToken(token string) string {
	if token == "" {
		return "(none)"
	}
	if len(token) < 10 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

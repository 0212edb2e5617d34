package util

import "strings"

// IsTruthy interprets common spellings of a boolean flag in configuration values.
func IsTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

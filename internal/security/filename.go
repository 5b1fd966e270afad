// Package security provides helpers for safely embedding user-provided
// identifiers into filesystem and download file names.
package security

import "strings"

// SanitizeFilename makes a safe filename from an arbitrary string, such as a
// user-chosen training set name. Characters outside ASCII letters, digits,
// dot, underscore and dash are replaced with an underscore, runs of
// underscores are collapsed, and the result is capped at 128 characters.
func SanitizeFilename(s string) string {
	if s == "" {
		return "unknown"
	}
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

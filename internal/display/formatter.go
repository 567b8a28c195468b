package display

import (
	"strings"
)

// FormatTags formats a list of tags into a bracketed string representation.
// Empty or nil slices return "[]".
func FormatTags(tags []string) string {
	return "[" + strings.Join(tags, ", ") + "]"
}

// ShortDigest strips the algorithm prefix and keeps the first 12 characters.
func ShortDigest(digest string) string {
	if idx := strings.Index(digest, ":"); idx >= 0 {
		digest = digest[idx+1:]
	}
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

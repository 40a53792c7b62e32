package menu

import (
	"strings"
	"unicode"
)

// Default slug lengths used by the daily and history uploads.
const (
	DefaultSlugLength = 50
	HistorySlugLength = 60
)

// Slug derives the storage key for a dish name: lowercase, letters, digits,
// spaces and hyphens only, trimmed, spaces replaced by hyphens, cut to maxLen
// characters. Keeping hyphens makes Slug idempotent. Distinct
// names that share a slug share a record.
func Slug(name string, maxLen int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' {
			b.WriteRune(r)
		}
	}
	slug := strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "-")
	if maxLen > 0 {
		slug = truncate(slug, maxLen)
	}
	return slug
}

// CompactID derives a retail location id: lowercase alphanumerics only.
func CompactID(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// truncate keeps the first maxLen runes of s.
func truncate(s string, maxLen int) string {
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i]
		}
		n++
	}
	return s
}

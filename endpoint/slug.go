package endpoint

import "strings"

// Slugify derives a URL-safe slug from a human-readable name: lowercase,
// runs of non-alphanumerics collapsed to single dashes, no leading or
// trailing dash.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	return b.String()
}

// ValidSlug reports whether s is a well-formed slug: non-empty, lowercase
// alphanumerics and single interior dashes only.
func ValidSlug(s string) bool {
	if s == "" {
		return false
	}
	return s == Slugify(s)
}

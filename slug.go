package postadmin

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fallbackSlug is used when a title has no characters that survive Slugify.
const fallbackSlug = "post"

// Slugify converts a title to a URL-safe slug: lowercase ASCII letters and
// digits separated by single hyphens. Accents are folded first so "Café"
// becomes "cafe"; other non-ASCII letters are dropped.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(foldAccents(s)))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// ValidSlug reports whether s is already in the canonical Slugify form.
func ValidSlug(s string) bool {
	return s != "" && Slugify(s) == s
}

// GenerateSlug derives a slug from title that is not in existing. On a
// collision it appends -2, -3, ... until the candidate is free. The result
// depends only on its inputs.
func GenerateSlug(title string, existing map[string]struct{}) string {
	base := Slugify(title)
	if base == "" {
		base = fallbackSlug
	}
	if _, taken := existing[base]; !taken {
		return base
	}
	for n := 2; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if _, taken := existing[candidate]; !taken {
			return candidate
		}
	}
}

// slugBase is the value GenerateSlug would start from for title.
func slugBase(title string) string {
	if base := Slugify(title); base != "" {
		return base
	}
	return fallbackSlug
}

package model

import "strings"

// Slugify lowercases label and collapses every run of characters outside
// [a-z0-9] into a single hyphen, trimming hyphens at both ends.
// "Netflix, Inc." becomes "netflix-inc".
func Slugify(label string) string {
	return collapse(label, '-')
}

// collapse lowercases s and replaces runs of non [a-z0-9] characters with sep.
func collapse(s string, sep byte) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte(sep)
			}
			pending = false
			b.WriteByte(c)
			continue
		}
		pending = true
	}
	return b.String()
}

// NormalizeName lowercases name and collapses non-alphanumeric runs into single spaces.
// "Netflix Inc" and "netflix inc." normalize to the same key.
func NormalizeName(name string) string {
	return collapse(name, ' ')
}

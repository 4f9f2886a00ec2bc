// Package textnorm canonicalizes catalog titles and search queries so that
// spelling variants of the same name compare equal.
package textnorm

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes text for matching. It lower-cases, folds ё to е,
// collapses runs of a repeated letter to a single occurrence, drops every rune
// that is not a Cyrillic or Latin letter, a digit or whitespace, and squeezes
// whitespace runs into single spaces with trimmed ends.
//
// Normalize is pure, never fails, and is idempotent: repeated runs are
// collapsed against the last kept rune, so a second pass is a no-op.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	var last rune
	pendingSpace := false
	empty := true

	for _, r := range text {
		r = unicode.ToLower(r)
		if r == 'ё' {
			r = 'е'
		}
		if unicode.IsSpace(r) {
			pendingSpace = true
			last = 0
			continue
		}
		if !allowed(r) {
			continue
		}
		if r == last {
			continue
		}
		if pendingSpace && !empty {
			b.WriteRune(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
		last = r
		empty = false
	}

	return b.String()
}

// allowed reports whether a lower-cased rune survives normalization.
func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'а' && r <= 'я':
		return true
	case r >= '0' && r <= '9':
		return true
	}
	return false
}

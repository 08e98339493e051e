// Package slug normalizes free text into lowercase snake-case identifiers,
// the form metadata keys are stored in.
package slug

import (
	"regexp"
	"strings"
)

// MaxLen bounds a slug's length in bytes.
const MaxLen = 64

var reSlug = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// IsSlug reports whether s is already a valid slug.
func IsSlug(s string) bool {
	return reSlug.MatchString(s)
}

// Slugify lowercases s, turns every run of other characters into a single
// '_', trims underscores at both ends and cuts the result to MaxLen.
// "Cost Center" becomes "cost_center".
func Slugify(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !ok {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
		if b.Len() >= MaxLen {
			break
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// Package slug derives heading anchors the way GitHub renders them.
package slug

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is used for headings with no sluggable characters.
const Fallback = "section"

var lower = cases.Lower(language.Und)

// Make returns the slug of text without de-duplication.
//
// Text is case-folded and stripped of diacritics; letters, digits, hyphens and
// underscores are kept; whitespace becomes a hyphen; everything else is dropped.
func Make(text string) string {
	folded := lower.String(strings.TrimSpace(text))
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if s, _, err := transform.String(t, folded); err == nil {
		folded = s
	}

	var b strings.Builder
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return Fallback
	}
	return b.String()
}

// Slugger hands out unique slugs within one document. Repeats get a numeric
// suffix: "intro", "intro-1", "intro-2".
type Slugger struct {
	seen map[string]int
}

// New returns an empty Slugger.
func New() *Slugger {
	return &Slugger{seen: map[string]int{}}
}

// Slug returns the unique slug for text.
func (s *Slugger) Slug(text string) string {
	base := Make(text)
	candidate := base
	for {
		n, taken := s.seen[candidate]
		if !taken {
			break
		}
		s.seen[candidate] = n + 1
		candidate = base + "-" + strconv.Itoa(n+1)
	}
	s.seen[candidate] = 0
	return candidate
}

// Reset forgets every slug handed out so far.
func (s *Slugger) Reset() {
	s.seen = map[string]int{}
}

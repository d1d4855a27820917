package resolve

import (
	"regexp"
	"strings"

	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

var (
	slugStripRe    = regexp.MustCompile(`[^a-z0-9\s-]+`)
	slugCollapseRe = regexp.MustCompile(`[\s-]+`)
)

// connectorWords are ignored when matching a URL fragment against a chapter title
var connectorWords = map[string]struct{}{
	"and": {},
	"of":  {},
	"for": {},
	"or":  {},
}

// Slugify lowercases s, drops everything outside [a-z0-9-] and whitespace,
// and joins the remaining words with single hyphens.
// "Strength of Materials & Structures" becomes "strength-of-materials-structures".
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = slugStripRe.ReplaceAllString(s, "")
	s = slugCollapseRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// looseSlug is Slugify with connector words removed
func looseSlug(s string) string {
	words := strings.Split(Slugify(s), "-")
	kept := words[:0]
	for _, w := range words {
		if _, skip := connectorWords[w]; !skip && w != "" {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, "-")
}

// SlugMatches reports whether a chapter title corresponds to a URL fragment
func SlugMatches(title, fragment string) bool {
	a, b := Slugify(title), Slugify(fragment)
	if a == "" || b == "" {
		return false
	}
	return a == b || looseSlug(title) == looseSlug(fragment)
}

// ProgressStem names the progress file of a run. Titles without any
// slug characters fall back to a hash of the seed URL.
func ProgressStem(title, seedURL string) string {
	if slug := Slugify(title); slug != "" {
		return slug
	}
	return "run-" + utils.ShortHash(seedURL, 12)
}

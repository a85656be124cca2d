// Package sanitize cleans free text typed by visitors and agents before it
// is stored or pushed to other subscribers.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	blankRun     = regexp.MustCompile(`[ \t]+`)
	entityDecode = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&", "&quot;", `"`, "&#39;", "'")
)

// Text strips markup, decodes the common entities and collapses runs of
// blanks. Newlines are kept so multi-line notes and messages survive.
func Text(s string) string {
	// decoding can reveal a tag that was escaped once, so strip again
	s = tagPattern.ReplaceAllString(s, "")
	s = tagPattern.ReplaceAllString(entityDecode.Replace(s), "")
	return blankRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Truncate cuts s to at most maxRunes runes. A non-positive limit keeps s.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes])
}

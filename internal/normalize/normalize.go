// Package normalize folds catalog text into the forms used for ordering, search, and display.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// leadingArticles are dropped from the front of sort titles.
var leadingArticles = []string{"the ", "a ", "an "}

// Fold lowercases s, strips diacritics, and collapses whitespace.
// "  Les Misérables " -> "les miserables".
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// SortTitle is Fold with a leading English article removed.
// "The Left Hand of Darkness" -> "left hand of darkness".
func SortTitle(title string) string {
	s := Fold(title)
	for _, article := range leadingArticles {
		if rest, ok := strings.CutPrefix(s, article); ok && rest != "" {
			return rest
		}
	}
	return s
}

// SortAuthor puts the last name first so "Ursula K. Le Guin" sorts under "le guin".
// Names that already contain a comma are assumed to be in that form.
func SortAuthor(author string) string {
	s := Fold(author)
	if s == "" || strings.Contains(s, ",") {
		return s
	}
	parts := strings.Fields(s)
	if len(parts) < 2 {
		return s
	}
	last := parts[len(parts)-1]
	// Particles stay with the surname.
	i := len(parts) - 1
	for i > 1 && isParticle(parts[i-1]) {
		i--
		last = parts[i] + " " + last
	}
	return last + ", " + strings.Join(parts[:i], " ")
}

func isParticle(s string) bool {
	switch s {
	case "le", "la", "de", "du", "van", "von", "der", "di", "da":
		return true
	}
	return false
}

// Description converts HTML descriptions to Markdown. Plain text is returned trimmed.
func Description(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !htmlTagPattern.MatchString(strings.ToLower(s)) {
		return s
	}
	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(markdown)
}

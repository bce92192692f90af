// Package textutil holds the small text helpers shared by filtering, scoring,
// theming and extraction.
package textutil

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// Normalize lowercases text, turns everything but letters, digits and
// apostrophes into spaces and collapses whitespace.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		case r == '\'' || r == '’':
			if !space {
				b.WriteRune('\'')
			}
		default:
			if !space {
				b.WriteRune(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// NormalizeTitle lowercases and strips punctuation entirely, used as a dedupe key
func NormalizeTitle(title string) string {
	return strings.ReplaceAll(Normalize(title), "'", "")
}

// Tokenize splits normalized text into words
func Tokenize(text string) []string {
	return strings.Fields(Normalize(text))
}

// ContainsTerm reports whether term occurs in text starting at a word boundary.
// Both sides are normalized, so "Frustrating!" matches the term "frustrat".
func ContainsTerm(normalized, term string) bool {
	term = Normalize(term)
	if term == "" {
		return false
	}
	return strings.Contains(" "+normalized, " "+term)
}

// CountTerms counts how many distinct terms occur in normalized text
func CountTerms(normalized string, terms []string) int {
	hits := 0
	for _, term := range terms {
		if ContainsTerm(normalized, term) {
			hits++
		}
	}
	return hits
}

// SplitSentences breaks text into trimmed sentences on . ! ? and newlines
func SplitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder
	flush := func() {
		s := strings.Join(strings.Fields(cur.String()), " ")
		if s != "" {
			sentences = append(sentences, s)
		}
		cur.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		switch r {
		case '\n', '\r':
			flush()
		case '.', '!', '?':
			cur.WriteRune(r)
			// keep "e.g." and "3.5" together
			if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
				continue
			}
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return sentences
}

// WordCount counts whitespace separated words
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Truncate shortens s to at most max runes, cutting at the last space and
// appending an ellipsis when anything was removed.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	cut := string(runes[:max])
	if lastSpace := strings.LastIndex(cut, " "); lastSpace > max/2 {
		cut = cut[:lastSpace]
	}
	return strings.TrimRight(cut, " ,;:") + "..."
}

// Clip shortens s to at most max runes without an ellipsis
func Clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// StripHTML converts an HTML fragment into plain text with collapsed whitespace
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	// keep block boundaries as sentence breaks
	doc.Find("p, br, li, pre, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// TitleCase upper-cases the first letter of every word
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

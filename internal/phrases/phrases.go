// Package phrases extracts corpus-level top phrases and sentence-level pain
// quotes (frictions and receipts).
package phrases

import (
	"sort"
	"strings"

	"github.com/painradar/painradar/internal/lexicon"
	"github.com/painradar/painradar/internal/models"
	"github.com/painradar/painradar/internal/textutil"
)

const (
	// DefaultTopPhrases is the number of phrases kept in a report
	DefaultTopPhrases = 10

	minPhraseWords = 2
	maxPhraseWords = 5
)

type phraseCount struct {
	key     string
	display string
	words   int
	count   int
}

// TopPhrases returns the k most frequent 2-5 word phrases that mention a
// domain anchor. Plurals share a key and the shorter surface form is shown.
// Phrases seen once are dropped, as are phrases contained in a phrase at least
// as frequent unless the lexicon sets KeepSubPhrases.
func TopPhrases(items []models.ScoredItem, lex *lexicon.Lexicon, k int) []models.Phrase {
	counts := make(map[string]*phraseCount)
	var sentences []string
	for _, item := range items {
		sentences = append(sentences, textutil.SplitSentences(item.Title)...)
		sentences = append(sentences, textutil.SplitSentences(item.Body)...)
	}

	for _, sentence := range sentences {
		tokens := textutil.Tokenize(sentence)
		for n := minPhraseWords; n <= maxPhraseWords; n++ {
			for i := 0; i+n <= len(tokens); i++ {
				window := tokens[i : i+n]
				if !keepPhrase(window, lex) {
					continue
				}
				key := phraseKey(window)
				surface := strings.Join(window, " ")
				pc, ok := counts[key]
				if !ok {
					pc = &phraseCount{key: key, display: surface, words: n}
					counts[key] = pc
				}
				pc.count++
				if len(surface) < len(pc.display) || (len(surface) == len(pc.display) && surface < pc.display) {
					pc.display = surface
				}
			}
		}
	}

	var ranked []*phraseCount
	for _, pc := range counts {
		if pc.count > 1 {
			ranked = append(ranked, pc)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		if ranked[i].words != ranked[j].words {
			return ranked[i].words > ranked[j].words
		}
		return ranked[i].key < ranked[j].key
	})

	phrases := []models.Phrase{}
	var kept []string
	for _, pc := range ranked {
		if len(phrases) >= k {
			break
		}
		if !lex.KeepSubPhrases && containedIn(pc.key, kept) {
			continue
		}
		kept = append(kept, pc.key)
		phrases = append(phrases, models.Phrase{Text: pc.display, Count: pc.count})
	}
	return phrases
}

func keepPhrase(window []string, lex *lexicon.Lexicon) bool {
	if lex.IsStopword(window[0]) || lex.IsStopword(window[len(window)-1]) {
		return false
	}
	for _, tok := range window {
		if lex.IsAnchor(tok) {
			return true
		}
	}
	return false
}

func phraseKey(window []string) string {
	keys := make([]string, len(window))
	for i, tok := range window {
		keys[i] = lexicon.Singular(tok)
	}
	return strings.Join(keys, " ")
}

// containedIn reports whether key is a word-aligned part of any kept key
func containedIn(key string, kept []string) bool {
	for _, k := range kept {
		if strings.Contains(" "+k+" ", " "+key+" ") {
			return true
		}
	}
	return false
}

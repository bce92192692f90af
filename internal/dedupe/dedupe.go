// Package dedupe drops duplicate items from a merged corpus.
package dedupe

import (
	"github.com/painradar/painradar/internal/models"
	"github.com/painradar/painradar/internal/textutil"
)

// Deduplicator keeps the first occurrence of every item. Two items are
// duplicates when they share an id or a normalized title, or when
// TitleSimilarity is positive and their title token sets overlap at least
// that much (Jaccard).
type Deduplicator struct {
	TitleSimilarity float64
}

// New creates a deduplicator; threshold 0 disables fuzzy title matching
func New(titleSimilarity float64) *Deduplicator {
	return &Deduplicator{TitleSimilarity: titleSimilarity}
}

// Dedupe returns items in their original order with later duplicates removed
func (d *Deduplicator) Dedupe(items []models.RawItem) []models.RawItem {
	seenIDs := make(map[string]bool, len(items))
	seenTitles := make(map[string]bool, len(items))
	var keptTokens []map[string]bool

	unique := make([]models.RawItem, 0, len(items))
	for _, item := range items {
		if seenIDs[item.ID] {
			continue
		}
		title := textutil.NormalizeTitle(item.Title)
		if title != "" && seenTitles[title] {
			continue
		}

		var tokens map[string]bool
		if d.TitleSimilarity > 0 && title != "" {
			tokens = tokenSet(title)
			if d.similarToKept(tokens, keptTokens) {
				continue
			}
			keptTokens = append(keptTokens, tokens)
		}

		seenIDs[item.ID] = true
		if title != "" {
			seenTitles[title] = true
		}
		unique = append(unique, item)
	}
	return unique
}

func (d *Deduplicator) similarToKept(tokens map[string]bool, kept []map[string]bool) bool {
	for _, other := range kept {
		if Jaccard(tokens, other) >= d.TitleSimilarity {
			return true
		}
	}
	return false
}

func tokenSet(normalized string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range textutil.Tokenize(normalized) {
		set[tok] = true
	}
	return set
}

// Jaccard is |a∩b| / |a∪b|; two empty sets score 0
func Jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

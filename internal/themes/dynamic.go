package themes

import (
	"context"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/painradar/painradar/internal/embedding"
	"github.com/painradar/painradar/internal/lexicon"
	"github.com/painradar/painradar/internal/models"
	"github.com/painradar/painradar/internal/textutil"
)

const (
	minThemeMembers   = 3
	minClaimedMembers = 2

	// DefaultMergeDistance is the Ward distance under which two candidate
	// phrases count as synonyms; for unit vectors 0.6 is a cosine of 0.82.
	DefaultMergeDistance = 0.6
	maxMergeCandidates   = 30
)

// patterns are mined as dedicated phrases: the prefix plus the next
// non-stop-word
var patterns = [][]string{
	{"alternative", "to"},
	{"looking", "for"},
	{"problem", "with"},
	{"issue", "with"},
	{"hate"},
	{"frustrated", "with"},
}

// Dynamic mines pain and buyer n-grams from the corpus and claims items for
// the strongest of them
type Dynamic struct {
	lex           *lexicon.Lexicon
	model         *embedding.Model
	maxThemes     int
	mergeDistance float64
}

// NewDynamic creates the dynamic strategy; model is optional and only used to
// merge synonymous candidates
func NewDynamic(lex *lexicon.Lexicon, model *embedding.Model, maxThemes int) *Dynamic {
	if maxThemes <= 0 {
		maxThemes = DefaultMaxThemes
	}
	return &Dynamic{lex: lex, model: model, maxThemes: maxThemes, mergeDistance: DefaultMergeDistance}
}

type candidate struct {
	phrase  string
	members []int // indexes into the corpus, ascending
	pain    float64
	buyer   float64
}

func (c *candidate) rank() float64 {
	return float64(len(c.members)) * (c.pain + c.buyer)
}

// Build returns at most maxThemes themes with pairwise disjoint members
func (d *Dynamic) Build(ctx context.Context, query string, items []models.ScoredItem) []models.Theme {
	themes := []models.Theme{}
	for _, c := range d.claim(ctx, query, items) {
		members := make([]models.ScoredItem, len(c.members))
		for i, idx := range c.members {
			members[i] = items[idx]
		}
		themes = append(themes, summarize(textutil.TitleCase(c.phrase), members, len(items)))
	}
	return themes
}

// claim walks the ranked candidates and hands each one the items no higher
// ranked candidate took. The returned member sets are disjoint.
func (d *Dynamic) claim(ctx context.Context, query string, items []models.ScoredItem) []*candidate {
	candidates := d.candidates(query, items)
	if len(candidates) == 0 {
		return nil
	}
	candidates = d.mergeSynonyms(ctx, candidates, items)

	claimed := make(map[int]bool)
	var kept []*candidate
	for _, c := range candidates {
		if len(kept) >= d.maxThemes {
			break
		}
		var indexes []int
		for _, idx := range c.members {
			if !claimed[idx] {
				indexes = append(indexes, idx)
			}
		}
		if len(indexes) < minClaimedMembers {
			continue
		}
		for _, idx := range indexes {
			claimed[idx] = true
		}
		kept = append(kept, &candidate{phrase: c.phrase, members: indexes, pain: c.pain, buyer: c.buyer})
	}
	return kept
}

// candidates aggregates qualifying n-grams over items with any pain or buyer
// signal, drops those backed by fewer than three items and ranks the rest
func (d *Dynamic) candidates(query string, items []models.ScoredItem) []*candidate {
	queryTokens := make(map[string]bool)
	for _, tok := range textutil.Tokenize(query) {
		queryTokens[lexicon.Singular(tok)] = true
	}

	byPhrase := make(map[string]*candidate)
	for idx, item := range items {
		if item.PainScore <= 0 && item.BuyerScore <= 0 {
			continue
		}
		for phrase := range d.itemPhrases(item.RawItem, queryTokens) {
			c, ok := byPhrase[phrase]
			if !ok {
				c = &candidate{phrase: phrase}
				byPhrase[phrase] = c
			}
			c.members = append(c.members, idx)
			c.pain += item.PainScore
			c.buyer += item.BuyerScore
		}
	}

	var ranked []*candidate
	for _, c := range byPhrase {
		if len(c.members) >= minThemeMembers {
			ranked = append(ranked, c)
		}
	}
	sortCandidates(ranked)
	return ranked
}

func sortCandidates(cs []*candidate) {
	sort.Slice(cs, func(i, j int) bool {
		ri, rj := cs[i].rank(), cs[j].rank()
		if ri != rj {
			return ri > rj
		}
		if len(cs[i].members) != len(cs[j].members) {
			return len(cs[i].members) > len(cs[j].members)
		}
		return cs[i].phrase < cs[j].phrase
	})
}

// itemPhrases returns the distinct qualifying phrases of one item
func (d *Dynamic) itemPhrases(item models.RawItem, queryTokens map[string]bool) map[string]bool {
	phrases := make(map[string]bool)
	var sentences []string
	sentences = append(sentences, textutil.SplitSentences(item.Title)...)
	sentences = append(sentences, textutil.SplitSentences(item.Body)...)

	for _, sentence := range sentences {
		tokens := textutil.Tokenize(sentence)
		for n := 2; n <= 3; n++ {
			for i := 0; i+n <= len(tokens); i++ {
				window := tokens[i : i+n]
				if d.keepWindow(window, queryTokens) {
					phrases[strings.Join(window, " ")] = true
				}
			}
		}
		for _, phrase := range d.patternPhrases(tokens) {
			phrases[phrase] = true
		}
	}
	return phrases
}

// keepWindow requires a context token, no stop-word at either edge and at
// least one token that is not part of the query itself
func (d *Dynamic) keepWindow(window []string, queryTokens map[string]bool) bool {
	if d.lex.IsStopword(window[0]) || d.lex.IsStopword(window[len(window)-1]) {
		return false
	}
	hasContext, allStop, allQuery := false, true, true
	for _, tok := range window {
		if d.lex.IsContext(tok) {
			hasContext = true
		}
		stop := d.lex.IsStopword(tok)
		if !stop {
			allStop = false
			if !queryTokens[lexicon.Singular(tok)] {
				allQuery = false
			}
		}
	}
	return hasContext && !allStop && !allQuery
}

func (d *Dynamic) patternPhrases(tokens []string) []string {
	var out []string
	for i := range tokens {
		for _, p := range patterns {
			if i+len(p) > len(tokens) || !hasPrefix(tokens[i:], p) {
				continue
			}
			// take the next meaningful word, skipping up to two stop-words
			for j := i + len(p); j < len(tokens) && j <= i+len(p)+2; j++ {
				if d.lex.IsStopword(tokens[j]) {
					continue
				}
				out = append(out, strings.Join(append(append([]string{}, p...), tokens[j]), " "))
				break
			}
		}
	}
	return out
}

func hasPrefix(tokens, prefix []string) bool {
	for i, p := range prefix {
		if tokens[i] != p {
			return false
		}
	}
	return true
}

// mergeSynonyms folds candidates whose phrases embed close together into the
// highest ranked one of their Ward cluster. Without a model the candidates are
// returned unchanged.
func (d *Dynamic) mergeSynonyms(ctx context.Context, candidates []*candidate, items []models.ScoredItem) []*candidate {
	if len(candidates) < 2 || !d.model.Available(ctx) {
		return candidates
	}

	head := candidates
	if len(head) > maxMergeCandidates {
		head = candidates[:maxMergeCandidates]
	}
	phrases := make([]string, len(head))
	for i, c := range head {
		phrases[i] = c.phrase
	}
	vectors, err := d.model.Embed(ctx, phrases)
	if err != nil {
		logrus.Warnf("Skipping theme synonym merge: %v", err)
		return candidates
	}
	labels := cutDendrogram(wardLinkage(vectors), len(head), d.mergeDistance)

	// head is ranked, so the first candidate seen per label is the keeper
	keeper := make(map[int]*candidate)
	var merged []*candidate
	for i, c := range head {
		k, ok := keeper[labels[i]]
		if !ok {
			keeper[labels[i]] = c
			merged = append(merged, c)
			continue
		}
		logrus.Debugf("Merging theme candidate %q into %q", c.phrase, k.phrase)
		k.absorb(c, items)
	}
	merged = append(merged, candidates[len(head):]...)
	sortCandidates(merged)
	return merged
}

// absorb unions other's members into c and recomputes the signal sums
func (c *candidate) absorb(other *candidate, items []models.ScoredItem) {
	set := make(map[int]bool, len(c.members)+len(other.members))
	for _, idx := range c.members {
		set[idx] = true
	}
	for _, idx := range other.members {
		set[idx] = true
	}
	c.members = c.members[:0]
	for idx := range set {
		c.members = append(c.members, idx)
	}
	sort.Ints(c.members)

	c.pain, c.buyer = 0, 0
	for _, idx := range c.members {
		c.pain += items[idx].PainScore
		c.buyer += items[idx].BuyerScore
	}
}

package phrases

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/painradar/painradar/internal/lexicon"
	"github.com/painradar/painradar/internal/models"
	"github.com/painradar/painradar/internal/signals"
	"github.com/painradar/painradar/internal/textutil"
)

// Band bounds the word count of extracted sentences
type Band struct {
	MinWords int
	MaxWords int
}

var (
	// FrictionBand selects short, punchy complaints
	FrictionBand = Band{MinWords: 5, MaxWords: 25}
	// ReceiptBand selects longer first-hand accounts
	ReceiptBand = Band{MinWords: 8, MaxWords: 45}
)

const (
	// DefaultQuotes is the number of frictions and receipts kept in a report
	DefaultQuotes = 6

	semanticThreshold = 0.45
	lexicalThreshold  = 0.25
	lexicalPerHit     = 0.25
	markerBonus       = 0.1
	maxEngagement     = 0.1
	engagementPerUnit = 0.02
	maxCandidates     = 400
	dedupePrefix      = 40
)

// Extractor ranks corpus sentences by how much pain they express
type Extractor struct {
	lex      *lexicon.Lexicon
	detector *signals.Detector
	scorer   *signals.PainScorer
}

// NewExtractor creates an extractor; scorer may be nil, in which case pain is
// estimated from vocabulary hits
func NewExtractor(lex *lexicon.Lexicon, scorer *signals.PainScorer) *Extractor {
	return &Extractor{lex: lex, detector: signals.NewDetector(lex), scorer: scorer}
}

type sentence struct {
	text   string
	item   *models.ScoredItem
	hits   int
	score  float64
	bonus  float64
	offset int
}

// Frictions returns the top k short pain sentences
func (e *Extractor) Frictions(ctx context.Context, items []models.ScoredItem, k int) []models.Quote {
	return e.Extract(ctx, items, FrictionBand, k)
}

// Receipts returns the top k longer pain sentences
func (e *Extractor) Receipts(ctx context.Context, items []models.ScoredItem, k int) []models.Quote {
	return e.Extract(ctx, items, ReceiptBand, k)
}

// Extract splits titles, bodies and comments into sentences within band,
// scores them and returns the best k, deduplicated on a lowercase prefix.
func (e *Extractor) Extract(ctx context.Context, items []models.ScoredItem, band Band, k int) []models.Quote {
	candidates := e.candidates(items, band)
	if len(candidates) == 0 || k <= 0 {
		return []models.Quote{}
	}

	threshold := e.score(ctx, candidates)

	var kept []*sentence
	for _, c := range candidates {
		if c.score < threshold {
			continue
		}
		c.bonus = e.bonus(c)
		kept = append(kept, c)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].score+kept[i].bonus > kept[j].score+kept[j].bonus
	})

	quotes := []models.Quote{}
	seen := make(map[string]bool)
	for _, c := range kept {
		if len(quotes) >= k {
			break
		}
		prefix := textutil.Clip(strings.ToLower(c.text), dedupePrefix)
		if seen[prefix] {
			continue
		}
		seen[prefix] = true
		quotes = append(quotes, models.Quote{
			Text:   c.text,
			URL:    c.item.URL,
			Source: c.item.Source,
			Score:  math.Round((c.score+c.bonus)*100) / 100,
		})
	}
	return quotes
}

// candidates collects in-band sentences. Past maxCandidates the sentences with
// the most pain vocabulary are kept.
func (e *Extractor) candidates(items []models.ScoredItem, band Band) []*sentence {
	var out []*sentence
	seen := make(map[string]bool)
	for i := range items {
		item := &items[i]
		texts := append([]string{item.Title, item.Body}, item.TopComments...)
		for _, text := range texts {
			for _, s := range textutil.SplitSentences(text) {
				words := textutil.WordCount(s)
				if words < band.MinWords || words > band.MaxWords {
					continue
				}
				key := strings.ToLower(s)
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, &sentence{text: s, item: item, hits: e.detector.PainHits(s), offset: len(out)})
			}
		}
	}

	if len(out) > maxCandidates {
		sort.SliceStable(out, func(i, j int) bool { return out[i].hits > out[j].hits })
		out = out[:maxCandidates]
		sort.Slice(out, func(i, j int) bool { return out[i].offset < out[j].offset })
	}
	return out
}

// score fills in the pain score of every candidate and returns the threshold
// that applies to the method used
func (e *Extractor) score(ctx context.Context, candidates []*sentence) float64 {
	if e.scorer.Available(ctx) {
		texts := make([]string, len(candidates))
		for i, c := range candidates {
			texts[i] = c.text
		}
		sims, err := e.scorer.Score(ctx, texts)
		if err == nil {
			for i, c := range candidates {
				c.score = sims[i]
			}
			return semanticThreshold
		}
		logrus.Warnf("Semantic quote scoring failed, using vocabulary hits: %v", err)
	}

	for _, c := range candidates {
		c.score = math.Min(1, lexicalPerHit*float64(c.hits))
	}
	return lexicalThreshold
}

// bonus rewards narrative and constraint markers and engagement of the source
// item
func (e *Extractor) bonus(c *sentence) float64 {
	normalized := textutil.Normalize(c.text)
	var bonus float64
	if textutil.CountTerms(normalized, e.lex.Narrative) > 0 {
		bonus += markerBonus
	}
	if textutil.CountTerms(normalized, e.lex.Constraints) > 0 {
		bonus += markerBonus
	}
	return bonus + math.Min(maxEngagement, engagementPerUnit*c.item.EngagementWeight)
}

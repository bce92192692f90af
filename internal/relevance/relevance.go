// Package relevance removes spam and off-topic items from the merged corpus.
package relevance

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

// DefaultThreshold is the minimum query/item cosine similarity
const DefaultThreshold = 0.35

// maxItemChars bounds the text embedded per item
const maxItemChars = 512

// Outcome is the filtered corpus. Semantic is false when the embedding model
// was unavailable and only the blacklist gate ran.
type Outcome struct {
	Items       []models.ScoredItem
	Semantic    bool
	Blacklisted int
	OffTopic    int
}

// Filter applies a lexical blacklist gate followed by a semantic similarity gate
type Filter struct {
	blacklist []string
	model     *embedding.Model
	threshold float64
}

// NewFilter creates a filter; model may be nil
func NewFilter(lex *lexicon.Lexicon, model *embedding.Model, threshold float64) *Filter {
	blacklist := make([]string, len(lex.Blacklist))
	for i, term := range lex.Blacklist {
		blacklist[i] = strings.ToLower(term)
	}
	return &Filter{blacklist: blacklist, model: model, threshold: threshold}
}

// Blacklisted reports whether an item contains any blacklisted term
func (f *Filter) Blacklisted(item models.RawItem) bool {
	text := strings.ToLower(item.Title + " " + item.Body)
	for _, term := range f.blacklist {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// Apply runs both gates. With the model available the output is sorted by
// similarity, highest first; otherwise input order is kept.
func (f *Filter) Apply(ctx context.Context, query string, items []models.RawItem) Outcome {
	var out Outcome
	var passed []models.RawItem
	for _, item := range items {
		if f.Blacklisted(item) {
			out.Blacklisted++
			continue
		}
		passed = append(passed, item)
	}

	if len(passed) == 0 {
		out.Semantic = f.model.Available(ctx)
		return out
	}

	sims, err := f.similarities(ctx, query, passed)
	if err != nil {
		logrus.Warnf("Semantic relevance gate skipped, falling back to blacklist only: %v", err)
		out.Items = make([]models.ScoredItem, len(passed))
		for i, item := range passed {
			out.Items[i] = models.ScoredItem{RawItem: item}
		}
		return out
	}

	out.Semantic = true
	for i, item := range passed {
		if sims[i] < f.threshold {
			out.OffTopic++
			continue
		}
		out.Items = append(out.Items, models.ScoredItem{RawItem: item, SemanticRelevance: sims[i]})
	}
	sort.SliceStable(out.Items, func(i, j int) bool {
		return out.Items[i].SemanticRelevance > out.Items[j].SemanticRelevance
	})
	return out
}

func (f *Filter) similarities(ctx context.Context, query string, items []models.RawItem) ([]float64, error) {
	texts := make([]string, 0, len(items)+1)
	texts = append(texts, query)
	for _, item := range items {
		texts = append(texts, textutil.Clip(item.Title+" "+item.Body, maxItemChars))
	}

	vectors, err := f.model.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	sims := make([]float64, len(items))
	for i := range items {
		sim := embedding.Cosine(vectors[0], vectors[i+1])
		if sim < 0 {
			sim = 0
		}
		sims[i] = sim
	}
	return sims, nil
}

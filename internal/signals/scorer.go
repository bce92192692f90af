package signals

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/painradar/painradar/internal/models"
	"github.com/painradar/painradar/internal/textutil"
)

// Scorer fills in PainScore and BuyerScore for a corpus: lexical hits, plus a
// semantic boost for items that read like a pain archetype when the model is
// available.
type Scorer struct {
	detector *Detector
	pain     *PainScorer
}

// NewScorer combines a lexical detector with an optional semantic scorer
func NewScorer(detector *Detector, pain *PainScorer) *Scorer {
	return &Scorer{detector: detector, pain: pain}
}

// Score updates items in place
func (s *Scorer) Score(ctx context.Context, items []models.ScoredItem) {
	for i := range items {
		items[i].PainScore, items[i].BuyerScore = s.detector.Detect(items[i].RawItem)
	}

	if len(items) == 0 || !s.pain.Available(ctx) {
		return
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = textutil.Clip(item.Text(), 512)
	}
	sims, err := s.pain.Score(ctx, texts)
	if err != nil {
		logrus.Warnf("Semantic pain scoring failed, using lexical scores only: %v", err)
		return
	}
	for i := range items {
		items[i].PainScore += Boost(sims[i])
	}
}

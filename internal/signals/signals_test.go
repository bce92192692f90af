package signals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/painradar/painradar/internal/embedding"
	"github.com/painradar/painradar/internal/embedding/embeddingtest"
	"github.com/painradar/painradar/internal/lexicon"
	"github.com/painradar/painradar/internal/models"
)

func TestDetector_Detect(t *testing.T) {
	d := NewDetector(lexicon.Default())

	tests := []struct {
		name          string
		item          models.RawItem
		expectedPain  float64
		expectedBuyer float64
	}{
		{
			name:          "Neutral text",
			item:          models.RawItem{Title: "Release notes for version 3", Body: "New dashboard layout"},
			expectedPain:  0,
			expectedBuyer: 0,
		},
		{
			name:          "Pain and buyer vocabulary",
			item:          models.RawItem{Title: "So frustrating, looking for an alternative to Zapier", Body: "It is way too expensive"},
			expectedPain:  2, // frustrat, expensive
			expectedBuyer: 2, // looking for, alternative to
		},
		{
			name: "Comments count half",
			item: models.RawItem{
				Title:       "Anyone using HubSpot",
				Body:        "Curious what people think",
				TopComments: []string{"It is a nightmare to configure", "the pricing is insane"},
			},
			expectedPain:  0.5,
			expectedBuyer: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pain, buyer := d.Detect(tt.item)
			assert.Equal(t, tt.expectedPain, pain)
			assert.Equal(t, tt.expectedBuyer, buyer)
		})
	}
}

func TestBoost(t *testing.T) {
	assert.Equal(t, 0.0, Boost(0.1))
	assert.Equal(t, 0.0, Boost(0.3))
	assert.InDelta(t, 1.0, Boost(0.5), 1e-9)
	assert.Equal(t, 2.0, Boost(0.9))
}

func TestPainScorer_Score(t *testing.T) {
	bow := &embeddingtest.BagOfWords{}
	scorer := NewPainScorer(embedding.NewStaticModel(bow), []string{"this tool keeps crashing and I am fed up"})

	scores, err := scorer.Score(context.Background(), []string{
		"this tool keeps crashing and I am fed up with it",
		"lovely weather in the park today",
	})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Greater(t, scores[0], 0.8)
	assert.Less(t, scores[1], 0.2)

	// archetypes are embedded once
	_, err = scorer.Score(context.Background(), []string{"another sentence"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), bow.Calls.Load())
}

func TestPainScorer_Unavailable(t *testing.T) {
	scorer := NewPainScorer(embedding.NewStaticModel(embeddingtest.Failing{}), []string{"pain"})
	_, err := scorer.Score(context.Background(), []string{"text"})
	assert.Error(t, err)

	var missing *PainScorer
	assert.False(t, missing.Available(context.Background()))
	_, err = missing.Score(context.Background(), []string{"text"})
	assert.ErrorIs(t, err, embedding.ErrUnavailable)
}

func TestScorer_Score(t *testing.T) {
	items := []models.ScoredItem{
		{RawItem: models.RawItem{Title: "this tool keeps crashing and I am fed up"}},
		{RawItem: models.RawItem{Title: "weekly product update for our users"}},
	}

	t.Run("Lexical only without a model", func(t *testing.T) {
		scored := append([]models.ScoredItem(nil), items...)
		NewScorer(NewDetector(lexicon.Default()), nil).Score(context.Background(), scored)
		assert.Equal(t, 2.0, scored[0].PainScore) // crash, fed up
		assert.Equal(t, 0.0, scored[1].PainScore)
	})

	t.Run("Semantic boost with a model", func(t *testing.T) {
		scored := append([]models.ScoredItem(nil), items...)
		pain := NewPainScorer(embedding.NewStaticModel(&embeddingtest.BagOfWords{}), []string{"this tool keeps crashing and I am fed up"})
		NewScorer(NewDetector(lexicon.Default()), pain).Score(context.Background(), scored)
		assert.Equal(t, 4.0, scored[0].PainScore)
		assert.Less(t, scored[1].PainScore, 1.0)
	})
}

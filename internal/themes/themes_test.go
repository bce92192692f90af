package themes

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/painradar/painradar/internal/embedding"
	"github.com/painradar/painradar/internal/embedding/embeddingtest"
	"github.com/painradar/painradar/internal/lexicon"
	"github.com/painradar/painradar/internal/models"
)

func item(id, title, body string, pain, buyer float64) models.ScoredItem {
	return models.ScoredItem{
		RawItem: models.RawItem{
			ID:     id,
			Title:  title,
			Body:   body,
			URL:    "https://example.com/" + id,
			Source: models.KindForum,
		},
		PainScore:  pain,
		BuyerScore: buyer,
	}
}

func dynamicCorpus() []models.ScoredItem {
	return []models.ScoredItem{
		item("0", "Zapier pricing is way too expensive for us", "The tiers doubled overnight", 2, 1),
		item("1", "Zapier pricing keeps going up every month", "", 1, 1),
		item("2", "Hate the Zapier pricing changes this year", "", 2, 1),
		item("3", "Looking for a tool that is cheaper", "Need to automate invoices", 0, 2),
		item("4", "Looking for a tool that handles webhooks", "", 0, 1),
		item("5", "Looking for a tool with better support", "", 1, 1),
		item("6", "Random post about nothing in particular", "", 0, 0),
	}
}

func TestDynamic_Build(t *testing.T) {
	d := NewDynamic(lexicon.Default(), nil, 5)
	themes := d.Build(context.Background(), "zapier", dynamicCorpus())

	require.GreaterOrEqual(t, len(themes), 2)
	assert.Equal(t, "Zapier Pricing", themes[0].Title)
	assert.Equal(t, "Looking For Tool", themes[1].Title)
	assert.Equal(t, 43, themes[0].Share)
	assert.Equal(t, 43, themes[1].Share)
	assert.LessOrEqual(t, len(themes[0].Quotes), 3)
	assert.LessOrEqual(t, len(themes[0].Sources), 3)
}

func TestDynamic_ThemesAreDisjoint(t *testing.T) {
	var corpus []models.ScoredItem
	topics := []string{"pricing", "support", "sync", "export", "setup"}
	for i := 0; i < 30; i++ {
		a, b := topics[i%len(topics)], topics[(i/2)%len(topics)]
		corpus = append(corpus, item(fmt.Sprint(i),
			fmt.Sprintf("crm %s and crm %s", a, b),
			fmt.Sprintf("the %s problem again", a),
			float64(i%3), float64(i%2)))
	}

	d := NewDynamic(lexicon.Default(), nil, 5)
	claims := d.claim(context.Background(), "hubspot", corpus)
	require.NotEmpty(t, claims)
	assert.LessOrEqual(t, len(claims), 5)

	owner := make(map[int]string)
	for _, c := range claims {
		assert.GreaterOrEqual(t, len(c.members), minClaimedMembers)
		for _, idx := range c.members {
			if other, ok := owner[idx]; ok {
				t.Fatalf("item %d claimed by both %q and %q", idx, other, c.phrase)
			}
			owner[idx] = c.phrase
		}
	}

	themes := d.Build(context.Background(), "hubspot", corpus)
	require.Len(t, themes, len(claims))
	totalShare := 0
	for i, theme := range themes {
		totalShare += theme.Share
		assert.Equal(t, share(len(claims[i].members), len(corpus)), theme.Share)
	}
	assert.LessOrEqual(t, totalShare, 100+len(themes))
}

func overlapCorpus() []models.ScoredItem {
	return []models.ScoredItem{
		item("a", "zapier pricing hurts small shops", "", 1, 0),
		item("b", "zapier pricing went up again", "", 1, 0),
		item("c", "zapier pricing and a billing issue", "", 1, 0),
		item("d", "zapier pricing plus another billing issue", "", 1, 0),
		item("e", "one more billing issue today", "", 1, 0),
	}
}

func TestDynamic_SkipsCandidatesWithoutEnoughUnclaimedItems(t *testing.T) {
	themes := NewDynamic(lexicon.Default(), nil, 5).Build(context.Background(), "zapier", overlapCorpus())
	require.Len(t, themes, 1)
	assert.Equal(t, "Zapier Pricing", themes[0].Title)
	assert.Equal(t, 80, themes[0].Share)
}

func TestDynamic_IgnoresItemsWithoutSignal(t *testing.T) {
	corpus := overlapCorpus()
	for i := range corpus {
		corpus[i].PainScore = 0
	}
	assert.Empty(t, NewDynamic(lexicon.Default(), nil, 5).Build(context.Background(), "zapier", corpus))
}

func TestDynamic_PatternPhrases(t *testing.T) {
	d := NewDynamic(lexicon.Default(), nil, 5)
	phrases := d.patternPhrases(strings.Fields("we are looking for a crm and i hate the zapier ui"))
	assert.Equal(t, []string{"looking for crm", "hate zapier"}, phrases)
}

func TestDynamic_MergesSynonymousCandidates(t *testing.T) {
	items := make([]models.ScoredItem, 8)
	for i := range items {
		items[i] = item(fmt.Sprint(i), "t", "", 1, 0)
	}
	candidates := []*candidate{
		{phrase: "zapier pricing", members: []int{0, 1, 2}, pain: 3},
		{phrase: "pricing zapier", members: []int{2, 3, 4}, pain: 3},
		{phrase: "slow support", members: []int{5, 6, 7}, pain: 3},
	}

	d := NewDynamic(lexicon.Default(), embedding.NewStaticModel(&embeddingtest.BagOfWords{}), 5)
	merged := d.mergeSynonyms(context.Background(), candidates, items)

	require.Len(t, merged, 2)
	assert.Equal(t, "zapier pricing", merged[0].phrase)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, merged[0].members)
	assert.Equal(t, 5.0, merged[0].pain)
	assert.Equal(t, "slow support", merged[1].phrase)
}

func TestDynamic_MergeSkippedWithoutModel(t *testing.T) {
	candidates := []*candidate{
		{phrase: "zapier pricing", members: []int{0, 1, 2}},
		{phrase: "pricing zapier", members: []int{2, 3, 4}},
	}

	d := NewDynamic(lexicon.Default(), nil, 5)
	assert.Len(t, d.mergeSynonyms(context.Background(), candidates, nil), 2)

	d = NewDynamic(lexicon.Default(), embedding.NewStaticModel(embeddingtest.Failing{}), 5)
	assert.Len(t, d.mergeSynonyms(context.Background(), candidates, nil), 2)
}

func TestStatic_Build(t *testing.T) {
	corpus := []models.ScoredItem{
		item("1", "Zapier alternative for small teams", "", 0, 0),
		item("2", "Zapier pricing doubled", "", 0, 0),
		item("3", "How to set up zapier webhooks", "", 0, 0),
		item("4", "Zapier crashed again", "", 0, 0),
		item("5", "Thoughts on zapier?", "", 0, 0),
		item("6", "Zapier meh", "", 0, 0),
		item("7", "Zapier vs Make", "", 0, 0),
	}
	corpus[4].EngagementScore = 5

	themes := NewStatic(lexicon.Default()).Build(corpus)

	var titles []string
	var shares []int
	for _, theme := range themes {
		titles = append(titles, theme.Title)
		shares = append(shares, theme.Share)
	}
	assert.Equal(t, []string{
		"Alternatives & Competitors",
		"Pricing & Cost",
		"Setup & How-To",
		"Bugs & Reliability",
		"Discussions & Opinions",
	}, titles)
	assert.Equal(t, []int{29, 14, 14, 14, 14}, shares)
}

func TestStatic_Empty(t *testing.T) {
	assert.Empty(t, NewStatic(lexicon.Default()).Build(nil))
}

func TestClusterer_FallsBackToStatic(t *testing.T) {
	lex := lexicon.Default()
	c := NewClusterer(NewStatic(lex), NewDynamic(lex, nil, 5))

	themes, strategy := c.Cluster(context.Background(), "zapier", overlapCorpus())
	assert.Equal(t, StrategyStatic, strategy)
	assert.NotEmpty(t, themes)

	themes, strategy = c.Cluster(context.Background(), "zapier", dynamicCorpus())
	assert.Equal(t, StrategyDynamic, strategy)
	assert.GreaterOrEqual(t, len(themes), 2)
}

func TestSelect(t *testing.T) {
	static := func() []models.Theme { return []models.Theme{{Title: "static"}} }

	themes, strategy := Select([]models.Theme{{Title: "one"}}, static)
	assert.Equal(t, StrategyStatic, strategy)
	assert.Equal(t, "static", themes[0].Title)

	themes, strategy = Select([]models.Theme{{Title: "one"}, {Title: "two"}}, static)
	assert.Equal(t, StrategyDynamic, strategy)
	assert.Len(t, themes, 2)
}

func TestQuoteFor(t *testing.T) {
	long := strings.Repeat("word ", 80)

	tests := []struct {
		name     string
		item     models.RawItem
		expected string
	}{
		{
			name:     "Short title uses body",
			item:     models.RawItem{Title: "Zapier pricing doubled", Body: "We paid 20 a month\nand now it is 49"},
			expected: "We paid 20 a month and now it is 49",
		},
		{
			name:     "Descriptive title wins",
			item:     models.RawItem{Title: "Zapier pricing doubled overnight for our team", Body: "details"},
			expected: "Zapier pricing doubled overnight for our team",
		},
		{
			name:     "No body",
			item:     models.RawItem{Title: "Zapier pricing"},
			expected: "Zapier pricing",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, quoteFor(tt.item))
		})
	}

	quote := quoteFor(models.RawItem{Title: "Short one", Body: long})
	assert.True(t, strings.HasSuffix(quote, "..."))
	assert.LessOrEqual(t, len([]rune(quote)), 203)
}

func TestWardLinkage(t *testing.T) {
	vectors := [][]float64{
		{1.0, 0.0, 0.0},
		{0.95, 0.05, 0.0},
		{0.9, 0.1, 0.0},
		{0.0, 0.0, 1.0},
	}
	merges := wardLinkage(vectors)
	require.Len(t, merges, 3)
	for i := 1; i < len(merges); i++ {
		assert.GreaterOrEqual(t, merges[i].distance, merges[i-1].distance-1e-10)
	}
	assert.Equal(t, 4, merges[2].size)
	assert.Equal(t, []int{0, 0, 0, 1}, cutDendrogram(merges, 4, 0.5))
	assert.Equal(t, []int{0, 1, 2, 3}, cutDendrogram(merges, 4, 0.01))
	assert.Nil(t, wardLinkage(vectors[:1]))
}

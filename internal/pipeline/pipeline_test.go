package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/painradar/painradar/internal/config"
	"github.com/painradar/painradar/internal/lexicon"
	"github.com/painradar/painradar/internal/models"
	"github.com/painradar/painradar/internal/sources"
)

var testNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	name     string
	kind     models.SourceKind
	items    []models.RawItem
	failures []*sources.SourceFailure
	panics   bool
}

func (f *fakeSource) GetName() string         { return f.name }
func (f *fakeSource) Kind() models.SourceKind { return f.kind }
func (f *fakeSource) IsEnabled() bool         { return true }

func (f *fakeSource) Fetch(ctx context.Context, q string) []models.RawItem {
	return f.Collect(ctx, q).Items
}

func (f *fakeSource) Collect(_ context.Context, _ string) *sources.Result {
	if f.panics {
		panic("boom")
	}
	return &sources.Result{Source: f.name, Items: f.items, Failures: f.failures}
}

func (f *fakeSource) Breakdown(items []models.RawItem) []models.BreakdownEntry {
	return []models.BreakdownEntry{{Label: f.name, Count: len(items)}}
}

func raw(id, connector, title, body string, score, comments int, age time.Duration) models.RawItem {
	return models.RawItem{
		ID:              id,
		Connector:       connector,
		Source:          models.KindForum,
		Title:           title,
		Body:            body,
		URL:             "https://example.com/" + id,
		EngagementScore: score,
		CommentCount:    comments,
		CreatedAt:       testNow.Add(-age),
	}
}

func testConfig() *config.Config {
	return &config.Config{RelevanceThreshold: 0.35, WindowDays: 30, MaxThemes: 5}
}

func newTestPipeline(srcs ...sources.Source) *Pipeline {
	return New(testConfig(), lexicon.Default(), nil, srcs, WithClock(func() time.Time { return testNow }))
}

const day = 24 * time.Hour

func TestRun_Report(t *testing.T) {
	forum := &fakeSource{name: "forum-a", kind: models.KindForum, items: []models.RawItem{
		raw("forum-a_1", "forum-a", "Zapier pricing is way too expensive for us", "Looking for an alternative, the pricing doubled", 40, 12, 2*day),
		raw("forum-a_2", "forum-a", "Zapier pricing keeps going up every month", "", 10, 3, day),
		raw("forum-a_3", "forum-a", "Hate the Zapier pricing changes this year", "", 5, 0, 3*day),
		raw("forum-a_4", "forum-a", "Need help with zapier homework", "Please take my exam for me", 50, 50, day),
	}}
	qa := &fakeSource{name: "qa-b", kind: models.KindQA, items: []models.RawItem{
		raw("qa-b_5", "qa-b", "Zapier pricing keeps going up every month!", "", 1, 0, day),
		raw("qa-b_6", "qa-b", "Zapier webhook returns error 500 on every run", "", 3, 1, 10*day),
		raw("qa-b_7", "qa-b", "How to set up zapier with google sheets", "", 2, 0, 20*day),
	}}
	broken := &fakeSource{name: "broken", kind: models.KindWebSearch, failures: []*sources.SourceFailure{
		{Source: "broken", Kind: sources.FailureNetwork, Err: errors.New("connection refused")},
	}}

	report, err := newTestPipeline(forum, qa, broken).Run(context.Background(), "Zapier")
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "zapier", report.Slug)
	assert.Equal(t, testNow, report.UpdatedAt)
	assert.Equal(t, 30, report.WindowDays)
	assert.False(t, report.SemanticFilter)
	assert.Equal(t, []string{"broken"}, report.SourceErrors)

	assert.Equal(t, 5, report.Stats.Volume)
	assert.Greater(t, report.Stats.PainIndex, 0)
	assert.LessOrEqual(t, report.Stats.PainIndex, 100)
	assert.LessOrEqual(t, report.Stats.OpportunityScore, 100)
	assert.Equal(t, models.PainSpike{WeeklyVolume: 3, MonthlyVolume: 5, DeltaPercent: 78}, report.Spike)

	assert.NotEmpty(t, report.Themes)
	assert.Contains(t, []string{"static", "dynamic"}, report.ThemeStrategy)
	assert.NotEmpty(t, report.Ideas)

	require.Len(t, report.Sources, 2)
	assert.Equal(t, "forum-a", report.Sources[0].Connector)
	assert.Equal(t, 3, report.Sources[0].Total)
	assert.Equal(t, "qa-b", report.Sources[1].Connector)
	assert.Equal(t, models.KindQA, report.Sources[1].Source)
	assert.Equal(t, 2, report.Sources[1].Total)

	require.NotEmpty(t, report.TopPosts)
	assert.LessOrEqual(t, len(report.TopPosts), 5)
	assert.Equal(t, "https://example.com/forum-a_1", report.TopPosts[0].URL)
	for _, post := range report.TopPosts {
		assert.NotEqual(t, "https://example.com/forum-a_4", post.URL)
	}
}

func TestRun_EmptyCorpus(t *testing.T) {
	failing := &fakeSource{name: "reddit", failures: []*sources.SourceFailure{
		{Source: "reddit", Kind: sources.FailureRateLimited, StatusCode: 429},
	}}
	empty := &fakeSource{name: "hackernews"}

	report, err := newTestPipeline(failing, empty).Run(context.Background(), "email automation")
	require.ErrorIs(t, err, ErrNoResults)
	require.NotNil(t, report)

	assert.Equal(t, models.Stats{}, report.Stats)
	assert.NotNil(t, report.Themes)
	assert.Empty(t, report.Themes)
	assert.Equal(t, "email-automation", report.Slug)
	assert.Equal(t, []string{"reddit"}, report.SourceErrors)
}

func TestRun_PanickingSourceIsIsolated(t *testing.T) {
	ok := &fakeSource{name: "ok", items: []models.RawItem{
		raw("ok_1", "ok", "Zapier pricing is way too expensive for us", "", 4, 1, day),
	}}
	bad := &fakeSource{name: "bad", panics: true}

	report, err := newTestPipeline(bad, ok).Run(context.Background(), "zapier")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stats.Volume)
	assert.Equal(t, []string{"bad"}, report.SourceErrors)
}

func TestRun_EverythingFilteredOut(t *testing.T) {
	spam := &fakeSource{name: "spam", items: []models.RawItem{
		raw("spam_1", "spam", "We are hiring zapier experts", "", 1, 0, day),
	}}

	report, err := newTestPipeline(spam).Run(context.Background(), "zapier")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Stats.Volume)
	assert.Empty(t, report.Themes)
	assert.Empty(t, report.Sources)
}

func TestTopPosts(t *testing.T) {
	var items []models.ScoredItem
	for i, w := range []float64{1, 5, 3, 0, 9, 2, 7} {
		items = append(items, models.ScoredItem{
			RawItem:          models.RawItem{URL: string(rune('a' + i))},
			EngagementWeight: w,
		})
	}

	posts := topPosts(items, 3)
	require.Len(t, posts, 3)
	assert.Equal(t, []string{"e", "g", "b"}, []string{posts[0].URL, posts[1].URL, posts[2].URL})
}

// Package pipeline runs connectors for a query and turns their output into a
// market-pain report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/painradar/painradar/internal/config"
	"github.com/painradar/painradar/internal/dedupe"
	"github.com/painradar/painradar/internal/embedding"
	"github.com/painradar/painradar/internal/ideas"
	"github.com/painradar/painradar/internal/lexicon"
	"github.com/painradar/painradar/internal/models"
	"github.com/painradar/painradar/internal/phrases"
	"github.com/painradar/painradar/internal/relevance"
	"github.com/painradar/painradar/internal/scoring"
	"github.com/painradar/painradar/internal/signals"
	"github.com/painradar/painradar/internal/slug"
	"github.com/painradar/painradar/internal/sources"
	"github.com/painradar/painradar/internal/themes"
)

// ErrNoResults is returned when no connector produced a single item
var ErrNoResults = errors.New("no results")

const (
	maxTopPosts    = 5
	collectTimeout = 5 * time.Minute
)

// Runner produces a report for a query
type Runner interface {
	Run(ctx context.Context, query string) (*models.Report, error)
}

// Pipeline wires the analysis stages together
type Pipeline struct {
	sources    []sources.Source
	deduper    *dedupe.Deduplicator
	filter     *relevance.Filter
	scorer     *signals.Scorer
	clusterer  *themes.Clusterer
	extractor  *phrases.Extractor
	lex        *lexicon.Lexicon
	windowDays int
	now        func() time.Time
}

// Ensure Pipeline implements Runner
var _ Runner = (*Pipeline)(nil)

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New builds a pipeline over srcs; model may be nil, in which case every
// semantic stage falls back to its lexical behavior
func New(cfg *config.Config, lex *lexicon.Lexicon, model *embedding.Model, srcs []sources.Source, opts ...Option) *Pipeline {
	pain := signals.NewPainScorer(model, lex.Archetypes)
	p := &Pipeline{
		sources:    srcs,
		deduper:    dedupe.New(cfg.TitleSimilarity),
		filter:     relevance.NewFilter(lex, model, cfg.RelevanceThreshold),
		scorer:     signals.NewScorer(signals.NewDetector(lex), pain),
		clusterer:  themes.NewClusterer(themes.NewStatic(lex), themes.NewDynamic(lex, model, cfg.MaxThemes)),
		extractor:  phrases.NewExtractor(lex, pain),
		lex:        lex,
		windowDays: cfg.WindowDays,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run collects, filters and scores items for query. When every connector
// comes back empty the returned report is zeroed and err is ErrNoResults.
func (p *Pipeline) Run(ctx context.Context, query string) (*models.Report, error) {
	start := p.now()
	logrus.Infof("Starting pipeline run for %q", query)

	report := p.newReport(query)

	results := p.collect(ctx, query)
	var all []models.RawItem
	for _, result := range results {
		all = append(all, result.Items...)
		if result.Failed() {
			report.SourceErrors = append(report.SourceErrors, result.Source)
		}
	}
	logrus.Infof("Collected %d items from %d sources", len(all), len(results))

	unique := p.deduper.Dedupe(all)
	logrus.Infof("After deduplication: %d items", len(unique))
	if len(unique) == 0 {
		return report, ErrNoResults
	}

	outcome := p.filter.Apply(ctx, query, unique)
	items := outcome.Items
	report.SemanticFilter = outcome.Semantic
	logrus.Infof("After relevance filtering: %d items (%d blacklisted, %d off-topic)",
		len(items), outcome.Blacklisted, outcome.OffTopic)

	now := p.now()
	scoring.ApplyWeights(items, now)
	p.scorer.Score(ctx, items)

	report.Stats = scoring.Stats(items)
	report.Spike = scoring.Spike(rawItems(items), now)

	themeList, strategy := p.clusterer.Cluster(ctx, query, items)
	report.Themes = themeList
	report.ThemeStrategy = string(strategy)

	report.Phrases = phrases.TopPhrases(items, p.lex, phrases.DefaultTopPhrases)
	report.Frictions = p.extractor.Frictions(ctx, items, phrases.DefaultQuotes)
	report.Quotes = p.extractor.Receipts(ctx, items, phrases.DefaultQuotes)
	report.Ideas = ideas.Generate(query, report.Themes)
	report.Sources = p.breakdown(items)
	report.TopPosts = topPosts(items, maxTopPosts)

	logrus.Infof("Pipeline run for %q completed in %v: pain %d, opportunity %d, %d themes",
		query, time.Since(start), report.Stats.PainIndex, report.Stats.OpportunityScore, len(report.Themes))
	return report, nil
}

func (p *Pipeline) newReport(query string) *models.Report {
	now := p.now()
	return &models.Report{
		RunID:      uuid.NewString(),
		Query:      query,
		Slug:       slug.Normalize(query),
		CreatedAt:  now,
		UpdatedAt:  now,
		WindowDays: p.windowDays,
		Phrases:    []models.Phrase{},
		Themes:     []models.Theme{},
		Sources:    []models.SourceBreakdown{},
		Ideas:      []models.Idea{},
		Quotes:     []models.Quote{},
		Frictions:  []models.Quote{},
		TopPosts:   []models.SourceLink{},
	}
}

type sourceResult struct {
	index  int
	result *sources.Result
}

// collect runs every source concurrently; results keep the source order
func (p *Pipeline) collect(ctx context.Context, query string) []*sources.Result {
	ctx, cancel := context.WithTimeout(ctx, collectTimeout)
	defer cancel()

	var wg sync.WaitGroup
	resultsChan := make(chan sourceResult, len(p.sources))

	for i, source := range p.sources {
		wg.Add(1)
		go func(idx int, src sources.Source) {
			defer wg.Done()
			resultsChan <- sourceResult{index: idx, result: p.collectOne(ctx, src, query)}
		}(i, source)
	}

	// Close channel when all goroutines complete
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make([]*sources.Result, len(p.sources))
	for r := range resultsChan {
		results[r.index] = r.result
	}
	return results
}

// collectOne isolates a single source: a panic becomes a failed, empty result
func (p *Pipeline) collectOne(ctx context.Context, src sources.Source, query string) (result *sources.Result) {
	name := src.GetName()
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Source %s panicked: %v", name, r)
			result = &sources.Result{
				Source:   name,
				Failures: []*sources.SourceFailure{{Source: name, Kind: sources.FailureParse, Err: fmt.Errorf("panic: %v", r)}},
			}
		}
	}()

	logrus.Infof("Fetching items from %s", name)
	result = src.Collect(ctx, query)
	if result == nil {
		result = &sources.Result{Source: name}
	}
	result.Source = name
	for _, failure := range result.Failures {
		logrus.Warnf("Source %s: %v", name, failure)
	}
	logrus.Infof("Found %d items from %s", len(result.Items), name)
	return result
}

// breakdown groups the relevant items per connector, in source order
func (p *Pipeline) breakdown(items []models.ScoredItem) []models.SourceBreakdown {
	byConnector := make(map[string][]models.RawItem)
	for _, item := range items {
		byConnector[item.Connector] = append(byConnector[item.Connector], item.RawItem)
	}

	breakdown := []models.SourceBreakdown{}
	for _, src := range p.sources {
		connectorItems := byConnector[src.GetName()]
		if len(connectorItems) == 0 {
			continue
		}
		entries := src.Breakdown(connectorItems)
		if entries == nil {
			entries = []models.BreakdownEntry{}
		}
		breakdown = append(breakdown, models.SourceBreakdown{
			Connector: src.GetName(),
			Source:    src.Kind(),
			Total:     len(connectorItems),
			Entries:   entries,
		})
	}
	return breakdown
}

func topPosts(items []models.ScoredItem, n int) []models.SourceLink {
	ranked := append([]models.ScoredItem(nil), items...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].EngagementWeight > ranked[j].EngagementWeight
	})

	posts := []models.SourceLink{}
	for _, item := range ranked {
		if len(posts) >= n {
			break
		}
		posts = append(posts, models.SourceLink{Title: item.Title, URL: item.URL, Source: item.Source})
	}
	return posts
}

func rawItems(items []models.ScoredItem) []models.RawItem {
	raw := make([]models.RawItem, len(items))
	for i, item := range items {
		raw[i] = item.RawItem
	}
	return raw
}

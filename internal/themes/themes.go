// Package themes groups relevant items into labeled, non-overlapping themes.
package themes

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/painradar/painradar/internal/models"
	"github.com/painradar/painradar/internal/textutil"
)

// Strategy names the clustering approach that produced a report's themes
type Strategy string

const (
	StrategyDynamic Strategy = "dynamic"
	StrategyStatic  Strategy = "static"
)

const (
	// DefaultMaxThemes caps the number of dynamic themes
	DefaultMaxThemes = 5

	maxQuotes        = 3
	maxSources       = 3
	maxQuoteLength   = 200
	descriptiveWords = 6
)

// Clusterer prefers dynamic themes and falls back to static buckets
type Clusterer struct {
	static  *Static
	dynamic *Dynamic
}

// NewClusterer combines both strategies
func NewClusterer(static *Static, dynamic *Dynamic) *Clusterer {
	return &Clusterer{static: static, dynamic: dynamic}
}

// Cluster runs the dynamic strategy and keeps its output when it produced at
// least two themes; otherwise the static buckets are used.
func (c *Clusterer) Cluster(ctx context.Context, query string, items []models.ScoredItem) ([]models.Theme, Strategy) {
	dynamic := c.dynamic.Build(ctx, query, items)
	themes, strategy := Select(dynamic, func() []models.Theme { return c.static.Build(items) })
	logrus.Infof("Built %d %s themes from %d items", len(themes), strategy, len(items))
	return themes, strategy
}

// Select applies the strategy policy: dynamic with two or more themes wins
func Select(dynamic []models.Theme, static func() []models.Theme) ([]models.Theme, Strategy) {
	if len(dynamic) >= 2 {
		return dynamic, StrategyDynamic
	}
	return static(), StrategyStatic
}

// summarize builds a theme from its members; total is the corpus size used
// for the share percentage.
func summarize(title string, members []models.ScoredItem, total int) models.Theme {
	ranked := append([]models.ScoredItem(nil), members...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].EngagementWeight != ranked[j].EngagementWeight {
			return ranked[i].EngagementWeight > ranked[j].EngagementWeight
		}
		return ranked[i].Prominence() > ranked[j].Prominence()
	})

	theme := models.Theme{
		Title:   title,
		Share:   share(len(members), total),
		Quotes:  []string{},
		Sources: []models.SourceLink{},
	}

	seen := make(map[string]bool)
	for _, item := range ranked {
		if len(theme.Quotes) >= maxQuotes {
			break
		}
		quote := quoteFor(item.RawItem)
		if quote == "" || seen[quote] {
			continue
		}
		seen[quote] = true
		theme.Quotes = append(theme.Quotes, quote)
	}

	for _, item := range ranked {
		if len(theme.Sources) >= maxSources {
			break
		}
		theme.Sources = append(theme.Sources, models.SourceLink{
			Title:  item.Title,
			URL:    item.URL,
			Source: item.Source,
		})
	}
	return theme
}

// quoteFor prefers a descriptive title, else the body
func quoteFor(item models.RawItem) string {
	body := strings.Join(strings.Fields(item.Body), " ")
	if textutil.WordCount(item.Title) >= descriptiveWords || body == "" {
		return textutil.Truncate(strings.TrimSpace(item.Title), maxQuoteLength)
	}
	return textutil.Truncate(body, maxQuoteLength)
}

func share(members, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(members) / float64(total) * 100))
}

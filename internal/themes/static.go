package themes

import (
	"sort"
	"strings"

	"github.com/painradar/painradar/internal/lexicon"
	"github.com/painradar/painradar/internal/models"
)

// minCatchAllEngagement is the score or comment count an unmatched item needs
// to join the catch-all bucket
const minCatchAllEngagement = 2

// Static assigns items to fixed keyword buckets in priority order
type Static struct {
	buckets []lexicon.Bucket
}

// NewStatic creates the static strategy from the lexicon's buckets
func NewStatic(lex *lexicon.Lexicon) *Static {
	return &Static{buckets: lex.Buckets}
}

// Build returns one theme per non-empty bucket, largest first
func (s *Static) Build(items []models.ScoredItem) []models.Theme {
	members := make([][]models.ScoredItem, len(s.buckets))
	for _, item := range items {
		if b := s.assign(item.RawItem); b >= 0 {
			members[b] = append(members[b], item)
		}
	}

	themes := []models.Theme{}
	var counts []int
	for i, bucket := range s.buckets {
		if len(members[i]) == 0 {
			continue
		}
		themes = append(themes, summarize(bucket.Name, members[i], len(items)))
		counts = append(counts, len(members[i]))
	}

	order := make([]int, len(themes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return counts[order[a]] > counts[order[b]] })
	sorted := make([]models.Theme, len(themes))
	for i, idx := range order {
		sorted[i] = themes[idx]
	}
	return sorted
}

// assign returns the bucket index for item, or -1 when it is left out
func (s *Static) assign(item models.RawItem) int {
	text := " " + strings.ToLower(item.Title+" "+item.Body) + " "
	catchAll := -1
	for i, bucket := range s.buckets {
		if bucket.CatchAll {
			if catchAll < 0 {
				catchAll = i
			}
			continue
		}
		for _, kw := range bucket.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				return i
			}
		}
	}
	if catchAll >= 0 && (item.EngagementScore >= minCatchAllEngagement || item.CommentCount >= minCatchAllEngagement) {
		return catchAll
	}
	return -1
}

package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/painradar/painradar/internal/models"
	"github.com/painradar/painradar/internal/textutil"
)

const hackerNewsSearchURL = "https://hn.algolia.com"

// HackerNewsSource searches stories and Ask HN posts through the Algolia API
type HackerNewsSource struct {
	client    *resty.Client
	opts      Options
	collector *collector
}

type hackerNewsSearchResponse struct {
	Hits []hackerNewsHit `json:"hits"`
}

type hackerNewsHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	StoryText   string `json:"story_text"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	CreatedAtI  int64  `json:"created_at_i"`
}

type hackerNewsItem struct {
	ID       int              `json:"id"`
	Type     string           `json:"type"`
	Text     string           `json:"text"`
	Points   int              `json:"points"`
	Children []hackerNewsItem `json:"children"`
}

// NewHackerNewsSource creates a new Hacker News source
func NewHackerNewsSource(opts ...Option) *HackerNewsSource {
	o := buildOptions(hackerNewsSearchURL, opts)
	return &HackerNewsSource{
		client:    newClient(),
		opts:      o,
		collector: newCollector("hackernews", o),
	}
}

func (h *HackerNewsSource) GetName() string {
	return "hackernews"
}

func (h *HackerNewsSource) Kind() models.SourceKind {
	return models.KindForum
}

func (h *HackerNewsSource) IsEnabled() bool {
	return true // Algolia search doesn't require authentication
}

func (h *HackerNewsSource) Collect(ctx context.Context, query string) *Result {
	return h.collector.run(ctx, h.collector.expand(query), h.search, h.comments)
}

func (h *HackerNewsSource) Fetch(ctx context.Context, query string) []models.RawItem {
	return h.Collect(ctx, query).Items
}

func (h *HackerNewsSource) Breakdown(items []models.RawItem) []models.BreakdownEntry {
	return breakdownBy(items, func(item models.RawItem) (string, string) {
		return item.Community, "https://news.ycombinator.com"
	})
}

func (h *HackerNewsSource) search(ctx context.Context, phrase string) ([]models.RawItem, error) {
	params := url.Values{}
	params.Set("query", phrase)
	params.Set("tags", "(story,ask_hn)")
	params.Set("numericFilters", fmt.Sprintf("created_at_i>%d", h.opts.Now().Add(-h.opts.Window).Unix()))
	params.Set("hitsPerPage", "50")
	searchURL := fmt.Sprintf("%s/api/v1/search?%s", h.opts.BaseURL, params.Encode())

	var searchResp hackerNewsSearchResponse
	if err := getJSON(ctx, h.client.R(), searchURL, &searchResp); err != nil {
		return nil, err
	}

	var items []models.RawItem
	for _, hit := range searchResp.Hits {
		if hit.ObjectID == "" || hit.Title == "" {
			continue
		}
		item := models.RawItem{
			ID:              fmt.Sprintf("hackernews_%s", hit.ObjectID),
			Source:          models.KindForum,
			Connector:       h.GetName(),
			Title:           hit.Title,
			Body:            textutil.StripHTML(hit.StoryText),
			URL:             fmt.Sprintf("https://news.ycombinator.com/item?id=%s", hit.ObjectID),
			EngagementScore: hit.Points,
			CommentCount:    hit.NumComments,
			Author:          hit.Author,
			Community:       "Hacker News",
		}
		if hit.CreatedAtI > 0 {
			item.CreatedAt = time.Unix(hit.CreatedAtI, 0).UTC()
		}
		items = append(items, item)
	}

	logrus.Debugf("Hacker News returned %d stories for %q", len(items), phrase)
	return items, nil
}

func (h *HackerNewsSource) comments(ctx context.Context, item *models.RawItem) error {
	itemURL := fmt.Sprintf("%s/api/v1/items/%s", h.opts.BaseURL, nativeID(*item, "hackernews"))

	var story hackerNewsItem
	if err := getJSON(ctx, h.client.R(), itemURL, &story); err != nil {
		return err
	}

	var comments []string
	for _, child := range story.Children {
		if child.Type != "comment" || child.Text == "" {
			continue
		}
		comments = append(comments, textutil.StripHTML(child.Text))
	}
	item.TopComments = limitComments(comments, 5)
	return nil
}

package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"

	"github.com/painradar/painradar/internal/models"
	"github.com/painradar/painradar/internal/textutil"
)

// FeedSource reads tag feeds from blogging platforms. Templates contain a
// "{tag}" placeholder, e.g. https://dev.to/feed/tag/{tag}.
type FeedSource struct {
	feedTemplates []string
	client        *resty.Client
	parser        *gofeed.Parser
	collector     *collector
}

// NewFeedSource creates a new article feed source
func NewFeedSource(feedTemplates []string, opts ...Option) *FeedSource {
	o := buildOptions("", opts)
	return &FeedSource{
		feedTemplates: feedTemplates,
		client:        newClient(),
		parser:        gofeed.NewParser(),
		collector:     newCollector("feeds", o),
	}
}

func (f *FeedSource) GetName() string {
	return "feeds"
}

func (f *FeedSource) Kind() models.SourceKind {
	return models.KindArticleFeed
}

func (f *FeedSource) IsEnabled() bool {
	return len(f.feedTemplates) > 0
}

// Collect fetches every feed for every tag variant of the query. Feeds carry
// no search, so the intent templates do not apply here.
func (f *FeedSource) Collect(ctx context.Context, query string) *Result {
	if !f.IsEnabled() {
		logrus.Debug("Feed source disabled - no feed templates configured")
		return &Result{Source: f.GetName()}
	}

	var feedURLs []string
	for _, tmpl := range f.feedTemplates {
		for _, tag := range generateTags(query) {
			feedURLs = append(feedURLs, strings.ReplaceAll(tmpl, "{tag}", url.PathEscape(tag)))
		}
	}

	return f.collector.run(ctx, feedURLs, f.fetchFeed, nil)
}

func (f *FeedSource) Fetch(ctx context.Context, query string) []models.RawItem {
	return f.Collect(ctx, query).Items
}

func (f *FeedSource) Breakdown(items []models.RawItem) []models.BreakdownEntry {
	return breakdownBy(items, func(item models.RawItem) (string, string) {
		if item.Community == "" {
			return "", ""
		}
		return item.Community, "https://" + item.Community
	})
}

func (f *FeedSource) fetchFeed(ctx context.Context, feedURL string) ([]models.RawItem, error) {
	resp, err := f.client.R().SetContext(ctx).Get(feedURL)
	if err != nil {
		return nil, networkFailure(err)
	}
	// a missing tag feed just means nobody wrote about it
	if resp.StatusCode() == 404 {
		return nil, nil
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	feed, err := f.parser.ParseString(string(resp.Body()))
	if err != nil {
		return nil, parseFailure(err)
	}

	var items []models.RawItem
	for _, entry := range feed.Items {
		if item, ok := feedItem(entry, f.GetName()); ok {
			items = append(items, item)
		}
	}

	logrus.Debugf("Feed %s returned %d entries", feedURL, len(items))
	return items, nil
}

func feedItem(entry *gofeed.Item, connector string) (models.RawItem, bool) {
	link := entry.Link
	if link == "" {
		link = entry.GUID
	}
	title := strings.TrimSpace(entry.Title)
	if link == "" || title == "" {
		return models.RawItem{}, false
	}

	body := entry.Description
	if body == "" {
		body = entry.Content
	}

	item := models.RawItem{
		ID:        fmt.Sprintf("feeds_%s", link),
		Source:    models.KindArticleFeed,
		Connector: connector,
		Title:     title,
		Body:      textutil.Clip(textutil.StripHTML(body), 2000),
		URL:       link,
	}
	if entry.PublishedParsed != nil {
		item.CreatedAt = entry.PublishedParsed.UTC()
	} else if entry.UpdatedParsed != nil {
		item.CreatedAt = entry.UpdatedParsed.UTC()
	}
	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		item.Author = entry.Authors[0].Name
	}
	if u, err := url.Parse(link); err == nil {
		item.Community = strings.TrimPrefix(u.Host, "www.")
	}
	return item, true
}

// generateTags turns a query into feed tag variants: "email automation"
// becomes "email-automation" and "emailautomation".
func generateTags(query string) []string {
	words := textutil.Tokenize(query)
	if len(words) == 0 {
		return nil
	}
	tags := []string{strings.Join(words, "-")}
	if len(words) > 1 {
		tags = append(tags, strings.Join(words, ""))
	}
	return tags
}

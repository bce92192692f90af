package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	readability "github.com/go-shiori/go-readability"
	"github.com/sirupsen/logrus"

	"github.com/painradar/painradar/internal/models"
	"github.com/painradar/painradar/internal/textutil"
)

const duckDuckGoURL = "https://html.duckduckgo.com"

// WebSearchSource scrapes DuckDuckGo's HTML results and enriches the top
// pages with their readable article text.
type WebSearchSource struct {
	client    *resty.Client
	opts      Options
	collector *collector
}

// NewWebSearchSource creates a new web search source
func NewWebSearchSource(opts ...Option) *WebSearchSource {
	o := buildOptions(duckDuckGoURL, opts)
	return &WebSearchSource{
		client:    newClient(),
		opts:      o,
		collector: newCollector("websearch", o),
	}
}

func (w *WebSearchSource) GetName() string {
	return "websearch"
}

func (w *WebSearchSource) Kind() models.SourceKind {
	return models.KindWebSearch
}

func (w *WebSearchSource) IsEnabled() bool {
	return true
}

func (w *WebSearchSource) Collect(ctx context.Context, query string) *Result {
	return w.collector.run(ctx, w.collector.expand(query), w.search, w.readPage)
}

func (w *WebSearchSource) Fetch(ctx context.Context, query string) []models.RawItem {
	return w.Collect(ctx, query).Items
}

func (w *WebSearchSource) Breakdown(items []models.RawItem) []models.BreakdownEntry {
	return breakdownBy(items, func(item models.RawItem) (string, string) {
		if item.Community == "" {
			return "", ""
		}
		return item.Community, "https://" + item.Community
	})
}

func (w *WebSearchSource) search(ctx context.Context, phrase string) ([]models.RawItem, error) {
	searchURL := fmt.Sprintf("%s/html/?q=%s", w.opts.BaseURL, url.QueryEscape(phrase))

	resp, err := w.client.R().SetContext(ctx).Get(searchURL)
	if err != nil {
		return nil, networkFailure(err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, parseFailure(err)
	}

	var items []models.RawItem
	doc.Find(".result").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("result--ad") {
			return
		}
		link := s.Find(".result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		target := resultTarget(href)
		title := strings.TrimSpace(link.Text())
		if target == "" || title == "" {
			return
		}

		item := models.RawItem{
			ID:        fmt.Sprintf("websearch_%s", target),
			Source:    models.KindWebSearch,
			Connector: w.GetName(),
			Title:     title,
			Body:      strings.Join(strings.Fields(s.Find(".result__snippet").Text()), " "),
			URL:       target,
		}
		if u, err := url.Parse(target); err == nil {
			item.Community = strings.TrimPrefix(u.Host, "www.")
		}
		items = append(items, item)
	})

	logrus.Debugf("Web search returned %d results for %q", len(items), phrase)
	return items, nil
}

// readPage replaces a short snippet with the page's readable text
func (w *WebSearchSource) readPage(ctx context.Context, item *models.RawItem) error {
	if len(item.Body) >= 300 {
		return nil
	}

	resp, err := w.client.R().SetContext(ctx).Get(item.URL)
	if err != nil {
		return networkFailure(err)
	}
	if err := checkStatus(resp); err != nil {
		return err
	}

	parsedURL, _ := url.Parse(item.URL)
	article, err := readability.FromReader(bytes.NewReader(resp.Body()), parsedURL)
	if err != nil {
		return parseFailure(err)
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if len(text) > len(item.Body) {
		item.Body = textutil.Clip(text, 2000)
	}
	return nil
}

// resultTarget unwraps DuckDuckGo's redirect links (/l/?uddg=<target>)
func resultTarget(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return href
}

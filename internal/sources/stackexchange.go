package sources

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/painradar/painradar/internal/models"
	"github.com/painradar/painradar/internal/textutil"
)

const stackExchangeURL = "https://api.stackexchange.com"

// StackExchangeSource searches Stack Overflow questions
type StackExchangeSource struct {
	key       string
	site      string
	client    *resty.Client
	opts      Options
	collector *collector
}

type stackExchangeResponse struct {
	Items          []stackExchangeQuestion `json:"items"`
	ErrorID        int                     `json:"error_id"`
	ErrorName      string                  `json:"error_name"`
	ErrorMessage   string                  `json:"error_message"`
	QuotaRemaining int                     `json:"quota_remaining"`
}

type stackExchangeQuestion struct {
	QuestionID int      `json:"question_id"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Tags       []string `json:"tags"`
	Owner      struct {
		DisplayName string `json:"display_name"`
	} `json:"owner"`
	CreationDate int64  `json:"creation_date"`
	Score        int    `json:"score"`
	AnswerCount  int    `json:"answer_count"`
	Link         string `json:"link"`
}

type stackExchangeAnswers struct {
	Items []struct {
		Body  string `json:"body"`
		Score int    `json:"score"`
	} `json:"items"`
}

// NewStackExchangeSource creates a new Stack Overflow source; key is optional
// and only raises the daily quota.
func NewStackExchangeSource(key string, opts ...Option) *StackExchangeSource {
	o := buildOptions(stackExchangeURL, opts)
	return &StackExchangeSource{
		key:       key,
		site:      "stackoverflow",
		client:    newClient(),
		opts:      o,
		collector: newCollector("stackexchange", o),
	}
}

func (s *StackExchangeSource) GetName() string {
	return "stackexchange"
}

func (s *StackExchangeSource) Kind() models.SourceKind {
	return models.KindQA
}

func (s *StackExchangeSource) IsEnabled() bool {
	return true // anonymous access is allowed at a lower quota
}

func (s *StackExchangeSource) Collect(ctx context.Context, query string) *Result {
	return s.collector.run(ctx, s.collector.expand(query), s.search, s.answers)
}

func (s *StackExchangeSource) Fetch(ctx context.Context, query string) []models.RawItem {
	return s.Collect(ctx, query).Items
}

func (s *StackExchangeSource) Breakdown(items []models.RawItem) []models.BreakdownEntry {
	return breakdownBy(items, func(item models.RawItem) (string, string) {
		if item.Community == "" {
			return "", ""
		}
		return "[" + item.Community + "]", fmt.Sprintf("https://stackoverflow.com/questions/tagged/%s", url.PathEscape(item.Community))
	})
}

func (s *StackExchangeSource) params() url.Values {
	params := url.Values{}
	params.Set("site", s.site)
	if s.key != "" {
		params.Set("key", s.key)
	}
	return params
}

func (s *StackExchangeSource) search(ctx context.Context, phrase string) ([]models.RawItem, error) {
	params := s.params()
	params.Set("order", "desc")
	params.Set("sort", "relevance")
	params.Set("q", phrase)
	params.Set("fromdate", strconv.FormatInt(s.opts.Now().Add(-s.opts.Window).Unix(), 10))
	params.Set("pagesize", "50")
	params.Set("filter", "withbody")
	searchURL := fmt.Sprintf("%s/2.3/search/advanced?%s", s.opts.BaseURL, params.Encode())

	var searchResp stackExchangeResponse
	if err := getJSON(ctx, s.client.R(), searchURL, &searchResp); err != nil {
		return nil, s.classify(err)
	}

	var items []models.RawItem
	for _, question := range searchResp.Items {
		item := models.RawItem{
			ID:              fmt.Sprintf("stackexchange_%d", question.QuestionID),
			Source:          models.KindQA,
			Connector:       s.GetName(),
			Title:           html.UnescapeString(question.Title),
			Body:            textutil.StripHTML(question.Body),
			URL:             question.Link,
			EngagementScore: question.Score,
			CommentCount:    question.AnswerCount,
			Author:          html.UnescapeString(question.Owner.DisplayName),
		}
		if question.CreationDate > 0 {
			item.CreatedAt = time.Unix(question.CreationDate, 0).UTC()
		}
		if len(question.Tags) > 0 {
			item.Community = question.Tags[0]
		}
		items = append(items, item)
	}

	logrus.Debugf("Stack Exchange returned %d questions for %q (quota remaining %d)", len(items), phrase, searchResp.QuotaRemaining)
	return items, nil
}

func (s *StackExchangeSource) answers(ctx context.Context, item *models.RawItem) error {
	params := s.params()
	params.Set("order", "desc")
	params.Set("sort", "votes")
	params.Set("pagesize", "5")
	params.Set("filter", "withbody")
	answersURL := fmt.Sprintf("%s/2.3/questions/%s/answers?%s", s.opts.BaseURL, nativeID(*item, "stackexchange"), params.Encode())

	var resp stackExchangeAnswers
	if err := getJSON(ctx, s.client.R(), answersURL, &resp); err != nil {
		return err
	}

	var comments []string
	for _, answer := range resp.Items {
		if text := textutil.StripHTML(answer.Body); text != "" {
			comments = append(comments, text)
		}
	}
	item.TopComments = limitComments(comments, 5)
	return nil
}

// classify marks throttle violations as rate limits; Stack Exchange reports
// them with a 400 and an error body.
func (s *StackExchangeSource) classify(err error) error {
	var f *SourceFailure
	if errors.As(err, &f) && f.Kind == FailureStatus && f.Err != nil {
		if strings.Contains(f.Err.Error(), "throttle_violation") {
			f.Kind = FailureRateLimited
		}
	}
	return err
}

package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/painradar/painradar/internal/models"
)

const (
	redditPublicURL = "https://www.reddit.com"
	redditOAuthURL  = "https://oauth.reddit.com"
	redditTokenURL  = "https://www.reddit.com/api/v1/access_token"

	// tokens are renewed this long before Reddit says they expire
	tokenExpiryMargin = time.Minute
	defaultTokenTTL   = time.Hour
)

// RedditSource searches the forum through Reddit's search API. Credentials
// are optional: without them the public JSON endpoints are used.
type RedditSource struct {
	clientID     string
	clientSecret string
	client       *resty.Client
	opts         Options
	collector    *collector

	authMu      sync.Mutex // serializes token requests
	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type redditAuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type redditListing struct {
	Data struct {
		Children []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Permalink   string  `json:"permalink"`
	Created     float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Over18      bool    `json:"over_18"`
}

type redditComment struct {
	Body string `json:"body"`
}

// NewRedditSource creates a new Reddit source
func NewRedditSource(clientID, clientSecret string, opts ...Option) *RedditSource {
	base := redditPublicURL
	if clientID != "" && clientSecret != "" {
		base = redditOAuthURL
	}
	o := buildOptions(base, opts)
	if o.AuthURL == "" {
		o.AuthURL = redditTokenURL
	}
	return &RedditSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       newClient(),
		opts:         o,
		collector:    newCollector("reddit", o),
	}
}

func (r *RedditSource) GetName() string {
	return "reddit"
}

func (r *RedditSource) Kind() models.SourceKind {
	return models.KindForum
}

func (r *RedditSource) IsEnabled() bool {
	return true
}

func (r *RedditSource) Collect(ctx context.Context, query string) *Result {
	if r.hasCredentials() {
		if err := r.ensureToken(ctx, ""); err != nil {
			return &Result{Source: r.GetName(), Failures: []*SourceFailure{asFailure(r.GetName(), "", fmt.Errorf("reddit authentication failed: %w", err))}}
		}
	}
	return r.collector.run(ctx, r.collector.expand(query), r.search, r.comments)
}

func (r *RedditSource) Fetch(ctx context.Context, query string) []models.RawItem {
	return r.Collect(ctx, query).Items
}

func (r *RedditSource) Breakdown(items []models.RawItem) []models.BreakdownEntry {
	return breakdownBy(items, func(item models.RawItem) (string, string) {
		if item.Community == "" {
			return "", ""
		}
		return "r/" + item.Community, fmt.Sprintf("https://www.reddit.com/r/%s", item.Community)
	})
}

func (r *RedditSource) hasCredentials() bool {
	return r.clientID != "" && r.clientSecret != ""
}

// ensureToken requests a new access token unless a valid one other than
// stale is already held. Concurrent callers share one token request.
func (r *RedditSource) ensureToken(ctx context.Context, stale string) error {
	r.authMu.Lock()
	defer r.authMu.Unlock()

	r.mu.Lock()
	valid := r.accessToken != "" && r.accessToken != stale && r.opts.Now().Before(r.tokenExpiry)
	r.mu.Unlock()
	if valid {
		return nil
	}
	return r.authenticate(ctx)
}

func (r *RedditSource) authenticate(ctx context.Context) error {
	resp, err := r.client.R().
		SetContext(ctx).
		SetBasicAuth(r.clientID, r.clientSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
		}).
		Post(r.opts.AuthURL)
	if err != nil {
		return networkFailure(err)
	}
	if err := checkStatus(resp); err != nil {
		return err
	}

	var authResp redditAuthResponse
	if err := json.Unmarshal(resp.Body(), &authResp); err != nil {
		return parseFailure(err)
	}

	ttl := time.Duration(authResp.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	r.mu.Lock()
	r.accessToken = authResp.AccessToken
	r.tokenExpiry = r.opts.Now().Add(ttl - tokenExpiryMargin)
	r.mu.Unlock()
	logrus.Debugf("Reddit access token renewed, valid for %v", ttl)
	return nil
}

func (r *RedditSource) token() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accessToken
}

func bearerRequest(client *resty.Client, token string) *resty.Request {
	req := client.R()
	if token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return req
}

// getJSON retries once with a fresh token when Reddit rejects the current one
func (r *RedditSource) getJSON(ctx context.Context, target string, out any) error {
	token := r.token()
	err := getJSON(ctx, bearerRequest(r.client, token), target, out)
	if !r.hasCredentials() || !unauthorized(err) {
		return err
	}

	logrus.Warnf("Reddit rejected the access token, authenticating again")
	if authErr := r.ensureToken(ctx, token); authErr != nil {
		logrus.Errorf("Reddit authentication failed: %v", authErr)
		return err
	}
	return getJSON(ctx, bearerRequest(r.client, r.token()), target, out)
}

func unauthorized(err error) bool {
	var f *SourceFailure
	return errors.As(err, &f) && f.StatusCode == http.StatusUnauthorized
}

func (r *RedditSource) search(ctx context.Context, phrase string) ([]models.RawItem, error) {
	searchURL := fmt.Sprintf("%s/search.json?q=%s&sort=relevance&t=month&limit=50&raw_json=1",
		r.opts.BaseURL, url.QueryEscape(phrase))

	var listing redditListing
	if err := r.getJSON(ctx, searchURL, &listing); err != nil {
		return nil, err
	}

	var items []models.RawItem
	for _, child := range listing.Data.Children {
		var post redditPost
		if err := json.Unmarshal(child.Data, &post); err != nil {
			return nil, parseFailure(err)
		}
		if post.Over18 || post.ID == "" {
			continue
		}
		items = append(items, models.RawItem{
			ID:              fmt.Sprintf("reddit_%s", post.ID),
			Source:          models.KindForum,
			Connector:       r.GetName(),
			Title:           post.Title,
			Body:            post.Selftext,
			URL:             fmt.Sprintf("https://www.reddit.com%s", post.Permalink),
			EngagementScore: post.Score,
			CommentCount:    post.NumComments,
			CreatedAt:       time.Unix(int64(post.Created), 0).UTC(),
			Community:       post.Subreddit,
			Author:          post.Author,
		})
	}

	logrus.Debugf("Reddit returned %d posts for %q", len(items), phrase)
	return items, nil
}

func (r *RedditSource) comments(ctx context.Context, item *models.RawItem) error {
	commentsURL := fmt.Sprintf("%s/comments/%s.json?sort=top&limit=5&depth=1&raw_json=1",
		r.opts.BaseURL, nativeID(*item, "reddit"))

	var listings []redditListing
	if err := r.getJSON(ctx, commentsURL, &listings); err != nil {
		return err
	}
	if len(listings) < 2 {
		return nil
	}

	var comments []string
	for _, child := range listings[1].Data.Children {
		if child.Kind != "t1" {
			continue
		}
		var c redditComment
		if err := json.Unmarshal(child.Data, &c); err != nil {
			continue
		}
		body := strings.TrimSpace(c.Body)
		if body == "" || body == "[deleted]" || body == "[removed]" {
			continue
		}
		comments = append(comments, body)
	}
	item.TopComments = limitComments(comments, 5)
	return nil
}

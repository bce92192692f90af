package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/painradar/painradar/internal/models"
)

const gitHubAPIURL = "https://api.github.com"

// GitHubSource searches issues across public repositories
type GitHubSource struct {
	token     string
	client    *resty.Client
	opts      Options
	collector *collector
}

type gitHubSearchResponse struct {
	TotalCount int           `json:"total_count"`
	Items      []gitHubIssue `json:"items"`
}

type gitHubIssue struct {
	ID            int64     `json:"id"`
	Number        int       `json:"number"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	HTMLURL       string    `json:"html_url"`
	RepositoryURL string    `json:"repository_url"`
	Comments      int       `json:"comments"`
	CreatedAt     time.Time `json:"created_at"`
	User          struct {
		Login string `json:"login"`
	} `json:"user"`
	Reactions struct {
		TotalCount int `json:"total_count"`
	} `json:"reactions"`
	PullRequest *struct{} `json:"pull_request,omitempty"`
}

type gitHubComment struct {
	Body string `json:"body"`
}

// NewGitHubSource creates a new GitHub issues source; the token is optional
// and only raises the search rate limit.
func NewGitHubSource(token string, opts ...Option) *GitHubSource {
	o := buildOptions(gitHubAPIURL, opts)
	return &GitHubSource{
		token:     token,
		client:    newClient().SetHeader("Accept", "application/vnd.github+json"),
		opts:      o,
		collector: newCollector("github", o),
	}
}

func (g *GitHubSource) GetName() string {
	return "github"
}

func (g *GitHubSource) Kind() models.SourceKind {
	return models.KindIssueTracker
}

func (g *GitHubSource) IsEnabled() bool {
	return true
}

func (g *GitHubSource) Collect(ctx context.Context, query string) *Result {
	return g.collector.run(ctx, g.collector.expand(query), g.search, g.comments)
}

func (g *GitHubSource) Fetch(ctx context.Context, query string) []models.RawItem {
	return g.Collect(ctx, query).Items
}

func (g *GitHubSource) Breakdown(items []models.RawItem) []models.BreakdownEntry {
	return breakdownBy(items, func(item models.RawItem) (string, string) {
		if item.Community == "" {
			return "", ""
		}
		return item.Community, "https://github.com/" + item.Community
	})
}

func (g *GitHubSource) request() *resty.Request {
	req := g.client.R()
	if g.token != "" {
		req.SetHeader("Authorization", "Bearer "+g.token)
	}
	return req
}

func (g *GitHubSource) search(ctx context.Context, phrase string) ([]models.RawItem, error) {
	since := g.opts.Now().Add(-g.opts.Window).Format("2006-01-02")
	q := fmt.Sprintf("%s is:issue created:>%s", phrase, since)
	searchURL := fmt.Sprintf("%s/search/issues?q=%s&sort=reactions&order=desc&per_page=50",
		g.opts.BaseURL, url.QueryEscape(q))

	var searchResp gitHubSearchResponse
	if err := getJSON(ctx, g.request(), searchURL, &searchResp); err != nil {
		return nil, err
	}

	var items []models.RawItem
	for _, issue := range searchResp.Items {
		if issue.PullRequest != nil {
			continue
		}
		repo := repoFromURL(issue.RepositoryURL)
		items = append(items, models.RawItem{
			ID:              fmt.Sprintf("github_%s#%d", repo, issue.Number),
			Source:          models.KindIssueTracker,
			Connector:       g.GetName(),
			Title:           issue.Title,
			Body:            issue.Body,
			URL:             issue.HTMLURL,
			EngagementScore: issue.Reactions.TotalCount,
			CommentCount:    issue.Comments,
			CreatedAt:       issue.CreatedAt,
			Community:       repo,
			Author:          issue.User.Login,
		})
	}

	logrus.Debugf("GitHub returned %d issues for %q", len(items), phrase)
	return items, nil
}

func (g *GitHubSource) comments(ctx context.Context, item *models.RawItem) error {
	id := nativeID(*item, "github")
	repo, number, ok := strings.Cut(id, "#")
	if !ok || repo == "" {
		return nil
	}
	commentsURL := fmt.Sprintf("%s/repos/%s/issues/%s/comments?per_page=5", g.opts.BaseURL, repo, number)

	var resp []gitHubComment
	if err := getJSON(ctx, g.request(), commentsURL, &resp); err != nil {
		return err
	}

	var comments []string
	for _, c := range resp {
		if body := strings.TrimSpace(c.Body); body != "" {
			comments = append(comments, body)
		}
	}
	item.TopComments = limitComments(comments, 5)
	return nil
}

// repoFromURL turns https://api.github.com/repos/owner/name into owner/name
func repoFromURL(repositoryURL string) string {
	_, repo, ok := strings.Cut(repositoryURL, "/repos/")
	if !ok {
		return ""
	}
	return strings.Trim(repo, "/")
}

package models

import "time"

// SourceKind classifies the external service an item came from
type SourceKind string

const (
	KindForum        SourceKind = "forum"
	KindQA           SourceKind = "qa"
	KindIssueTracker SourceKind = "issue-tracker"
	KindArticleFeed  SourceKind = "article-feed"
	KindWebSearch    SourceKind = "web-search"
)

// RawItem represents one piece of external content found for a query
type RawItem struct {
	ID              string     `json:"id"`     // source-prefixed, e.g. "reddit_abc123"
	Source          SourceKind `json:"source"` // forum, qa, issue-tracker, ...
	Connector       string     `json:"connector"`
	Title           string     `json:"title"`
	Body            string     `json:"body"`
	URL             string     `json:"url"`
	EngagementScore int        `json:"engagement_score"` // upvotes, points, reactions
	CommentCount    int        `json:"comment_count"`
	CreatedAt       time.Time  `json:"created_at"`
	Community       string     `json:"community,omitempty"` // subreddit, repo, tag
	Author          string     `json:"author,omitempty"`
	TopComments     []string   `json:"top_comments,omitempty"` // deep-scan subset only
}

// Text returns title and body joined for matching
func (i RawItem) Text() string {
	if i.Body == "" {
		return i.Title
	}
	return i.Title + " " + i.Body
}

// Prominence ranks items for deep scanning
func (i RawItem) Prominence() int {
	return i.EngagementScore + 2*i.CommentCount
}

// ScoredItem is a RawItem with derived per-request signals. Never persisted.
type ScoredItem struct {
	RawItem
	PainScore         float64 `json:"pain_score"`
	BuyerScore        float64 `json:"buyer_score"`
	EngagementWeight  float64 `json:"engagement_weight"`
	SemanticRelevance float64 `json:"semantic_relevance"` // 0-1
}

// SourceLink points back at a theme member
type SourceLink struct {
	Title  string     `json:"title"`
	URL    string     `json:"url"`
	Source SourceKind `json:"source"`
}

// Theme is a labeled group of corpus items
type Theme struct {
	Title   string       `json:"title"`
	Share   int          `json:"share"`   // percentage of corpus items, 0-100
	Quotes  []string     `json:"quotes"`  // at most 3
	Sources []SourceLink `json:"sources"` // at most 3
}

// BreakdownEntry counts items per grouping key within one connector
type BreakdownEntry struct {
	Label string `json:"label"`
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// SourceBreakdown is the breakdown for one connector
type SourceBreakdown struct {
	Connector string           `json:"connector"`
	Source    SourceKind       `json:"source"`
	Total     int              `json:"total"`
	Entries   []BreakdownEntry `json:"entries"`
}

// Stats holds the headline scores of a report
type Stats struct {
	PainIndex        int `json:"pain_index"`
	OpportunityScore int `json:"opportunity_score"`
	Volume           int `json:"volume"`
}

// PainSpike compares the last week against the rolling weekly average
type PainSpike struct {
	WeeklyVolume  int `json:"weekly_volume"`
	MonthlyVolume int `json:"monthly_volume"`
	DeltaPercent  int `json:"delta_percent"`
}

// Phrase is a frequent corpus n-gram
type Phrase struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// Quote is an extracted sentence with its origin
type Quote struct {
	Text   string     `json:"text"`
	URL    string     `json:"url"`
	Source SourceKind `json:"source"`
	Score  float64    `json:"score"`
}

// Idea is a generated product idea
type Idea struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Theme       string `json:"theme"`
}

// Report is the terminal artifact of one pipeline run
type Report struct {
	RunID          string            `json:"run_id"`
	Query          string            `json:"query"`
	Slug           string            `json:"slug"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	WindowDays     int               `json:"window_days"`
	Stats          Stats             `json:"stats"`
	Spike          PainSpike         `json:"spike"`
	Phrases        []Phrase          `json:"phrases"`
	Themes         []Theme           `json:"themes"`
	ThemeStrategy  string            `json:"theme_strategy"`
	Sources        []SourceBreakdown `json:"sources"`
	Ideas          []Idea            `json:"ideas"`
	Quotes         []Quote           `json:"quotes"`
	Frictions      []Quote           `json:"frictions"`
	TopPosts       []SourceLink      `json:"top_posts"`
	SemanticFilter bool              `json:"semantic_filter"`
	SourceErrors   []string          `json:"source_errors,omitempty"`
}

// IsStale reports whether the report is older than the freshness window
func (r *Report) IsStale(now time.Time, window time.Duration) bool {
	return now.Sub(r.UpdatedAt) > window
}

// Alert represents an urgent notification, raised when a tracked query spikes
type Alert struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // "spike", "info"
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Report    *Report   `json:"report,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

package sources

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/painradar/painradar/internal/lexicon"
	"github.com/painradar/painradar/internal/models"
	"github.com/painradar/painradar/internal/textutil"
)

const userAgent = "PainRadar/1.0"

// DefaultTemplates expands a query into intent-specific searches
var DefaultTemplates = []string{
	"{q}",
	"best {q}",
	"{q} alternative",
	"alternative to {q}",
	"{q} pricing",
	"problem with {q}",
}

// Options tune a connector; tests point BaseURL at an httptest server
type Options struct {
	BaseURL       string
	AuthURL       string
	Templates     []string
	Delay         time.Duration
	DeepScanLimit int
	Window        time.Duration
	Now           func() time.Time
	Filter        QualityFilter
}

// Option mutates Options
type Option func(*Options)

// WithBaseURL overrides the API root
func WithBaseURL(u string) Option {
	return func(o *Options) { o.BaseURL = strings.TrimRight(u, "/") }
}

// WithAuthURL overrides the OAuth token endpoint
func WithAuthURL(u string) Option {
	return func(o *Options) { o.AuthURL = u }
}

// WithTemplates replaces the intent templates
func WithTemplates(templates []string) Option {
	return func(o *Options) { o.Templates = templates }
}

// WithDelay sets the pause between consecutive calls to the same API
func WithDelay(d time.Duration) Option {
	return func(o *Options) { o.Delay = d }
}

// WithDeepScanLimit sets how many top items get their comments fetched
func WithDeepScanLimit(n int) Option {
	return func(o *Options) { o.DeepScanLimit = n }
}

// WithWindow drops items older than d
func WithWindow(d time.Duration) Option {
	return func(o *Options) { o.Window = d }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

// WithFilter replaces the quality filter
func WithFilter(f QualityFilter) Option {
	return func(o *Options) { o.Filter = f }
}

func buildOptions(defaultBaseURL string, opts []Option) Options {
	o := Options{
		BaseURL:       defaultBaseURL,
		Templates:     DefaultTemplates,
		Delay:         300 * time.Millisecond,
		DeepScanLimit: 12,
		Window:        30 * 24 * time.Hour,
		Now:           time.Now,
		Filter:        DefaultQualityFilter(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// QualityFilter drops low-signal items before they leave a connector
type QualityFilter struct {
	MinTitleLength int
	MinTextLength  int
	Exclude        []string
}

// DefaultQualityFilter uses the built-in lexicon's low-signal markers
func DefaultQualityFilter() QualityFilter {
	return NewQualityFilter(lexicon.Default())
}

// NewQualityFilter drops items carrying any of lex's low-signal markers
func NewQualityFilter(lex *lexicon.Lexicon) QualityFilter {
	return QualityFilter{
		MinTitleLength: 10,
		MinTextLength:  30,
		Exclude:        lex.LowSignal,
	}
}

// Keep reports whether an item passes the filter
func (f QualityFilter) Keep(item models.RawItem) bool {
	title := strings.TrimSpace(item.Title)
	if len([]rune(title)) < f.MinTitleLength {
		return false
	}
	if len([]rune(strings.TrimSpace(item.Text()))) < f.MinTextLength {
		return false
	}
	normalized := textutil.Normalize(item.Text())
	for _, marker := range f.Exclude {
		if textutil.ContainsTerm(normalized, marker) {
			return false
		}
	}
	return true
}

type searchFunc func(ctx context.Context, phrase string) ([]models.RawItem, error)

type deepScanFunc func(ctx context.Context, item *models.RawItem) error

// collector implements the behavior shared by every connector: sequential
// rate-limited template calls, per-connector id dedupe, quality filtering and
// a concurrent deep scan of the most prominent items.
type collector struct {
	name    string
	opts    Options
	limiter *rate.Limiter
}

func newCollector(name string, opts Options) *collector {
	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}
	return &collector{
		name:    name,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func newClient() *resty.Client {
	return resty.New().
		SetTimeout(20*time.Second).
		SetHeader("User-Agent", userAgent)
}

// expand fills every template with the query
func (c *collector) expand(query string) []string {
	query = strings.TrimSpace(query)
	var phrases []string
	seen := make(map[string]bool)
	for _, tmpl := range c.opts.Templates {
		phrase := strings.ReplaceAll(tmpl, "{q}", query)
		if !seen[phrase] {
			seen[phrase] = true
			phrases = append(phrases, phrase)
		}
	}
	return phrases
}

func (c *collector) run(ctx context.Context, phrases []string, search searchFunc, deep deepScanFunc) *Result {
	result := &Result{Source: c.name}
	seen := make(map[string]bool)
	var merged []models.RawItem

	for _, phrase := range phrases {
		if err := c.limiter.Wait(ctx); err != nil {
			result.Failures = append(result.Failures, asFailure(c.name, phrase, err))
			break
		}

		items, err := search(ctx, phrase)
		if err != nil {
			failure := asFailure(c.name, phrase, err)
			result.Failures = append(result.Failures, failure)
			if failure.Kind == FailureRateLimited {
				logrus.Warnf("%s rate limited on %q, keeping %d items gathered so far", c.name, phrase, len(merged))
				result.Aborted = true
				break
			}
			logrus.Errorf("Failed to search %s for %q: %v", c.name, phrase, err)
			continue
		}

		for _, item := range items {
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			merged = append(merged, item)
		}
	}

	merged = c.filter(merged)

	if deep != nil && c.opts.DeepScanLimit > 0 && len(merged) > 0 {
		c.deepScan(ctx, merged, deep)
	}

	result.Items = merged
	return result
}

func (c *collector) filter(items []models.RawItem) []models.RawItem {
	cutoff := c.opts.Now().Add(-c.opts.Window)
	kept := items[:0]
	for _, item := range items {
		// undated items get the benefit of the doubt
		if !item.CreatedAt.IsZero() && item.CreatedAt.Before(cutoff) {
			continue
		}
		if !c.opts.Filter.Keep(item) {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

// deepScan enriches the top items concurrently; failures leave them untouched
func (c *collector) deepScan(ctx context.Context, items []models.RawItem, deep deepScanFunc) {
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return items[order[a]].Prominence() > items[order[b]].Prominence()
	})
	if len(order) > c.opts.DeepScanLimit {
		order = order[:c.opts.DeepScanLimit]
	}

	var wg sync.WaitGroup
	for _, idx := range order {
		wg.Add(1)
		go func(item *models.RawItem) {
			defer wg.Done()
			if err := deep(ctx, item); err != nil {
				logrus.Debugf("Deep scan of %s failed: %v", item.ID, err)
			}
		}(&items[idx])
	}
	wg.Wait()
}

// getJSON issues a GET and decodes a 200 response into out
func getJSON(ctx context.Context, req *resty.Request, url string, out any) error {
	resp, err := req.SetContext(ctx).Get(url)
	if err != nil {
		return networkFailure(err)
	}
	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return parseFailure(err)
	}
	return nil
}

// breakdownBy counts items per label and sorts by count, then label
func breakdownBy(items []models.RawItem, key func(models.RawItem) (label, url string)) []models.BreakdownEntry {
	index := make(map[string]int)
	var entries []models.BreakdownEntry
	for _, item := range items {
		label, url := key(item)
		if label == "" {
			continue
		}
		if i, ok := index[label]; ok {
			entries[i].Count++
			continue
		}
		index[label] = len(entries)
		entries = append(entries, models.BreakdownEntry{Label: label, URL: url, Count: 1})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Label < entries[j].Label
	})
	return entries
}

func nativeID(item models.RawItem, prefix string) string {
	return strings.TrimPrefix(item.ID, prefix+"_")
}

func limitComments(comments []string, n int) []string {
	if len(comments) > n {
		return comments[:n]
	}
	return comments
}

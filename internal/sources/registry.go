package sources

import (
	"time"

	"github.com/painradar/painradar/internal/config"
	"github.com/painradar/painradar/internal/lexicon"
)

// FromConfig builds the static connector list. Items are filtered with lex's
// low-signal markers.
func FromConfig(cfg *config.Config, lex *lexicon.Lexicon) []Source {
	opts := []Option{
		WithFilter(NewQualityFilter(lex)),
		WithDelay(cfg.RequestDelay),
		WithDeepScanLimit(cfg.DeepScanLimit),
		WithWindow(time.Duration(cfg.WindowDays) * 24 * time.Hour),
	}

	return []Source{
		NewRedditSource(cfg.RedditClientID, cfg.RedditClientSecret, opts...),
		NewHackerNewsSource(opts...),
		NewStackExchangeSource(cfg.StackExchangeKey, opts...),
		NewGitHubSource(cfg.GitHubToken, opts...),
		NewFeedSource(cfg.FeedURLTemplates, opts...),
		NewWebSearchSource(opts...),
	}
}

// Enabled drops sources that are switched off
func Enabled(all []Source) []Source {
	var enabled []Source
	for _, src := range all {
		if src.IsEnabled() {
			enabled = append(enabled, src)
		}
	}
	return enabled
}

var (
	_ Source = (*RedditSource)(nil)
	_ Source = (*HackerNewsSource)(nil)
	_ Source = (*StackExchangeSource)(nil)
	_ Source = (*GitHubSource)(nil)
	_ Source = (*FeedSource)(nil)
	_ Source = (*WebSearchSource)(nil)
)

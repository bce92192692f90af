// Package ideas turns finished themes into short product ideas.
package ideas

import (
	"fmt"
	"strings"

	"github.com/painradar/painradar/internal/models"
	"github.com/painradar/painradar/internal/textutil"
)

// MaxIdeas caps the ideas in one report
const MaxIdeas = 3

type template struct {
	keywords    []string
	title       func(product, theme string) string
	description func(product, theme string, share int) string
}

var templates = []template{
	{
		keywords: []string{"pricing", "price", "cost", "expensive", "billing", "subscription", "plan"},
		title: func(product, _ string) string {
			return fmt.Sprintf("Cheaper %s for Small Teams", product)
		},
		description: func(product, theme string, share int) string {
			return fmt.Sprintf("%d%% of the discussion is about %s. A flat, predictable plan would undercut %s on price.", share, theme, product)
		},
	},
	{
		keywords: []string{"alternative", "competitor", "switch", " vs", "replacement", "looking for"},
		title: func(product, theme string) string {
			return fmt.Sprintf("%s Alternative Focused on %s", product, textutil.TitleCase(theme))
		},
		description: func(product, theme string, share int) string {
			return fmt.Sprintf("%d%% of posts compare options (%s). Users are ready to switch away from %s for a focused tool.", share, theme, product)
		},
	},
	{
		keywords: []string{"setup", "set up", "how-to", "how to", "install", "onboarding", "configure", "integration"},
		title: func(product, _ string) string {
			return fmt.Sprintf("Guided Onboarding for %s", product)
		},
		description: func(product, theme string, share int) string {
			return fmt.Sprintf("%d%% of posts ask about %s. Templates and a step-by-step setup would get new %s users to value faster.", share, theme, product)
		},
	},
	{
		keywords: []string{"bug", "reliab", "crash", "broken", "slow", "error", "sync", "outage"},
		title: func(product, _ string) string {
			return fmt.Sprintf("Reliable %s with Built-in Monitoring", product)
		},
		description: func(product, theme string, share int) string {
			return fmt.Sprintf("%d%% of posts report %s. A %s replacement that surfaces failures before users do would win trust.", share, theme, product)
		},
	},
}

var fallback = template{
	title: func(product, theme string) string {
		return fmt.Sprintf("%s That Fixes %s", product, textutil.TitleCase(theme))
	},
	description: func(product, theme string, share int) string {
		return fmt.Sprintf("%d%% of the discussion around %s centers on %s.", share, product, theme)
	},
}

// Generate returns up to MaxIdeas ideas, one per theme in theme order, each
// from the first template whose keywords appear in the theme title
func Generate(query string, themes []models.Theme) []models.Idea {
	ideas := []models.Idea{}
	product := textutil.TitleCase(strings.TrimSpace(query))
	if product == "" {
		return ideas
	}

	seen := make(map[string]bool)
	for _, theme := range themes {
		if len(ideas) >= MaxIdeas {
			break
		}
		tmpl := pick(theme.Title)
		name := strings.ToLower(theme.Title)
		title := tmpl.title(product, name)
		if seen[title] {
			continue
		}
		seen[title] = true

		description := tmpl.description(product, name, theme.Share)
		if len(theme.Quotes) > 0 {
			description += fmt.Sprintf(" One user put it: %q", theme.Quotes[0])
		}
		ideas = append(ideas, models.Idea{Title: title, Description: description, Theme: theme.Title})
	}
	return ideas
}

func pick(themeTitle string) template {
	title := " " + strings.ToLower(themeTitle)
	for _, tmpl := range templates {
		for _, kw := range tmpl.keywords {
			if strings.Contains(title, kw) {
				return tmpl
			}
		}
	}
	return fallback
}

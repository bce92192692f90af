package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/painradar/painradar/internal/models"
)

// runnerFunc adapts a report getter to pipeline.Runner
type runnerFunc func(ctx context.Context, query string) (*models.Report, error)

func (f runnerFunc) Run(ctx context.Context, query string) (*models.Report, error) {
	return f(ctx, query)
}

func printReport(r *models.Report) {
	fmt.Printf("Pain report: %s\n", r.Query)
	fmt.Printf("  Posts: %d in the last %d days\n", r.Stats.Volume, r.WindowDays)
	fmt.Printf("  Pain index: %d/100\n", r.Stats.PainIndex)
	fmt.Printf("  Opportunity: %d/100\n", r.Stats.OpportunityScore)
	fmt.Printf("  Weekly change: %+d%% (%d this week, %d this month)\n",
		r.Spike.DeltaPercent, r.Spike.WeeklyVolume, r.Spike.MonthlyVolume)
	if !r.SemanticFilter {
		fmt.Println("  Embedding model unavailable, lexical filtering only")
	}
	if len(r.SourceErrors) > 0 {
		fmt.Printf("  Failed sources: %s\n", strings.Join(r.SourceErrors, ", "))
	}

	if len(r.Themes) > 0 {
		fmt.Printf("\nThemes (%s):\n", r.ThemeStrategy)
		for _, theme := range r.Themes {
			fmt.Printf("  %3d%%  %s\n", theme.Share, theme.Title)
			for _, quote := range theme.Quotes {
				fmt.Printf("        %q\n", quote)
			}
		}
	}

	if len(r.Phrases) > 0 {
		fmt.Println("\nTop phrases:")
		for _, phrase := range r.Phrases {
			fmt.Printf("  %-30s %d\n", phrase.Text, phrase.Count)
		}
	}

	if len(r.Frictions) > 0 {
		fmt.Println("\nFrictions:")
		for _, q := range r.Frictions {
			fmt.Printf("  [%.2f] %s\n", q.Score, q.Text)
		}
	}

	if len(r.Ideas) > 0 {
		fmt.Println("\nIdeas:")
		for _, idea := range r.Ideas {
			fmt.Printf("  - %s\n", idea.Title)
		}
	}

	if len(r.TopPosts) > 0 {
		fmt.Println("\nTop posts:")
		for _, post := range r.TopPosts {
			fmt.Printf("  %s\n    %s\n", post.Title, post.URL)
		}
	}
}

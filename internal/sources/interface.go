package sources

import (
	"context"

	"github.com/painradar/painradar/internal/models"
)

// Source interface defines the contract for all data sources
type Source interface {
	GetName() string
	Kind() models.SourceKind
	IsEnabled() bool

	// Collect runs every intent template and reports failures alongside
	// whatever items were gathered. It never returns nil.
	Collect(ctx context.Context, query string) *Result

	// Fetch is Collect with failures dropped; it never fails.
	Fetch(ctx context.Context, query string) []models.RawItem

	// Breakdown groups this source's items by community for display
	Breakdown(items []models.RawItem) []models.BreakdownEntry
}

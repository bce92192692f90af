package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/painradar/painradar/internal/config"
	"github.com/painradar/painradar/internal/models"
)

const reportPrefix = "reports/"

// ReportStore persists reports as JSON documents keyed by slug
type ReportStore struct {
	storage StorageInterface
}

// NewReportStore wraps a blob storage backend
func NewReportStore(storage StorageInterface) *ReportStore {
	return &ReportStore{storage: storage}
}

func reportKey(slug string) string {
	return reportPrefix + slug + ".json"
}

// Get loads the report for slug; a missing report yields ErrNotFound
func (r *ReportStore) Get(ctx context.Context, slug string) (*models.Report, error) {
	data, err := r.storage.Retrieve(ctx, reportKey(slug))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading report %s: %w", slug, err)
	}

	var report models.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decoding report %s: %w", slug, err)
	}
	return &report, nil
}

// Put replaces the stored report for report.Slug
func (r *ReportStore) Put(ctx context.Context, report *models.Report) error {
	if report.Slug == "" {
		return fmt.Errorf("report has no slug")
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return r.storage.Store(ctx, reportKey(report.Slug), data)
}

// Slugs lists the slugs of every stored report
func (r *ReportStore) Slugs(ctx context.Context) ([]string, error) {
	keys, err := r.storage.List(ctx, reportPrefix)
	if err != nil {
		return nil, err
	}
	slugs := make([]string, 0, len(keys))
	for _, key := range keys {
		slugs = append(slugs, strings.TrimSuffix(strings.TrimPrefix(key, reportPrefix), ".json"))
	}
	return slugs, nil
}

// Delete removes the report for slug
func (r *ReportStore) Delete(ctx context.Context, slug string) error {
	return r.storage.Delete(ctx, reportKey(slug))
}

// New opens the backend selected by cfg.StorageBackend
func New(ctx context.Context, cfg *config.Config) (StorageInterface, error) {
	switch cfg.StorageBackend {
	case "sqlite":
		s, err := NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "azure":
		s, err := NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory", "":
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/painradar/painradar/internal/models"
	"github.com/painradar/painradar/internal/notifications"
	"github.com/painradar/painradar/internal/slug"
	"github.com/painradar/painradar/internal/storage"
)

// ErrEmptyQuery is returned for queries that normalize to an empty slug
var ErrEmptyQuery = errors.New("query is empty")

const (
	// SpikeAlertPercent is the week-over-average growth that raises an alert
	SpikeAlertPercent = 50
	minSpikeVolume    = 5

	// runTimeout bounds one shared pipeline run
	runTimeout = 10 * time.Minute
)

// Service serves cached reports and regenerates them once they go stale
type Service struct {
	runner    Runner
	reports   *storage.ReportStore
	notifier  notifications.NotificationInterface
	freshness time.Duration
	now       func() time.Time
	group     singleflight.Group
}

// NewService creates a report service; notifier may be nil
func NewService(runner Runner, reports *storage.ReportStore, notifier notifications.NotificationInterface, freshness time.Duration) *Service {
	return &Service{
		runner:    runner,
		reports:   reports,
		notifier:  notifier,
		freshness: freshness,
		now:       time.Now,
	}
}

// GetReport returns the stored report for query while it is fresh, otherwise
// runs the pipeline and stores the result. Concurrent requests for the same
// slug share one run.
func (s *Service) GetReport(ctx context.Context, query string) (*models.Report, error) {
	key := slug.Normalize(query)
	if key == "" {
		return nil, ErrEmptyQuery
	}

	cached, err := s.reports.Get(ctx, key)
	switch {
	case err == nil && !cached.IsStale(s.now(), s.freshness):
		logrus.Debugf("Serving cached report for %s", key)
		return cached, nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("reading report cache: %w", err)
	}

	return s.regenerate(ctx, key, query, cached)
}

// Refresh regenerates the report for query regardless of its age
func (s *Service) Refresh(ctx context.Context, query string) (*models.Report, error) {
	key := slug.Normalize(query)
	if key == "" {
		return nil, ErrEmptyQuery
	}

	previous, err := s.reports.Get(ctx, key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("reading report cache: %w", err)
	}
	return s.regenerate(ctx, key, query, previous)
}

func (s *Service) regenerate(ctx context.Context, key, query string, previous *models.Report) (*models.Report, error) {
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		// the run is shared with every caller that joins it, so one caller
		// going away must not cancel it
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), runTimeout)
		defer cancel()

		report, err := s.runner.Run(runCtx, query)
		if err != nil {
			return report, err
		}

		report.Slug = key
		report.UpdatedAt = s.now()
		if previous != nil && !previous.CreatedAt.IsZero() {
			report.CreatedAt = previous.CreatedAt
		}
		if err := s.reports.Put(runCtx, report); err != nil {
			return nil, fmt.Errorf("storing report: %w", err)
		}
		logrus.Infof("Stored report %s (run %s)", key, report.RunID)
		return report, nil
	})
	if shared {
		logrus.Debugf("Joined in-flight run for %s", key)
	}

	report, _ := v.(*models.Report)
	return report, err
}

// Forget drops the stored report for query
func (s *Service) Forget(ctx context.Context, query string) error {
	key := slug.Normalize(query)
	if key == "" {
		return ErrEmptyQuery
	}
	if err := s.reports.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting report %s: %w", key, err)
	}
	logrus.Infof("Deleted report %s", key)
	return nil
}

// StoredQueries returns the query of every stored report, in slug order
func (s *Service) StoredQueries(ctx context.Context) ([]string, error) {
	slugs, err := s.reports.Slugs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}

	queries := make([]string, 0, len(slugs))
	for _, key := range slugs {
		report, err := s.reports.Get(ctx, key)
		if err != nil {
			logrus.Warnf("Skipping stored report %s: %v", key, err)
			continue
		}
		if report.Query == "" {
			queries = append(queries, key)
			continue
		}
		queries = append(queries, report.Query)
	}
	return queries, nil
}

// RefreshTracked regenerates every stale tracked query, then sends a digest
// for each refreshed report and an alert for each spike. Failures of single
// queries do not stop the others.
func (s *Service) RefreshTracked(ctx context.Context, queries []string) error {
	start := time.Now()
	logrus.Infof("Refreshing %d tracked queries", len(queries))

	var errs []string
	for _, query := range queries {
		key := slug.Normalize(query)
		if cached, err := s.reports.Get(ctx, key); err == nil && !cached.IsStale(s.now(), s.freshness) {
			logrus.Debugf("Tracked report %s is still fresh", key)
			continue
		}

		report, err := s.Refresh(ctx, query)
		if err != nil {
			logrus.Errorf("Failed to refresh %q: %v", query, err)
			errs = append(errs, fmt.Sprintf("%s: %v", query, err))
			continue
		}

		if err := s.notify(report); err != nil {
			logrus.Errorf("Failed to send notifications for %q: %v", query, err)
			errs = append(errs, fmt.Sprintf("%s: %v", query, err))
		}
	}

	logrus.Infof("Tracked refresh completed in %v", time.Since(start))
	if len(errs) > 0 {
		return fmt.Errorf("refresh errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (s *Service) notify(report *models.Report) error {
	if s.notifier == nil {
		return nil
	}
	if err := s.notifier.SendReport(report); err != nil {
		return err
	}
	if alert := spikeAlert(report, s.now()); alert != nil {
		return s.notifier.SendAlert(alert)
	}
	return nil
}

// spikeAlert returns an alert when the last week clearly outpaces the
// monthly average
func spikeAlert(report *models.Report, now time.Time) *models.Alert {
	spike := report.Spike
	if spike.DeltaPercent < SpikeAlertPercent || spike.WeeklyVolume < minSpikeVolume {
		return nil
	}
	return &models.Alert{
		ID:    uuid.NewString(),
		Type:  "spike",
		Title: fmt.Sprintf("Pain spike for %q: +%d%%", report.Query, spike.DeltaPercent),
		Message: fmt.Sprintf("%d posts in the last 7 days against %d in the last 30 (pain index %d)",
			spike.WeeklyVolume, spike.MonthlyVolume, report.Stats.PainIndex),
		Report:    report,
		CreatedAt: now,
	}
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/painradar/painradar/internal/config"
)

// refreshTimeout bounds one scheduled refresh of all tracked queries
const refreshTimeout = 30 * time.Minute

// Refresher regenerates stale reports for tracked queries
type Refresher interface {
	RefreshTracked(ctx context.Context, queries []string) error
}

// Service handles scheduled refreshes of tracked reports
type Service struct {
	config    *config.Config
	refresher Refresher
	cron      *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, refresher Refresher) *Service {
	return &Service{
		config:    cfg,
		refresher: refresher,
		cron:      cron.New(cron.WithSeconds()),
	}
}

// Start registers the refresh job and starts the cron runner. Without tracked
// queries there is nothing to schedule.
func (s *Service) Start() error {
	if len(s.config.TrackedQueries) == 0 {
		logrus.Info("No tracked queries configured, scheduler not started")
		return nil
	}

	_, err := s.cron.AddFunc(s.config.RefreshSchedule, s.runRefresh)
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", s.config.RefreshSchedule, err)
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with schedule %q for %d tracked queries", s.config.RefreshSchedule, len(s.config.TrackedQueries))
	return nil
}

func (s *Service) runRefresh() {
	logrus.Info("Starting scheduled refresh of tracked queries")

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if err := s.refresher.RefreshTracked(ctx, s.config.TrackedQueries); err != nil {
		logrus.Errorf("Scheduled refresh failed: %v", err)
	}
}

// Stop stops the scheduler and waits for a running refresh to finish
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}

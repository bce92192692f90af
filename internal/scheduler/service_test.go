package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/painradar/painradar/internal/config"
)

type mockRefresher struct {
	mock.Mock
}

func (m *mockRefresher) RefreshTracked(ctx context.Context, queries []string) error {
	args := m.Called(ctx, queries)
	return args.Error(0)
}

func TestStart_InvalidSchedule(t *testing.T) {
	cfg := &config.Config{TrackedQueries: []string{"crm"}, RefreshSchedule: "not a schedule"}
	s := NewService(cfg, &mockRefresher{})
	assert.Error(t, s.Start())
}

func TestStart_NoTrackedQueries(t *testing.T) {
	refresher := &mockRefresher{}
	s := NewService(&config.Config{RefreshSchedule: "0 0 * * * *"}, refresher)
	require.NoError(t, s.Start())
	assert.Empty(t, s.cron.Entries())
	s.Stop()
}

func TestStart_RegistersJob(t *testing.T) {
	cfg := &config.Config{TrackedQueries: []string{"crm"}, RefreshSchedule: "0 0 */6 * * *"}
	s := NewService(cfg, &mockRefresher{})
	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Len(t, s.cron.Entries(), 1)
}

func TestRunRefresh(t *testing.T) {
	queries := []string{"crm", "email automation"}
	refresher := &mockRefresher{}
	refresher.On("RefreshTracked", mock.Anything, queries).Return(errors.New("reddit down")).Once()

	s := NewService(&config.Config{TrackedQueries: queries}, refresher)
	s.runRefresh()

	refresher.AssertExpectations(t)
}

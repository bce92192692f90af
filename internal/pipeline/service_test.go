package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/painradar/painradar/internal/models"
	"github.com/painradar/painradar/internal/storage"
)

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Store(ctx context.Context, key string, data []byte) error {
	args := m.Called(ctx, key, data)
	return args.Error(0)
}

func (m *mockStorage) Retrieve(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockStorage) List(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	keys, _ := args.Get(0).([]string)
	return keys, args.Error(1)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, query string) (*models.Report, error) {
	args := m.Called(ctx, query)
	report, _ := args.Get(0).(*models.Report)
	return report, args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendReport(report *models.Report) error {
	args := m.Called(report)
	return args.Error(0)
}

func (m *mockNotifier) SendAlert(alert *models.Alert) error {
	args := m.Called(alert)
	return args.Error(0)
}

func encoded(t *testing.T, report *models.Report) []byte {
	data, err := json.Marshal(report)
	require.NoError(t, err)
	return data
}

func newTestService(store *mockStorage, runner *mockRunner, notifier *mockNotifier) *Service {
	s := NewService(runner, storage.NewReportStore(store), nil, 24*time.Hour)
	if notifier != nil {
		s.notifier = notifier
	}
	s.now = func() time.Time { return testNow }
	return s
}

const key = "reports/email-automation.json"

func TestGetReport_Fresh(t *testing.T) {
	store, runner := &mockStorage{}, &mockRunner{}
	cached := &models.Report{RunID: "cached", Slug: "email-automation", UpdatedAt: testNow.Add(-time.Hour)}
	store.On("Retrieve", mock.Anything, key).Return(encoded(t, cached), nil)

	report, err := newTestService(store, runner, nil).GetReport(context.Background(), "Email  Automation!")
	require.NoError(t, err)
	assert.Equal(t, "cached", report.RunID)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestGetReport_StaleIsRegenerated(t *testing.T) {
	store, runner := &mockStorage{}, &mockRunner{}
	created := testNow.Add(-72 * time.Hour)
	cached := &models.Report{RunID: "old", Slug: "email-automation", CreatedAt: created, UpdatedAt: testNow.Add(-25 * time.Hour)}
	store.On("Retrieve", mock.Anything, key).Return(encoded(t, cached), nil)
	store.On("Store", mock.Anything, key, mock.Anything).Return(nil).Once()
	runner.On("Run", mock.Anything, "email automation").Return(&models.Report{RunID: "new", CreatedAt: testNow}, nil).Once()

	report, err := newTestService(store, runner, nil).GetReport(context.Background(), "email automation")
	require.NoError(t, err)
	assert.Equal(t, "new", report.RunID)
	assert.Equal(t, "email-automation", report.Slug)
	assert.Equal(t, testNow, report.UpdatedAt)
	assert.True(t, created.Equal(report.CreatedAt))

	store.AssertExpectations(t)
	runner.AssertExpectations(t)
}

func TestGetReport_Missing(t *testing.T) {
	store, runner := &mockStorage{}, &mockRunner{}
	store.On("Retrieve", mock.Anything, key).Return(nil, storage.ErrNotFound)
	store.On("Store", mock.Anything, key, mock.Anything).Return(nil).Once()
	runner.On("Run", mock.Anything, "email-automation").Return(&models.Report{RunID: "new"}, nil).Once()

	report, err := newTestService(store, runner, nil).GetReport(context.Background(), "email-automation")
	require.NoError(t, err)
	assert.Equal(t, "new", report.RunID)
	store.AssertExpectations(t)
}

func TestGetReport_NoResultsIsNotStored(t *testing.T) {
	store, runner := &mockStorage{}, &mockRunner{}
	store.On("Retrieve", mock.Anything, key).Return(nil, storage.ErrNotFound)
	runner.On("Run", mock.Anything, "email automation").Return(&models.Report{Themes: []models.Theme{}}, ErrNoResults)

	report, err := newTestService(store, runner, nil).GetReport(context.Background(), "email automation")
	assert.ErrorIs(t, err, ErrNoResults)
	require.NotNil(t, report)
	assert.Equal(t, models.Stats{}, report.Stats)
	store.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetReport_StoreErrors(t *testing.T) {
	t.Run("Read error", func(t *testing.T) {
		store, runner := &mockStorage{}, &mockRunner{}
		store.On("Retrieve", mock.Anything, key).Return(nil, errors.New("disk gone"))

		_, err := newTestService(store, runner, nil).GetReport(context.Background(), "email automation")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk gone")
		runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
	})

	t.Run("Write error", func(t *testing.T) {
		store, runner := &mockStorage{}, &mockRunner{}
		store.On("Retrieve", mock.Anything, key).Return(nil, storage.ErrNotFound)
		store.On("Store", mock.Anything, key, mock.Anything).Return(errors.New("quota exceeded"))
		runner.On("Run", mock.Anything, "email automation").Return(&models.Report{RunID: "new"}, nil)

		_, err := newTestService(store, runner, nil).GetReport(context.Background(), "email automation")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
	})
}

func TestGetReport_EmptyQuery(t *testing.T) {
	_, err := newTestService(&mockStorage{}, &mockRunner{}, nil).GetReport(context.Background(), "!!!")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestRefreshTracked(t *testing.T) {
	store, runner, notifier := &mockStorage{}, &mockRunner{}, &mockNotifier{}

	fresh := &models.Report{Slug: "crm", UpdatedAt: testNow.Add(-time.Hour)}
	store.On("Retrieve", mock.Anything, "reports/crm.json").Return(encoded(t, fresh), nil)
	store.On("Retrieve", mock.Anything, "reports/notion.json").Return(nil, storage.ErrNotFound)
	store.On("Store", mock.Anything, "reports/notion.json", mock.Anything).Return(nil).Once()

	spiking := &models.Report{
		Query: "notion",
		Spike: models.PainSpike{WeeklyVolume: 20, MonthlyVolume: 40, DeltaPercent: 91},
	}
	runner.On("Run", mock.Anything, "notion").Return(spiking, nil).Once()
	notifier.On("SendReport", spiking).Return(nil).Once()
	notifier.On("SendAlert", mock.MatchedBy(func(a *models.Alert) bool {
		return a.Type == "spike" && a.Report == spiking
	})).Return(nil).Once()

	err := newTestService(store, runner, notifier).RefreshTracked(context.Background(), []string{"crm", "notion"})
	require.NoError(t, err)

	runner.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestRefreshTracked_ContinuesAfterFailure(t *testing.T) {
	store, runner := &mockStorage{}, &mockRunner{}
	store.On("Retrieve", mock.Anything, mock.Anything).Return(nil, storage.ErrNotFound)
	store.On("Store", mock.Anything, "reports/notion.json", mock.Anything).Return(nil)
	runner.On("Run", mock.Anything, "crm").Return(&models.Report{}, ErrNoResults)
	runner.On("Run", mock.Anything, "notion").Return(&models.Report{RunID: "n"}, nil)

	err := newTestService(store, runner, nil).RefreshTracked(context.Background(), []string{"crm", "notion"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crm: no results")
	runner.AssertNumberOfCalls(t, "Run", 2)
}

func TestSpikeAlert(t *testing.T) {
	tests := []struct {
		name     string
		spike    models.PainSpike
		expected bool
	}{
		{"Flat", models.PainSpike{WeeklyVolume: 10, MonthlyVolume: 40, DeltaPercent: 0}, false},
		{"Spike", models.PainSpike{WeeklyVolume: 20, MonthlyVolume: 40, DeltaPercent: 91}, true},
		{"Spike on tiny volume", models.PainSpike{WeeklyVolume: 2, MonthlyVolume: 2, DeltaPercent: 100}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := spikeAlert(&models.Report{Query: "crm", Spike: tt.spike}, testNow)
			assert.Equal(t, tt.expected, alert != nil)
		})
	}
}

func TestGetReport_RunSurvivesCallerCancellation(t *testing.T) {
	store, runner := &mockStorage{}, &mockRunner{}
	store.On("Retrieve", mock.Anything, key).Return(nil, storage.ErrNotFound)
	store.On("Store", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), key, mock.Anything).Return(nil).Once()
	runner.On("Run", mock.MatchedBy(func(ctx context.Context) bool {
		_, hasDeadline := ctx.Deadline()
		return ctx.Err() == nil && hasDeadline
	}), "email automation").Return(&models.Report{RunID: "new"}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newTestService(store, runner, nil).GetReport(ctx, "email automation")
	require.NoError(t, err)
	assert.Equal(t, "new", report.RunID)
	runner.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestForget(t *testing.T) {
	store := &mockStorage{}
	store.On("Delete", mock.Anything, key).Return(nil).Once()

	s := newTestService(store, &mockRunner{}, nil)
	require.NoError(t, s.Forget(context.Background(), "Email Automation"))
	assert.ErrorIs(t, s.Forget(context.Background(), "  "), ErrEmptyQuery)
	store.AssertExpectations(t)
}

func TestStoredQueries(t *testing.T) {
	ctx := context.Background()
	reports := storage.NewReportStore(storage.NewMemoryStorage())
	require.NoError(t, reports.Put(ctx, &models.Report{Slug: "email-automation", Query: "Email Automation"}))
	require.NoError(t, reports.Put(ctx, &models.Report{Slug: "crm"}))

	s := NewService(&mockRunner{}, reports, nil, time.Hour)
	queries, err := s.StoredQueries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"crm", "Email Automation"}, queries)
}

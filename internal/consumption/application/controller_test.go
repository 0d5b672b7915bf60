package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"octopus-importer/internal/consumption/domain"
	"octopus-importer/internal/statstore/memory"
)

// perAccountFetcher fails configured accounts and serves the rest.
type perAccountFetcher struct {
	mu      sync.Mutex
	failing map[string]error
	raw     map[string][]domain.RawMeasurement
	calls   map[string]int
}

func (f *perAccountFetcher) FetchHourly(_ context.Context, account string, _, _ time.Time) ([]domain.RawMeasurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[account]++
	if err := f.failing[account]; err != nil {
		return nil, err
	}
	return f.raw[account], nil
}

func newTestController(t *testing.T, fetcher MeasurementFetcher, accounts AccountLister, live *LiveState) *Controller {
	t.Helper()
	imp, err := NewImporter(memory.NewStore(), fetcher, live, discardLogger())
	require.NoError(t, err)
	controller, err := NewController(imp, accounts, discardLogger())
	require.NoError(t, err)
	return controller
}

func TestRefreshAllIsolatesSeriesFailures(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	fetcher := &perAccountFetcher{
		failing: map[string]error{"A-2": errors.New("upstream 500")},
		raw: map[string][]domain.RawMeasurement{
			"A-1": {rawHour(base, "1.5")},
			"A-3": {rawHour(base, "0.5")},
		},
	}
	live := NewLiveState()
	controller := newTestController(t, fetcher, StaticAccounts{"A-1", "A-2", "A-3"}, live)

	results, err := controller.RefreshAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	byAccount := make(map[string]SeriesResult)
	for _, r := range results {
		byAccount[r.Account] = r
	}
	assert.NoError(t, byAccount["A-1"].Err)
	assert.Error(t, byAccount["A-2"].Err)
	assert.NoError(t, byAccount["A-3"].Err)

	// The healthy series imported despite the failing one.
	snapshot, ok := live.Snapshot("A-1")
	require.True(t, ok)
	assert.Equal(t, "1.5", snapshot.CumulativeSum)
}

func TestRefreshAllSkipsSeriesWithCycleInFlight(t *testing.T) {
	live := NewLiveState()
	controller := newTestController(t, &perAccountFetcher{}, StaticAccounts{"A-1"}, live)

	// Simulate a cycle still holding the series token.
	controller.seriesLock("A-1").Lock()
	defer controller.seriesLock("A-1").Unlock()

	results, err := controller.RefreshAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
	assert.NoError(t, results[0].Err)
}

func TestRefreshAllRetriesFailedSeriesOnNextTrigger(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	fetcher := &perAccountFetcher{
		failing: map[string]error{"A-1": errors.New("transient")},
		raw:     map[string][]domain.RawMeasurement{"A-1": {rawHour(base, "2")}},
	}
	live := NewLiveState()
	controller := newTestController(t, fetcher, StaticAccounts{"A-1"}, live)

	results, err := controller.RefreshAll(context.Background())
	require.NoError(t, err)
	require.Error(t, results[0].Err)

	fetcher.mu.Lock()
	delete(fetcher.failing, "A-1")
	fetcher.mu.Unlock()

	results, err = controller.RefreshAll(context.Background())
	require.NoError(t, err)
	require.NoError(t, results[0].Err)
	snapshot, _ := live.Snapshot("A-1")
	assert.Equal(t, "2", snapshot.CumulativeSum)
}

func TestStaticAccountsEmpty(t *testing.T) {
	_, err := StaticAccounts{}.Accounts(context.Background())
	assert.Error(t, err)
}

func TestSchedulerRunsAtStartupAndOnTicks(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	fetcher := &perAccountFetcher{raw: map[string][]domain.RawMeasurement{"A-1": {rawHour(base, "1")}}}
	live := NewLiveState()
	controller := newTestController(t, fetcher, StaticAccounts{"A-1"}, live)

	scheduler, err := NewScheduler(controller, 20*time.Millisecond, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	scheduler.Start(ctx)

	fetcher.mu.Lock()
	calls := fetcher.calls["A-1"]
	fetcher.mu.Unlock()
	assert.GreaterOrEqual(t, calls, 2, "expected the startup run plus ticks")
}

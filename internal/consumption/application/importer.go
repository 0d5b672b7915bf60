package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"octopus-importer/internal/billing"
	"octopus-importer/internal/consumption/domain"
	"octopus-importer/internal/observability/metrics"
	"octopus-importer/internal/statstore"
)

// Default trailing fetch window: the last 10 days plus one day of margin so
// late upstream corrections and backfills are re-fetched and deduplicated
// against the checkpoint.
const (
	DefaultWindowDays = 10
	DefaultMarginDays = 1
)

const consumptionUnit = "kWh"

// MeasurementFetcher fetches raw hourly samples for one account and window.
type MeasurementFetcher interface {
	FetchHourly(ctx context.Context, account string, start, end time.Time) ([]domain.RawMeasurement, error)
}

// BillingReader loads the wallet/invoice snapshot for one account.
type BillingReader interface {
	Read(ctx context.Context, account string) (billing.Snapshot, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ErrWindowInvalid marks a computed fetch window whose start does not
// precede its end. Programming invariant, never coerced.
var ErrWindowInvalid = errors.New("importer: fetch window start must precede end")

// Importer runs one import pass for one series: fetch, normalize, derive the
// checkpoint from the store, accumulate, commit the batch, refresh live state.
type Importer struct {
	store   statstore.Store
	fetcher MeasurementFetcher
	billing BillingReader
	live    *LiveState
	logger  *log.Logger
	clock   Clock

	windowDays int
	marginDays int
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithWindow overrides the trailing fetch window policy.
func WithWindow(windowDays, marginDays int) ImporterOption {
	return func(i *Importer) {
		if windowDays > 0 {
			i.windowDays = windowDays
		}
		if marginDays >= 0 {
			i.marginDays = marginDays
		}
	}
}

// WithBillingReader attaches the optional wallet/invoice refresh.
func WithBillingReader(reader BillingReader) ImporterOption {
	return func(i *Importer) { i.billing = reader }
}

// WithClock overrides the clock.
func WithClock(clock Clock) ImporterOption {
	return func(i *Importer) {
		if clock != nil {
			i.clock = clock
		}
	}
}

// NewImporter builds an Importer.
func NewImporter(store statstore.Store, fetcher MeasurementFetcher, live *LiveState, logger *log.Logger, opts ...ImporterOption) (*Importer, error) {
	if store == nil {
		return nil, errors.New("importer: nil store")
	}
	if fetcher == nil {
		return nil, errors.New("importer: nil fetcher")
	}
	if live == nil {
		return nil, errors.New("importer: nil live state")
	}
	if logger == nil {
		return nil, errors.New("importer: nil logger")
	}
	imp := &Importer{
		store:      store,
		fetcher:    fetcher,
		live:       live,
		logger:     logger,
		clock:      SystemClock{},
		windowDays: DefaultWindowDays,
		marginDays: DefaultMarginDays,
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp, nil
}

// RunCycle performs one trigger-to-commit pass for one account. Any error
// leaves the store untouched beyond already-committed batches; the next
// trigger re-derives the checkpoint and retries the same range.
func (imp *Importer) RunCycle(ctx context.Context, account string) error {
	started := imp.clock.Now()
	result := metrics.ResultSuccess
	defer func() {
		imp.live.setCycleState(account, StateIdle)
		metrics.ObserveCycle(result, imp.clock.Now().Sub(started))
	}()

	fail := func(res string, err error) error {
		result = res
		imp.live.setError(account, err)
		return err
	}

	seriesID, err := domain.BuildSeriesID(account)
	if err != nil {
		return fail(metrics.ResultInvalidData, err)
	}

	windowStart, windowEnd, err := imp.fetchWindow()
	if err != nil {
		return fail(metrics.ResultInvalidData, err)
	}

	imp.live.setCycleState(account, StateFetching)
	raw, err := imp.fetcher.FetchHourly(ctx, account, windowStart, windowEnd)
	if err != nil {
		return fail(metrics.ResultFetchError, fmt.Errorf("importer: fetch %s: %w", account, err))
	}

	imp.live.setCycleState(account, StateNormalizing)
	normalized, err := domain.Normalize(raw)
	if err != nil {
		return fail(metrics.ResultInvalidData, fmt.Errorf("importer: normalize %s: %w", account, err))
	}
	if normalized.Dropped > 0 {
		metrics.AddDroppedRecords(normalized.Dropped)
		imp.logger.Printf("importer: account=%s dropped %d unparseable records", account, normalized.Dropped)
	}

	imp.live.setCycleState(account, StateCheckpointLookup)
	checkpoint, err := imp.checkpointFor(ctx, seriesID)
	if err != nil {
		return fail(metrics.ResultCheckpointError, fmt.Errorf("importer: checkpoint %s: %w", account, err))
	}

	imp.live.setCycleState(account, StateAggregating)
	points, total := domain.Accumulate(checkpoint, normalized.Measurements)

	if len(points) > 0 {
		imp.live.setCycleState(account, StateCommitting)
		meta := statstore.Metadata{
			StatisticID: seriesID.String(),
			DisplayName: fmt.Sprintf("Consumo Eléctrico (%s)", account),
			Unit:        consumptionUnit,
			HasSum:      true,
			HasMean:     false,
		}
		if err := imp.store.CommitPoints(ctx, meta, toStorePoints(points)); err != nil {
			// Live value stays at the last known-committed sum; the next
			// cycle re-derives the checkpoint and re-attempts this range.
			return fail(metrics.ResultCommitError, fmt.Errorf("importer: commit %s: %w", account, err))
		}
		metrics.AddCommittedPoints(len(points))
		imp.logger.Printf("importer: account=%s committed %d points through %s", account, len(points), points[len(points)-1].Start.Format(time.RFC3339))
	}

	imp.live.setCumulative(account, total.String(), total.Float64(), imp.clock.Now())
	metrics.SetLiveCumulative(account, total.Float64())

	imp.refreshBilling(ctx, account)
	return nil
}

// checkpointFor derives the resume cursor from the store's last point.
// Missing history yields a fresh checkpoint. A stored point whose sum (and
// state) do not parse resets the running sum to zero but keeps the cursor
// when the stored timestamp is valid; re-importing is safe, crashing is not.
// A store read failure is surfaced as-is: the series is skipped this cycle
// rather than fabricating a cursor against an unreachable store.
func (imp *Importer) checkpointFor(ctx context.Context, seriesID domain.SeriesID) (domain.Checkpoint, error) {
	point, ok, err := imp.store.LastPoint(ctx, seriesID.String())
	if err != nil {
		return domain.Checkpoint{}, err
	}
	if !ok {
		return domain.Checkpoint{}, nil
	}

	checkpoint := domain.Checkpoint{}
	if !point.Start.IsZero() {
		checkpoint.LastStart = point.Start.UTC()
		checkpoint.HasLastStart = true
	}
	if sum, err := domain.ParseDecimal(point.Sum); err == nil {
		checkpoint.RunningSum = sum
	} else if state, err := domain.ParseDecimal(point.State); err == nil {
		checkpoint.RunningSum = state
	} else {
		imp.logger.Printf("importer: series=%s stored sum unparseable, resuming with zero sum", seriesID)
	}
	return checkpoint, nil
}

// refreshBilling is best-effort: wallet/invoice staleness never fails an
// import cycle.
func (imp *Importer) refreshBilling(ctx context.Context, account string) {
	if imp.billing == nil {
		return
	}
	snapshot, err := imp.billing.Read(ctx, account)
	if err != nil {
		imp.logger.Printf("importer: account=%s billing refresh failed: %v", account, err)
		return
	}
	imp.live.setBilling(account, snapshot)
}

// fetchWindow computes the trailing [start, end) window, aligned to UTC
// midnight: windowDays back from today through marginDays ahead.
func (imp *Importer) fetchWindow() (time.Time, time.Time, error) {
	now := imp.clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -imp.windowDays)
	end := today.AddDate(0, 0, imp.marginDays)
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: [%s, %s)", ErrWindowInvalid, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return start, end, nil
}

func toStorePoints(points []domain.CumulativePoint) []statstore.Point {
	result := make([]statstore.Point, 0, len(points))
	for _, p := range points {
		sum := p.Sum.String()
		result = append(result, statstore.Point{Start: p.Start, State: sum, Sum: sum})
	}
	return result
}

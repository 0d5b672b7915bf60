package application

import (
	"context"
	"errors"
	"log"
	"sync"

	"octopus-importer/internal/observability/metrics"
)

// AccountLister enumerates the accounts (series) to refresh.
type AccountLister interface {
	Accounts(ctx context.Context) ([]string, error)
}

// StaticAccounts is an AccountLister over a fixed list.
type StaticAccounts []string

func (s StaticAccounts) Accounts(ctx context.Context) ([]string, error) {
	_ = ctx
	if len(s) == 0 {
		return nil, errors.New("controller: no accounts configured")
	}
	return s, nil
}

// SeriesResult is the outcome of one series' cycle within a refresh.
type SeriesResult struct {
	Account string
	Skipped bool
	Err     error
}

// Controller drives one import pass per series on each trigger. Series run
// concurrently with no shared mutable state between them except the store;
// within a series, cycles are serialized by a per-series exclusion token so
// two cycles can never race on the same checkpoint.
type Controller struct {
	importer *Importer
	accounts AccountLister
	logger   *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewController builds a Controller.
func NewController(importer *Importer, accounts AccountLister, logger *log.Logger) (*Controller, error) {
	if importer == nil {
		return nil, errors.New("controller: nil importer")
	}
	if accounts == nil {
		return nil, errors.New("controller: nil account lister")
	}
	if logger == nil {
		return nil, errors.New("controller: nil logger")
	}
	return &Controller{
		importer: importer,
		accounts: accounts,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// RefreshAll runs one cycle per account. A failure in one series never
// aborts the others; it is reported in that series' result and the series is
// retried on the next trigger. A series whose previous cycle is still in
// flight is skipped, not queued.
func (c *Controller) RefreshAll(ctx context.Context) ([]SeriesResult, error) {
	accounts, err := c.accounts.Accounts(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]SeriesResult, len(accounts))
	var wg sync.WaitGroup
	for i, account := range accounts {
		wg.Add(1)
		go func(i int, account string) {
			defer wg.Done()
			results[i] = c.runSeries(ctx, account)
		}(i, account)
	}
	wg.Wait()

	for _, r := range results {
		switch {
		case r.Skipped:
			c.logger.Printf("controller: account=%s previous cycle still running, skipped", r.Account)
		case r.Err != nil:
			c.logger.Printf("controller: account=%s cycle failed: %v", r.Account, r.Err)
		}
	}
	return results, nil
}

func (c *Controller) runSeries(ctx context.Context, account string) SeriesResult {
	lock := c.seriesLock(account)
	if !lock.TryLock() {
		metrics.ObserveCycle(metrics.ResultSkippedBusy, 0)
		return SeriesResult{Account: account, Skipped: true}
	}
	defer lock.Unlock()

	if err := c.importer.RunCycle(ctx, account); err != nil {
		return SeriesResult{Account: account, Err: err}
	}
	return SeriesResult{Account: account}
}

func (c *Controller) seriesLock(account string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[account]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[account] = lock
	}
	return lock
}

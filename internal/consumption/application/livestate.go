package application

import (
	"sort"
	"sync"
	"time"

	"octopus-importer/internal/billing"
)

// CycleState is the per-series phase of the current import cycle.
type CycleState string

const (
	StateIdle             CycleState = "idle"
	StateFetching         CycleState = "fetching"
	StateNormalizing      CycleState = "normalizing"
	StateCheckpointLookup CycleState = "checkpoint_lookup"
	StateAggregating      CycleState = "aggregating"
	StateCommitting       CycleState = "committing"
)

// Snapshot is the immutable per-account view exposed to observers. A new
// value is published on every change; readers always get a copy and never
// share mutable state with the import path.
type Snapshot struct {
	Account string `json:"account"`

	// CumulativeSum is the exact running total; CumulativeKWh is its
	// float rendering for display.
	CumulativeSum string  `json:"cumulative_sum"`
	CumulativeKWh float64 `json:"cumulative_kwh"`

	Billing billing.Snapshot `json:"billing"`

	CycleState CycleState `json:"cycle_state"`
	LastImport time.Time  `json:"last_import,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// LiveState holds the latest snapshot per account.
type LiveState struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

// NewLiveState constructs an empty LiveState.
func NewLiveState() *LiveState {
	return &LiveState{snapshots: make(map[string]Snapshot)}
}

// Snapshot returns the current view of one account.
func (l *LiveState) Snapshot(account string) (Snapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.snapshots[account]
	return s, ok
}

// Snapshots returns all accounts sorted by account number.
func (l *LiveState) Snapshots() []Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]Snapshot, 0, len(l.snapshots))
	for _, s := range l.snapshots {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Account < result[j].Account })
	return result
}

func (l *LiveState) update(account string, fn func(*Snapshot)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.snapshots[account]
	if !ok {
		s = Snapshot{Account: account, CycleState: StateIdle}
	}
	fn(&s)
	l.snapshots[account] = s
}

func (l *LiveState) setCycleState(account string, state CycleState) {
	l.update(account, func(s *Snapshot) { s.CycleState = state })
}

func (l *LiveState) setCumulative(account, sum string, kwh float64, at time.Time) {
	l.update(account, func(s *Snapshot) {
		s.CumulativeSum = sum
		s.CumulativeKWh = kwh
		s.LastImport = at
		s.LastError = ""
	})
}

func (l *LiveState) setBilling(account string, b billing.Snapshot) {
	l.update(account, func(s *Snapshot) { s.Billing = b })
}

func (l *LiveState) setError(account string, err error) {
	l.update(account, func(s *Snapshot) { s.LastError = err.Error() })
}

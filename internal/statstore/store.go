// Package statstore defines the long-term statistics store consumed by the
// importer: an append-only, time-bucketed store keyed by statistic id, with
// "read last point" as the only read the import path needs.
package statstore

import (
	"context"
	"errors"
	"time"
)

// Metadata describes a statistics series. It is upserted with every commit so
// renames propagate without touching history.
type Metadata struct {
	StatisticID string
	DisplayName string
	Unit        string
	HasSum      bool
	HasMean     bool
}

// Point is one committed point of a series. State mirrors Sum for
// total-increasing series.
type Point struct {
	Start time.Time
	State string
	Sum   string
}

// ErrUnavailable wraps store access failures. Callers must treat it as "the
// store is unreachable", never as "the series is empty".
var ErrUnavailable = errors.New("statstore: unavailable")

// Store is the external statistics store boundary.
type Store interface {
	// LastPoint returns the most recent committed point of a series. The
	// boolean is false when the series has no history.
	LastPoint(ctx context.Context, statisticID string) (Point, bool, error)

	// CommitPoints appends a batch atomically: either every point lands or
	// none does. Re-committing an already present start is idempotent.
	CommitPoints(ctx context.Context, meta Metadata, points []Point) error

	// ListPoints returns committed points with start in [from, to), ascending.
	ListPoints(ctx context.Context, statisticID string, from, to time.Time) ([]Point, error)
}

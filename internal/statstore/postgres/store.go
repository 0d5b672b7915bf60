package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"octopus-importer/internal/statstore"
)

const (
	defaultMetadataTable = "statistics_meta"
	defaultPointsTable   = "statistics"
)

// Store is a Postgres implementation of the statistics store.
type Store struct {
	db            *sql.DB
	metadataTable string
	pointsTable   string
}

// Option configures the store.
type Option func(*Store)

// WithTables overrides the default table names.
func WithTables(metadataTable, pointsTable string) Option {
	return func(s *Store) {
		if metadataTable != "" {
			s.metadataTable = metadataTable
		}
		if pointsTable != "" {
			s.pointsTable = pointsTable
		}
	}
}

// NewStore creates a store over an open database handle.
func NewStore(db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("statstore: nil db")
	}
	s := &Store{
		db:            db,
		metadataTable: defaultMetadataTable,
		pointsTable:   defaultPointsTable,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LastPoint fetches the most recent committed point of a series.
func (s *Store) LastPoint(ctx context.Context, statisticID string) (statstore.Point, bool, error) {
	if statisticID == "" {
		return statstore.Point{}, false, errors.New("statstore: empty statistic id")
	}

	query := fmt.Sprintf(`
SELECT start_at, state, sum
FROM %s
WHERE statistic_id = $1
ORDER BY start_at DESC
LIMIT 1`, s.pointsTable)

	var (
		start sql.NullTime
		state sql.NullString
		sum   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, statisticID).Scan(&start, &state, &sum)
	if err == sql.ErrNoRows {
		return statstore.Point{}, false, nil
	}
	if err != nil {
		return statstore.Point{}, false, fmt.Errorf("%w: last point: %v", statstore.ErrUnavailable, err)
	}

	point := statstore.Point{State: state.String, Sum: sum.String}
	if start.Valid {
		point.Start = start.Time.UTC()
	}
	return point, true, nil
}

// CommitPoints upserts series metadata and appends the batch in one
// transaction. A failed batch leaves no partial history behind.
func (s *Store) CommitPoints(ctx context.Context, meta statstore.Metadata, points []statstore.Point) error {
	if meta.StatisticID == "" {
		return errors.New("statstore: empty statistic id")
	}
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", statstore.ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	metaQuery := fmt.Sprintf(`
INSERT INTO %s (statistic_id, display_name, unit, has_sum, has_mean)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (statistic_id)
DO UPDATE SET
	display_name = EXCLUDED.display_name,
	unit = EXCLUDED.unit,
	has_sum = EXCLUDED.has_sum,
	has_mean = EXCLUDED.has_mean`, s.metadataTable)

	if _, err := tx.ExecContext(ctx, metaQuery, meta.StatisticID, meta.DisplayName, meta.Unit, meta.HasSum, meta.HasMean); err != nil {
		return fmt.Errorf("%w: metadata upsert: %v", statstore.ErrUnavailable, err)
	}

	pointQuery := fmt.Sprintf(`
INSERT INTO %s (statistic_id, start_at, state, sum)
VALUES ($1, $2, $3, $4)
ON CONFLICT (statistic_id, start_at)
DO UPDATE SET
	state = EXCLUDED.state,
	sum = EXCLUDED.sum`, s.pointsTable)

	for _, p := range points {
		if _, err := tx.ExecContext(ctx, pointQuery, meta.StatisticID, p.Start.UTC(), p.State, p.Sum); err != nil {
			return fmt.Errorf("%w: insert point %s: %v", statstore.ErrUnavailable, p.Start.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", statstore.ErrUnavailable, err)
	}
	return nil
}

// ListPoints returns committed points with start in [from, to), ascending.
func (s *Store) ListPoints(ctx context.Context, statisticID string, from, to time.Time) ([]statstore.Point, error) {
	if statisticID == "" {
		return nil, errors.New("statstore: empty statistic id")
	}

	query := fmt.Sprintf(`
SELECT start_at, state, sum
FROM %s
WHERE statistic_id = $1
	AND start_at >= $2
	AND start_at < $3
ORDER BY start_at ASC`, s.pointsTable)

	rows, err := s.db.QueryContext(ctx, query, statisticID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: list points: %v", statstore.ErrUnavailable, err)
	}
	defer rows.Close()

	var result []statstore.Point
	for rows.Next() {
		var (
			start time.Time
			state sql.NullString
			sum   sql.NullString
		)
		if err := rows.Scan(&start, &state, &sum); err != nil {
			return nil, fmt.Errorf("%w: scan point: %v", statstore.ErrUnavailable, err)
		}
		result = append(result, statstore.Point{Start: start.UTC(), State: state.String, Sum: sum.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list points: %v", statstore.ErrUnavailable, err)
	}
	return result, nil
}

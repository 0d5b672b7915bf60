package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"octopus-importer/internal/statstore"
)

// Store is an in-memory statistics store for tests and demo runs. Distinct
// series can be appended to concurrently.
type Store struct {
	mu     sync.RWMutex
	meta   map[string]statstore.Metadata
	points map[string][]statstore.Point
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		meta:   make(map[string]statstore.Metadata),
		points: make(map[string][]statstore.Point),
	}
}

// LastPoint returns the newest point of a series, if any.
func (s *Store) LastPoint(ctx context.Context, statisticID string) (statstore.Point, bool, error) {
	_ = ctx
	if statisticID == "" {
		return statstore.Point{}, false, errors.New("statstore: empty statistic id")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	series := s.points[statisticID]
	if len(series) == 0 {
		return statstore.Point{}, false, nil
	}
	return series[len(series)-1], true, nil
}

// CommitPoints appends a batch, replacing points that share a start.
func (s *Store) CommitPoints(ctx context.Context, meta statstore.Metadata, points []statstore.Point) error {
	_ = ctx
	if meta.StatisticID == "" {
		return errors.New("statstore: empty statistic id")
	}
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[meta.StatisticID] = meta

	series := s.points[meta.StatisticID]
	for _, p := range points {
		p.Start = p.Start.UTC()
		replaced := false
		for i := range series {
			if series[i].Start.Equal(p.Start) {
				series[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			series = append(series, p)
		}
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Start.Before(series[j].Start) })
	s.points[meta.StatisticID] = series
	return nil
}

// ListPoints returns points with start in [from, to), ascending.
func (s *Store) ListPoints(ctx context.Context, statisticID string, from, to time.Time) ([]statstore.Point, error) {
	_ = ctx
	if statisticID == "" {
		return nil, errors.New("statstore: empty statistic id")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []statstore.Point
	for _, p := range s.points[statisticID] {
		if p.Start.Before(from) || !p.Start.Before(to) {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

// Metadata returns the stored metadata for a series.
func (s *Store) Metadata(statisticID string) (statstore.Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.meta[statisticID]
	return meta, ok
}

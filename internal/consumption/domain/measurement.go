package domain

import (
	"fmt"
	"sort"
	"time"
)

// RawMeasurement is one hourly sample as returned by the upstream API.
// All fields arrive as text and may be missing or malformed.
type RawMeasurement struct {
	Value   string
	Unit    string
	StartAt string
	EndAt   string
}

// Measurement is a validated hourly consumption sample in UTC.
type Measurement struct {
	Start time.Time
	End   time.Time
	Value Decimal
	Unit  string
}

// NormalizedSeries is the output of Normalize: measurements sorted ascending
// by start, deduplicated by start, plus the count of records dropped as
// unparseable.
type NormalizedSeries struct {
	Measurements []Measurement
	Dropped      int
}

// Normalize parses raw samples into a time-ordered, de-duplicated sequence.
//
// A record is dropped (counted, not fatal) when its start, end or value does
// not parse. When two records share a start the later-seen one wins, which
// tolerates the upstream refining data across overlapping fetch windows.
// A record that parses but has start >= end violates the measurement
// invariant and aborts the whole batch with ErrInvalidInterval.
func Normalize(raw []RawMeasurement) (NormalizedSeries, error) {
	if len(raw) == 0 {
		return NormalizedSeries{}, nil
	}

	byStart := make(map[time.Time]Measurement, len(raw))
	order := make([]time.Time, 0, len(raw))
	dropped := 0

	for _, r := range raw {
		start, err := parseInstant(r.StartAt)
		if err != nil {
			dropped++
			continue
		}
		end, err := parseInstant(r.EndAt)
		if err != nil {
			dropped++
			continue
		}
		value, err := ParseDecimal(r.Value)
		if err != nil {
			dropped++
			continue
		}
		if !start.Before(end) {
			return NormalizedSeries{}, fmt.Errorf("%w: start=%s end=%s", ErrInvalidInterval, start.Format(time.RFC3339), end.Format(time.RFC3339))
		}

		if _, seen := byStart[start]; !seen {
			order = append(order, start)
		}
		byStart[start] = Measurement{Start: start, End: end, Value: value, Unit: r.Unit}
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	measurements := make([]Measurement, 0, len(order))
	for _, start := range order {
		measurements = append(measurements, byStart[start])
	}
	return NormalizedSeries{Measurements: measurements, Dropped: dropped}, nil
}

func parseInstant(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

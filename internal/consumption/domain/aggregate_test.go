package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecimal(t *testing.T, s string) Decimal {
	t.Helper()
	d, err := ParseDecimal(s)
	require.NoError(t, err)
	return d
}

func hourly(t *testing.T, start time.Time, value string) Measurement {
	t.Helper()
	return Measurement{Start: start, End: start.Add(time.Hour), Value: mustDecimal(t, value), Unit: "kWh"}
}

func TestAccumulateColdStart(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	points, total := Accumulate(Checkpoint{}, []Measurement{
		hourly(t, t0, "2.5"),
		hourly(t, t1, "1.5"),
	})

	require.Len(t, points, 2)
	assert.Equal(t, t0, points[0].Start)
	assert.Equal(t, "2.5", points[0].Sum.String())
	assert.Equal(t, t1, points[1].Start)
	assert.Equal(t, "4.0", points[1].Sum.String())
	assert.Equal(t, "4.0", total.String())
}

func TestAccumulateSkipsAtOrBeforeCursor(t *testing.T) {
	cursor := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	checkpoint := Checkpoint{LastStart: cursor, HasLastStart: true, RunningSum: mustDecimal(t, "100")}

	points, total := Accumulate(checkpoint, []Measurement{
		hourly(t, cursor.Add(-time.Hour), "9"),
		hourly(t, cursor, "9"), // exact cursor start must never be re-counted
		hourly(t, cursor.Add(time.Second), "0.5"),
	})

	require.Len(t, points, 1)
	assert.Equal(t, cursor.Add(time.Second), points[0].Start)
	assert.Equal(t, "100.5", points[0].Sum.String())
	assert.Equal(t, "100.5", total.String())
}

func TestAccumulateEmptyCycleKeepsRunningSum(t *testing.T) {
	cursor := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	checkpoint := Checkpoint{LastStart: cursor, HasLastStart: true, RunningSum: mustDecimal(t, "100")}

	points, total := Accumulate(checkpoint, []Measurement{
		hourly(t, cursor.Add(-2*time.Hour), "1"),
		hourly(t, cursor.Add(-time.Hour), "1"),
	})

	assert.Empty(t, points)
	assert.Equal(t, "100", total.String())
}

func TestAccumulateIsIdempotent(t *testing.T) {
	cursor := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	checkpoint := Checkpoint{LastStart: cursor, HasLastStart: true, RunningSum: mustDecimal(t, "42.125")}
	measurements := []Measurement{
		hourly(t, cursor.Add(time.Hour), "0.1"),
		hourly(t, cursor.Add(2*time.Hour), "0.2"),
		hourly(t, cursor.Add(3*time.Hour), "0"),
	}

	first, firstTotal := Accumulate(checkpoint, measurements)
	second, secondTotal := Accumulate(checkpoint, measurements)

	assert.Equal(t, first, second)
	assert.Zero(t, firstTotal.Cmp(secondTotal))
}

func TestAccumulateMonotonicity(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	checkpoint := Checkpoint{RunningSum: mustDecimal(t, "10")}
	measurements := []Measurement{
		hourly(t, base, "0.5"),
		hourly(t, base.Add(time.Hour), "0"),
		hourly(t, base.Add(2*time.Hour), "1.25"),
	}

	points, total := Accumulate(checkpoint, measurements)

	require.Len(t, points, 3)
	prev := checkpoint.RunningSum
	for i, p := range points {
		assert.True(t, p.Sum.Cmp(prev) >= 0, "sum regressed at index %d", i)
		if i > 0 {
			assert.True(t, points[i-1].Start.Before(p.Start))
		}
		prev = p.Sum
	}
	assert.True(t, total.Cmp(checkpoint.RunningSum) >= 0)
}

// Fetching [D-10, D+1] then the overlapping subset [D-9, D+1], advancing the
// checkpoint between the two passes, must equal importing the union once.
func TestAccumulateOverlappingWindowsNeverDoubleCount(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	var full []Measurement
	for i := 0; i < 24; i++ {
		full = append(full, hourly(t, base.Add(time.Duration(i)*time.Hour), "0.5"))
	}

	// Single import of the union.
	_, want := Accumulate(Checkpoint{}, full)

	// First pass: hours 0-15.
	firstPoints, firstTotal := Accumulate(Checkpoint{}, full[:16])
	require.NotEmpty(t, firstPoints)
	lastCommitted := firstPoints[len(firstPoints)-1]

	// Second pass re-fetches hours 8-23, overlapping the first window.
	checkpoint := Checkpoint{LastStart: lastCommitted.Start, HasLastStart: true, RunningSum: firstTotal}
	secondPoints, secondTotal := Accumulate(checkpoint, full[8:])

	assert.Len(t, secondPoints, 8)
	assert.Zero(t, secondTotal.Cmp(want), "want %s, got %s", want, secondTotal)
}

func TestAccumulateZeroValueAdvancesCursorOnly(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	checkpoint := Checkpoint{RunningSum: mustDecimal(t, "7")}

	points, total := Accumulate(checkpoint, []Measurement{hourly(t, base, "0")})

	require.Len(t, points, 1)
	assert.Equal(t, "7", total.String())
	assert.Equal(t, base, points[0].Start)
}

func TestDecimalSumKeepsFullPrecision(t *testing.T) {
	checkpoint := Checkpoint{RunningSum: mustDecimal(t, "0")}
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	var measurements []Measurement
	for i := 0; i < 10; i++ {
		measurements = append(measurements, hourly(t, base.Add(time.Duration(i)*time.Hour), "0.1"))
	}

	_, total := Accumulate(checkpoint, measurements)

	// 0.1 ten times is exactly 1 in decimal arithmetic.
	assert.Zero(t, total.Cmp(mustDecimal(t, "1")))
}

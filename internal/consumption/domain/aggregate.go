package domain

// Accumulate folds normalized measurements into the running total, producing
// the ordered list of new cumulative points to commit and the final sum.
//
// Measurements at or before the checkpoint cursor are skipped: the upstream
// fetch window deliberately overlaps previous windows, and this cursor check
// is the sole de-duplication mechanism. The comparison is <=, never <, so a
// measurement sharing the checkpoint's exact start is never double-counted.
//
// The final sum is returned even when no points are produced, so callers can
// refresh live state to at least the checkpoint's running sum on empty cycles.
// Pure function: no I/O, same inputs always yield the same commit list.
func Accumulate(checkpoint Checkpoint, measurements []Measurement) ([]CumulativePoint, Decimal) {
	sum := checkpoint.RunningSum
	points := make([]CumulativePoint, 0, len(measurements))

	for _, m := range measurements {
		if checkpoint.HasLastStart && !m.Start.After(checkpoint.LastStart) {
			continue
		}
		sum = sum.Add(m.Value)
		points = append(points, CumulativePoint{Start: m.Start, Sum: sum})
	}
	return points, sum
}

package domain

import (
	"fmt"
	"time"
)

// statisticSource is the namespace under which series are registered in the
// statistics store. It must stay stable across releases: the store keys all
// committed history by it.
const statisticSource = "octopus_importer"

// SeriesID identifies one account's consumption statistics stream. It is
// derived deterministically from the account number so the same series is
// resumed across process restarts.
type SeriesID string

// BuildSeriesID derives the stable series identity for an account.
func BuildSeriesID(account string) (SeriesID, error) {
	if account == "" {
		return "", ErrEmptyAccount
	}
	return SeriesID(fmt.Sprintf("%s:%s_consumption", statisticSource, account)), nil
}

func (id SeriesID) String() string { return string(id) }

// Checkpoint is the resume cursor for a series: the start of the last
// committed point and the running sum at that point. It is a projection of
// store state, re-derived every cycle and never cached.
type Checkpoint struct {
	LastStart    time.Time
	HasLastStart bool
	RunningSum   Decimal
}

// CumulativePoint is one point of the running total pending commit.
type CumulativePoint struct {
	Start time.Time
	Sum   Decimal
}

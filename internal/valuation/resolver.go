// Package valuation replays lots against NAV history. Everything here is a pure
// function of its inputs and safe for concurrent use.
package valuation

import (
	"sort"
	"time"

	"github.com/ndewijer/portfolio-sync/internal/apperrors"
	"github.com/ndewijer/portfolio-sync/internal/model"
)

// Resolve returns the NAV that applies to an order placed on target.
//
// The series must be ordered newest first (see SortDescending). Dates are compared
// as calendar days. A target on or after the newest entry gets the newest price, so
// valuation does not stall while today's NAV is unpublished. Otherwise the nearest
// entry on or after the target is used: an order placed on a weekend or holiday is
// executed at the next business day's NAV. Targets before all history fail with
// ErrNoHistoryAvailable, as does an empty series.
func Resolve(series []model.NavPoint, target time.Time) (float64, error) {
	if len(series) == 0 {
		return 0, apperrors.ErrNoHistoryAvailable
	}

	day := truncateDay(target)
	if !day.Before(truncateDay(series[0].Date)) {
		return series[0].Price, nil
	}
	if day.Before(truncateDay(series[len(series)-1].Date)) {
		return 0, apperrors.ErrNoHistoryAvailable
	}

	// First index whose date is before the target; the entry just above it is the
	// oldest one still on or after the target.
	idx := sort.Search(len(series), func(i int) bool {
		return truncateDay(series[i].Date).Before(day)
	})
	return series[idx-1].Price, nil
}

// SortDescending orders a series newest first in place and returns it.
func SortDescending(series []model.NavPoint) []model.NavPoint {
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Date.After(series[j].Date)
	})
	return series
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

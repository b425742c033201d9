package generic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// PERIOD - The reference window every derived view is computed against
// =============================================================================

// Period is an inclusive range of calendar days [Start, End].
//
// Examples:
//   - Reporting month March 2025: Mar 1 - Mar 31
//   - Explicit range: Mar 16 - Apr 15
type Period struct {
	Start TimePoint
	End   TimePoint
}

// MonthPeriod returns the calendar month of year/month.
func MonthPeriod(year int, month time.Month) Period {
	return Period{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)}
}

// DateRange returns the period [from, to], validated.
func DateRange(from, to TimePoint) (Period, error) {
	p := Period{Start: from, End: to}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate rejects periods whose end precedes their start.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("%w: missing boundary", ErrInvalidPeriod)
	}
	if p.End.Before(p.Start) {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	return nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// DayCount is the number of calendar days in the period, both ends included.
// Zero or negative only for a malformed period.
func (p Period) DayCount() int {
	return DaysBetween(p.Start, p.End) + 1
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// LOOK-BACK WINDOWS - Lower bound for "created / completed in period" counts
// =============================================================================

// PeriodType defines how a look-back window is derived from "now".
type PeriodType string

const (
	PeriodRolling       PeriodType = "rolling"        // last N days
	PeriodCalendarMonth PeriodType = "calendar_month" // since the 1st of this month
	PeriodCalendarYear  PeriodType = "calendar_year"  // since Jan 1
	PeriodAllTime       PeriodType = "all_time"       // no lower bound
)

// PeriodConfig is a look-back window definition.
type PeriodConfig struct {
	Type PeriodType

	// For rolling windows: number of days back from now.
	RollingDays int
}

// Common roster windows.
var (
	Last30Days  = PeriodConfig{Type: PeriodRolling, RollingDays: 30}
	Last90Days  = PeriodConfig{Type: PeriodRolling, RollingDays: 90}
	Last180Days = PeriodConfig{Type: PeriodRolling, RollingDays: 180}
	Last365Days = PeriodConfig{Type: PeriodRolling, RollingDays: 365}
	AllTime     = PeriodConfig{Type: PeriodAllTime}
)

// ParsePeriodConfig accepts "30d", "90", "month", "year", "all" and "".
// The empty string means all time.
func ParsePeriodConfig(s string) (PeriodConfig, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "all", "all_time":
		return AllTime, nil
	case "month", "calendar_month":
		return PeriodConfig{Type: PeriodCalendarMonth}, nil
	case "year", "calendar_year":
		return PeriodConfig{Type: PeriodCalendarYear}, nil
	}
	n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
	if err != nil || n <= 0 {
		return PeriodConfig{}, fmt.Errorf("%w: unknown look-back window %q", ErrInvalidPeriod, s)
	}
	return PeriodConfig{Type: PeriodRolling, RollingDays: n}, nil
}

// WindowStart returns the lower bound of the window ending at now.
// ok is false for all-time windows, which have no lower bound.
func (pc PeriodConfig) WindowStart(now time.Time, loc *time.Location) (start time.Time, ok bool) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	switch pc.Type {
	case PeriodRolling:
		return now.AddDate(0, 0, -pc.RollingDays), true
	case PeriodCalendarMonth:
		return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc), true
	case PeriodCalendarYear:
		return time.Date(local.Year(), time.January, 1, 0, 0, 0, 0, loc), true
	default:
		return time.Time{}, false
	}
}

// String renders the window the way ParsePeriodConfig accepts it.
func (pc PeriodConfig) String() string {
	switch pc.Type {
	case PeriodRolling:
		return strconv.Itoa(pc.RollingDays) + "d"
	case PeriodCalendarMonth:
		return "month"
	case PeriodCalendarYear:
		return "year"
	default:
		return "all"
	}
}

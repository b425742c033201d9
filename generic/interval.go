package generic

// =============================================================================
// INTERVAL - A bounded stretch of days, open-ended when End is nil
// =============================================================================

// Interval is an inclusive day range [Start, End]. A nil End means the
// interval is still open. Callers construct intervals from validated data:
// Start <= End is checked where allocations are created, not here.
type Interval struct {
	Start TimePoint
	End   *TimePoint
}

// IsActive reports whether the interval covers the calendar day of at.
func (iv Interval) IsActive(at TimePoint) bool {
	if at.Before(iv.Start) {
		return false
	}
	if iv.End != nil && at.After(*iv.End) {
		return false
	}
	return true
}

// Validate returns ErrInvalidInterval when End precedes Start.
func (iv Interval) Validate() error {
	if iv.Start.IsZero() {
		return &FieldError{Field: "start_date", Err: ErrInvalidInterval}
	}
	if iv.End != nil && iv.End.Before(iv.Start) {
		return &FieldError{Field: "end_date", Err: ErrInvalidInterval}
	}
	return nil
}

// =============================================================================
// OVERLAP CALCULATOR
// =============================================================================

// OverlapResult is the number of active days of an interval within a period.
type OverlapResult struct {
	ActiveDays int
	PeriodDays int
}

// Full reports whether the interval covers the whole period.
func (o OverlapResult) Full() bool { return o.PeriodDays > 0 && o.ActiveDays == o.PeriodDays }

// Overlap counts the days of p during which the interval is active.
// ActiveDays is always within [0, PeriodDays].
func (iv Interval) Overlap(p Period) OverlapResult {
	periodDays := p.DayCount()
	if periodDays < 0 {
		periodDays = 0
	}
	result := OverlapResult{PeriodDays: periodDays}

	if iv.Start.After(p.End) {
		return result
	}
	if iv.End != nil && iv.End.Before(p.Start) {
		return result
	}

	effectiveStart := MaxDate(iv.Start, p.Start)
	effectiveEnd := p.End
	if iv.End != nil {
		effectiveEnd = MinDate(*iv.End, p.End)
	}

	active := DaysBetween(effectiveStart, effectiveEnd) + 1
	switch {
	case active < 0:
		active = 0
	case active > periodDays:
		active = periodDays
	}
	result.ActiveDays = active
	return result
}

// Overlap is the free-function form of Interval.Overlap.
func Overlap(start TimePoint, end *TimePoint, p Period) OverlapResult {
	return Interval{Start: start, End: end}.Overlap(p)
}

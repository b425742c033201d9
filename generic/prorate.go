package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PRORATION - Distribute a monthly amount over the active days of a period
// =============================================================================

type ProrateMethod string

const (
	ProrateNone   ProrateMethod = "none"   // full amount whenever any day overlaps
	ProrateLinear ProrateMethod = "linear" // monthly * activeDays / periodDays
)

// ParseProrateMethod reads a method name; empty means linear.
func ParseProrateMethod(s string) (ProrateMethod, error) {
	switch m := ProrateMethod(s); m {
	case "":
		return ProrateLinear, nil
	case ProrateLinear, ProrateNone:
		return m, nil
	default:
		return "", &FieldError{Field: "method", Err: fmt.Errorf("%w: %q (use linear or none)", ErrInvalidStatus, s)}
	}
}

// Prorate returns monthly * ActiveDays / PeriodDays without rounding.
//
// A period with no days cannot come from a valid calendar period, so it is
// reported as an *InvariantError wrapping ErrEmptyPeriod instead of zero.
func Prorate(monthly decimal.Decimal, o OverlapResult) (decimal.Decimal, error) {
	return ProrateWith(ProrateLinear, monthly, o)
}

// ProrateWith applies the given method.
func ProrateWith(method ProrateMethod, monthly decimal.Decimal, o OverlapResult) (decimal.Decimal, error) {
	if o.PeriodDays <= 0 {
		return decimal.Zero, &InvariantError{
			Op:  "prorate",
			Msg: fmt.Sprintf("period has %d days", o.PeriodDays),
			Err: ErrEmptyPeriod,
		}
	}
	if o.ActiveDays <= 0 {
		return decimal.Zero, nil
	}

	switch method {
	case ProrateNone:
		return monthly, nil
	default:
		if o.ActiveDays >= o.PeriodDays {
			return monthly, nil
		}
		return monthly.Mul(decimal.NewFromInt(int64(o.ActiveDays))).
			Div(decimal.NewFromInt(int64(o.PeriodDays))), nil
	}
}

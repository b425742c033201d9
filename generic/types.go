/*
Package generic provides the calendar and money primitives of the engine.

PURPOSE:
  This package contains domain-agnostic types and algorithms shared by every
  derived view: days of overlap between an interval and a reporting period,
  proration of a monthly amount, look-back windows, and the error taxonomy.
  It knows nothing about clients, members or demands.

KEY CONCEPTS:
  - TimePoint: An instant compared at day, hour or exact granularity
  - Period: Inclusive calendar range (usually a reporting month)
  - Interval: Start date plus optional end date (open-ended allocations)
  - OverlapResult: Active days of an interval within a period
  - Money: decimal.Decimal, rounded to currency scale only when aggregated

DESIGN PRINCIPLES:
  1. Purity: Nothing here reads the wall clock; "now" is always passed in
  2. Precision: Money uses decimal.Decimal to avoid floating-point drift
  3. Round once: Line items stay exact, totals are rounded at the end

USAGE:
  march := generic.MonthPeriod(2025, time.March)
  o := generic.Overlap(generic.MustParseDate("2025-03-16"), nil, march)
  cost, err := generic.Prorate(decimal.NewFromInt(3100), o)

SEE ALSO:
  - interval.go: Overlap calculator
  - prorate.go: Proportional cost calculator
  - errors.go: Sentinel and structured errors
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency amounts (always decimal)
// =============================================================================

// CurrencyPlaces is the rounding scale applied to aggregated totals.
const CurrencyPlaces = 2

// RoundCurrency rounds to currency scale, half away from zero.
func RoundCurrency(d decimal.Decimal) decimal.Decimal { return d.Round(CurrencyPlaces) }

// FormatMoney renders d at currency scale ("1500.00").
func FormatMoney(d decimal.Decimal) string { return d.StringFixed(CurrencyPlaces) }

// MoneyOrZero dereferences an optional amount, treating nil as zero.
func MoneyOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// SumMoney adds a list of amounts exactly.
func SumMoney(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

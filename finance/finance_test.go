package finance_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/finance"
	"github.com/warp/agency-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func moneyPtr(s string) *decimal.Decimal {
	d := money(s)
	return &d
}

func datePtr(s string) *generic.TimePoint {
	d := generic.MustParseDate(s)
	return &d
}

func april() generic.Period { return generic.MonthPeriod(2025, time.April) }

// agencySnapshot has two clients, three members in two squads, and
// allocations that are full, partial and outside April 2025.
func agencySnapshot() *agency.Snapshot {
	return agency.NewSnapshot(agency.Data{
		Clients: []agency.Client{
			{ID: "c-acme", Name: "Acme", Status: agency.ClientActive, MonthlyValue: moneyPtr("10000"), OperationalCost: moneyPtr("500")},
			{ID: "c-globex", Name: "Globex", Status: agency.ClientOnboarding, MonthlyValue: moneyPtr("4000")},
			{ID: "c-initech", Name: "Initech", Status: agency.ClientChurned},
		},
		Squads: []agency.Squad{{ID: "s-growth", Name: "Growth"}, {ID: "s-brand", Name: "Brand"}},
		Members: []agency.Member{
			{ID: "m-ana", Name: "Ana", RoleTitle: "Designer", Status: agency.MemberActive, SquadIDs: []agency.SquadID{"s-growth", "s-brand"}},
			{ID: "m-bruno", Name: "Bruno", RoleTitle: " designer ", Status: agency.MemberActive, SquadIDs: []agency.SquadID{"s-growth"}},
			{ID: "m-caio", Name: "Caio", RoleTitle: "Traffic Manager", Status: agency.MemberActive},
		},
		Allocations: []agency.Allocation{
			{ID: "a-1", MemberID: "m-ana", ClientID: "c-acme", MonthlyValue: money("3000"), StartDate: generic.MustParseDate("2025-01-01")},
			{ID: "a-2", MemberID: "m-bruno", ClientID: "c-acme", MonthlyValue: money("3000"), StartDate: generic.MustParseDate("2025-04-16")},
			{ID: "a-3", MemberID: "m-caio", ClientID: "c-globex", MonthlyValue: money("1000"), StartDate: generic.MustParseDate("2025-04-01"), EndDate: datePtr("2025-04-10")},
			{ID: "a-4", MemberID: "m-caio", ClientID: "c-initech", MonthlyValue: money("2000"), StartDate: generic.MustParseDate("2024-01-01"), EndDate: datePtr("2024-12-31")},
			{ID: "a-5", MemberID: "m-ana", ClientID: "c-globex", MonthlyValue: money("0"), StartDate: generic.MustParseDate("2025-04-01")},
		},
		Financials: []agency.MonthlyFinancials{
			{Year: 2025, Month: time.April, TotalReceived: moneyPtr("14000"), TaxAmount: moneyPtr("1400"), MarketingAmount: moneyPtr("600")},
		},
		Expenses: []agency.Expense{
			{ID: "e-1", Year: 2025, Month: time.April, Description: "Software", Amount: money("250")},
			{ID: "e-2", Year: 2025, Month: time.May, Description: "Offsite", Amount: money("999")},
		},
	}, time.Now())
}

func sumProportional(groups []finance.Group) decimal.Decimal {
	total := decimal.Zero
	for _, g := range groups {
		total = total.Add(g.TotalProportional)
	}
	return total
}

// =============================================================================
// AGGREGATE
// =============================================================================

func TestAggregate_ProratesAndGroups(t *testing.T) {
	// GIVEN: 3000/month full April, 3000/month from Apr 16, 1000/month for 10 days
	// WHEN: Aggregating April 2025 (30 days)
	// THEN: 3000 + 1500 + 333.33... with the expired allocation excluded

	report, err := finance.Aggregate(agencySnapshot(), april(), finance.Options{})
	require.NoError(t, err)

	acme, ok := report.Client("c-acme")
	require.True(t, ok)
	assert.True(t, acme.TotalProportional.Equal(money("4500")), "got %s", acme.TotalProportional)
	assert.True(t, acme.TotalMonthly.Equal(money("6000")))
	require.Len(t, acme.Items, 2)
	assert.Equal(t, 15, acme.Items[1].ActiveDays)
	assert.Equal(t, 30, acme.Items[1].PeriodDays)

	globex, ok := report.Client("c-globex")
	require.True(t, ok)
	assert.Equal(t, "333.33", generic.FormatMoney(globex.RoundedProportional()))

	_, ok = report.Client("c-initech")
	assert.False(t, ok, "no active day in April")
	assert.Empty(t, report.Inactive)

	assert.Equal(t, "4833.33", generic.FormatMoney(report.RoundedTotal()))
}

func TestAggregate_TotalsAgreeAcrossGroupings(t *testing.T) {
	report, err := finance.Aggregate(agencySnapshot(), april(), finance.Options{})
	require.NoError(t, err)

	assert.True(t, sumProportional(report.ByClient).Equal(report.Total))
	assert.True(t, sumProportional(report.ByMember).Equal(report.Total))
	assert.True(t, sumProportional(report.ByRole).Equal(report.Total))
}

func TestAggregate_SquadAndRoleGrouping(t *testing.T) {
	report, err := finance.Aggregate(agencySnapshot(), april(), finance.Options{})
	require.NoError(t, err)

	bySquad := map[string]decimal.Decimal{}
	for _, g := range report.BySquad {
		bySquad[g.Key] = g.TotalProportional
	}
	// Ana counts in both of her squads
	assert.True(t, bySquad["s-brand"].Equal(money("3000")))
	assert.True(t, bySquad["s-growth"].Equal(money("4500")))
	assert.Contains(t, bySquad, finance.UnassignedSquad)

	keys := []string{}
	for _, g := range report.ByRole {
		keys = append(keys, g.Key)
	}
	assert.ElementsMatch(t, []string{"designer", "traffic manager"}, keys)
}

func TestAggregate_IncludeInactive(t *testing.T) {
	report, err := finance.Aggregate(agencySnapshot(), april(), finance.Options{IncludeInactive: true})
	require.NoError(t, err)

	require.Len(t, report.Inactive, 1)
	assert.Equal(t, agency.AllocationID("a-4"), report.Inactive[0].AllocationID)
	assert.True(t, report.Inactive[0].Prorated.IsZero())
}

func TestAggregate_ZeroMonthlyValueIsListed(t *testing.T) {
	report, err := finance.Aggregate(agencySnapshot(), april(), finance.Options{})
	require.NoError(t, err)

	globex, _ := report.Client("c-globex")
	ids := []agency.AllocationID{}
	for _, it := range globex.Items {
		ids = append(ids, it.AllocationID)
	}
	assert.Contains(t, ids, agency.AllocationID("a-5"))
}

func TestAggregate_Idempotent(t *testing.T) {
	snap := agencySnapshot()
	first, err := finance.Aggregate(snap, april(), finance.Options{IncludeInactive: true})
	require.NoError(t, err)
	second, err := finance.Aggregate(snap, april(), finance.Options{IncludeInactive: true})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAggregate_DanglingClientIsAnError(t *testing.T) {
	// GIVEN: An allocation pointing at a client that does not exist
	// WHEN: Aggregating
	// THEN: A reference error, never a silently dropped line

	data := agencySnapshot().Data
	data.Allocations = append(data.Allocations, agency.Allocation{
		ID: "a-ghost", MemberID: "m-ana", ClientID: "c-ghost", MonthlyValue: money("100"), StartDate: generic.MustParseDate("2025-04-01"),
	})

	_, err := finance.Aggregate(agency.NewSnapshot(data, time.Now()), april(), finance.Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrDanglingReference))

	var refErr *generic.ReferenceError
	require.True(t, errors.As(err, &refErr))
	assert.Equal(t, "a-ghost", refErr.FromID)
}

func TestAggregate_InvalidPeriod(t *testing.T) {
	bad := generic.Period{Start: generic.MustParseDate("2025-04-30"), End: generic.MustParseDate("2025-04-01")}
	_, err := finance.Aggregate(agencySnapshot(), bad, finance.Options{})
	assert.True(t, errors.Is(err, generic.ErrInvalidPeriod))
}

func TestAggregate_FlatMethodChargesFullMonth(t *testing.T) {
	// GIVEN: The April snapshot with a half-month and a 10-day allocation
	// WHEN: Aggregating with the flat method
	// THEN: Every overlapping allocation costs its full monthly value and the
	//       one outside April still costs nothing

	snap := agencySnapshot()
	report, err := finance.Aggregate(snap, april(), finance.Options{Method: generic.ProrateNone})
	require.NoError(t, err)

	assert.True(t, report.Total.Equal(money("7000")), "got %s", report.Total)
	acme, ok := report.Client("c-acme")
	require.True(t, ok)
	assert.True(t, acme.TotalProportional.Equal(money("6000")))

	g, err := finance.ClientCosts(snap, "c-globex", april(), generic.ProrateNone)
	require.NoError(t, err)
	assert.True(t, g.TotalProportional.Equal(money("1000")))
}

func TestClientCosts(t *testing.T) {
	snap := agencySnapshot()

	g, err := finance.ClientCosts(snap, "c-initech", april(), generic.ProrateLinear)
	require.NoError(t, err)
	assert.True(t, g.TotalProportional.IsZero())
	assert.Equal(t, "Initech", g.Name)

	_, err = finance.ClientCosts(snap, "c-missing", april(), generic.ProrateLinear)
	assert.True(t, generic.IsNotFound(err))
}

// =============================================================================
// PROFITABILITY & SUMMARY
// =============================================================================

func TestProfitability(t *testing.T) {
	snap := agencySnapshot()
	report, err := finance.Aggregate(snap, april(), finance.Options{})
	require.NoError(t, err)

	rows := finance.Profitability(snap, report)
	require.Len(t, rows, 3)

	acme := rows[0]
	assert.Equal(t, "Acme", acme.ClientName)
	assert.True(t, acme.Margin.Equal(money("5000")), "10000 - 4500 - 500, got %s", acme.Margin)
	require.NotNil(t, acme.MarginPercent)
	assert.Equal(t, "50", acme.MarginPercent.String())

	initech := rows[2]
	assert.Nil(t, initech.MarginPercent)
}

func TestSummarize(t *testing.T) {
	snap := agencySnapshot()
	report, err := finance.Aggregate(snap, april(), finance.Options{})
	require.NoError(t, err)

	s := finance.Summarize(snap, report)

	assert.True(t, s.Recorded)
	assert.True(t, s.ExtraExpenses.Equal(money("250")))
	assert.Len(t, s.Expenses, 1)
	// 14000 - 1400 - 600 - 250 - 4833.33...
	assert.Equal(t, "6916.67", generic.FormatMoney(generic.RoundCurrency(s.Net)))
	assert.True(t, s.Receivable.Equal(money("14000")))
}

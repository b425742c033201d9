package finance

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/generic"
)

// =============================================================================
// PROFITABILITY - Contract value against team and operational cost
// =============================================================================

type ClientMargin struct {
	ClientID        agency.ClientID
	ClientName      string
	Status          agency.ClientStatus
	ContractValue   decimal.Decimal
	TeamCost        decimal.Decimal
	OperationalCost decimal.Decimal
	Margin          decimal.Decimal
	// MarginPercent is nil when the client has no contract value.
	MarginPercent *decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Profitability computes one margin row per client of the snapshot, using
// the team cost already computed in report.
func Profitability(snap *agency.Snapshot, report *CostReport) []ClientMargin {
	out := make([]ClientMargin, 0, len(snap.Clients))
	for _, c := range snap.Clients {
		team := decimal.Zero
		if g, ok := report.Client(c.ID); ok {
			team = g.TotalProportional
		}
		contract := generic.MoneyOrZero(c.MonthlyValue)
		operational := generic.MoneyOrZero(c.OperationalCost)

		row := ClientMargin{
			ClientID:        c.ID,
			ClientName:      c.Name,
			Status:          c.Status,
			ContractValue:   contract,
			TeamCost:        team,
			OperationalCost: operational,
			Margin:          contract.Sub(team).Sub(operational),
		}
		if contract.IsPositive() {
			pct := row.Margin.Mul(hundred).Div(contract).Round(1)
			row.MarginPercent = &pct
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClientName < out[j].ClientName })
	return out
}

// Receivable is the monthly value of every active or onboarding client.
func Receivable(snap *agency.Snapshot) decimal.Decimal {
	total := decimal.Zero
	for _, c := range snap.Clients {
		if c.Status == agency.ClientActive || c.Status == agency.ClientOnboarding {
			total = total.Add(generic.MoneyOrZero(c.MonthlyValue))
		}
	}
	return total
}

// =============================================================================
// MONTHLY SUMMARY
// =============================================================================

// Summary is the month's cash view: what came in minus what went out.
type Summary struct {
	Period        generic.Period
	Received      decimal.Decimal
	Tax           decimal.Decimal
	Marketing     decimal.Decimal
	ExtraExpenses decimal.Decimal
	TeamCost      decimal.Decimal
	Net           decimal.Decimal
	Receivable    decimal.Decimal
	Expenses      []agency.Expense
	// Recorded is false when no month record exists yet.
	Recorded bool
}

// Summarize builds the summary of the month starting at report.Period.Start.
func Summarize(snap *agency.Snapshot, report *CostReport) Summary {
	year, month := report.Period.Start.Year(), report.Period.Start.Month()

	s := Summary{
		Period:        report.Period,
		Received:      decimal.Zero,
		Tax:           decimal.Zero,
		Marketing:     decimal.Zero,
		ExtraExpenses: decimal.Zero,
		TeamCost:      report.Total,
		Receivable:    Receivable(snap),
	}
	if f, ok := snap.FinancialsFor(year, month); ok {
		s.Recorded = true
		s.Received = generic.MoneyOrZero(f.TotalReceived)
		s.Tax = generic.MoneyOrZero(f.TaxAmount)
		s.Marketing = generic.MoneyOrZero(f.MarketingAmount)
	}
	s.Expenses = snap.ExpensesFor(year, month)
	amounts := make([]decimal.Decimal, 0, len(s.Expenses))
	for _, e := range s.Expenses {
		amounts = append(amounts, e.Amount)
	}
	s.ExtraExpenses = generic.SumMoney(amounts...)
	s.Net = s.Received.Sub(s.Tax).Sub(s.Marketing).Sub(s.ExtraExpenses).Sub(s.TeamCost)
	return s
}

/*
Package finance turns allocations into the cost views of a reporting period.

PURPOSE:
  For each allocation, count the days it was active within the period,
  prorate its monthly value by those days, and group the results by client,
  by member, by squad and by role. Everything is recomputed from a snapshot
  on every call; nothing is cached or written back.

PRECISION:
  Line items and group totals stay exact. Rounding to currency scale happens
  once, through the Rounded accessors used by presenters.

  Σ ByClient.TotalProportional == Σ ByMember.TotalProportional == Total

SEE ALSO:
  - generic/interval.go: Overlap calculator
  - generic/prorate.go: Proportional cost
  - profitability.go: Margins and monthly summary
*/
package finance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/generic"
)

// UnassignedSquad groups members that belong to no squad.
const UnassignedSquad = "unassigned"

// =============================================================================
// REPORT TYPES
// =============================================================================

// LineItem is one allocation's contribution to the period.
type LineItem struct {
	AllocationID agency.AllocationID
	MemberID     agency.MemberID
	MemberName   string
	ClientID     agency.ClientID
	ClientName   string
	ActiveDays   int
	PeriodDays   int
	MonthlyValue decimal.Decimal
	Prorated     decimal.Decimal
}

// Group aggregates the line items sharing one key.
type Group struct {
	Key               string
	Name              string
	TotalMonthly      decimal.Decimal
	TotalProportional decimal.Decimal
	Items             []LineItem
}

// RoundedProportional returns the group total at currency scale.
func (g Group) RoundedProportional() decimal.Decimal {
	return generic.RoundCurrency(g.TotalProportional)
}

func (g Group) RoundedMonthly() decimal.Decimal {
	return generic.RoundCurrency(g.TotalMonthly)
}

func (g *Group) add(item LineItem) {
	g.TotalMonthly = g.TotalMonthly.Add(item.MonthlyValue)
	g.TotalProportional = g.TotalProportional.Add(item.Prorated)
	g.Items = append(g.Items, item)
}

// CostReport is the financial view of one period.
type CostReport struct {
	Period   generic.Period
	ByClient []Group
	ByMember []Group
	BySquad  []Group
	ByRole   []Group

	// Inactive lists allocations with no active day in the period. Only
	// filled when Options.IncludeInactive is set.
	Inactive []LineItem

	Total decimal.Decimal
}

// RoundedTotal returns the grand total at currency scale.
func (r *CostReport) RoundedTotal() decimal.Decimal {
	return generic.RoundCurrency(r.Total)
}

// Client returns the client group for id, if it has any active line.
func (r *CostReport) Client(id agency.ClientID) (Group, bool) {
	for _, g := range r.ByClient {
		if g.Key == string(id) {
			return g, true
		}
	}
	return Group{}, false
}

// Options tune the aggregation. The zero value prorates linearly and leaves
// out allocations inactive in the period.
type Options struct {
	IncludeInactive bool
	Method          generic.ProrateMethod
}

// =============================================================================
// AGGREGATION
// =============================================================================

// Aggregate computes the cost report for period over snap.
//
// An allocation pointing at a client or member absent from the snapshot is a
// data integrity failure and is returned as *generic.ReferenceError.
func Aggregate(snap *agency.Snapshot, period generic.Period, opts Options) (*CostReport, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	method := opts.Method
	if method == "" {
		method = generic.ProrateLinear
	}

	clients := newGrouper()
	members := newGrouper()
	squads := newGrouper()
	roles := newGrouper()

	report := &CostReport{Period: period, Total: decimal.Zero}

	for _, a := range snap.Allocations {
		if err := snap.CheckAllocation(a); err != nil {
			return nil, err
		}
		client, _ := snap.Client(a.ClientID)
		member, _ := snap.Member(a.MemberID)

		item, err := lineItem(a, client, member, period, method)
		if err != nil {
			return nil, fmt.Errorf("allocation %s: %w", a.ID, err)
		}

		if item.ActiveDays == 0 {
			if opts.IncludeInactive {
				report.Inactive = append(report.Inactive, item)
			}
			continue
		}

		report.Total = report.Total.Add(item.Prorated)
		clients.add(string(client.ID), client.Name, item)
		members.add(string(member.ID), member.Name, item)

		if len(member.SquadIDs) == 0 {
			squads.add(UnassignedSquad, UnassignedSquad, item)
		}
		for _, sqID := range member.SquadIDs {
			sq, ok := snap.Squad(sqID)
			if !ok {
				return nil, &generic.ReferenceError{From: "member", FromID: string(member.ID), Kind: "squad", TargetID: string(sqID)}
			}
			squads.add(string(sq.ID), sq.Name, item)
		}

		role := roleKey(member.RoleTitle)
		roles.add(role, strings.TrimSpace(member.RoleTitle), item)
	}

	report.ByClient = clients.groups()
	report.ByMember = members.groups()
	report.BySquad = squads.groups()
	report.ByRole = roles.groups()
	sortItems(report.Inactive)
	return report, nil
}

func lineItem(a agency.Allocation, c agency.Client, m agency.Member, period generic.Period, method generic.ProrateMethod) (LineItem, error) {
	o := a.Interval().Overlap(period)
	prorated, err := generic.ProrateWith(method, a.MonthlyValue, o)
	if err != nil {
		return LineItem{}, err
	}
	return LineItem{
		AllocationID: a.ID,
		MemberID:     m.ID,
		MemberName:   m.Name,
		ClientID:     c.ID,
		ClientName:   c.Name,
		ActiveDays:   o.ActiveDays,
		PeriodDays:   o.PeriodDays,
		MonthlyValue: a.MonthlyValue,
		Prorated:     prorated,
	}, nil
}

// roleKey normalises a free-text job title into a grouping key.
func roleKey(title string) string {
	key := strings.ToLower(strings.TrimSpace(title))
	if key == "" {
		return "unspecified"
	}
	return key
}

// ClientCosts is the single-client slice of Aggregate.
func ClientCosts(snap *agency.Snapshot, id agency.ClientID, period generic.Period, method generic.ProrateMethod) (Group, error) {
	client, ok := snap.Client(id)
	if !ok {
		return Group{}, fmt.Errorf("%w: %s", generic.ErrClientNotFound, id)
	}
	report, err := Aggregate(snap, period, Options{Method: method})
	if err != nil {
		return Group{}, err
	}
	if g, ok := report.Client(id); ok {
		return g, nil
	}
	return Group{Key: string(client.ID), Name: client.Name, TotalMonthly: decimal.Zero, TotalProportional: decimal.Zero}, nil
}

// =============================================================================
// GROUPING
// =============================================================================

type grouper struct {
	order []string
	byKey map[string]*Group
}

func newGrouper() *grouper {
	return &grouper{byKey: make(map[string]*Group)}
}

func (gr *grouper) add(key, name string, item LineItem) {
	g, ok := gr.byKey[key]
	if !ok {
		g = &Group{Key: key, Name: name, TotalMonthly: decimal.Zero, TotalProportional: decimal.Zero}
		gr.byKey[key] = g
		gr.order = append(gr.order, key)
	}
	g.add(item)
}

// groups returns groups sorted by name then key, with items sorted the
// same way, so repeated calls over the same snapshot are identical.
func (gr *grouper) groups() []Group {
	out := make([]Group, 0, len(gr.order))
	for _, key := range gr.order {
		g := *gr.byKey[key]
		sortItems(g.Items)
		out = append(out, g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func sortItems(items []LineItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ClientName != items[j].ClientName {
			return items[i].ClientName < items[j].ClientName
		}
		if items[i].MemberName != items[j].MemberName {
			return items[i].MemberName < items[j].MemberName
		}
		return items[i].AllocationID < items[j].AllocationID
	})
}

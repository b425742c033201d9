package agency

import (
	"sort"
	"time"

	"github.com/warp/agency-engine/generic"
)

// =============================================================================
// SNAPSHOT - Immutable view of every entity for one computation
// =============================================================================

// Data is the raw content of a snapshot.
type Data struct {
	Clients     []Client
	Members     []Member
	Squads      []Squad
	Allocations []Allocation
	Demands     []Demand
	Meetings    []Meeting
	Financials  []MonthlyFinancials
	Expenses    []Expense
	Rates       []MemberRate
	Payments    []DesignPayment
}

// Snapshot is Data plus ID indexes. It is never mutated after NewSnapshot,
// so concurrent readers need no locking.
type Snapshot struct {
	Data

	TakenAt time.Time

	clients map[ClientID]int
	members map[MemberID]int
	squads  map[SquadID]int
	demands map[DemandID]int
	rates   map[MemberID]int
}

// NewSnapshot copies d and indexes it.
func NewSnapshot(d Data, takenAt time.Time) *Snapshot {
	s := &Snapshot{
		Data: Data{
			Clients:     append([]Client(nil), d.Clients...),
			Members:     append([]Member(nil), d.Members...),
			Squads:      append([]Squad(nil), d.Squads...),
			Allocations: append([]Allocation(nil), d.Allocations...),
			Demands:     append([]Demand(nil), d.Demands...),
			Meetings:    append([]Meeting(nil), d.Meetings...),
			Financials:  append([]MonthlyFinancials(nil), d.Financials...),
			Expenses:    append([]Expense(nil), d.Expenses...),
			Rates:       append([]MemberRate(nil), d.Rates...),
			Payments:    append([]DesignPayment(nil), d.Payments...),
		},
		TakenAt: takenAt,
		clients: make(map[ClientID]int, len(d.Clients)),
		members: make(map[MemberID]int, len(d.Members)),
		squads:  make(map[SquadID]int, len(d.Squads)),
		demands: make(map[DemandID]int, len(d.Demands)),
		rates:   make(map[MemberID]int, len(d.Rates)),
	}
	for i, c := range s.Clients {
		s.clients[c.ID] = i
	}
	for i, m := range s.Members {
		s.members[m.ID] = i
	}
	for i, sq := range s.Squads {
		s.squads[sq.ID] = i
	}
	for i, dm := range s.Demands {
		s.demands[dm.ID] = i
	}
	for i, r := range s.Rates {
		s.rates[r.MemberID] = i
	}
	return s
}

// =============================================================================
// LOOKUPS
// =============================================================================

func (s *Snapshot) Client(id ClientID) (Client, bool) {
	i, ok := s.clients[id]
	if !ok {
		return Client{}, false
	}
	return s.Clients[i], true
}

func (s *Snapshot) Member(id MemberID) (Member, bool) {
	i, ok := s.members[id]
	if !ok {
		return Member{}, false
	}
	return s.Members[i], true
}

func (s *Snapshot) Squad(id SquadID) (Squad, bool) {
	i, ok := s.squads[id]
	if !ok {
		return Squad{}, false
	}
	return s.Squads[i], true
}

func (s *Snapshot) Demand(id DemandID) (Demand, bool) {
	i, ok := s.demands[id]
	if !ok {
		return Demand{}, false
	}
	return s.Demands[i], true
}

// ClientIndex returns a copy of the client index keyed by ID.
func (s *Snapshot) ClientIndex() map[ClientID]Client {
	out := make(map[ClientID]Client, len(s.Clients))
	for _, c := range s.Clients {
		out[c.ID] = c
	}
	return out
}

// AllocationsOf returns the member's allocations ordered by start date.
func (s *Snapshot) AllocationsOf(id MemberID) []Allocation {
	var out []Allocation
	for _, a := range s.Allocations {
		if a.MemberID == id {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

// AllocationsFor returns the client's allocations ordered by start date.
func (s *Snapshot) AllocationsFor(id ClientID) []Allocation {
	var out []Allocation
	for _, a := range s.Allocations {
		if a.ClientID == id {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

// DemandsAssignedTo returns the demands whose assignee is id.
func (s *Snapshot) DemandsAssignedTo(id MemberID) []Demand {
	var out []Demand
	for _, d := range s.Demands {
		if d.AssignedTo != nil && *d.AssignedTo == id {
			out = append(out, d)
		}
	}
	return out
}

// FinancialsFor returns the month record for year/month, if any.
func (s *Snapshot) FinancialsFor(year int, month time.Month) (MonthlyFinancials, bool) {
	for _, f := range s.Financials {
		if f.Year == year && f.Month == month {
			return f, true
		}
	}
	return MonthlyFinancials{}, false
}

// ExpensesFor returns the extra expenses booked against year/month.
func (s *Snapshot) ExpensesFor(year int, month time.Month) []Expense {
	var out []Expense
	for _, e := range s.Expenses {
		if e.Year == year && e.Month == month {
			out = append(out, e)
		}
	}
	return out
}

// RateOf returns the member's configured rate card, or the default one.
func (s *Snapshot) RateOf(id MemberID) (MemberRate, bool) {
	i, ok := s.rates[id]
	if !ok {
		return DefaultRate(id), false
	}
	return s.Rates[i], true
}

// PaymentsIn returns the design payments registered in year/month.
func (s *Snapshot) PaymentsIn(year int, month time.Month) []DesignPayment {
	var out []DesignPayment
	for _, p := range s.Payments {
		if p.Year == year && p.Month == month {
			out = append(out, p)
		}
	}
	return out
}

// =============================================================================
// REFERENTIAL INTEGRITY
// =============================================================================

// CheckReferences returns the first reference to an entity missing from the
// snapshot. Aggregators call the narrower checks they need themselves.
func (s *Snapshot) CheckReferences() error {
	for _, a := range s.Allocations {
		if err := s.CheckAllocation(a); err != nil {
			return err
		}
	}
	for _, d := range s.Demands {
		if d.ClientID != nil {
			if _, ok := s.clients[*d.ClientID]; !ok {
				return &generic.ReferenceError{From: "demand", FromID: string(d.ID), Kind: "client", TargetID: string(*d.ClientID)}
			}
		}
		if d.AssignedTo != nil {
			if _, ok := s.members[*d.AssignedTo]; !ok {
				return &generic.ReferenceError{From: "demand", FromID: string(d.ID), Kind: "member", TargetID: string(*d.AssignedTo)}
			}
		}
	}
	for _, m := range s.Meetings {
		if _, ok := s.clients[m.ClientID]; !ok {
			return &generic.ReferenceError{From: "meeting", FromID: string(m.ID), Kind: "client", TargetID: string(m.ClientID)}
		}
	}
	for _, r := range s.Rates {
		if _, ok := s.members[r.MemberID]; !ok {
			return &generic.ReferenceError{From: "rate", FromID: string(r.MemberID), Kind: "member", TargetID: string(r.MemberID)}
		}
	}
	for _, p := range s.Payments {
		if _, ok := s.demands[p.DemandID]; !ok {
			return &generic.ReferenceError{From: "payment", FromID: string(p.ID), Kind: "demand", TargetID: string(p.DemandID)}
		}
		if _, ok := s.members[p.MemberID]; !ok {
			return &generic.ReferenceError{From: "payment", FromID: string(p.ID), Kind: "member", TargetID: string(p.MemberID)}
		}
		if p.ClientID != nil {
			if _, ok := s.clients[*p.ClientID]; !ok {
				return &generic.ReferenceError{From: "payment", FromID: string(p.ID), Kind: "client", TargetID: string(*p.ClientID)}
			}
		}
	}
	for _, m := range s.Members {
		for _, sq := range m.SquadIDs {
			if _, ok := s.squads[sq]; !ok {
				return &generic.ReferenceError{From: "member", FromID: string(m.ID), Kind: "squad", TargetID: string(sq)}
			}
		}
	}
	return nil
}

// CheckAllocation verifies that both ends of an allocation exist.
func (s *Snapshot) CheckAllocation(a Allocation) error {
	if _, ok := s.clients[a.ClientID]; !ok {
		return &generic.ReferenceError{From: "allocation", FromID: string(a.ID), Kind: "client", TargetID: string(a.ClientID)}
	}
	if _, ok := s.members[a.MemberID]; !ok {
		return &generic.ReferenceError{From: "allocation", FromID: string(a.ID), Kind: "member", TargetID: string(a.MemberID)}
	}
	return nil
}

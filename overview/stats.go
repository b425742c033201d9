// Package overview computes the headline counters of the home dashboard.
package overview

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/finance"
	"github.com/warp/agency-engine/sla"
)

type Stats struct {
	ClientsByStatus map[agency.ClientStatus]int
	TotalClients    int
	Receivable      decimal.Decimal

	ActiveMembers int
	TotalMembers  int
	Squads        int

	DemandsByStatus map[agency.DemandStatus]int
	OverdueDemands  int

	MeetingsThisMonth int
}

// Compute counts everything at now. The month of now is taken in loc.
func Compute(snap *agency.Snapshot, now time.Time, classifier *sla.Classifier, loc *time.Location) Stats {
	if loc == nil {
		loc = time.UTC
	}
	s := Stats{
		ClientsByStatus: map[agency.ClientStatus]int{
			agency.ClientActive: 0, agency.ClientOnboarding: 0, agency.ClientChurned: 0, agency.ClientInactive: 0,
		},
		DemandsByStatus: make(map[agency.DemandStatus]int, len(agency.DemandStatuses)),
		TotalClients:    len(snap.Clients),
		TotalMembers:    len(snap.Members),
		Squads:          len(snap.Squads),
		Receivable:      finance.Receivable(snap),
	}
	for _, c := range snap.Clients {
		s.ClientsByStatus[c.Status]++
	}
	for _, m := range snap.Members {
		if m.Status == agency.MemberActive {
			s.ActiveMembers++
		}
	}

	for _, st := range agency.DemandStatuses {
		s.DemandsByStatus[st] = 0
	}
	for _, d := range snap.Demands {
		s.DemandsByStatus[d.Status]++
		if !d.IsDone() && classifier.ClassifyDemand(d, now) == sla.Overdue {
			s.OverdueDemands++
		}
	}

	// Meetings logged ahead of now have not happened yet.
	local := now.In(loc)
	for _, m := range snap.Meetings {
		mt := m.CreatedAt.In(loc)
		if mt.Year() == local.Year() && mt.Month() == local.Month() && !mt.After(now) {
			s.MeetingsThisMonth++
		}
	}
	return s
}

/*
Package roster computes per-member performance over a look-back window.

PURPOSE:
  Combines a member's allocation history, the current status of their
  clients and their classified demands into one metrics record. The window
  bounds the "new" and "created/completed" counters; client status and the
  overdue count are always live at now.

KEY CONCEPTS:
  - Active client: allocation active on today's date and client not lost
  - Lost client: ever allocated, now churned or inactive
  - Retention: share of ever-allocated clients not lost, 100 when there is
    no history (HasHistory tells the two cases apart)

SEE ALSO:
  - sla/classifier.go: Overdue classification
  - generic/period.go: PeriodConfig look-back windows
*/
package roster

import (
	"math"
	"time"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/generic"
	"github.com/warp/agency-engine/sla"
)

// =============================================================================
// TYPES
// =============================================================================

// Input is everything one member's metrics depend on. Clients must contain
// every client referenced by Allocations.
type Input struct {
	Member      agency.Member
	Allocations []agency.Allocation
	Clients     map[agency.ClientID]agency.Client
	Demands     []agency.Demand

	Now time.Time
	// PeriodStart is the window's lower bound; nil means all time.
	PeriodStart *time.Time
	// Location decides which calendar day Now falls on.
	Location *time.Location
}

type MemberMetrics struct {
	MemberID agency.MemberID
	Name     string
	Role     string
	Status   agency.MemberStatus

	ActiveClients int
	LostClients   int
	TotalClients  int
	HasHistory    bool
	RetentionRate int
	ChurnRate     int

	NewClients     int
	ItemsCreated   int
	ItemsCompleted int
	ItemsOverdue   int
	AvgCycleHours  float64

	// AvgHealthScore is nil when no active client has a score.
	AvgHealthScore *float64

	ActiveClientIDs []agency.ClientID
}

// =============================================================================
// COMPUTATION
// =============================================================================

// Compute derives the metrics of in.Member. It returns *generic.ReferenceError
// when an allocation names a client missing from in.Clients.
func Compute(in Input, classifier *sla.Classifier) (MemberMetrics, error) {
	m := MemberMetrics{
		MemberID: in.Member.ID,
		Name:     in.Member.Name,
		Role:     in.Member.RoleTitle,
		Status:   in.Member.Status,
	}
	today := generic.DateOf(in.Now, in.Location)

	var periodStartDay *generic.TimePoint
	if in.PeriodStart != nil {
		d := generic.DateOf(*in.PeriodStart, in.Location)
		periodStartDay = &d
	}

	ever := make(map[agency.ClientID]bool)
	active := make(map[agency.ClientID]bool)

	for _, a := range in.Allocations {
		client, ok := in.Clients[a.ClientID]
		if !ok {
			return MemberMetrics{}, &generic.ReferenceError{
				From: "allocation", FromID: string(a.ID), Kind: "client", TargetID: string(a.ClientID),
			}
		}
		ever[a.ClientID] = true
		if a.IsActive(today) && !client.Status.IsLost() {
			if !active[a.ClientID] {
				m.ActiveClientIDs = append(m.ActiveClientIDs, a.ClientID)
			}
			active[a.ClientID] = true
		}
		if withinDays(a.StartDate, periodStartDay, today) {
			m.NewClients++
		}
	}

	for id := range ever {
		if in.Clients[id].Status.IsLost() {
			m.LostClients++
		}
	}
	m.TotalClients = len(ever)
	m.ActiveClients = len(active)
	m.HasHistory = m.TotalClients > 0
	m.RetentionRate = retention(m.TotalClients, m.LostClients)
	m.ChurnRate = 100 - m.RetentionRate

	var cycleTotal float64
	for _, d := range in.Demands {
		if within(d.CreatedAt, in.PeriodStart, in.Now) {
			m.ItemsCreated++
		}
		if d.IsDone() && d.CompletedAt != nil && within(*d.CompletedAt, in.PeriodStart, in.Now) {
			m.ItemsCompleted++
			hours, _ := sla.CycleHours(d)
			cycleTotal += hours
		}
		if classifier.ClassifyDemand(d, in.Now) == sla.Overdue {
			m.ItemsOverdue++
		}
	}
	if m.ItemsCompleted > 0 {
		m.AvgCycleHours = cycleTotal / float64(m.ItemsCompleted)
	}

	m.AvgHealthScore = avgHealth(m.ActiveClientIDs, in.Clients)
	return m, nil
}

// retention is round(100 * kept / total), 100 for an empty history.
func retention(total, lost int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(100 * float64(total-lost) / float64(total)))
}

func avgHealth(ids []agency.ClientID, clients map[agency.ClientID]agency.Client) *float64 {
	var sum float64
	var n int
	for _, id := range ids {
		if hs := clients[id].HealthScore; hs != nil {
			sum += *hs
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

func within(t time.Time, start *time.Time, now time.Time) bool {
	if start != nil && t.Before(*start) {
		return false
	}
	return !t.After(now)
}

func withinDays(d generic.TimePoint, start *generic.TimePoint, today generic.TimePoint) bool {
	if start != nil && d.Before(*start) {
		return false
	}
	return d.BeforeOrEqual(today)
}

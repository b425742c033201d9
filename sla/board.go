package sla

import (
	"time"

	"github.com/warp/agency-engine/agency"
)

// =============================================================================
// BOARD - Kanban columns with SLA labels
// =============================================================================

// Labeled is a demand together with its state at the board's instant.
type Labeled struct {
	Demand agency.Demand
	SLA    Status
}

// Board groups demands by workflow column. Every column is present even
// when empty so the kanban renders all of them.
type Board struct {
	At       time.Time
	Columns  map[agency.DemandStatus][]Labeled
	ByStatus map[agency.DemandStatus]int
	BySLA    map[Status]int
	Total    int
}

// BuildBoard labels every demand at now. Input order is kept inside a column.
func (c *Classifier) BuildBoard(demands []agency.Demand, now time.Time) Board {
	b := Board{
		At:       now,
		Columns:  make(map[agency.DemandStatus][]Labeled, len(agency.DemandStatuses)),
		ByStatus: make(map[agency.DemandStatus]int, len(agency.DemandStatuses)),
		BySLA:    make(map[Status]int, len(Statuses)),
	}
	for _, st := range agency.DemandStatuses {
		b.Columns[st] = []Labeled{}
		b.ByStatus[st] = 0
	}
	for _, st := range Statuses {
		b.BySLA[st] = 0
	}

	for _, d := range demands {
		st := c.ClassifyDemand(d, now)
		b.Columns[d.Status] = append(b.Columns[d.Status], Labeled{Demand: d, SLA: st})
		b.ByStatus[d.Status]++
		b.BySLA[st]++
		b.Total++
	}
	return b
}

// Label classifies every demand at now.
func (c *Classifier) Label(demands []agency.Demand, now time.Time) []Labeled {
	out := make([]Labeled, 0, len(demands))
	for _, d := range demands {
		out = append(out, Labeled{Demand: d, SLA: c.ClassifyDemand(d, now)})
	}
	return out
}

// Filter keeps the demands whose state at now is want.
func (c *Classifier) Filter(demands []agency.Demand, want Status, now time.Time) []Labeled {
	var out []Labeled
	for _, l := range c.Label(demands, now) {
		if l.SLA == want {
			out = append(out, l)
		}
	}
	return out
}

// OpenCounts counts the states of demands that are not done. The sweeper
// publishes these as gauges.
func (c *Classifier) OpenCounts(demands []agency.Demand, now time.Time) map[Status]int {
	out := map[Status]int{OnTime: 0, Warning: 0, Overdue: 0}
	for _, d := range demands {
		if d.IsDone() {
			continue
		}
		out[c.ClassifyDemand(d, now)]++
	}
	return out
}

package sla

import (
	"sort"
	"time"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/generic"
)

// InProgressHours returns the hours between the latest move into
// in_progress and the move into done that follows it. It returns nil when
// the demand never reached done from in_progress.
func InProgressHours(history []agency.StatusChange) *float64 {
	if len(history) == 0 {
		return nil
	}
	ordered := append([]agency.StatusChange(nil), history...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ChangedAt.Before(ordered[j].ChangedAt) })

	var started *time.Time
	for i := range ordered {
		ch := ordered[i]
		switch {
		case ch.To == agency.DemandInProgress:
			started = &ordered[i].ChangedAt
		case ch.To == agency.DemandDone && started != nil:
			hours := generic.HoursBetween(*started, ch.ChangedAt)
			return &hours
		}
	}
	return nil
}

// CycleHours is completed - created for a completed demand.
func CycleHours(d agency.Demand) (float64, bool) {
	if d.CompletedAt == nil {
		return 0, false
	}
	return generic.HoursBetween(d.CreatedAt, *d.CompletedAt), true
}

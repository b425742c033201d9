package roster

import (
	"fmt"
	"sort"
	"time"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/generic"
	"github.com/warp/agency-engine/sla"
)

// Builder computes roster metrics from snapshots.
type Builder struct {
	Classifier *sla.Classifier
	Location   *time.Location
}

// Input assembles the Compute input for one member of snap.
func (b *Builder) Input(snap *agency.Snapshot, member agency.Member, now time.Time, window generic.PeriodConfig) Input {
	in := Input{
		Member:      member,
		Allocations: snap.AllocationsOf(member.ID),
		Clients:     snap.ClientIndex(),
		Demands:     snap.DemandsAssignedTo(member.ID),
		Now:         now,
		Location:    b.Location,
	}
	if start, ok := window.WindowStart(now, b.Location); ok {
		in.PeriodStart = &start
	}
	return in
}

// Member computes the metrics of one member.
func (b *Builder) Member(snap *agency.Snapshot, id agency.MemberID, now time.Time, window generic.PeriodConfig) (MemberMetrics, error) {
	member, ok := snap.Member(id)
	if !ok {
		return MemberMetrics{}, fmt.Errorf("%w: %s", generic.ErrMemberNotFound, id)
	}
	return Compute(b.Input(snap, member, now, window), b.Classifier)
}

// Build computes the whole team, sorted by name.
func (b *Builder) Build(snap *agency.Snapshot, now time.Time, window generic.PeriodConfig) ([]MemberMetrics, error) {
	out := make([]MemberMetrics, 0, len(snap.Members))
	for _, member := range snap.Members {
		m, err := Compute(b.Input(snap, member, now, window), b.Classifier)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", member.ID, err)
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].MemberID < out[j].MemberID
	})
	return out, nil
}

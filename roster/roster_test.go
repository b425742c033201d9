package roster_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/generic"
	"github.com/warp/agency-engine/roster"
	"github.com/warp/agency-engine/sla"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var now = time.Date(2025, time.April, 20, 15, 0, 0, 0, time.UTC)

func score(v float64) *float64 { return &v }

func ptrTime(t time.Time) *time.Time { return &t }

func datePtr(s string) *generic.TimePoint {
	d := generic.MustParseDate(s)
	return &d
}

func alloc(id, client, start string, end *generic.TimePoint) agency.Allocation {
	return agency.Allocation{
		ID: agency.AllocationID(id), MemberID: "m-1", ClientID: agency.ClientID(client),
		MonthlyValue: decimal.NewFromInt(1000), StartDate: generic.MustParseDate(start), EndDate: end,
	}
}

func clients(cs ...agency.Client) map[agency.ClientID]agency.Client {
	out := make(map[agency.ClientID]agency.Client, len(cs))
	for _, c := range cs {
		out[c.ID] = c
	}
	return out
}

func classifier() *sla.Classifier { return sla.NewClassifier(sla.DefaultConfig()) }

func periodStart(days int) *time.Time { return ptrTime(now.AddDate(0, 0, -days)) }

// =============================================================================
// CLIENT RETENTION
// =============================================================================

func TestCompute_RetentionWithOneChurnedClient(t *testing.T) {
	// GIVEN: A member ever allocated to 4 clients, one of which churned
	// WHEN: Computing metrics
	// THEN: Retention 75, churn 25

	in := roster.Input{
		Member: agency.Member{ID: "m-1", Name: "Ana"},
		Allocations: []agency.Allocation{
			alloc("a-1", "c-1", "2024-01-01", nil),
			alloc("a-2", "c-2", "2024-06-01", nil),
			alloc("a-3", "c-3", "2024-09-01", datePtr("2025-01-31")),
			alloc("a-4", "c-4", "2024-02-01", datePtr("2024-12-31")),
		},
		Clients: clients(
			agency.Client{ID: "c-1", Status: agency.ClientActive, HealthScore: score(8)},
			agency.Client{ID: "c-2", Status: agency.ClientActive, HealthScore: score(6)},
			agency.Client{ID: "c-3", Status: agency.ClientOnboarding},
			agency.Client{ID: "c-4", Status: agency.ClientChurned, HealthScore: score(1)},
		),
		Now: now,
	}

	m, err := roster.Compute(in, classifier())
	require.NoError(t, err)

	assert.Equal(t, 4, m.TotalClients)
	assert.Equal(t, 1, m.LostClients)
	assert.Equal(t, 75, m.RetentionRate)
	assert.Equal(t, 25, m.ChurnRate)
	assert.Equal(t, 2, m.ActiveClients, "c-3 allocation ended, c-4 churned")
	require.NotNil(t, m.AvgHealthScore)
	assert.InDelta(t, 7.0, *m.AvgHealthScore, 1e-9)
}

func TestCompute_NoHistoryIsVacuouslyRetained(t *testing.T) {
	m, err := roster.Compute(roster.Input{Member: agency.Member{ID: "m-1"}, Now: now}, classifier())
	require.NoError(t, err)

	assert.False(t, m.HasHistory)
	assert.Equal(t, 100, m.RetentionRate)
	assert.Equal(t, 0, m.ChurnRate)
	assert.Nil(t, m.AvgHealthScore)
}

func TestCompute_RetentionPlusChurnIsHundred(t *testing.T) {
	statuses := []agency.ClientStatus{agency.ClientActive, agency.ClientChurned, agency.ClientInactive}
	for total := 1; total <= 7; total++ {
		var allocs []agency.Allocation
		cs := map[agency.ClientID]agency.Client{}
		for i := 0; i < total; i++ {
			id := agency.ClientID(string(rune('a' + i)))
			allocs = append(allocs, alloc("a-"+string(id), string(id), "2025-01-01", nil))
			cs[id] = agency.Client{ID: id, Status: statuses[i%len(statuses)]}
		}
		m, err := roster.Compute(roster.Input{Member: agency.Member{ID: "m-1"}, Allocations: allocs, Clients: cs, Now: now}, classifier())
		require.NoError(t, err)
		assert.Equal(t, 100, m.RetentionRate+m.ChurnRate)
	}
}

func TestCompute_HealthScoreZeroIsNotMissing(t *testing.T) {
	in := roster.Input{
		Member:      agency.Member{ID: "m-1"},
		Allocations: []agency.Allocation{alloc("a-1", "c-1", "2025-01-01", nil)},
		Clients:     clients(agency.Client{ID: "c-1", Status: agency.ClientActive, HealthScore: score(0)}),
		Now:         now,
	}

	m, err := roster.Compute(in, classifier())
	require.NoError(t, err)
	require.NotNil(t, m.AvgHealthScore)
	assert.Equal(t, 0.0, *m.AvgHealthScore)
}

func TestCompute_UnknownClientIsReferenceError(t *testing.T) {
	in := roster.Input{
		Member:      agency.Member{ID: "m-1"},
		Allocations: []agency.Allocation{alloc("a-1", "c-ghost", "2025-01-01", nil)},
		Clients:     clients(),
		Now:         now,
	}

	_, err := roster.Compute(in, classifier())
	assert.True(t, errors.Is(err, generic.ErrDanglingReference))
}

// =============================================================================
// WORK ITEMS
// =============================================================================

func TestCompute_DemandCounters(t *testing.T) {
	// GIVEN: Demands created inside and outside a 30-day window
	// WHEN: Computing with the window start
	// THEN: Only in-window items count, overdue is live regardless

	old := now.AddDate(0, -3, 0)
	in := roster.Input{
		Member: agency.Member{ID: "m-1"},
		Demands: []agency.Demand{
			{ID: "d-1", Status: agency.DemandDone, CreatedAt: now.Add(-50 * time.Hour), CompletedAt: ptrTime(now.Add(-40 * time.Hour))},
			{ID: "d-2", Status: agency.DemandDone, CreatedAt: now.Add(-30 * time.Hour), CompletedAt: ptrTime(now.Add(-10 * time.Hour))},
			{ID: "d-3", Status: agency.DemandTodo, CreatedAt: old, DueDate: ptrTime(old.Add(24 * time.Hour))},
			{ID: "d-4", Status: agency.DemandDone, CreatedAt: old, CompletedAt: ptrTime(old.Add(time.Hour))},
		},
		Now:         now,
		PeriodStart: periodStart(30),
	}

	m, err := roster.Compute(in, classifier())
	require.NoError(t, err)

	assert.Equal(t, 2, m.ItemsCreated)
	assert.Equal(t, 2, m.ItemsCompleted)
	assert.Equal(t, 1, m.ItemsOverdue)
	assert.InDelta(t, 15.0, m.AvgCycleHours, 1e-9)
}

func TestCompute_AveragesAreExact(t *testing.T) {
	// GIVEN: Completed items of 10h and 10h15m, active clients scored 7, 8 and 8
	// WHEN: Computing metrics
	// THEN: The means are returned unrounded

	in := roster.Input{
		Member: agency.Member{ID: "m-1"},
		Allocations: []agency.Allocation{
			alloc("a-1", "c-1", "2025-01-01", nil),
			alloc("a-2", "c-2", "2025-01-01", nil),
			alloc("a-3", "c-3", "2025-01-01", nil),
		},
		Clients: clients(
			agency.Client{ID: "c-1", Status: agency.ClientActive, HealthScore: score(7)},
			agency.Client{ID: "c-2", Status: agency.ClientActive, HealthScore: score(8)},
			agency.Client{ID: "c-3", Status: agency.ClientActive, HealthScore: score(8)},
		),
		Demands: []agency.Demand{
			{ID: "d-1", Status: agency.DemandDone, CreatedAt: now.Add(-20 * time.Hour), CompletedAt: ptrTime(now.Add(-10 * time.Hour))},
			{ID: "d-2", Status: agency.DemandDone, CreatedAt: now.Add(-30 * time.Hour), CompletedAt: ptrTime(now.Add(-19*time.Hour - 45*time.Minute))},
		},
		Now: now,
	}

	m, err := roster.Compute(in, classifier())
	require.NoError(t, err)

	assert.InDelta(t, 10.125, m.AvgCycleHours, 1e-9)
	require.NotNil(t, m.AvgHealthScore)
	assert.InDelta(t, 23.0/3.0, *m.AvgHealthScore, 1e-9)
}

func TestCompute_NewClientsInWindow(t *testing.T) {
	in := roster.Input{
		Member: agency.Member{ID: "m-1"},
		Allocations: []agency.Allocation{
			alloc("a-1", "c-1", "2025-04-10", nil),
			alloc("a-2", "c-1", "2025-01-01", datePtr("2025-03-31")),
			alloc("a-3", "c-1", "2025-05-01", nil),
		},
		Clients:     clients(agency.Client{ID: "c-1", Status: agency.ClientActive}),
		Now:         now,
		PeriodStart: periodStart(30),
	}

	m, err := roster.Compute(in, classifier())
	require.NoError(t, err)
	assert.Equal(t, 1, m.NewClients, "future allocations are not new yet")
	assert.Equal(t, 1, m.ActiveClients)
}

func TestBuilder_Build(t *testing.T) {
	snap := agency.NewSnapshot(agency.Data{
		Clients: []agency.Client{{ID: "c-1", Name: "Acme", Status: agency.ClientActive}},
		Members: []agency.Member{
			{ID: "m-2", Name: "Bruno", Status: agency.MemberActive},
			{ID: "m-1", Name: "Ana", Status: agency.MemberActive},
		},
		Allocations: []agency.Allocation{alloc("a-1", "c-1", "2025-01-01", nil)},
	}, now)
	b := &roster.Builder{Classifier: classifier(), Location: time.UTC}

	team, err := b.Build(snap, now, generic.Last90Days)
	require.NoError(t, err)
	require.Len(t, team, 2)
	assert.Equal(t, "Ana", team[0].Name)
	assert.Equal(t, 1, team[0].ActiveClients)
	assert.False(t, team[1].HasHistory)

	_, err = b.Member(snap, "m-404", now, generic.AllTime)
	assert.True(t, generic.IsNotFound(err))
}

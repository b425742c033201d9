package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/finance"
	"github.com/warp/agency-engine/generic"
	"github.com/warp/agency-engine/store/sqlite"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type stepClock struct{ at time.Time }

func (c *stepClock) Now() time.Time { return c.at }

func newStore(t *testing.T) (*sqlite.Store, *stepClock) {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := &stepClock{at: t0}
	s.SetClock(clock)
	return s, clock
}

func money(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func seed(t *testing.T, s *sqlite.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.SaveClient(ctx, agency.Client{ID: "c-1", Name: "Acme", Status: agency.ClientActive, MonthlyValue: money("5000")})
	require.NoError(t, err)
	_, err = s.SaveSquad(ctx, agency.Squad{ID: "s-1", Name: "Growth"})
	require.NoError(t, err)
	_, err = s.SaveMember(ctx, agency.Member{ID: "m-1", Name: "Ana", RoleTitle: "Designer", SquadIDs: []agency.SquadID{"s-1"}})
	require.NoError(t, err)
	_, err = s.SaveAllocation(ctx, agency.Allocation{
		ID: "a-1", MemberID: "m-1", ClientID: "c-1",
		MonthlyValue: decimal.NewFromInt(3100),
		StartDate:    generic.MustParseDate("2025-03-16"),
	})
	require.NoError(t, err)
}

func TestSaveAndGetClient(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	saved, err := s.SaveClient(ctx, agency.Client{Name: "Globex"})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, agency.ClientOnboarding, saved.Status)

	got, err := s.GetClient(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Globex", got.Name)
	assert.Nil(t, got.MonthlyValue)
	assert.True(t, got.CreatedAt.Equal(t0))

	_, err = s.GetClient(ctx, "nope")
	assert.True(t, errors.Is(err, generic.ErrClientNotFound))
}

func TestSaveClient_RejectsBadHealthScore(t *testing.T) {
	s, _ := newStore(t)
	score := 10.5

	_, err := s.SaveClient(context.Background(), agency.Client{Name: "Acme", HealthScore: &score})
	assert.True(t, errors.Is(err, generic.ErrHealthScoreOutOfRange))
}

func TestSaveMember_SquadLinks(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	seed(t, s)

	_, err := s.SaveSquad(ctx, agency.Squad{ID: "s-2", Name: "Brand"})
	require.NoError(t, err)
	_, err = s.SaveMember(ctx, agency.Member{ID: "m-1", Name: "Ana", SquadIDs: []agency.SquadID{"s-1", "s-2"}})
	require.NoError(t, err)

	m, err := s.GetMember(ctx, "m-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []agency.SquadID{"s-1", "s-2"}, m.SquadIDs)

	_, err = s.SaveMember(ctx, agency.Member{ID: "m-2", Name: "Bo", SquadIDs: []agency.SquadID{"s-404"}})
	assert.True(t, errors.Is(err, generic.ErrSquadNotFound))

	_, err = s.GetMember(ctx, "m-2")
	assert.True(t, errors.Is(err, generic.ErrMemberNotFound), "failed link must roll back the member")
}

func TestSaveAllocation_Validation(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	seed(t, s)

	end := generic.MustParseDate("2025-03-01")
	_, err := s.SaveAllocation(ctx, agency.Allocation{
		MemberID: "m-1", ClientID: "c-1", MonthlyValue: decimal.NewFromInt(10),
		StartDate: generic.MustParseDate("2025-03-02"), EndDate: &end,
	})
	assert.True(t, errors.Is(err, generic.ErrInvalidInterval))

	_, err = s.SaveAllocation(ctx, agency.Allocation{
		MemberID: "m-1", ClientID: "c-404", MonthlyValue: decimal.NewFromInt(10),
		StartDate: generic.MustParseDate("2025-03-02"),
	})
	assert.True(t, errors.Is(err, generic.ErrClientNotFound))
}

func TestEndAllocation(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	seed(t, s)

	require.NoError(t, s.EndAllocation(ctx, "a-1", generic.MustParseDate("2025-03-31")))

	err := s.EndAllocation(ctx, "a-1", generic.MustParseDate("2025-03-01"))
	assert.True(t, errors.Is(err, generic.ErrInvalidInterval))

	all, err := s.ListAllocations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "2025-03-31", all[0].EndDate.String())
}

func TestSaveMeeting_UpdatesClientHealth(t *testing.T) {
	// GIVEN: A client without a health score
	// WHEN: A meeting with score 7 is recorded
	// THEN: The client's score becomes 7 and the meeting is listed

	s, _ := newStore(t)
	ctx := context.Background()
	seed(t, s)

	score := 7.0
	_, err := s.SaveMeeting(ctx, agency.Meeting{Type: agency.MeetingDaily, ClientID: "c-1", HealthScore: &score})
	require.NoError(t, err)

	c, err := s.GetClient(ctx, "c-1")
	require.NoError(t, err)
	require.NotNil(t, c.HealthScore)
	assert.Equal(t, 7.0, *c.HealthScore)

	meetings, err := s.ListMeetings(ctx)
	require.NoError(t, err)
	assert.Len(t, meetings, 1)
}

func TestSaveMeeting_WithoutScoreKeepsHealth(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	seed(t, s)

	score := 4.0
	_, err := s.SaveMeeting(ctx, agency.Meeting{Type: agency.MeetingDaily, ClientID: "c-1", HealthScore: &score})
	require.NoError(t, err)
	_, err = s.SaveMeeting(ctx, agency.Meeting{Type: agency.MeetingOneOnOne, ClientID: "c-1", Notes: "sync"})
	require.NoError(t, err)

	c, err := s.GetClient(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, 4.0, *c.HealthScore)
}

func TestMoveDemand_HistoryAndCompletion(t *testing.T) {
	// GIVEN: A demand in todo
	// WHEN: It moves to in_progress, then done, then back to in_review
	// THEN: History has four rows, completed_at is set at done and cleared after

	s, clock := newStore(t)
	ctx := context.Background()
	seed(t, s)

	member := agency.MemberID("m-1")
	d, err := s.SaveDemand(ctx, agency.Demand{Title: "Landing page", AssignedTo: &member, Status: agency.DemandTodo})
	require.NoError(t, err)

	clock.at = t0.Add(2 * time.Hour)
	_, err = s.MoveDemand(ctx, d.ID, agency.DemandInProgress, "")
	require.NoError(t, err)

	clock.at = t0.Add(5 * time.Hour)
	done, err := s.MoveDemand(ctx, d.ID, agency.DemandDone, "shipped")
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.True(t, done.CompletedAt.Equal(t0.Add(5*time.Hour)))

	clock.at = t0.Add(6 * time.Hour)
	reopened, err := s.MoveDemand(ctx, d.ID, agency.DemandInReview, "bug")
	require.NoError(t, err)
	assert.Nil(t, reopened.CompletedAt)

	got, err := s.GetDemand(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 4)
	assert.Equal(t, agency.DemandTodo, got.History[0].To)
	assert.Equal(t, agency.DemandStatus(""), got.History[0].From)
	assert.Equal(t, agency.DemandDone, got.History[2].To)
	assert.Equal(t, "shipped", got.History[2].Note)
	assert.Equal(t, agency.DemandInReview, got.Status)
}

func TestMoveDemand_Errors(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	_, err := s.MoveDemand(ctx, "d-404", agency.DemandDone, "")
	assert.True(t, errors.Is(err, generic.ErrDemandNotFound))

	_, err = s.MoveDemand(ctx, "d-404", "archived", "")
	assert.True(t, generic.IsClientError(err))
}

func TestSaveDemand_UnknownAssignee(t *testing.T) {
	s, _ := newStore(t)
	ghost := agency.MemberID("m-404")

	_, err := s.SaveDemand(context.Background(), agency.Demand{Title: "x", AssignedTo: &ghost})
	assert.True(t, errors.Is(err, generic.ErrMemberNotFound))
}

func TestSaveDemand_UpdateReturnsStoredRow(t *testing.T) {
	// GIVEN: A todo demand saved on Mar 10
	// WHEN: The same id is saved two days later as done with a new title
	// THEN: Only the editable fields change; status and timestamps stay as
	//       stored, and the returned demand matches what GetDemand reads

	s, clock := newStore(t)
	ctx := context.Background()
	seed(t, s)

	member := agency.MemberID("m-1")
	orig, err := s.SaveDemand(ctx, agency.Demand{ID: "d-1", Title: "Landing page", AssignedTo: &member, Status: agency.DemandTodo})
	require.NoError(t, err)

	clock.at = t0.Add(48 * time.Hour)
	updated, err := s.SaveDemand(ctx, agency.Demand{ID: "d-1", Title: "Landing page v2", AssignedTo: &member, Status: agency.DemandDone})
	require.NoError(t, err)

	assert.Equal(t, "Landing page v2", updated.Title)
	assert.Equal(t, agency.DemandTodo, updated.Status)
	assert.True(t, updated.CreatedAt.Equal(orig.CreatedAt), "created_at %v", updated.CreatedAt)
	assert.Nil(t, updated.CompletedAt)
	require.Len(t, updated.History, 1)

	got, err := s.GetDemand(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, got, updated)
}

func TestListDemands_SubSecondOrdering(t *testing.T) {
	// GIVEN: Two demands created half a second apart on the same second
	// WHEN: Listing newest first
	// THEN: The later one comes first

	s, clock := newStore(t)
	ctx := context.Background()

	clock.at = t0
	_, err := s.SaveDemand(ctx, agency.Demand{ID: "d-whole", Title: "Whole second"})
	require.NoError(t, err)
	clock.at = t0.Add(500 * time.Millisecond)
	_, err = s.SaveDemand(ctx, agency.Demand{ID: "d-half", Title: "Half second"})
	require.NoError(t, err)

	demands, err := s.ListDemands(ctx)
	require.NoError(t, err)
	require.Len(t, demands, 2)
	assert.Equal(t, agency.DemandID("d-half"), demands[0].ID)
	assert.Equal(t, agency.DemandID("d-whole"), demands[1].ID)
}

func TestLoad_CorruptTimestampIsAnError(t *testing.T) {
	// GIVEN: A stored demand whose created_at was overwritten with garbage
	// WHEN: Reading it back
	// THEN: The read fails instead of returning the zero time

	path := filepath.Join(t.TempDir(), "agency.db")
	s, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	_, err = s.SaveDemand(ctx, agency.Demand{ID: "d-1", Title: "Landing page"})
	require.NoError(t, err)

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.ExecContext(ctx, "UPDATE demands SET created_at = 'yesterday' WHERE id = 'd-1'")
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	_, err = s.GetDemand(ctx, "d-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "created_at")

	_, err = s.LoadSnapshot(ctx, t0)
	assert.Error(t, err)
}

func TestFinancials(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFinancials(ctx, agency.MonthlyFinancials{Year: 2025, Month: time.March, TotalReceived: money("7000")}))
	require.NoError(t, s.SaveFinancials(ctx, agency.MonthlyFinancials{Year: 2025, Month: time.March, TotalReceived: money("8000"), TaxAmount: money("400")}))

	err := s.SaveFinancials(ctx, agency.MonthlyFinancials{Year: 2025, Month: 13})
	assert.True(t, errors.Is(err, generic.ErrInvalidPeriod))

	err = s.SaveFinancials(ctx, agency.MonthlyFinancials{Year: 2025, Month: time.April, TaxAmount: money("-1")})
	assert.True(t, errors.Is(err, generic.ErrNegativeAmount))

	all, err := s.ListFinancials(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "8000", all[0].TotalReceived.String())
	assert.Equal(t, "400", all[0].TaxAmount.String())

	_, err = s.SaveExpense(ctx, agency.Expense{Year: 2025, Month: time.March, Description: "Laptop", Amount: decimal.NewFromInt(1200)})
	require.NoError(t, err)
	_, err = s.SaveExpense(ctx, agency.Expense{Year: 2025, Month: time.March, Description: " ", Amount: decimal.NewFromInt(1)})
	assert.True(t, errors.Is(err, generic.ErrMissingField))

	expenses, err := s.ListExpenses(ctx)
	require.NoError(t, err)
	assert.Len(t, expenses, 1)
}

func TestLoadSnapshot_FeedsAggregation(t *testing.T) {
	// GIVEN: A stored client, member and allocation starting on the 16th
	// WHEN: Loading a snapshot and aggregating March
	// THEN: The prorated cost is 3100 * 16/31 = 1600

	s, _ := newStore(t)
	ctx := context.Background()
	seed(t, s)

	snap, err := s.LoadSnapshot(ctx, t0)
	require.NoError(t, err)
	require.NoError(t, snap.Validate())

	report, err := finance.Aggregate(snap, generic.MonthPeriod(2025, time.March), finance.Options{})
	require.NoError(t, err)
	assert.Equal(t, "1600.00", generic.FormatMoney(report.RoundedTotal()))

	m, ok := snap.Member("m-1")
	require.True(t, ok)
	assert.Equal(t, []agency.SquadID{"s-1"}, m.SquadIDs)
}

func TestImportSnapshot(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	seed(t, s)

	client := agency.ClientID("c-9")
	data := agency.Data{
		Clients: []agency.Client{{ID: "c-9", Name: "Initech", Status: agency.ClientActive}},
		Members: []agency.Member{{ID: "m-9", Name: "Cy", Status: agency.MemberActive}},
		Demands: []agency.Demand{{
			ID: "d-9", Title: "Audit", ClientID: &client, Priority: agency.PriorityLow, Status: agency.DemandTodo,
			CreatedAt: t0, History: []agency.StatusChange{{To: agency.DemandTodo, ChangedAt: t0}},
		}},
	}
	require.NoError(t, s.ImportSnapshot(ctx, data))

	snap, err := s.LoadSnapshot(ctx, t0)
	require.NoError(t, err)
	assert.Len(t, snap.Clients, 1)
	assert.Empty(t, snap.Allocations, "import replaces previous data")
	d, ok := snap.Demand("d-9")
	require.True(t, ok)
	assert.Len(t, d.History, 1)
}

func TestImportSnapshot_RejectsDanglingReference(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	seed(t, s)

	data := agency.Data{
		Members: []agency.Member{{ID: "m-9", Name: "Cy", Status: agency.MemberActive}},
		Allocations: []agency.Allocation{{
			ID: "a-9", MemberID: "m-9", ClientID: "c-404",
			MonthlyValue: decimal.NewFromInt(1), StartDate: generic.MustParseDate("2025-01-01"),
		}},
	}
	err := s.ImportSnapshot(ctx, data)
	assert.True(t, errors.Is(err, generic.ErrDanglingReference))

	clients, err := s.ListClients(ctx)
	require.NoError(t, err)
	assert.Len(t, clients, 1, "failed import leaves data untouched")
}

func TestReset(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	seed(t, s)

	require.NoError(t, s.Reset(ctx))

	snap, err := s.LoadSnapshot(ctx, t0)
	require.NoError(t, err)
	assert.Empty(t, snap.Clients)
	assert.Empty(t, snap.Members)
}

// =============================================================================
// DESIGN PAYMENTS
// =============================================================================

func TestApproveDemand_RegistersPaymentOnce(t *testing.T) {
	// GIVEN: An arte demand in review assigned to Ana, whose arte rate is 15
	// WHEN: It is approved on Mar 12, then approved again
	// THEN: One payment of 15 in March, the demand is done with a history
	//       row, and the second approval is rejected

	s, clock := newStore(t)
	ctx := context.Background()
	seed(t, s)

	_, err := s.SaveRate(ctx, agency.MemberRate{MemberID: "m-1", ArteValue: decimal.NewFromInt(15), VideoValue: decimal.NewFromInt(35)})
	require.NoError(t, err)

	member := agency.MemberID("m-1")
	client := agency.ClientID("c-1")
	_, err = s.SaveDemand(ctx, agency.Demand{
		ID: "d-1", Title: "Carousel", ClientID: &client, AssignedTo: &member,
		Status: agency.DemandInReview, DesignType: agency.DesignArte,
	})
	require.NoError(t, err)

	clock.at = t0.Add(48 * time.Hour)
	d, p, err := s.ApproveDemand(ctx, "d-1", time.UTC)
	require.NoError(t, err)

	assert.Equal(t, agency.DemandDone, d.Status)
	require.NotNil(t, d.CompletedAt)
	assert.True(t, d.CompletedAt.Equal(t0.Add(48*time.Hour)))
	require.Len(t, d.History, 2)
	assert.Equal(t, "approved", d.History[1].Note)

	assert.True(t, p.Value.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, agency.DesignArte, p.Type)
	assert.Equal(t, &client, p.ClientID)

	payments, err := s.ListPayments(ctx, 2025, time.March)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, p.ID, payments[0].ID)

	_, _, err = s.ApproveDemand(ctx, "d-1", time.UTC)
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrPaymentRegistered))
	assert.True(t, generic.IsClientError(err))
}

func TestApproveDemand_DefaultRateAndDoneDemand(t *testing.T) {
	// GIVEN: A video demand already done on Mar 10, Ana has no rate card
	// WHEN: It is approved later
	// THEN: The default video rate is paid and completed_at is kept

	s, clock := newStore(t)
	ctx := context.Background()
	seed(t, s)

	member := agency.MemberID("m-1")
	_, err := s.SaveDemand(ctx, agency.Demand{ID: "d-1", Title: "Reel", AssignedTo: &member, Status: agency.DemandDone, DesignType: agency.DesignVideo})
	require.NoError(t, err)

	clock.at = t0.Add(24 * time.Hour)
	d, p, err := s.ApproveDemand(ctx, "d-1", time.UTC)
	require.NoError(t, err)

	assert.True(t, p.Value.Equal(agency.DefaultVideoRate))
	require.NotNil(t, d.CompletedAt)
	assert.True(t, d.CompletedAt.Equal(t0))
	assert.Len(t, d.History, 1)
}

func TestApproveDemand_Errors(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	seed(t, s)

	_, _, err := s.ApproveDemand(ctx, "d-404", time.UTC)
	assert.True(t, errors.Is(err, generic.ErrDemandNotFound))

	_, err = s.SaveDemand(ctx, agency.Demand{ID: "d-nobody", Title: "Post", DesignType: agency.DesignArte})
	require.NoError(t, err)
	_, _, err = s.ApproveDemand(ctx, "d-nobody", time.UTC)
	assert.True(t, generic.IsClientError(err), "no assignee")

	member := agency.MemberID("m-1")
	_, err = s.SaveDemand(ctx, agency.Demand{ID: "d-plain", Title: "Report", AssignedTo: &member})
	require.NoError(t, err)
	_, _, err = s.ApproveDemand(ctx, "d-plain", time.UTC)
	assert.True(t, generic.IsClientError(err), "not a design piece")

	payments, err := s.ListPayments(ctx, 2025, time.March)
	require.NoError(t, err)
	assert.Empty(t, payments, "failed approvals write nothing")
}

func TestSaveRate(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	seed(t, s)

	_, err := s.SaveRate(ctx, agency.MemberRate{MemberID: "m-404", ArteValue: decimal.NewFromInt(1)})
	assert.True(t, errors.Is(err, generic.ErrMemberNotFound))

	_, err = s.SaveRate(ctx, agency.MemberRate{MemberID: "m-1", ArteValue: decimal.NewFromInt(-1)})
	assert.True(t, generic.IsClientError(err))

	_, err = s.SaveRate(ctx, agency.MemberRate{MemberID: "m-1", ArteValue: decimal.NewFromInt(11), VideoValue: decimal.NewFromInt(22)})
	require.NoError(t, err)
	_, err = s.SaveRate(ctx, agency.MemberRate{MemberID: "m-1", ArteValue: decimal.NewFromInt(12), VideoValue: decimal.NewFromInt(24)})
	require.NoError(t, err)

	rates, err := s.ListRates(ctx)
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.True(t, rates[0].ArteValue.Equal(decimal.NewFromInt(12)))

	snap, err := s.LoadSnapshot(ctx, t0)
	require.NoError(t, err)
	rate, ok := snap.RateOf("m-1")
	assert.True(t, ok)
	assert.True(t, rate.VideoValue.Equal(decimal.NewFromInt(24)))
}

func TestImportSnapshot_DesignData(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	member := agency.MemberID("m-9")
	data := agency.Data{
		Members: []agency.Member{{ID: member, Name: "Cy", Status: agency.MemberActive}},
		Demands: []agency.Demand{{
			ID: "d-9", Title: "Post", AssignedTo: &member, Priority: agency.PriorityLow, Status: agency.DemandDone,
			CreatedAt: t0, CompletedAt: &t0, DesignType: agency.DesignArte,
		}},
		Rates: []agency.MemberRate{{MemberID: member, ArteValue: decimal.NewFromInt(13), VideoValue: decimal.NewFromInt(26)}},
		Payments: []agency.DesignPayment{{
			ID: "p-9", DemandID: "d-9", MemberID: member, Type: agency.DesignArte,
			Value: decimal.NewFromInt(13), Year: 2025, Month: time.March, CreatedAt: t0,
		}},
	}
	require.NoError(t, s.ImportSnapshot(ctx, data))

	snap, err := s.LoadSnapshot(ctx, t0)
	require.NoError(t, err)
	require.NoError(t, snap.Validate())

	d, ok := snap.Demand("d-9")
	require.True(t, ok)
	assert.Equal(t, agency.DesignArte, d.DesignType)
	require.Len(t, snap.Payments, 1)
	assert.True(t, snap.Payments[0].CreatedAt.Equal(t0))
	require.Len(t, snap.Rates, 1)

	_, _, err = s.ApproveDemand(ctx, "d-9", time.UTC)
	assert.True(t, errors.Is(err, generic.ErrPaymentRegistered), "imported payments count")
}

/*
handlers.go - HTTP API handlers for the agency engine

PURPOSE:
  Exposes the derived views (costs, profitability, roster, SLA board) and
  the entity mutations via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the domain packages.

ENDPOINTS:
  Financial:
    GET    /api/financial/dashboard             Cost report (?month=&year= or ?from=&to=, ?history=true, ?method=none)
    GET    /api/financial/clients/{id}/costs    One client's cost lines
    GET    /api/financial/summary               Monthly cash summary
    PUT    /api/financial/summary               Upsert the month record
    POST   /api/financial/expenses              Record an extra expense
    GET    /api/financial/profitability         Per-client margins

  Entities:
    GET/POST /api/clients, GET /api/clients/{id}
    GET/POST /api/team/members, /api/team/squads, /api/team/allocations
    POST     /api/team/allocations/{id}/end
    GET/POST /api/demands, POST /api/demands/{id}/move
    GET/POST /api/meetings

  Design payments:
    POST   /api/demands/{id}/approve            Approve a design demand, register its payment
    GET    /api/design/rates                    Rate card of every active member
    PUT    /api/design/rates                    Set one member's per-piece values
    GET    /api/design/payments                 Payments of a month (?month=&year=)
    GET    /api/design/payments/summary         Month's pay grouped by member

  Derived:
    GET    /api/team/roster                     Team metrics (?period=90d)
    GET    /api/team/members/{id}/metrics       One member's metrics
    GET    /api/demands/board                   Kanban with SLA labels
    GET    /api/dashboard/stats                 Headline counters

REQUEST FLOW (derived views):
  1. Read the clock once
  2. Load a snapshot (single read-only transaction)
  3. Compute the view from the snapshot
  4. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input (generic.IsClientError)
  - 404: Resource not found (generic.IsNotFound)
  - 500: Integrity or invariant failures, logged at error level

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/factory"
	"github.com/warp/agency-engine/finance"
	"github.com/warp/agency-engine/generic"
	"github.com/warp/agency-engine/metrics"
	"github.com/warp/agency-engine/overview"
	"github.com/warp/agency-engine/roster"
	"github.com/warp/agency-engine/sla"
	"github.com/warp/agency-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Factory    *factory.SnapshotFactory
	Classifier *sla.Classifier
	Roster     *roster.Builder
	Clock      generic.Clock
	Location   *time.Location
	Logger     *zap.Logger

	// Prorate is the cost method used when a request does not pass ?method=.
	Prorate generic.ProrateMethod

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler. A nil logger disables logging and a nil
// location means UTC.
func NewHandler(store *sqlite.Store, classifier *sla.Classifier, loc *time.Location, logger *zap.Logger) (*Handler, error) {
	f, err := factory.NewSnapshotFactory()
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:      store,
		Factory:    f,
		Classifier: classifier,
		Roster:     &roster.Builder{Classifier: classifier, Location: loc},
		Clock:      generic.SystemClock{},
		Location:   loc,
		Logger:     logger,
		Prorate:    generic.ProrateLinear,
	}, nil
}

// snapshot reads the clock once and loads a snapshot taken at that instant.
func (h *Handler) snapshot(ctx context.Context) (*agency.Snapshot, time.Time, error) {
	now := h.Clock.Now()
	snap, err := h.Store.LoadSnapshot(ctx, now)
	return snap, now, err
}

// observe records one computation of view.
func observe(view string, start time.Time) {
	metrics.ComputationsTotal.WithLabelValues(view).Inc()
	metrics.ComputationDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
}

// =============================================================================
// FINANCIAL HANDLERS
// =============================================================================

// GetCostDashboard returns the cost report of a period.
// GET /api/financial/dashboard
func (h *Handler) GetCostDashboard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	snap, now, err := h.snapshot(r.Context())
	if err != nil {
		h.fail(w, r, metrics.ViewCosts, err)
		return
	}
	period, err := parsePeriod(r, now, h.Location)
	if err != nil {
		h.fail(w, r, metrics.ViewCosts, err)
		return
	}

	method, err := h.prorateMethod(r)
	if err != nil {
		h.fail(w, r, metrics.ViewCosts, err)
		return
	}

	report, err := finance.Aggregate(snap, period, finance.Options{IncludeInactive: queryBool(r, "history"), Method: method})
	if err != nil {
		h.fail(w, r, metrics.ViewCosts, err)
		return
	}
	observe(metrics.ViewCosts, start)

	writeJSON(w, http.StatusOK, toCostDashboardDTO(report))
}

// GetClientCosts returns the cost lines of one client.
// GET /api/financial/clients/{id}/costs
func (h *Handler) GetClientCosts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	snap, now, err := h.snapshot(r.Context())
	if err != nil {
		h.fail(w, r, metrics.ViewClientCosts, err)
		return
	}
	period, err := parsePeriod(r, now, h.Location)
	if err != nil {
		h.fail(w, r, metrics.ViewClientCosts, err)
		return
	}

	method, err := h.prorateMethod(r)
	if err != nil {
		h.fail(w, r, metrics.ViewClientCosts, err)
		return
	}

	group, err := finance.ClientCosts(snap, agency.ClientID(chi.URLParam(r, "id")), period, method)
	if err != nil {
		h.fail(w, r, metrics.ViewClientCosts, err)
		return
	}
	observe(metrics.ViewClientCosts, start)

	writeJSON(w, http.StatusOK, ClientCostsDTO{Period: toPeriodDTO(period), GroupDTO: toGroupDTO(group)})
}

// GetSummary returns the monthly cash summary.
// GET /api/financial/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	snap, now, err := h.snapshot(r.Context())
	if err != nil {
		h.fail(w, r, metrics.ViewSummary, err)
		return
	}
	period, err := parseMonth(r, now, h.Location)
	if err != nil {
		h.fail(w, r, metrics.ViewSummary, err)
		return
	}

	report, err := finance.Aggregate(snap, period, finance.Options{Method: h.Prorate})
	if err != nil {
		h.fail(w, r, metrics.ViewSummary, err)
		return
	}
	summary := finance.Summarize(snap, report)
	observe(metrics.ViewSummary, start)

	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// PutFinancials upserts the figures of one month.
// PUT /api/financial/summary
func (h *Handler) PutFinancials(w http.ResponseWriter, r *http.Request) {
	var req factory.FinancialsJSON
	if !decode(w, r, &req) {
		return
	}
	f := agency.MonthlyFinancials{
		Year:            req.Year,
		Month:           time.Month(req.Month),
		TotalReceived:   req.TotalReceived,
		TaxAmount:       req.TaxAmount,
		MarketingAmount: req.MarketingAmount,
	}
	if err := h.Store.SaveFinancials(r.Context(), f); err != nil {
		h.fail(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// CreateExpense records an extra expense.
// POST /api/financial/expenses
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req factory.ExpenseJSON
	if !decode(w, r, &req) {
		return
	}
	e, err := factory.ExpenseFromJSON(req)
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	saved, err := h.Store.SaveExpense(r.Context(), e)
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.ExpenseToJSON(saved))
}

// GetProfitability returns per-client margins for a period.
// GET /api/financial/profitability
func (h *Handler) GetProfitability(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	snap, now, err := h.snapshot(r.Context())
	if err != nil {
		h.fail(w, r, metrics.ViewProfitability, err)
		return
	}
	period, err := parsePeriod(r, now, h.Location)
	if err != nil {
		h.fail(w, r, metrics.ViewProfitability, err)
		return
	}

	method, err := h.prorateMethod(r)
	if err != nil {
		h.fail(w, r, metrics.ViewProfitability, err)
		return
	}

	report, err := finance.Aggregate(snap, period, finance.Options{Method: method})
	if err != nil {
		h.fail(w, r, metrics.ViewProfitability, err)
		return
	}
	rows := finance.Profitability(snap, report)
	observe(metrics.ViewProfitability, start)

	writeJSON(w, http.StatusOK, toProfitabilityDTO(period, rows))
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns all clients.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Store.ListClients(r.Context())
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	out := make([]factory.ClientJSON, 0, len(clients))
	for _, c := range clients {
		out = append(out, factory.ClientToJSON(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetClient returns a single client.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.GetClient(r.Context(), agency.ClientID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, factory.ClientToJSON(c))
}

// CreateClient creates or updates a client.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req factory.ClientJSON
	if !decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	c, err := factory.ClientFromJSON(req)
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	saved, err := h.Store.SaveClient(r.Context(), c)
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.ClientToJSON(saved))
}

// =============================================================================
// TEAM HANDLERS
// =============================================================================

// ListMembers returns all members.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Store.ListMembers(r.Context())
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	out := make([]factory.MemberJSON, 0, len(members))
	for _, m := range members {
		out = append(out, factory.MemberToJSON(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateMember creates or updates a member.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req factory.MemberJSON
	if !decode(w, r, &req) {
		return
	}
	saved, err := h.Store.SaveMember(r.Context(), factory.MemberFromJSON(req))
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.MemberToJSON(saved))
}

// ListSquads returns all squads.
func (h *Handler) ListSquads(w http.ResponseWriter, r *http.Request) {
	squads, err := h.Store.ListSquads(r.Context())
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	out := make([]factory.SquadJSON, 0, len(squads))
	for _, sq := range squads {
		out = append(out, factory.SquadJSON{ID: string(sq.ID), Name: sq.Name, Description: sq.Description})
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateSquad creates or updates a squad.
func (h *Handler) CreateSquad(w http.ResponseWriter, r *http.Request) {
	var req factory.SquadJSON
	if !decode(w, r, &req) {
		return
	}
	saved, err := h.Store.SaveSquad(r.Context(), factory.SquadFromJSON(req))
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.SquadJSON{ID: string(saved.ID), Name: saved.Name, Description: saved.Description})
}

// ListAllocations returns all allocations.
func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	allocations, err := h.Store.ListAllocations(r.Context())
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	out := make([]factory.AllocationJSON, 0, len(allocations))
	for _, a := range allocations {
		out = append(out, factory.AllocationToJSON(a))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateAllocation assigns a member to a client.
func (h *Handler) CreateAllocation(w http.ResponseWriter, r *http.Request) {
	var req factory.AllocationJSON
	if !decode(w, r, &req) {
		return
	}
	a, err := factory.AllocationFromJSON(req)
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	saved, err := h.Store.SaveAllocation(r.Context(), a)
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.AllocationToJSON(saved))
}

// EndAllocation closes an allocation on the given date.
// POST /api/team/allocations/{id}/end
func (h *Handler) EndAllocation(w http.ResponseWriter, r *http.Request) {
	var req EndAllocationRequest
	if !decode(w, r, &req) {
		return
	}
	end, err := generic.ParseDate(req.EndDate)
	if err != nil {
		h.fail(w, r, "", &generic.FieldError{Field: "end_date", Err: generic.ErrInvalidInterval})
		return
	}
	if err := h.Store.EndAllocation(r.Context(), agency.AllocationID(chi.URLParam(r, "id")), end); err != nil {
		h.fail(w, r, "", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRoster returns metrics for the whole team.
// GET /api/team/roster?period=90d
func (h *Handler) GetRoster(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	window, err := generic.ParsePeriodConfig(r.URL.Query().Get("period"))
	if err != nil {
		h.fail(w, r, metrics.ViewRoster, err)
		return
	}
	snap, now, err := h.snapshot(r.Context())
	if err != nil {
		h.fail(w, r, metrics.ViewRoster, err)
		return
	}

	team, err := h.Roster.Build(snap, now, window)
	if err != nil {
		h.fail(w, r, metrics.ViewRoster, err)
		return
	}
	observe(metrics.ViewRoster, start)

	out := RosterDTO{Window: window.String(), At: now, Members: make([]MemberMetricsDTO, 0, len(team))}
	for _, m := range team {
		out.Members = append(out.Members, toMemberMetricsDTO(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetMemberMetrics returns the metrics of one member.
// GET /api/team/members/{id}/metrics?period=90d
func (h *Handler) GetMemberMetrics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	window, err := generic.ParsePeriodConfig(r.URL.Query().Get("period"))
	if err != nil {
		h.fail(w, r, metrics.ViewMember, err)
		return
	}
	snap, now, err := h.snapshot(r.Context())
	if err != nil {
		h.fail(w, r, metrics.ViewMember, err)
		return
	}

	m, err := h.Roster.Member(snap, agency.MemberID(chi.URLParam(r, "id")), now, window)
	if err != nil {
		h.fail(w, r, metrics.ViewMember, err)
		return
	}
	observe(metrics.ViewMember, start)

	writeJSON(w, http.StatusOK, toMemberMetricsDTO(m))
}

// =============================================================================
// DEMAND HANDLERS
// =============================================================================

// ListDemands returns demands labeled with their SLA state.
// GET /api/demands?sla=overdue
func (h *Handler) ListDemands(w http.ResponseWriter, r *http.Request) {
	demands, err := h.Store.ListDemands(r.Context())
	if err != nil {
		h.fail(w, r, metrics.ViewBoard, err)
		return
	}
	now := h.Clock.Now()

	var labeled []sla.Labeled
	if raw := r.URL.Query().Get("sla"); raw != "" {
		want, err := sla.ParseStatus(raw)
		if err != nil {
			h.fail(w, r, metrics.ViewBoard, err)
			return
		}
		labeled = h.Classifier.Filter(demands, want, now)
	} else {
		labeled = h.Classifier.Label(demands, now)
	}
	writeJSON(w, http.StatusOK, toLabeledDTOs(labeled))
}

// CreateDemand creates a demand.
func (h *Handler) CreateDemand(w http.ResponseWriter, r *http.Request) {
	var req factory.DemandJSON
	if !decode(w, r, &req) {
		return
	}
	saved, err := h.Store.SaveDemand(r.Context(), factory.DemandFromJSON(req))
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLabeledDTO(sla.Labeled{
		Demand: saved,
		SLA:    h.Classifier.ClassifyDemand(saved, h.Clock.Now()),
	}))
}

// MoveDemand moves a demand to another column.
// POST /api/demands/{id}/move
func (h *Handler) MoveDemand(w http.ResponseWriter, r *http.Request) {
	var req MoveDemandRequest
	if !decode(w, r, &req) {
		return
	}
	moved, err := h.Store.MoveDemand(r.Context(), agency.DemandID(chi.URLParam(r, "id")), agency.DemandStatus(req.Status), req.Note)
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, toLabeledDTO(sla.Labeled{
		Demand: moved,
		SLA:    h.Classifier.ClassifyDemand(moved, h.Clock.Now()),
	}))
}

// GetBoard returns the kanban board.
// GET /api/demands/board
func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	demands, err := h.Store.ListDemands(r.Context())
	if err != nil {
		h.fail(w, r, metrics.ViewBoard, err)
		return
	}
	board := h.Classifier.BuildBoard(demands, h.Clock.Now())
	observe(metrics.ViewBoard, start)

	writeJSON(w, http.StatusOK, toBoardDTO(board))
}

// =============================================================================
// DESIGN PAYMENT HANDLERS
// =============================================================================

// ApproveDemand approves a design demand and registers its payment.
// POST /api/demands/{id}/approve
func (h *Handler) ApproveDemand(w http.ResponseWriter, r *http.Request) {
	d, p, err := h.Store.ApproveDemand(r.Context(), agency.DemandID(chi.URLParam(r, "id")), h.Location)
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	h.Logger.Info("design demand approved",
		zap.String("demand_id", string(d.ID)),
		zap.String("member_id", string(p.MemberID)),
		zap.String("value", generic.FormatMoney(p.Value)),
	)
	writeJSON(w, http.StatusCreated, ApprovalDTO{
		Demand:  toLabeledDTO(sla.Labeled{Demand: d, SLA: h.Classifier.ClassifyDemand(d, h.Clock.Now())}),
		Payment: factory.PaymentToJSON(p),
	})
}

// ListRates returns the rate card of every active member.
// GET /api/design/rates
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	snap, _, err := h.snapshot(r.Context())
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, toRateCardDTOs(finance.RateCards(snap)))
}

// PutRate sets the per-piece values of one member.
// PUT /api/design/rates
func (h *Handler) PutRate(w http.ResponseWriter, r *http.Request) {
	var req factory.RateJSON
	if !decode(w, r, &req) {
		return
	}
	saved, err := h.Store.SaveRate(r.Context(), factory.RateFromJSON(req))
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, factory.RateJSON{
		MemberID: string(saved.MemberID), ArteValue: saved.ArteValue, VideoValue: saved.VideoValue,
	})
}

// ListPayments returns the payments registered in a month, newest first.
// GET /api/design/payments?month=&year=
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r, h.Clock.Now(), h.Location)
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	payments, err := h.Store.ListPayments(r.Context(), year, month)
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentJSONs(payments))
}

// GetPaymentSummary returns the month's design pay grouped by member.
// GET /api/design/payments/summary?month=&year=
func (h *Handler) GetPaymentSummary(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	snap, now, err := h.snapshot(r.Context())
	if err != nil {
		h.fail(w, r, metrics.ViewPayments, err)
		return
	}
	year, month, err := parseYearMonth(r, now, h.Location)
	if err != nil {
		h.fail(w, r, metrics.ViewPayments, err)
		return
	}
	report, err := finance.PaymentSummary(snap, year, month)
	if err != nil {
		h.fail(w, r, metrics.ViewPayments, err)
		return
	}
	observe(metrics.ViewPayments, start)

	writeJSON(w, http.StatusOK, toPaymentSummaryDTO(report))
}

// =============================================================================
// MEETING HANDLERS
// =============================================================================

// ListMeetings returns all meetings.
func (h *Handler) ListMeetings(w http.ResponseWriter, r *http.Request) {
	meetings, err := h.Store.ListMeetings(r.Context())
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	out := make([]factory.MeetingJSON, 0, len(meetings))
	for _, m := range meetings {
		out = append(out, factory.MeetingToJSON(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateMeeting records a meeting and updates the client's health score.
func (h *Handler) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	var req factory.MeetingJSON
	if !decode(w, r, &req) {
		return
	}
	saved, err := h.Store.SaveMeeting(r.Context(), factory.MeetingFromJSON(req))
	if err != nil {
		h.fail(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.MeetingToJSON(saved))
}

// =============================================================================
// DASHBOARD
// =============================================================================

// GetStats returns the headline counters.
// GET /api/dashboard/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	snap, now, err := h.snapshot(r.Context())
	if err != nil {
		h.fail(w, r, metrics.ViewStats, err)
		return
	}
	stats := overview.Compute(snap, now, h.Classifier, h.Location)
	observe(metrics.ViewStats, start)

	writeJSON(w, http.StatusOK, toStatsDTO(stats))
}

// =============================================================================
// HELPERS
// =============================================================================

// parsePeriod reads ?from=&to= (inclusive dates) or ?month=&year=. Without
// either it returns the current month in loc.
func parsePeriod(r *http.Request, now time.Time, loc *time.Location) (generic.Period, error) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" && to == "" {
		return parseMonth(r, now, loc)
	}
	if from == "" || to == "" {
		return generic.Period{}, &generic.FieldError{Field: "from/to", Err: fmt.Errorf("%w: both bounds are required", generic.ErrInvalidPeriod)}
	}
	start, err := generic.ParseDate(from)
	if err != nil {
		return generic.Period{}, &generic.FieldError{Field: "from", Err: fmt.Errorf("%w: %v", generic.ErrInvalidPeriod, err)}
	}
	end, err := generic.ParseDate(to)
	if err != nil {
		return generic.Period{}, &generic.FieldError{Field: "to", Err: fmt.Errorf("%w: %v", generic.ErrInvalidPeriod, err)}
	}
	return generic.DateRange(start, end)
}

// parseMonth reads ?month=&year= as a period.
func parseMonth(r *http.Request, now time.Time, loc *time.Location) (generic.Period, error) {
	year, month, err := parseYearMonth(r, now, loc)
	if err != nil {
		return generic.Period{}, err
	}
	return generic.MonthPeriod(year, month), nil
}

// parseYearMonth reads ?month=&year=, defaulting each to the current one in loc.
func parseYearMonth(r *http.Request, now time.Time, loc *time.Location) (int, time.Month, error) {
	local := now.In(loc)
	year, month := local.Year(), local.Month()

	q := r.URL.Query()
	if raw := q.Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil || y < 1 {
			return 0, 0, &generic.FieldError{Field: "year", Err: fmt.Errorf("%w: %q", generic.ErrInvalidPeriod, raw)}
		}
		year = y
	}
	if raw := q.Get("month"); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil || m < 1 || m > 12 {
			return 0, 0, &generic.FieldError{Field: "month", Err: fmt.Errorf("%w: %q", generic.ErrInvalidPeriod, raw)}
		}
		month = time.Month(m)
	}
	return year, month, nil
}

// prorateMethod reads ?method=, falling back to the configured method.
func (h *Handler) prorateMethod(r *http.Request) (generic.ProrateMethod, error) {
	raw := r.URL.Query().Get("method")
	if raw == "" {
		return h.Prorate, nil
	}
	return generic.ParseProrateMethod(raw)
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

// decode reads a JSON body, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// fail maps err onto a status code. Integrity failures are server-side:
// they are logged with the request ID and counted per view.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, view string, err error) {
	switch {
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case generic.IsIntegrityError(err):
		if view != "" {
			metrics.IntegrityErrors.WithLabelValues(view).Inc()
		}
		h.Logger.Error("data integrity failure",
			zap.String("view", view),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Data integrity error", err)
	default:
		h.Logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = strings.TrimSpace(err.Error())
	}
	writeJSON(w, status, resp)
}

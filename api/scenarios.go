/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	agency data. Each scenario is a snapshot document built relative to the
	current clock, so SLA states and look-back windows stay meaningful
	whenever it is loaded.

AVAILABLE SCENARIOS:

	small-agency:  Three clients, two squads, mid-month allocation starts,
	               one approved design piece
	churn-wave:    Several lost clients, exercises retention and churn
	sla-pressure:  Demands on both sides of their due dates and budgets

HOW SCENARIOS WORK:
 1. Build a factory.SnapshotJSON relative to now
 2. Marshal it and parse it back through the factory (schema + validation)
 3. Replace the database content in one transaction (ImportSnapshot)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "small-agency"}

NOTE:

	Scenarios replace the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler
  - factory/snapshot.go: Snapshot document types
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/factory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "small-agency",
		Name:        "Small Agency",
		Description: "Three clients, two squads, allocations starting mid-month",
		Category:    "finance",
	},
	{
		ID:          "churn-wave",
		Name:        "Churn Wave",
		Description: "Members who lost clients this quarter: retention and churn rates",
		Category:    "team",
	},
	{
		ID:          "sla-pressure",
		Name:        "SLA Pressure",
		Description: "Demands close to or past their due dates and SLA budgets",
		Category:    "demands",
	},
}

var scenarioBuilders = map[string]func(now time.Time) factory.SnapshotJSON{
	"small-agency": smallAgencyScenario,
	"churn-wave":   churnWaveScenario,
	"sla-pressure": slaPressureScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario replaces the database with a demo scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}
	if _, ok := scenarioBuilders[req.ScenarioID]; !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		h.fail(w, r, "", err)
		return
	}
	h.Logger.Sugar().Infow("scenario loaded", "scenario", req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.fail(w, r, "", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	now := h.Clock.Now()
	doc := scenarioBuilders[id](now)

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal scenario %s: %w", id, err)
	}
	snap, err := h.Factory.ParseSnapshot(raw, now)
	if err != nil {
		return fmt.Errorf("scenario %s: %w", id, err)
	}
	if err := h.Store.ImportSnapshot(ctx, snap.Data); err != nil {
		return fmt.Errorf("import scenario %s: %w", id, err)
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
	return nil
}

// =============================================================================
// SCENARIO DATA
// =============================================================================

func amount(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func score(v float64) *float64 { return &v }

func hours(v int) *int { return &v }

// day formats the date n days away from now.
func day(now time.Time, n int) string {
	return now.AddDate(0, 0, n).Format("2006-01-02")
}

func monthStart(now time.Time, offset int) string {
	return time.Date(now.Year(), now.Month()+time.Month(offset), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

func at(now time.Time, h time.Duration) *time.Time {
	t := now.Add(h)
	return &t
}

func smallAgencyScenario(now time.Time) factory.SnapshotJSON {
	mid := time.Date(now.Year(), now.Month(), 16, 0, 0, 0, 0, time.UTC).Format("2006-01-02")

	return factory.SnapshotJSON{
		Clients: []factory.ClientJSON{
			{ID: "acme", Name: "Acme Foods", Segment: "retail", Status: "active",
				MonthlyValue: amount(12000), OperationalCost: amount(800), MinContractMonths: hours(6),
				StartDate: monthStart(now, -8), HealthScore: score(8)},
			{ID: "globex", Name: "Globex", Segment: "saas", Status: "onboarding",
				MonthlyValue: amount(7000), StartDate: mid},
			{ID: "initech", Name: "Initech", Segment: "saas", Status: "churned",
				MonthlyValue: amount(4000), StartDate: monthStart(now, -12), EndDate: day(now, -40), HealthScore: score(3)},
		},
		Squads: []factory.SquadJSON{
			{ID: "growth", Name: "Growth", Description: "Paid media and CRO"},
			{ID: "brand", Name: "Brand", Description: "Design and content"},
		},
		Members: []factory.MemberJSON{
			{ID: "ana", Name: "Ana Lima", RoleTitle: "Designer", Status: "active", SquadIDs: []string{"brand"}},
			{ID: "bruno", Name: "Bruno Costa", RoleTitle: "Traffic Manager", Status: "active", SquadIDs: []string{"growth"}},
			{ID: "carla", Name: "Carla Reis", RoleTitle: "Copywriter", Status: "vacation", SquadIDs: []string{"brand", "growth"}},
			{ID: "diego", Name: "Diego Alves", RoleTitle: "Designer", Status: "active"},
		},
		Allocations: []factory.AllocationJSON{
			{ID: "a-ana-acme", MemberID: "ana", ClientID: "acme", MonthlyValue: *amount(3000), StartDate: monthStart(now, -8)},
			{ID: "a-bruno-acme", MemberID: "bruno", ClientID: "acme", MonthlyValue: *amount(2500), StartDate: monthStart(now, -6)},
			{ID: "a-bruno-globex", MemberID: "bruno", ClientID: "globex", MonthlyValue: *amount(3100), StartDate: mid},
			{ID: "a-carla-globex", MemberID: "carla", ClientID: "globex", MonthlyValue: *amount(1500), StartDate: mid},
			{ID: "a-diego-initech", MemberID: "diego", ClientID: "initech", MonthlyValue: *amount(2000),
				StartDate: monthStart(now, -12), EndDate: day(now, -40)},
		},
		Demands: []factory.DemandJSON{
			{ID: "d-1", Title: "Spring campaign key visual", ClientID: "acme", AssignedTo: "ana",
				Priority: "high", Status: "in_progress", CreatedAt: now.Add(-72 * time.Hour), DueDate: at(now, 12*time.Hour),
				DesignType: "arte"},
			{ID: "d-2", Title: "Onboarding audit", ClientID: "globex", AssignedTo: "bruno",
				Priority: "medium", Status: "todo", CreatedAt: now.Add(-10 * time.Hour), SLAHours: hours(48)},
			{ID: "d-3", Title: "Monthly report", ClientID: "acme", AssignedTo: "bruno",
				Priority: "low", Status: "done", CreatedAt: now.Add(-96 * time.Hour), CompletedAt: at(now, -80*time.Hour)},
			{ID: "d-4", Title: "Launch reel", ClientID: "acme", AssignedTo: "diego",
				Priority: "medium", Status: "done", CreatedAt: now.Add(-50 * time.Hour), CompletedAt: at(now, -2*time.Hour),
				DesignType: "video"},
		},
		Rates: []factory.RateJSON{
			{MemberID: "ana", ArteValue: *amount(15), VideoValue: *amount(30)},
		},
		Payments: []factory.PaymentJSON{
			{ID: "p-d-4", DemandID: "d-4", MemberID: "diego", ClientID: "acme", Type: "video",
				Value: agency.DefaultVideoRate, Year: now.Year(), Month: int(now.Month()), CreatedAt: now.Add(-2 * time.Hour)},
		},
		Meetings: []factory.MeetingJSON{
			{ID: "mt-1", Type: "daily", ClientID: "acme", SquadID: "brand", HealthScore: score(8), CreatedAt: now.Add(-24 * time.Hour)},
			{ID: "mt-2", Type: "one_a_one", ClientID: "globex", MemberID: "bruno", Notes: "kickoff", CreatedAt: now.Add(-48 * time.Hour)},
		},
		Financials: []factory.FinancialsJSON{
			{Year: now.Year(), Month: int(now.Month()), TotalReceived: amount(19000), TaxAmount: amount(1900), MarketingAmount: amount(600)},
		},
		Expenses: []factory.ExpenseJSON{
			{ID: "e-1", Year: now.Year(), Month: int(now.Month()), Description: "Design tool licences", Category: "software", Amount: *amount(450)},
		},
	}
}

func churnWaveScenario(now time.Time) factory.SnapshotJSON {
	return factory.SnapshotJSON{
		Clients: []factory.ClientJSON{
			{ID: "north", Name: "Northwind", Status: "active", MonthlyValue: amount(9000), HealthScore: score(7)},
			{ID: "umbrella", Name: "Umbrella", Status: "churned", MonthlyValue: amount(5000), HealthScore: score(2)},
			{ID: "hooli", Name: "Hooli", Status: "inactive", MonthlyValue: amount(6000)},
			{ID: "stark", Name: "Stark Industries", Status: "active", MonthlyValue: amount(15000), HealthScore: score(9)},
		},
		Squads: []factory.SquadJSON{{ID: "core", Name: "Core"}},
		Members: []factory.MemberJSON{
			{ID: "eva", Name: "Eva Martins", RoleTitle: "Account Manager", Status: "active", SquadIDs: []string{"core"}},
			{ID: "felipe", Name: "Felipe Souza", RoleTitle: "Account Manager", Status: "active", SquadIDs: []string{"core"}},
			{ID: "gabi", Name: "Gabi Rocha", RoleTitle: "Strategist", Status: "inactive"},
		},
		Allocations: []factory.AllocationJSON{
			// eva: 3 active + 1 lost -> 75% retention
			{ID: "a-1", MemberID: "eva", ClientID: "north", MonthlyValue: *amount(2000), StartDate: day(now, -200)},
			{ID: "a-2", MemberID: "eva", ClientID: "stark", MonthlyValue: *amount(3500), StartDate: day(now, -60)},
			{ID: "a-3", MemberID: "eva", ClientID: "umbrella", MonthlyValue: *amount(1500), StartDate: day(now, -300), EndDate: day(now, -20)},
			// felipe: both clients lost
			{ID: "a-4", MemberID: "felipe", ClientID: "umbrella", MonthlyValue: *amount(1500), StartDate: day(now, -150), EndDate: day(now, -20)},
			{ID: "a-5", MemberID: "felipe", ClientID: "hooli", MonthlyValue: *amount(1800), StartDate: day(now, -100), EndDate: day(now, -5)},
		},
		Demands: []factory.DemandJSON{
			{ID: "d-10", Title: "Offboarding handover", ClientID: "umbrella", AssignedTo: "felipe",
				Priority: "high", Status: "done", CreatedAt: now.Add(-30 * 24 * time.Hour), CompletedAt: at(now, -28*24*time.Hour)},
			{ID: "d-11", Title: "Quarterly review deck", ClientID: "stark", AssignedTo: "eva",
				Priority: "medium", Status: "in_review", CreatedAt: now.Add(-5 * 24 * time.Hour), DueDate: at(now, 3*24*time.Hour)},
		},
	}
}

func slaPressureScenario(now time.Time) factory.SnapshotJSON {
	return factory.SnapshotJSON{
		Clients: []factory.ClientJSON{
			{ID: "wayne", Name: "Wayne Enterprises", Status: "active", MonthlyValue: amount(20000), HealthScore: score(6)},
		},
		Members: []factory.MemberJSON{
			{ID: "helena", Name: "Helena Prado", RoleTitle: "Designer", Status: "active"},
			{ID: "igor", Name: "Igor Nunes", RoleTitle: "Developer", Status: "active"},
		},
		Allocations: []factory.AllocationJSON{
			{ID: "a-h", MemberID: "helena", ClientID: "wayne", MonthlyValue: *amount(4000), StartDate: day(now, -90)},
			{ID: "a-i", MemberID: "igor", ClientID: "wayne", MonthlyValue: *amount(6000), StartDate: day(now, -90)},
		},
		Demands: []factory.DemandJSON{
			{ID: "d-late", Title: "Landing page fixes", ClientID: "wayne", AssignedTo: "igor",
				Priority: "urgent", Status: "in_progress", CreatedAt: now.Add(-96 * time.Hour), DueDate: at(now, -6*time.Hour)},
			{ID: "d-soon", Title: "Banner set", ClientID: "wayne", AssignedTo: "helena",
				Priority: "high", Status: "todo", CreatedAt: now.Add(-24 * time.Hour), DueDate: at(now, 10*time.Hour)},
			{ID: "d-budget", Title: "Tracking plan", ClientID: "wayne", AssignedTo: "igor",
				Priority: "medium", Status: "backlog", CreatedAt: now.Add(-45 * time.Hour), SLAHours: hours(48)},
			{ID: "d-blown", Title: "Analytics export", ClientID: "wayne", AssignedTo: "igor",
				Priority: "medium", Status: "in_review", CreatedAt: now.Add(-60 * time.Hour), SLAHours: hours(24)},
			{ID: "d-calm", Title: "Brand guidelines", ClientID: "wayne", AssignedTo: "helena",
				Priority: "low", Status: "backlog", CreatedAt: now.Add(-2 * time.Hour), DueDate: at(now, 14*24*time.Hour)},
			{ID: "d-done-late", Title: "Newsletter", ClientID: "wayne", AssignedTo: "helena",
				Priority: "medium", Status: "done", CreatedAt: now.Add(-100 * time.Hour), DueDate: at(now, -70*time.Hour),
				CompletedAt: at(now, -60*time.Hour)},
		},
	}
}

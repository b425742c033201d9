/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Entity bodies reuse
  the factory JSON types so the API and snapshot files share one shape;
  derived views get their own DTOs here.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Monetary values are decimal strings at currency scale ("1500.00").
  Group totals are rounded once at this boundary; line items carry the
  exact prorated value alongside the rounded one.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/snapshot.go: Entity JSON types
*/
package api

import (
	"math"
	"time"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/factory"
	"github.com/warp/agency-engine/finance"
	"github.com/warp/agency-engine/generic"
	"github.com/warp/agency-engine/overview"
	"github.com/warp/agency-engine/roster"
	"github.com/warp/agency-engine/sla"
)

// =============================================================================
// COMMON
// =============================================================================

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type PeriodDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  int    `json:"days"`
}

func toPeriodDTO(p generic.Period) PeriodDTO {
	return PeriodDTO{Start: p.Start.String(), End: p.End.String(), Days: p.DayCount()}
}

// =============================================================================
// COSTS
// =============================================================================

type LineItemDTO struct {
	AllocationID  string `json:"allocation_id"`
	MemberID      string `json:"member_id"`
	MemberName    string `json:"member_name"`
	ClientID      string `json:"client_id"`
	ClientName    string `json:"client_name"`
	ActiveDays    int    `json:"active_days"`
	PeriodDays    int    `json:"period_days"`
	MonthlyValue  string `json:"monthly_value"`
	Proportional  string `json:"proportional_value"`
	ExactProrated string `json:"exact_prorated_value"`
}

type GroupDTO struct {
	Key               string        `json:"key"`
	Name              string        `json:"name"`
	TotalMonthly      string        `json:"total_monthly"`
	TotalProportional string        `json:"total_proportional"`
	Items             []LineItemDTO `json:"items"`
}

type CostDashboardDTO struct {
	Period   PeriodDTO     `json:"period"`
	ByClient []GroupDTO    `json:"by_client"`
	ByMember []GroupDTO    `json:"by_member"`
	BySquad  []GroupDTO    `json:"by_squad"`
	ByRole   []GroupDTO    `json:"by_role"`
	Inactive []LineItemDTO `json:"inactive,omitempty"`
	Total    string        `json:"total"`
}

type ClientCostsDTO struct {
	Period PeriodDTO `json:"period"`
	GroupDTO
}

func toLineItemDTO(li finance.LineItem) LineItemDTO {
	return LineItemDTO{
		AllocationID:  string(li.AllocationID),
		MemberID:      string(li.MemberID),
		MemberName:    li.MemberName,
		ClientID:      string(li.ClientID),
		ClientName:    li.ClientName,
		ActiveDays:    li.ActiveDays,
		PeriodDays:    li.PeriodDays,
		MonthlyValue:  generic.FormatMoney(li.MonthlyValue),
		Proportional:  generic.FormatMoney(generic.RoundCurrency(li.Prorated)),
		ExactProrated: li.Prorated.String(),
	}
}

func toLineItemDTOs(items []finance.LineItem) []LineItemDTO {
	out := make([]LineItemDTO, 0, len(items))
	for _, li := range items {
		out = append(out, toLineItemDTO(li))
	}
	return out
}

func toGroupDTO(g finance.Group) GroupDTO {
	return GroupDTO{
		Key:               g.Key,
		Name:              g.Name,
		TotalMonthly:      generic.FormatMoney(g.RoundedMonthly()),
		TotalProportional: generic.FormatMoney(g.RoundedProportional()),
		Items:             toLineItemDTOs(g.Items),
	}
}

func toGroupDTOs(groups []finance.Group) []GroupDTO {
	out := make([]GroupDTO, 0, len(groups))
	for _, g := range groups {
		out = append(out, toGroupDTO(g))
	}
	return out
}

func toCostDashboardDTO(r *finance.CostReport) CostDashboardDTO {
	dto := CostDashboardDTO{
		Period:   toPeriodDTO(r.Period),
		ByClient: toGroupDTOs(r.ByClient),
		ByMember: toGroupDTOs(r.ByMember),
		BySquad:  toGroupDTOs(r.BySquad),
		ByRole:   toGroupDTOs(r.ByRole),
		Total:    generic.FormatMoney(r.RoundedTotal()),
	}
	if len(r.Inactive) > 0 {
		dto.Inactive = toLineItemDTOs(r.Inactive)
	}
	return dto
}

// =============================================================================
// PROFITABILITY AND SUMMARY
// =============================================================================

type ClientMarginDTO struct {
	ClientID        string  `json:"client_id"`
	ClientName      string  `json:"client_name"`
	Status          string  `json:"status"`
	ContractValue   string  `json:"contract_value"`
	TeamCost        string  `json:"team_cost"`
	OperationalCost string  `json:"operational_cost"`
	Margin          string  `json:"margin"`
	MarginPercent   *string `json:"margin_percent"`
}

type ProfitabilityDTO struct {
	Period  PeriodDTO         `json:"period"`
	Clients []ClientMarginDTO `json:"clients"`
}

func toProfitabilityDTO(period generic.Period, rows []finance.ClientMargin) ProfitabilityDTO {
	out := ProfitabilityDTO{Period: toPeriodDTO(period), Clients: make([]ClientMarginDTO, 0, len(rows))}
	for _, m := range rows {
		row := ClientMarginDTO{
			ClientID:        string(m.ClientID),
			ClientName:      m.ClientName,
			Status:          string(m.Status),
			ContractValue:   generic.FormatMoney(m.ContractValue),
			TeamCost:        generic.FormatMoney(generic.RoundCurrency(m.TeamCost)),
			OperationalCost: generic.FormatMoney(m.OperationalCost),
			Margin:          generic.FormatMoney(generic.RoundCurrency(m.Margin)),
		}
		if m.MarginPercent != nil {
			pct := m.MarginPercent.StringFixed(1)
			row.MarginPercent = &pct
		}
		out.Clients = append(out.Clients, row)
	}
	return out
}

type SummaryDTO struct {
	Period        PeriodDTO             `json:"period"`
	Recorded      bool                  `json:"recorded"`
	Received      string                `json:"total_received"`
	Tax           string                `json:"tax_amount"`
	Marketing     string                `json:"marketing_amount"`
	ExtraExpenses string                `json:"extra_expenses"`
	TeamCost      string                `json:"team_cost"`
	Net           string                `json:"net"`
	Receivable    string                `json:"receivable"`
	Expenses      []factory.ExpenseJSON `json:"expenses"`
}

func toSummaryDTO(s finance.Summary) SummaryDTO {
	dto := SummaryDTO{
		Period:        toPeriodDTO(s.Period),
		Recorded:      s.Recorded,
		Received:      generic.FormatMoney(s.Received),
		Tax:           generic.FormatMoney(s.Tax),
		Marketing:     generic.FormatMoney(s.Marketing),
		ExtraExpenses: generic.FormatMoney(s.ExtraExpenses),
		TeamCost:      generic.FormatMoney(generic.RoundCurrency(s.TeamCost)),
		Net:           generic.FormatMoney(generic.RoundCurrency(s.Net)),
		Receivable:    generic.FormatMoney(s.Receivable),
		Expenses:      make([]factory.ExpenseJSON, 0, len(s.Expenses)),
	}
	for _, e := range s.Expenses {
		dto.Expenses = append(dto.Expenses, factory.ExpenseToJSON(e))
	}
	return dto
}

// =============================================================================
// ROSTER
// =============================================================================

type MemberMetricsDTO struct {
	MemberID        string   `json:"member_id"`
	Name            string   `json:"name"`
	Role            string   `json:"role"`
	Status          string   `json:"status"`
	ActiveClients   int      `json:"active_clients"`
	LostClients     int      `json:"lost_clients"`
	TotalClients    int      `json:"total_clients"`
	HasHistory      bool     `json:"has_history"`
	RetentionRate   int      `json:"retention_rate"`
	ChurnRate       int      `json:"churn_rate"`
	NewClients      int      `json:"new_clients"`
	ItemsCreated    int      `json:"items_created"`
	ItemsCompleted  int      `json:"items_completed"`
	ItemsOverdue    int      `json:"items_overdue"`
	AvgCycleHours   float64  `json:"avg_cycle_hours"`
	AvgHealthScore  *float64 `json:"avg_health_score"`
	ActiveClientIDs []string `json:"active_client_ids"`
}

type RosterDTO struct {
	Window  string             `json:"window"`
	At      time.Time          `json:"at"`
	Members []MemberMetricsDTO `json:"members"`
}

// round1 rounds a displayed average to one decimal.
func round1(v float64) float64 { return math.Round(v*10) / 10 }

func toMemberMetricsDTO(m roster.MemberMetrics) MemberMetricsDTO {
	dto := MemberMetricsDTO{
		MemberID:        string(m.MemberID),
		Name:            m.Name,
		Role:            m.Role,
		Status:          string(m.Status),
		ActiveClients:   m.ActiveClients,
		LostClients:     m.LostClients,
		TotalClients:    m.TotalClients,
		HasHistory:      m.HasHistory,
		RetentionRate:   m.RetentionRate,
		ChurnRate:       m.ChurnRate,
		NewClients:      m.NewClients,
		ItemsCreated:    m.ItemsCreated,
		ItemsCompleted:  m.ItemsCompleted,
		ItemsOverdue:    m.ItemsOverdue,
		AvgCycleHours:   round1(m.AvgCycleHours),
		ActiveClientIDs: make([]string, 0, len(m.ActiveClientIDs)),
	}
	if m.AvgHealthScore != nil {
		avg := round1(*m.AvgHealthScore)
		dto.AvgHealthScore = &avg
	}
	for _, id := range m.ActiveClientIDs {
		dto.ActiveClientIDs = append(dto.ActiveClientIDs, string(id))
	}
	return dto
}

// =============================================================================
// DEMANDS
// =============================================================================

type LabeledDemandDTO struct {
	factory.DemandJSON
	SLA             string   `json:"sla_status"`
	InProgressHours *float64 `json:"in_progress_hours,omitempty"`
}

type BoardDTO struct {
	At       time.Time                     `json:"at"`
	Columns  map[string][]LabeledDemandDTO `json:"columns"`
	ByStatus map[string]int                `json:"by_status"`
	BySLA    map[string]int                `json:"by_sla"`
	Total    int                           `json:"total"`
}

func toLabeledDTO(l sla.Labeled) LabeledDemandDTO {
	return LabeledDemandDTO{
		DemandJSON:      factory.DemandToJSON(l.Demand),
		SLA:             string(l.SLA),
		InProgressHours: sla.InProgressHours(l.Demand.History),
	}
}

func toLabeledDTOs(ls []sla.Labeled) []LabeledDemandDTO {
	out := make([]LabeledDemandDTO, 0, len(ls))
	for _, l := range ls {
		out = append(out, toLabeledDTO(l))
	}
	return out
}

func toBoardDTO(b sla.Board) BoardDTO {
	dto := BoardDTO{
		At:       b.At,
		Columns:  make(map[string][]LabeledDemandDTO, len(b.Columns)),
		ByStatus: make(map[string]int, len(b.ByStatus)),
		BySLA:    make(map[string]int, len(b.BySLA)),
		Total:    b.Total,
	}
	for st, col := range b.Columns {
		dto.Columns[string(st)] = toLabeledDTOs(col)
	}
	for st, n := range b.ByStatus {
		dto.ByStatus[string(st)] = n
	}
	for st, n := range b.BySLA {
		dto.BySLA[string(st)] = n
	}
	return dto
}

// MoveDemandRequest moves a demand to another column.
type MoveDemandRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// EndAllocationRequest closes an open allocation.
type EndAllocationRequest struct {
	EndDate string `json:"end_date"`
}

// =============================================================================
// DESIGN PAYMENTS
// =============================================================================

type RateCardDTO struct {
	MemberID   string `json:"member_id"`
	MemberName string `json:"member_name"`
	ArteValue  string `json:"arte_value"`
	VideoValue string `json:"video_value"`
	Configured bool   `json:"configured"`
}

func toRateCardDTOs(cards []finance.RateCard) []RateCardDTO {
	out := make([]RateCardDTO, 0, len(cards))
	for _, c := range cards {
		out = append(out, RateCardDTO{
			MemberID:   string(c.MemberID),
			MemberName: c.MemberName,
			ArteValue:  generic.FormatMoney(c.Rate.ArteValue),
			VideoValue: generic.FormatMoney(c.Rate.VideoValue),
			Configured: c.Configured,
		})
	}
	return out
}

// ApprovalDTO is the result of approving a design demand.
type ApprovalDTO struct {
	Demand  LabeledDemandDTO    `json:"demand"`
	Payment factory.PaymentJSON `json:"payment"`
}

func toPaymentJSONs(ps []agency.DesignPayment) []factory.PaymentJSON {
	out := make([]factory.PaymentJSON, 0, len(ps))
	for _, p := range ps {
		out = append(out, factory.PaymentToJSON(p))
	}
	return out
}

type MemberPaymentsDTO struct {
	MemberID       string                `json:"member_id"`
	MemberName     string                `json:"member_name"`
	Artes          int                   `json:"artes"`
	Videos         int                   `json:"videos"`
	Total          string                `json:"total"`
	ArteRate       string                `json:"arte_rate"`
	VideoRate      string                `json:"video_rate"`
	RateConfigured bool                  `json:"rate_configured"`
	Payments       []factory.PaymentJSON `json:"payments"`
}

type PaymentSummaryDTO struct {
	Year    int                 `json:"year"`
	Month   int                 `json:"month"`
	Members []MemberPaymentsDTO `json:"members"`
	Total   string              `json:"total"`
}

func toPaymentSummaryDTO(r *finance.PaymentReport) PaymentSummaryDTO {
	dto := PaymentSummaryDTO{
		Year:    r.Year,
		Month:   int(r.Month),
		Members: make([]MemberPaymentsDTO, 0, len(r.Members)),
		Total:   generic.FormatMoney(r.Total),
	}
	for _, m := range r.Members {
		dto.Members = append(dto.Members, MemberPaymentsDTO{
			MemberID:       string(m.MemberID),
			MemberName:     m.MemberName,
			Artes:          m.Artes,
			Videos:         m.Videos,
			Total:          generic.FormatMoney(m.Total),
			ArteRate:       generic.FormatMoney(m.ArteRate),
			VideoRate:      generic.FormatMoney(m.VideoRate),
			RateConfigured: m.RateConfigured,
			Payments:       toPaymentJSONs(m.Payments),
		})
	}
	return dto
}

// =============================================================================
// DASHBOARD
// =============================================================================

type StatsDTO struct {
	ClientsByStatus   map[string]int `json:"clients_by_status"`
	TotalClients      int            `json:"total_clients"`
	Receivable        string         `json:"receivable"`
	ActiveMembers     int            `json:"active_members"`
	TotalMembers      int            `json:"total_members"`
	Squads            int            `json:"squads"`
	DemandsByStatus   map[string]int `json:"demands_by_status"`
	OverdueDemands    int            `json:"overdue_demands"`
	MeetingsThisMonth int            `json:"meetings_this_month"`
}

func toStatsDTO(s overview.Stats) StatsDTO {
	dto := StatsDTO{
		ClientsByStatus:   make(map[string]int, len(s.ClientsByStatus)),
		TotalClients:      s.TotalClients,
		Receivable:        generic.FormatMoney(s.Receivable),
		ActiveMembers:     s.ActiveMembers,
		TotalMembers:      s.TotalMembers,
		Squads:            s.Squads,
		DemandsByStatus:   make(map[string]int, len(s.DemandsByStatus)),
		OverdueDemands:    s.OverdueDemands,
		MeetingsThisMonth: s.MeetingsThisMonth,
	}
	for st, n := range s.ClientsByStatus {
		dto.ClientsByStatus[string(st)] = n
	}
	for st, n := range s.DemandsByStatus {
		dto.DemandsByStatus[string(st)] = n
	}
	return dto
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

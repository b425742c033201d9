/*
Package factory converts JSON documents into agency entities.

PURPOSE:
  Snapshots can be loaded from a JSON file (CLI, fixtures, scenarios) and
  single entities arrive as JSON over the API. Both go through the same
  conversion and validation so the engine only ever sees validated data.

VALIDATION (two passes):
  1. JSON schema (gojsonschema): shape, enums, date formats
  2. agency.Validate*: cross-field rules (end >= start, score in [0, 10])
  Snapshots additionally pass the referential integrity check.

JSON SHAPE:
  {
    "clients":     [{"id": "c-1", "name": "Acme", "status": "active",
                     "monthly_value": "5000.00", "health_score": 8}],
    "squads":      [{"id": "s-1", "name": "Growth"}],
    "members":     [{"id": "m-1", "name": "Ana", "role_title": "Designer",
                     "status": "active", "squad_ids": ["s-1"]}],
    "allocations": [{"id": "a-1", "member_id": "m-1", "client_id": "c-1",
                     "monthly_value": "3000", "start_date": "2025-03-01"}],
    "demands":     [{"id": "d-1", "title": "Landing page", "priority": "high",
                     "status": "todo", "created_at": "2025-03-02T09:00:00Z",
                     "design_type": "arte"}],
    "rates":       [{"member_id": "m-1", "arte_value": "12", "video_value": "25"}],
    "payments":    [{"id": "p-1", "demand_id": "d-1", "member_id": "m-1",
                     "design_type": "arte", "value": "12", "year": 2025,
                     "month": 3, "created_at": "2025-03-04T10:00:00Z"}]
  }

SEE ALSO:
  - schema.go: JSON schema
  - api/scenarios.go: Demo snapshots built with this factory
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xeipuuv/gojsonschema"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type SnapshotJSON struct {
	Clients     []ClientJSON     `json:"clients,omitempty"`
	Squads      []SquadJSON      `json:"squads,omitempty"`
	Members     []MemberJSON     `json:"members,omitempty"`
	Allocations []AllocationJSON `json:"allocations,omitempty"`
	Demands     []DemandJSON     `json:"demands,omitempty"`
	Meetings    []MeetingJSON    `json:"meetings,omitempty"`
	Financials  []FinancialsJSON `json:"financials,omitempty"`
	Expenses    []ExpenseJSON    `json:"expenses,omitempty"`
	Rates       []RateJSON       `json:"rates,omitempty"`
	Payments    []PaymentJSON    `json:"payments,omitempty"`
}

type ClientJSON struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Segment           string           `json:"segment,omitempty"`
	Status            string           `json:"status"`
	MonthlyValue      *decimal.Decimal `json:"monthly_value,omitempty"`
	MinContractMonths *int             `json:"min_contract_months,omitempty"`
	OperationalCost   *decimal.Decimal `json:"operational_cost,omitempty"`
	StartDate         string           `json:"start_date,omitempty"`
	EndDate           string           `json:"end_date,omitempty"`
	HealthScore       *float64         `json:"health_score,omitempty"`
	CreatedAt         *time.Time       `json:"created_at,omitempty"`
}

type SquadJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type MemberJSON struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	RoleTitle string   `json:"role_title,omitempty"`
	Status    string   `json:"status"`
	Email     string   `json:"email,omitempty"`
	SquadIDs  []string `json:"squad_ids,omitempty"`
}

type AllocationJSON struct {
	ID           string          `json:"id"`
	MemberID     string          `json:"member_id"`
	ClientID     string          `json:"client_id"`
	MonthlyValue decimal.Decimal `json:"monthly_value"`
	StartDate    string          `json:"start_date"`
	EndDate      string          `json:"end_date,omitempty"`
}

type StatusChangeJSON struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
	Note      string    `json:"note,omitempty"`
}

type DemandJSON struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	ClientID    string             `json:"client_id,omitempty"`
	AssignedTo  string             `json:"assigned_to,omitempty"`
	Priority    string             `json:"priority"`
	Status      string             `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	DueDate     *time.Time         `json:"due_date,omitempty"`
	SLAHours    *int               `json:"sla_hours,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	DesignType  string             `json:"design_type,omitempty"`
	History     []StatusChangeJSON `json:"history,omitempty"`
}

type MeetingJSON struct {
	ID          string    `json:"id"`
	Type        string    `json:"meeting_type"`
	ClientID    string    `json:"client_id"`
	SquadID     string    `json:"squad_id,omitempty"`
	MemberID    string    `json:"member_id,omitempty"`
	HealthScore *float64  `json:"health_score,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type FinancialsJSON struct {
	Year            int              `json:"year"`
	Month           int              `json:"month"`
	TotalReceived   *decimal.Decimal `json:"total_received,omitempty"`
	TaxAmount       *decimal.Decimal `json:"tax_amount,omitempty"`
	MarketingAmount *decimal.Decimal `json:"marketing_amount,omitempty"`
}

type ExpenseJSON struct {
	ID          string          `json:"id"`
	Year        int             `json:"year"`
	Month       int             `json:"month"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate string          `json:"payment_date,omitempty"`
}

type RateJSON struct {
	MemberID   string          `json:"member_id"`
	ArteValue  decimal.Decimal `json:"arte_value"`
	VideoValue decimal.Decimal `json:"video_value"`
}

type PaymentJSON struct {
	ID        string          `json:"id"`
	DemandID  string          `json:"demand_id"`
	MemberID  string          `json:"member_id"`
	ClientID  string          `json:"client_id,omitempty"`
	Type      string          `json:"design_type"`
	Value     decimal.Decimal `json:"value"`
	Year      int             `json:"year"`
	Month     int             `json:"month"`
	CreatedAt time.Time       `json:"created_at"`
}

// =============================================================================
// SNAPSHOT FACTORY
// =============================================================================

// SnapshotFactory converts JSON documents to snapshots.
type SnapshotFactory struct {
	schema *gojsonschema.Schema
}

// NewSnapshotFactory compiles the embedded schema.
func NewSnapshotFactory() (*SnapshotFactory, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(snapshotSchema))
	if err != nil {
		return nil, fmt.Errorf("compile snapshot schema: %w", err)
	}
	return &SnapshotFactory{schema: schema}, nil
}

// ParseSnapshot validates raw JSON against the schema, converts it and checks
// every entity and reference. takenAt stamps the snapshot.
func (f *SnapshotFactory) ParseSnapshot(raw []byte, takenAt time.Time) (*agency.Snapshot, error) {
	if err := f.ValidateDocument(raw); err != nil {
		return nil, err
	}
	var sj SnapshotJSON
	if err := json.Unmarshal(raw, &sj); err != nil {
		return nil, fmt.Errorf("%w: %v", generic.ErrMalformedDocument, err)
	}
	data, err := f.FromJSON(sj)
	if err != nil {
		return nil, err
	}
	snap := agency.NewSnapshot(data, takenAt)
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

// ValidateDocument runs the schema pass only.
func (f *SnapshotFactory) ValidateDocument(raw []byte) error {
	result, err := f.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", generic.ErrMalformedDocument, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return &SchemaError{Problems: errs}
	}
	return nil
}

// SchemaError lists every schema violation of a document.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "snapshot validation failed: " + strings.Join(e.Problems, "; ")
}

func (e *SchemaError) Unwrap() error { return generic.ErrMalformedDocument }

// FromJSON converts every section of sj.
func (f *SnapshotFactory) FromJSON(sj SnapshotJSON) (agency.Data, error) {
	var d agency.Data
	for _, cj := range sj.Clients {
		c, err := ClientFromJSON(cj)
		if err != nil {
			return agency.Data{}, fmt.Errorf("client %s: %w", cj.ID, err)
		}
		d.Clients = append(d.Clients, c)
	}
	for _, sq := range sj.Squads {
		d.Squads = append(d.Squads, SquadFromJSON(sq))
	}
	for _, mj := range sj.Members {
		d.Members = append(d.Members, MemberFromJSON(mj))
	}
	for _, aj := range sj.Allocations {
		a, err := AllocationFromJSON(aj)
		if err != nil {
			return agency.Data{}, fmt.Errorf("allocation %s: %w", aj.ID, err)
		}
		d.Allocations = append(d.Allocations, a)
	}
	for _, dj := range sj.Demands {
		d.Demands = append(d.Demands, DemandFromJSON(dj))
	}
	for _, mj := range sj.Meetings {
		d.Meetings = append(d.Meetings, MeetingFromJSON(mj))
	}
	for _, fj := range sj.Financials {
		d.Financials = append(d.Financials, agency.MonthlyFinancials{
			Year:            fj.Year,
			Month:           time.Month(fj.Month),
			TotalReceived:   fj.TotalReceived,
			TaxAmount:       fj.TaxAmount,
			MarketingAmount: fj.MarketingAmount,
		})
	}
	for _, ej := range sj.Expenses {
		e, err := ExpenseFromJSON(ej)
		if err != nil {
			return agency.Data{}, fmt.Errorf("expense %s: %w", ej.ID, err)
		}
		d.Expenses = append(d.Expenses, e)
	}
	for _, rj := range sj.Rates {
		r := RateFromJSON(rj)
		if err := agency.ValidateMemberRate(r); err != nil {
			return agency.Data{}, fmt.Errorf("rate %s: %w", rj.MemberID, err)
		}
		d.Rates = append(d.Rates, r)
	}
	for _, pj := range sj.Payments {
		d.Payments = append(d.Payments, PaymentFromJSON(pj))
	}
	return d, nil
}

// ToJSON converts a snapshot back to its document form.
func (f *SnapshotFactory) ToJSON(snap *agency.Snapshot) SnapshotJSON {
	var sj SnapshotJSON
	for _, c := range snap.Clients {
		sj.Clients = append(sj.Clients, ClientToJSON(c))
	}
	for _, sq := range snap.Squads {
		sj.Squads = append(sj.Squads, SquadJSON{ID: string(sq.ID), Name: sq.Name, Description: sq.Description})
	}
	for _, m := range snap.Members {
		sj.Members = append(sj.Members, MemberToJSON(m))
	}
	for _, a := range snap.Allocations {
		sj.Allocations = append(sj.Allocations, AllocationToJSON(a))
	}
	for _, d := range snap.Demands {
		sj.Demands = append(sj.Demands, DemandToJSON(d))
	}
	for _, m := range snap.Meetings {
		sj.Meetings = append(sj.Meetings, MeetingToJSON(m))
	}
	for _, fin := range snap.Financials {
		sj.Financials = append(sj.Financials, FinancialsJSON{
			Year: fin.Year, Month: int(fin.Month),
			TotalReceived: fin.TotalReceived, TaxAmount: fin.TaxAmount, MarketingAmount: fin.MarketingAmount,
		})
	}
	for _, e := range snap.Expenses {
		sj.Expenses = append(sj.Expenses, ExpenseToJSON(e))
	}
	for _, r := range snap.Rates {
		sj.Rates = append(sj.Rates, RateJSON{MemberID: string(r.MemberID), ArteValue: r.ArteValue, VideoValue: r.VideoValue})
	}
	for _, p := range snap.Payments {
		sj.Payments = append(sj.Payments, PaymentToJSON(p))
	}
	return sj
}

// =============================================================================
// ENTITY CONVERSION
// =============================================================================

func ClientFromJSON(cj ClientJSON) (agency.Client, error) {
	c := agency.Client{
		ID:                agency.ClientID(cj.ID),
		Name:              strings.TrimSpace(cj.Name),
		Segment:           cj.Segment,
		Status:            agency.ClientStatus(cj.Status),
		MonthlyValue:      cj.MonthlyValue,
		MinContractMonths: cj.MinContractMonths,
		OperationalCost:   cj.OperationalCost,
		HealthScore:       cj.HealthScore,
	}
	if c.Status == "" {
		c.Status = agency.ClientOnboarding
	}
	if cj.CreatedAt != nil {
		c.CreatedAt = *cj.CreatedAt
	}
	var err error
	if c.StartDate, err = optionalDate("start_date", cj.StartDate); err != nil {
		return agency.Client{}, err
	}
	if c.EndDate, err = optionalDate("end_date", cj.EndDate); err != nil {
		return agency.Client{}, err
	}
	return c, agency.ValidateClient(c)
}

func ClientToJSON(c agency.Client) ClientJSON {
	cj := ClientJSON{
		ID:                string(c.ID),
		Name:              c.Name,
		Segment:           c.Segment,
		Status:            string(c.Status),
		MonthlyValue:      c.MonthlyValue,
		MinContractMonths: c.MinContractMonths,
		OperationalCost:   c.OperationalCost,
		HealthScore:       c.HealthScore,
		StartDate:         dateString(c.StartDate),
		EndDate:           dateString(c.EndDate),
	}
	if !c.CreatedAt.IsZero() {
		at := c.CreatedAt
		cj.CreatedAt = &at
	}
	return cj
}

func SquadFromJSON(sj SquadJSON) agency.Squad {
	return agency.Squad{ID: agency.SquadID(sj.ID), Name: strings.TrimSpace(sj.Name), Description: sj.Description}
}

func MemberFromJSON(mj MemberJSON) agency.Member {
	m := agency.Member{
		ID:        agency.MemberID(mj.ID),
		Name:      strings.TrimSpace(mj.Name),
		RoleTitle: mj.RoleTitle,
		Status:    agency.MemberStatus(mj.Status),
		Email:     mj.Email,
	}
	if m.Status == "" {
		m.Status = agency.MemberActive
	}
	for _, id := range mj.SquadIDs {
		m.SquadIDs = append(m.SquadIDs, agency.SquadID(id))
	}
	return m
}

func MemberToJSON(m agency.Member) MemberJSON {
	mj := MemberJSON{ID: string(m.ID), Name: m.Name, RoleTitle: m.RoleTitle, Status: string(m.Status), Email: m.Email}
	for _, id := range m.SquadIDs {
		mj.SquadIDs = append(mj.SquadIDs, string(id))
	}
	return mj
}

func AllocationFromJSON(aj AllocationJSON) (agency.Allocation, error) {
	start, err := generic.ParseDate(aj.StartDate)
	if err != nil {
		return agency.Allocation{}, &generic.FieldError{Field: "start_date", Err: generic.ErrInvalidInterval}
	}
	end, err := optionalDate("end_date", aj.EndDate)
	if err != nil {
		return agency.Allocation{}, err
	}
	a := agency.Allocation{
		ID:           agency.AllocationID(aj.ID),
		MemberID:     agency.MemberID(aj.MemberID),
		ClientID:     agency.ClientID(aj.ClientID),
		MonthlyValue: aj.MonthlyValue,
		StartDate:    start,
		EndDate:      end,
	}
	return a, agency.ValidateAllocation(a)
}

func AllocationToJSON(a agency.Allocation) AllocationJSON {
	return AllocationJSON{
		ID:           string(a.ID),
		MemberID:     string(a.MemberID),
		ClientID:     string(a.ClientID),
		MonthlyValue: a.MonthlyValue,
		StartDate:    a.StartDate.String(),
		EndDate:      dateString(a.EndDate),
	}
}

func DemandFromJSON(dj DemandJSON) agency.Demand {
	d := agency.Demand{
		ID:          agency.DemandID(dj.ID),
		Title:       strings.TrimSpace(dj.Title),
		Priority:    agency.Priority(dj.Priority),
		Status:      agency.DemandStatus(dj.Status),
		CreatedAt:   dj.CreatedAt,
		DueDate:     dj.DueDate,
		SLAHours:    dj.SLAHours,
		CompletedAt: dj.CompletedAt,
		DesignType:  agency.DesignType(dj.DesignType),
	}
	if d.Priority == "" {
		d.Priority = agency.PriorityMedium
	}
	if d.Status == "" {
		d.Status = agency.DemandBacklog
	}
	if dj.ClientID != "" {
		id := agency.ClientID(dj.ClientID)
		d.ClientID = &id
	}
	if dj.AssignedTo != "" {
		id := agency.MemberID(dj.AssignedTo)
		d.AssignedTo = &id
	}
	for _, h := range dj.History {
		d.History = append(d.History, agency.StatusChange{
			From: agency.DemandStatus(h.From), To: agency.DemandStatus(h.To), ChangedAt: h.ChangedAt, Note: h.Note,
		})
	}
	return d
}

func DemandToJSON(d agency.Demand) DemandJSON {
	dj := DemandJSON{
		ID:          string(d.ID),
		Title:       d.Title,
		Priority:    string(d.Priority),
		Status:      string(d.Status),
		CreatedAt:   d.CreatedAt,
		DueDate:     d.DueDate,
		SLAHours:    d.SLAHours,
		CompletedAt: d.CompletedAt,
		DesignType:  string(d.DesignType),
	}
	if d.ClientID != nil {
		dj.ClientID = string(*d.ClientID)
	}
	if d.AssignedTo != nil {
		dj.AssignedTo = string(*d.AssignedTo)
	}
	for _, h := range d.History {
		dj.History = append(dj.History, StatusChangeJSON{From: string(h.From), To: string(h.To), ChangedAt: h.ChangedAt, Note: h.Note})
	}
	return dj
}

func MeetingFromJSON(mj MeetingJSON) agency.Meeting {
	m := agency.Meeting{
		ID:          agency.MeetingID(mj.ID),
		Type:        agency.MeetingType(mj.Type),
		ClientID:    agency.ClientID(mj.ClientID),
		HealthScore: mj.HealthScore,
		Notes:       mj.Notes,
		CreatedAt:   mj.CreatedAt,
	}
	if mj.SquadID != "" {
		id := agency.SquadID(mj.SquadID)
		m.SquadID = &id
	}
	if mj.MemberID != "" {
		id := agency.MemberID(mj.MemberID)
		m.MemberID = &id
	}
	return m
}

func MeetingToJSON(m agency.Meeting) MeetingJSON {
	mj := MeetingJSON{
		ID: string(m.ID), Type: string(m.Type), ClientID: string(m.ClientID),
		HealthScore: m.HealthScore, Notes: m.Notes, CreatedAt: m.CreatedAt,
	}
	if m.SquadID != nil {
		mj.SquadID = string(*m.SquadID)
	}
	if m.MemberID != nil {
		mj.MemberID = string(*m.MemberID)
	}
	return mj
}

func ExpenseFromJSON(ej ExpenseJSON) (agency.Expense, error) {
	paid, err := optionalDate("payment_date", ej.PaymentDate)
	if err != nil {
		return agency.Expense{}, err
	}
	if ej.Amount.IsNegative() {
		return agency.Expense{}, &generic.FieldError{Field: "amount", Err: generic.ErrNegativeAmount}
	}
	return agency.Expense{
		ID: ej.ID, Year: ej.Year, Month: time.Month(ej.Month),
		Description: ej.Description, Category: ej.Category, Amount: ej.Amount, PaymentDate: paid,
	}, nil
}

func ExpenseToJSON(e agency.Expense) ExpenseJSON {
	return ExpenseJSON{
		ID: e.ID, Year: e.Year, Month: int(e.Month), Description: e.Description,
		Category: e.Category, Amount: e.Amount, PaymentDate: dateString(e.PaymentDate),
	}
}

func RateFromJSON(rj RateJSON) agency.MemberRate {
	return agency.MemberRate{MemberID: agency.MemberID(rj.MemberID), ArteValue: rj.ArteValue, VideoValue: rj.VideoValue}
}

func PaymentFromJSON(pj PaymentJSON) agency.DesignPayment {
	p := agency.DesignPayment{
		ID:        agency.PaymentID(pj.ID),
		DemandID:  agency.DemandID(pj.DemandID),
		MemberID:  agency.MemberID(pj.MemberID),
		Type:      agency.DesignType(pj.Type),
		Value:     pj.Value,
		Year:      pj.Year,
		Month:     time.Month(pj.Month),
		CreatedAt: pj.CreatedAt,
	}
	if pj.ClientID != "" {
		id := agency.ClientID(pj.ClientID)
		p.ClientID = &id
	}
	return p
}

func PaymentToJSON(p agency.DesignPayment) PaymentJSON {
	pj := PaymentJSON{
		ID: string(p.ID), DemandID: string(p.DemandID), MemberID: string(p.MemberID),
		Type: string(p.Type), Value: p.Value, Year: p.Year, Month: int(p.Month), CreatedAt: p.CreatedAt,
	}
	if p.ClientID != nil {
		pj.ClientID = string(*p.ClientID)
	}
	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func optionalDate(field, s string) (*generic.TimePoint, error) {
	if s == "" {
		return nil, nil
	}
	tp, err := generic.ParseDate(s)
	if err != nil {
		return nil, &generic.FieldError{Field: field, Err: fmt.Errorf("%w: %v", generic.ErrInvalidPeriod, err)}
	}
	return &tp, nil
}

func dateString(tp *generic.TimePoint) string {
	if tp == nil {
		return ""
	}
	return tp.String()
}

/*
Package agency defines the entities the engine reads.

PURPOSE:
  Clients, team members, squads, allocations, demands and meetings as plain
  values. The persistence layer owns them; the engine only ever sees an
  immutable Snapshot of them for the duration of one computation.

KEY CONCEPTS:
  - Allocation: member -> client at a monthly rate over [StartDate, EndDate]
  - Demand: a kanban work item with optional due date and SLA budget
  - DesignPayment: what a member earns for an approved design demand
  - Snapshot: a referentially consistent bundle with ID indexes

VALIDATION:
  Validate* functions in validate.go run where entities are created or
  mutated (factory, store). Aggregators trust validated data.

SEE ALSO:
  - snapshot.go: Snapshot and lookups
  - validate.go: Mutation-boundary rules
*/
package agency

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/agency-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ClientID string
type MemberID string
type SquadID string
type AllocationID string
type DemandID string
type MeetingID string
type PaymentID string

// =============================================================================
// CLIENT
// =============================================================================

type ClientStatus string

const (
	ClientActive     ClientStatus = "active"
	ClientOnboarding ClientStatus = "onboarding"
	ClientChurned    ClientStatus = "churned"
	ClientInactive   ClientStatus = "inactive"
)

// IsLost reports whether the client has lapsed (churned or inactive).
func (s ClientStatus) IsLost() bool { return s == ClientChurned || s == ClientInactive }

func (s ClientStatus) Valid() bool {
	switch s {
	case ClientActive, ClientOnboarding, ClientChurned, ClientInactive:
		return true
	}
	return false
}

type Client struct {
	ID      ClientID
	Name    string
	Segment string
	Status  ClientStatus

	// Contract
	MonthlyValue      *decimal.Decimal
	MinContractMonths *int
	OperationalCost   *decimal.Decimal
	StartDate         *generic.TimePoint
	EndDate           *generic.TimePoint

	// HealthScore mirrors the latest meeting observation, in [0, 10].
	HealthScore *float64

	CreatedAt time.Time
}

// =============================================================================
// TEAM
// =============================================================================

type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberInactive MemberStatus = "inactive"
	MemberVacation MemberStatus = "vacation"
)

func (s MemberStatus) Valid() bool {
	switch s {
	case MemberActive, MemberInactive, MemberVacation:
		return true
	}
	return false
}

type Member struct {
	ID        MemberID
	Name      string
	RoleTitle string
	Status    MemberStatus
	Email     string
	SquadIDs  []SquadID
}

type Squad struct {
	ID          SquadID
	Name        string
	Description string
}

// Allocation binds one member to one client for an inclusive day range.
type Allocation struct {
	ID           AllocationID
	MemberID     MemberID
	ClientID     ClientID
	MonthlyValue decimal.Decimal
	StartDate    generic.TimePoint
	EndDate      *generic.TimePoint
}

// Interval returns the allocation's day range.
func (a Allocation) Interval() generic.Interval {
	return generic.Interval{Start: a.StartDate, End: a.EndDate}
}

// IsActive reports whether the allocation covers the calendar day of at.
func (a Allocation) IsActive(at generic.TimePoint) bool {
	return a.Interval().IsActive(at)
}

// =============================================================================
// DEMANDS
// =============================================================================

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type DemandStatus string

const (
	DemandBacklog    DemandStatus = "backlog"
	DemandTodo       DemandStatus = "todo"
	DemandInProgress DemandStatus = "in_progress"
	DemandInReview   DemandStatus = "in_review"
	DemandDone       DemandStatus = "done"
)

// DemandStatuses lists the workflow columns in board order.
var DemandStatuses = []DemandStatus{DemandBacklog, DemandTodo, DemandInProgress, DemandInReview, DemandDone}

func (s DemandStatus) Valid() bool {
	for _, v := range DemandStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type Demand struct {
	ID          DemandID
	Title       string
	ClientID    *ClientID
	AssignedTo  *MemberID
	Priority    Priority
	Status      DemandStatus
	CreatedAt   time.Time
	DueDate     *time.Time
	SLAHours    *int
	CompletedAt *time.Time
	// DesignType is empty unless the demand is a paid design piece.
	DesignType DesignType
	History    []StatusChange
}

// IsDone reports whether the demand sits in the done column.
func (d Demand) IsDone() bool { return d.Status == DemandDone }

// StatusChange is one kanban column transition.
type StatusChange struct {
	From      DemandStatus
	To        DemandStatus
	ChangedAt time.Time
	Note      string
}

// =============================================================================
// MEETINGS
// =============================================================================

type MeetingType string

const (
	MeetingDaily    MeetingType = "daily"
	MeetingOneOnOne MeetingType = "one_a_one"
)

type Meeting struct {
	ID          MeetingID
	Type        MeetingType
	ClientID    ClientID
	SquadID     *SquadID
	MemberID    *MemberID
	HealthScore *float64
	Notes       string
	CreatedAt   time.Time
}

// =============================================================================
// FINANCIALS
// =============================================================================

// MonthlyFinancials holds the manually entered figures of one month.
type MonthlyFinancials struct {
	Year            int
	Month           time.Month
	TotalReceived   *decimal.Decimal
	TaxAmount       *decimal.Decimal
	MarketingAmount *decimal.Decimal
}

type Expense struct {
	ID          string
	Year        int
	Month       time.Month
	Description string
	Category    string
	Amount      decimal.Decimal
	PaymentDate *generic.TimePoint
}

package agency

import (
	"fmt"
	"strings"
	"time"

	"github.com/warp/agency-engine/generic"
)

// =============================================================================
// MUTATION-BOUNDARY VALIDATION
// =============================================================================
// These run where entities enter the system (factory, store, API). The
// aggregators never re-check what is validated here.

// MaxHealthScore is the top of the health score scale.
const MaxHealthScore = 10.0

// ValidateHealthScore accepts nil or a value in [0, 10].
func ValidateHealthScore(score *float64) error {
	if score == nil {
		return nil
	}
	if *score < 0 || *score > MaxHealthScore {
		return &generic.FieldError{Field: "health_score", Err: fmt.Errorf("%w: %v", generic.ErrHealthScoreOutOfRange, *score)}
	}
	return nil
}

func ValidateClient(c Client) error {
	if strings.TrimSpace(string(c.ID)) == "" {
		return &generic.FieldError{Field: "id", Err: generic.ErrMissingField}
	}
	if strings.TrimSpace(c.Name) == "" {
		return &generic.FieldError{Field: "name", Err: generic.ErrMissingField}
	}
	if !c.Status.Valid() {
		return &generic.FieldError{Field: "status", Err: fmt.Errorf("%w: %q", generic.ErrInvalidStatus, c.Status)}
	}
	if c.MonthlyValue != nil && c.MonthlyValue.IsNegative() {
		return &generic.FieldError{Field: "monthly_value", Err: generic.ErrNegativeAmount}
	}
	if c.OperationalCost != nil && c.OperationalCost.IsNegative() {
		return &generic.FieldError{Field: "operational_cost", Err: generic.ErrNegativeAmount}
	}
	if c.StartDate != nil && c.EndDate != nil && c.EndDate.Before(*c.StartDate) {
		return &generic.FieldError{Field: "end_date", Err: generic.ErrInvalidInterval}
	}
	return ValidateHealthScore(c.HealthScore)
}

func ValidateMember(m Member) error {
	if strings.TrimSpace(string(m.ID)) == "" {
		return &generic.FieldError{Field: "id", Err: generic.ErrMissingField}
	}
	if strings.TrimSpace(m.Name) == "" {
		return &generic.FieldError{Field: "name", Err: generic.ErrMissingField}
	}
	if !m.Status.Valid() {
		return &generic.FieldError{Field: "status", Err: fmt.Errorf("%w: %q", generic.ErrInvalidStatus, m.Status)}
	}
	return nil
}

// ValidateAllocation rejects malformed intervals and negative rates.
func ValidateAllocation(a Allocation) error {
	if a.MemberID == "" {
		return &generic.FieldError{Field: "member_id", Err: generic.ErrMissingField}
	}
	if a.ClientID == "" {
		return &generic.FieldError{Field: "client_id", Err: generic.ErrMissingField}
	}
	if a.MonthlyValue.IsNegative() {
		return &generic.FieldError{Field: "monthly_value", Err: generic.ErrNegativeAmount}
	}
	return a.Interval().Validate()
}

func ValidateDemand(d Demand) error {
	if strings.TrimSpace(d.Title) == "" {
		return &generic.FieldError{Field: "title", Err: generic.ErrMissingField}
	}
	if !d.Status.Valid() {
		return &generic.FieldError{Field: "status", Err: fmt.Errorf("%w: %q", generic.ErrInvalidStatus, d.Status)}
	}
	if !d.Priority.Valid() {
		return &generic.FieldError{Field: "priority", Err: fmt.Errorf("%w: %q", generic.ErrInvalidStatus, d.Priority)}
	}
	if d.SLAHours != nil && *d.SLAHours <= 0 {
		return &generic.FieldError{Field: "sla_hours", Err: fmt.Errorf("%w: got %d", generic.ErrInvalidBudget, *d.SLAHours)}
	}
	if d.CompletedAt != nil && d.CompletedAt.Before(d.CreatedAt) {
		return &generic.FieldError{Field: "completed_at", Err: generic.ErrInvalidInterval}
	}
	if d.DesignType != "" && !d.DesignType.Valid() {
		return &generic.FieldError{Field: "design_type", Err: fmt.Errorf("%w: %q", generic.ErrInvalidStatus, d.DesignType)}
	}
	return nil
}

func ValidateMemberRate(r MemberRate) error {
	if r.MemberID == "" {
		return &generic.FieldError{Field: "member_id", Err: generic.ErrMissingField}
	}
	if r.ArteValue.IsNegative() {
		return &generic.FieldError{Field: "arte_value", Err: generic.ErrNegativeAmount}
	}
	if r.VideoValue.IsNegative() {
		return &generic.FieldError{Field: "video_value", Err: generic.ErrNegativeAmount}
	}
	return nil
}

func ValidateDesignPayment(p DesignPayment) error {
	if p.DemandID == "" {
		return &generic.FieldError{Field: "demand_id", Err: generic.ErrMissingField}
	}
	if p.MemberID == "" {
		return &generic.FieldError{Field: "member_id", Err: generic.ErrMissingField}
	}
	if !p.Type.Valid() {
		return &generic.FieldError{Field: "design_type", Err: fmt.Errorf("%w: %q", generic.ErrInvalidStatus, p.Type)}
	}
	if p.Value.IsNegative() {
		return &generic.FieldError{Field: "value", Err: generic.ErrNegativeAmount}
	}
	if p.Month < time.January || p.Month > time.December {
		return &generic.FieldError{Field: "month", Err: fmt.Errorf("%w: month %d", generic.ErrInvalidPeriod, p.Month)}
	}
	return nil
}

func ValidateMeeting(m Meeting) error {
	if m.ClientID == "" {
		return &generic.FieldError{Field: "client_id", Err: generic.ErrMissingField}
	}
	if m.Type != MeetingDaily && m.Type != MeetingOneOnOne {
		return &generic.FieldError{Field: "meeting_type", Err: fmt.Errorf("%w: %q", generic.ErrInvalidStatus, m.Type)}
	}
	return ValidateHealthScore(m.HealthScore)
}

// Validate runs every entity rule and the reference check.
func (s *Snapshot) Validate() error {
	for _, c := range s.Clients {
		if err := ValidateClient(c); err != nil {
			return fmt.Errorf("client %s: %w", c.ID, err)
		}
	}
	for _, m := range s.Members {
		if err := ValidateMember(m); err != nil {
			return fmt.Errorf("member %s: %w", m.ID, err)
		}
	}
	for _, a := range s.Allocations {
		if err := ValidateAllocation(a); err != nil {
			return fmt.Errorf("allocation %s: %w", a.ID, err)
		}
	}
	for _, d := range s.Demands {
		if err := ValidateDemand(d); err != nil {
			return fmt.Errorf("demand %s: %w", d.ID, err)
		}
	}
	for _, m := range s.Meetings {
		if err := ValidateMeeting(m); err != nil {
			return fmt.Errorf("meeting %s: %w", m.ID, err)
		}
	}
	for _, r := range s.Rates {
		if err := ValidateMemberRate(r); err != nil {
			return fmt.Errorf("rate %s: %w", r.MemberID, err)
		}
	}
	paid := make(map[DemandID]bool, len(s.Payments))
	for _, p := range s.Payments {
		if err := ValidateDesignPayment(p); err != nil {
			return fmt.Errorf("payment %s: %w", p.ID, err)
		}
		if paid[p.DemandID] {
			return fmt.Errorf("payment %s: %w: demand %s", p.ID, generic.ErrPaymentRegistered, p.DemandID)
		}
		paid[p.DemandID] = true
	}
	return s.CheckReferences()
}

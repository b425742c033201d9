/*
Package sla classifies demands against their due date or hour budget.

PURPOSE:
  A demand's SLA state is never stored. It is recomputed from its timing
  facts and a reference instant every time a board, roster or sweeper needs
  it, except that a completed demand is always judged at its completion
  instant so its state stops moving.

RULES (in order):
  1. No due date and no budget      -> on_time
  2. Due date (wins over budget)    -> overdue if past due,
                                       warning if within the threshold (inclusive)
  3. Budget only                    -> overdue past the budget,
                                       warning past BudgetWarningRatio of it

SEE ALSO:
  - board.go: Counts and filters over a set of demands
  - history.go: Hours spent between in_progress and done
*/
package sla

import (
	"fmt"
	"math"
	"time"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/generic"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	OnTime  Status = "on_time"
	Warning Status = "warning"
	Overdue Status = "overdue"
)

// Statuses lists the states from best to worst.
var Statuses = []Status{OnTime, Warning, Overdue}

func (s Status) Valid() bool {
	return s == OnTime || s == Warning || s == Overdue
}

// ParseStatus accepts the wire form of a status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", &generic.FieldError{Field: "sla", Err: fmt.Errorf("%w: %q", generic.ErrInvalidStatus, s)}
	}
	return st, nil
}

// rank orders states so callers can assert monotonicity.
func (s Status) rank() int {
	switch s {
	case Warning:
		return 1
	case Overdue:
		return 2
	}
	return 0
}

// Worse reports whether s is strictly worse than other.
func (s Status) Worse(other Status) bool { return s.rank() > other.rank() }

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds the business thresholds. They come from configuration, not
// from constants in the rules.
type Config struct {
	// WarningHours is the fixed warning window before a due date.
	WarningHours float64
	// WarningFraction, when > 0, replaces WarningHours with this share of
	// the created -> due window.
	WarningFraction float64
	// BudgetWarningRatio is the share of the hour budget after which a
	// budget-only demand turns to warning.
	BudgetWarningRatio float64
}

// DefaultConfig returns 24 warning hours and a 0.8 budget ratio.
func DefaultConfig() Config {
	return Config{WarningHours: 24, BudgetWarningRatio: 0.8}
}

func (c Config) Validate() error {
	if c.WarningHours < 0 {
		return &generic.FieldError{Field: "sla.warning_hours", Err: generic.ErrInvalidPeriod}
	}
	if c.WarningFraction < 0 || c.WarningFraction > 1 {
		return &generic.FieldError{Field: "sla.warning_fraction", Err: generic.ErrInvalidPeriod}
	}
	if c.BudgetWarningRatio <= 0 || c.BudgetWarningRatio > 1 {
		return &generic.FieldError{Field: "sla.budget_warning_ratio", Err: generic.ErrInvalidPeriod}
	}
	return nil
}

// =============================================================================
// CLASSIFIER
// =============================================================================

// Timing is everything the rules look at.
type Timing struct {
	CreatedAt   time.Time
	DueDate     *time.Time
	SLAHours    *int
	CompletedAt *time.Time
}

// TimingOf extracts the timing facts of a demand.
func TimingOf(d agency.Demand) Timing {
	return Timing{
		CreatedAt:   d.CreatedAt,
		DueDate:     d.DueDate,
		SLAHours:    d.SLAHours,
		CompletedAt: d.CompletedAt,
	}
}

// Classifier is stateless apart from its thresholds and safe for concurrent use.
type Classifier struct {
	cfg Config
}

func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

func (c *Classifier) Config() Config { return c.cfg }

// EvaluationInstant is CompletedAt when set, otherwise now.
func (t Timing) EvaluationInstant(now time.Time) time.Time {
	if t.CompletedAt != nil {
		return *t.CompletedAt
	}
	return now
}

// Classify applies the rules at the evaluation instant.
func (c *Classifier) Classify(t Timing, now time.Time) Status {
	eval := t.EvaluationInstant(now)

	switch {
	case t.DueDate != nil:
		return c.classifyDue(t.CreatedAt, *t.DueDate, eval)
	case t.SLAHours != nil && *t.SLAHours > 0:
		return c.classifyBudget(t.CreatedAt, *t.SLAHours, eval)
	default:
		return OnTime
	}
}

func (c *Classifier) classifyDue(created, due, eval time.Time) Status {
	remaining := due.Sub(eval)
	if remaining < 0 {
		return Overdue
	}
	if remaining <= c.warningWindow(created, due) {
		return Warning
	}
	return OnTime
}

func (c *Classifier) warningWindow(created, due time.Time) time.Duration {
	if c.cfg.WarningFraction > 0 {
		window := due.Sub(created)
		if window < 0 {
			window = 0
		}
		return time.Duration(math.Round(float64(window) * c.cfg.WarningFraction))
	}
	return time.Duration(math.Round(c.cfg.WarningHours * float64(time.Hour)))
}

func (c *Classifier) classifyBudget(created time.Time, budgetHours int, eval time.Time) Status {
	elapsed := generic.HoursBetween(created, eval)
	budget := float64(budgetHours)
	switch {
	case elapsed > budget:
		return Overdue
	case elapsed > c.cfg.BudgetWarningRatio*budget:
		return Warning
	default:
		return OnTime
	}
}

// ClassifyDemand classifies a demand. A done demand without a completion
// timestamp has nothing to be late against and is on_time.
func (c *Classifier) ClassifyDemand(d agency.Demand, now time.Time) Status {
	if d.IsDone() && d.CompletedAt == nil {
		return OnTime
	}
	return c.Classify(TimingOf(d), now)
}

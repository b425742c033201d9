package agency

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/agency-engine/generic"
)

// =============================================================================
// DESIGN PAYMENTS - Per-piece pay for approved design demands
// =============================================================================

type DesignType string

const (
	DesignArte  DesignType = "arte"
	DesignVideo DesignType = "video"
)

func (t DesignType) Valid() bool { return t == DesignArte || t == DesignVideo }

// Rates used for members without a configured MemberRate.
var (
	DefaultArteRate  = decimal.NewFromInt(10)
	DefaultVideoRate = decimal.NewFromInt(20)
)

// MemberRate is what one member is paid per approved piece.
type MemberRate struct {
	MemberID   MemberID
	ArteValue  decimal.Decimal
	VideoValue decimal.Decimal
}

// DefaultRate is the rate card of a member with nothing configured.
func DefaultRate(id MemberID) MemberRate {
	return MemberRate{MemberID: id, ArteValue: DefaultArteRate, VideoValue: DefaultVideoRate}
}

// For returns the value of one piece of type t.
func (r MemberRate) For(t DesignType) decimal.Decimal {
	if t == DesignVideo {
		return r.VideoValue
	}
	return r.ArteValue
}

// DesignPayment is registered once per approved design demand. Year and
// Month are the calendar month of approval.
type DesignPayment struct {
	ID        PaymentID
	DemandID  DemandID
	MemberID  MemberID
	ClientID  *ClientID
	Type      DesignType
	Value     decimal.Decimal
	Year      int
	Month     time.Month
	CreatedAt time.Time
}

// NewDesignPayment prices the approval of d at the assignee's rate. The
// month is the one at is in, taken in loc. The caller checks that no
// payment exists yet.
func NewDesignPayment(d Demand, rate MemberRate, at time.Time, loc *time.Location) (DesignPayment, error) {
	if !d.DesignType.Valid() {
		return DesignPayment{}, &generic.FieldError{Field: "design_type", Err: fmt.Errorf("%w: demand %s is not a design piece", generic.ErrMissingField, d.ID)}
	}
	if d.AssignedTo == nil {
		return DesignPayment{}, &generic.FieldError{Field: "assigned_to", Err: fmt.Errorf("%w: demand %s has no assignee", generic.ErrMissingField, d.ID)}
	}
	if rate.MemberID != *d.AssignedTo {
		return DesignPayment{}, &generic.InvariantError{
			Op:  "price design demand",
			Msg: fmt.Sprintf("rate of %s used for demand assigned to %s", rate.MemberID, *d.AssignedTo),
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	local := at.In(loc)
	return DesignPayment{
		DemandID:  d.ID,
		MemberID:  *d.AssignedTo,
		ClientID:  d.ClientID,
		Type:      d.DesignType,
		Value:     rate.For(d.DesignType),
		Year:      local.Year(),
		Month:     local.Month(),
		CreatedAt: at,
	}, nil
}

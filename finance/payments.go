package finance

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/generic"
)

// =============================================================================
// DESIGN PAYMENTS - Monthly per-member roll-up of approved pieces
// =============================================================================

// MemberPayments is one member's design pay for a month. The rates are the
// member's current rate card (the default one when RateConfigured is false);
// each payment keeps the value it was registered at.
type MemberPayments struct {
	MemberID       agency.MemberID
	MemberName     string
	Artes          int
	Videos         int
	Total          decimal.Decimal
	ArteRate       decimal.Decimal
	VideoRate      decimal.Decimal
	RateConfigured bool
	// Payments are newest first.
	Payments []agency.DesignPayment
}

type PaymentReport struct {
	Year    int
	Month   time.Month
	Members []MemberPayments
	Total   decimal.Decimal
}

// PaymentSummary groups the design payments of year/month by member,
// ordered by member name. Members without payments are left out.
func PaymentSummary(snap *agency.Snapshot, year int, month time.Month) (*PaymentReport, error) {
	if year < 1 || month < time.January || month > time.December {
		return nil, &generic.FieldError{Field: "month", Err: fmt.Errorf("%w: %d-%02d", generic.ErrInvalidPeriod, year, int(month))}
	}

	byMember := make(map[agency.MemberID]*MemberPayments)
	for _, p := range snap.PaymentsIn(year, month) {
		mp, ok := byMember[p.MemberID]
		if !ok {
			m, found := snap.Member(p.MemberID)
			if !found {
				return nil, &generic.ReferenceError{From: "payment", FromID: string(p.ID), Kind: "member", TargetID: string(p.MemberID)}
			}
			rate, configured := snap.RateOf(p.MemberID)
			mp = &MemberPayments{
				MemberID:       m.ID,
				MemberName:     m.Name,
				ArteRate:       rate.ArteValue,
				VideoRate:      rate.VideoValue,
				RateConfigured: configured,
			}
			byMember[p.MemberID] = mp
		}
		if p.Type == agency.DesignVideo {
			mp.Videos++
		} else {
			mp.Artes++
		}
		mp.Payments = append(mp.Payments, p)
	}

	report := &PaymentReport{Year: year, Month: month, Members: make([]MemberPayments, 0, len(byMember))}
	totals := make([]decimal.Decimal, 0, len(byMember))
	for _, mp := range byMember {
		values := make([]decimal.Decimal, 0, len(mp.Payments))
		for _, p := range mp.Payments {
			values = append(values, p.Value)
		}
		mp.Total = generic.SumMoney(values...)
		sort.SliceStable(mp.Payments, func(i, j int) bool {
			a, b := mp.Payments[i], mp.Payments[j]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID < b.ID
		})
		report.Members = append(report.Members, *mp)
		totals = append(totals, mp.Total)
	}
	report.Total = generic.SumMoney(totals...)

	sort.SliceStable(report.Members, func(i, j int) bool {
		if report.Members[i].MemberName != report.Members[j].MemberName {
			return report.Members[i].MemberName < report.Members[j].MemberName
		}
		return report.Members[i].MemberID < report.Members[j].MemberID
	})
	return report, nil
}

// RateCard is the effective rate of one active member.
type RateCard struct {
	MemberID   agency.MemberID
	MemberName string
	Rate       agency.MemberRate
	Configured bool
}

// RateCards lists the rates of active members by name. Members without a
// configured rate get the default card.
func RateCards(snap *agency.Snapshot) []RateCard {
	var out []RateCard
	for _, m := range snap.Members {
		if m.Status != agency.MemberActive {
			continue
		}
		rate, configured := snap.RateOf(m.ID)
		out = append(out, RateCard{MemberID: m.ID, MemberName: m.Name, Rate: rate, Configured: configured})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MemberName != out[j].MemberName {
			return out[i].MemberName < out[j].MemberName
		}
		return out[i].MemberID < out[j].MemberID
	})
	return out
}

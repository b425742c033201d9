package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/generic"
)

// =============================================================================
// DESIGN RATES
// =============================================================================

// SaveRate upserts a member's per-piece rate card.
func (s *Store) SaveRate(ctx context.Context, r agency.MemberRate) (agency.MemberRate, error) {
	if err := agency.ValidateMemberRate(r); err != nil {
		return agency.MemberRate{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := memberExists(ctx, tx, r.MemberID); err != nil {
			return err
		}
		return upsertRate(ctx, tx, r, s.now())
	})
	if err != nil {
		return agency.MemberRate{}, err
	}
	return r, nil
}

// ListRates returns the configured rate cards. Members without one are
// paid the default rates.
func (s *Store) ListRates(ctx context.Context) ([]agency.MemberRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listRates(ctx, s.db)
}

func upsertRate(ctx context.Context, ex execer, r agency.MemberRate, at time.Time) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO member_rates (member_id, arte_value, video_value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(member_id) DO UPDATE SET
			arte_value = excluded.arte_value,
			video_value = excluded.video_value,
			updated_at = excluded.updated_at
	`, r.MemberID, r.ArteValue.String(), r.VideoValue.String(), formatInstant(at))
	return translate("save rate "+string(r.MemberID), err)
}

func listRates(ctx context.Context, q querier) ([]agency.MemberRate, error) {
	rows, err := q.QueryContext(ctx, "SELECT member_id, arte_value, video_value FROM member_rates ORDER BY member_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []agency.MemberRate
	for rows.Next() {
		r, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// rateOf returns the member's rate card, or the default one.
func rateOf(ctx context.Context, q querier, id agency.MemberID) (agency.MemberRate, error) {
	r, err := scanRate(q.QueryRowContext(ctx, "SELECT member_id, arte_value, video_value FROM member_rates WHERE member_id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return agency.DefaultRate(id), nil
	}
	return r, err
}

func scanRate(row rowScanner) (agency.MemberRate, error) {
	var r agency.MemberRate
	var arte, video string
	if err := row.Scan(&r.MemberID, &arte, &video); err != nil {
		return agency.MemberRate{}, err
	}
	var err error
	if r.ArteValue, err = parseDecimal(arte); err != nil {
		return agency.MemberRate{}, fmt.Errorf("rate %s arte_value: %w", r.MemberID, err)
	}
	if r.VideoValue, err = parseDecimal(video); err != nil {
		return agency.MemberRate{}, fmt.Errorf("rate %s video_value: %w", r.MemberID, err)
	}
	return r, nil
}

// =============================================================================
// APPROVAL AND PAYMENTS
// =============================================================================

// ApproveDemand registers the payment of a design demand at the assignee's
// current rate and moves the demand to done if it is not there yet. The
// payment month is the month of approval in loc.
func (s *Store) ApproveDemand(ctx context.Context, id agency.DemandID, loc *time.Location) (agency.Demand, agency.DesignPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		approved agency.Demand
		payment  agency.DesignPayment
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		d, err := getDemand(ctx, tx, id)
		if err != nil {
			return err
		}

		var paid int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM design_payments WHERE demand_id = ?", id).Scan(&paid); err != nil {
			return err
		}
		if paid > 0 {
			return fmt.Errorf("%w: %s", generic.ErrPaymentRegistered, id)
		}

		rate := agency.DefaultRate("")
		if d.AssignedTo != nil {
			if rate, err = rateOf(ctx, tx, *d.AssignedTo); err != nil {
				return err
			}
		}
		at := s.now()
		payment, err = agency.NewDesignPayment(d, rate, at, loc)
		if err != nil {
			return err
		}
		payment.ID = agency.PaymentID(newID(""))

		if !d.IsDone() {
			_, err = tx.ExecContext(ctx,
				"UPDATE demands SET status = ?, completed_at = ? WHERE id = ?",
				agency.DemandDone, formatInstant(at), id,
			)
			if err != nil {
				return translate("approve demand", err)
			}
			change := agency.StatusChange{From: d.Status, To: agency.DemandDone, ChangedAt: at, Note: "approved"}
			if err := appendHistory(ctx, tx, id, change); err != nil {
				return err
			}
		}
		if err := insertPayment(ctx, tx, payment); err != nil {
			return err
		}

		approved, err = getDemand(ctx, tx, id)
		return err
	})
	if err != nil {
		return agency.Demand{}, agency.DesignPayment{}, err
	}
	return approved, payment, nil
}

// ListPayments returns the design payments of year/month, newest first.
func (s *Store) ListPayments(ctx context.Context, year int, month time.Month) ([]agency.DesignPayment, error) {
	if err := validateMonth(year, month); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return listPayments(ctx, s.db, "WHERE year = ? AND month = ?", year, int(month))
}

func insertPayment(ctx context.Context, ex execer, p agency.DesignPayment) error {
	if err := agency.ValidateDesignPayment(p); err != nil {
		return err
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO design_payments (id, demand_id, member_id, client_id, design_type, value, year, month, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.DemandID, p.MemberID, nullClientID(p.ClientID), p.Type, p.Value.String(), p.Year, int(p.Month), formatInstant(p.CreatedAt))
	if isUniqueError(err) {
		return fmt.Errorf("%w: %s", generic.ErrPaymentRegistered, p.DemandID)
	}
	return translate("save payment "+string(p.ID), err)
}

func listPayments(ctx context.Context, q querier, where string, args ...any) ([]agency.DesignPayment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, demand_id, member_id, client_id, design_type, value, year, month, created_at
		FROM design_payments `+where+`
		ORDER BY created_at DESC, id
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []agency.DesignPayment
	for rows.Next() {
		var p agency.DesignPayment
		var client sql.NullString
		var value, createdAt string
		var month int
		if err := rows.Scan(&p.ID, &p.DemandID, &p.MemberID, &client, &p.Type, &value, &p.Year, &month, &createdAt); err != nil {
			return nil, err
		}
		if client.Valid {
			id := agency.ClientID(client.String)
			p.ClientID = &id
		}
		p.Month = time.Month(month)
		if p.Value, err = parseDecimal(value); err != nil {
			return nil, fmt.Errorf("payment %s value: %w", p.ID, err)
		}
		if p.CreatedAt, err = parseInstant(createdAt); err != nil {
			return nil, fmt.Errorf("payment %s created_at: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

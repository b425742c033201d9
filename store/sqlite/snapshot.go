package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/warp/agency-engine/agency"
)

// =============================================================================
// SNAPSHOTS
// =============================================================================

// LoadSnapshot reads every table inside one read-only transaction and
// returns an indexed snapshot. Concurrent writers never tear it.
func (s *Store) LoadSnapshot(ctx context.Context, takenAt time.Time) (*agency.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	var d agency.Data
	if d.Clients, err = listClients(ctx, tx); err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}
	if d.Squads, err = listSquads(ctx, tx); err != nil {
		return nil, fmt.Errorf("load squads: %w", err)
	}
	if d.Members, err = listMembers(ctx, tx, ""); err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	if d.Allocations, err = listAllocations(ctx, tx); err != nil {
		return nil, fmt.Errorf("load allocations: %w", err)
	}
	if d.Demands, err = listDemands(ctx, tx); err != nil {
		return nil, fmt.Errorf("load demands: %w", err)
	}
	if d.Meetings, err = listMeetings(ctx, tx); err != nil {
		return nil, fmt.Errorf("load meetings: %w", err)
	}
	if d.Financials, err = listFinancials(ctx, tx); err != nil {
		return nil, fmt.Errorf("load financials: %w", err)
	}
	if d.Expenses, err = listExpenses(ctx, tx); err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	if d.Rates, err = listRates(ctx, tx); err != nil {
		return nil, fmt.Errorf("load rates: %w", err)
	}
	if d.Payments, err = listPayments(ctx, tx, ""); err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}

	return agency.NewSnapshot(d, takenAt), nil
}

// ImportSnapshot replaces all stored data with d. The data is validated as
// a whole first; nothing is written if any entity or reference is invalid.
func (s *Store) ImportSnapshot(ctx context.Context, d agency.Data) error {
	now := s.now()
	if err := agency.NewSnapshot(d, now).Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range resetOrder {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		stamp := formatInstant(now)

		for _, c := range d.Clients {
			createdAt := c.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}
			_, err := tx.ExecContext(ctx, "INSERT INTO clients ("+clientColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
				c.ID, c.Name, nullString(c.Segment), c.Status,
				nullDecimal(c.MonthlyValue), nullInt(c.MinContractMonths), nullDecimal(c.OperationalCost),
				nullDate(c.StartDate), nullDate(c.EndDate), nullFloat(c.HealthScore), formatInstant(createdAt))
			if err != nil {
				return translate("import client "+string(c.ID), err)
			}
		}
		for _, sq := range d.Squads {
			_, err := tx.ExecContext(ctx, "INSERT INTO squads (id, name, description, created_at) VALUES (?, ?, ?, ?)",
				sq.ID, sq.Name, nullString(sq.Description), stamp)
			if err != nil {
				return translate("import squad "+string(sq.ID), err)
			}
		}
		for _, m := range d.Members {
			_, err := tx.ExecContext(ctx, "INSERT INTO members (id, name, role_title, status, email, created_at) VALUES (?, ?, ?, ?, ?, ?)",
				m.ID, m.Name, nullString(m.RoleTitle), m.Status, nullString(m.Email), stamp)
			if err != nil {
				return translate("import member "+string(m.ID), err)
			}
			for _, sq := range m.SquadIDs {
				if _, err := tx.ExecContext(ctx, "INSERT INTO member_squads (member_id, squad_id) VALUES (?, ?)", m.ID, sq); err != nil {
					return translate("import member squad", err)
				}
			}
		}
		for _, a := range d.Allocations {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO allocations (id, member_id, client_id, monthly_value, start_date, end_date, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, a.ID, a.MemberID, a.ClientID, a.MonthlyValue.String(), a.StartDate.String(), nullDate(a.EndDate), stamp)
			if err != nil {
				return translate("import allocation "+string(a.ID), err)
			}
		}
		for _, dm := range d.Demands {
			_, err := tx.ExecContext(ctx, "INSERT INTO demands ("+demandColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
				dm.ID, dm.Title, nullClientID(dm.ClientID), nullMemberID(dm.AssignedTo), dm.Priority, dm.Status,
				formatInstant(dm.CreatedAt), nullInstant(dm.DueDate), nullInt(dm.SLAHours), nullInstant(dm.CompletedAt),
				nullString(string(dm.DesignType)))
			if err != nil {
				return translate("import demand "+string(dm.ID), err)
			}
			for _, ch := range dm.History {
				if err := appendHistory(ctx, tx, dm.ID, ch); err != nil {
					return err
				}
			}
		}
		for _, m := range d.Meetings {
			var squad sql.NullString
			if m.SquadID != nil {
				squad = sql.NullString{String: string(*m.SquadID), Valid: true}
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO meetings (id, meeting_type, client_id, squad_id, member_id, health_score, notes, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, m.ID, m.Type, m.ClientID, squad, nullMemberID(m.MemberID), nullFloat(m.HealthScore), nullString(m.Notes), formatInstant(m.CreatedAt))
			if err != nil {
				return translate("import meeting "+string(m.ID), err)
			}
		}
		for _, f := range d.Financials {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO monthly_financials (year, month, total_received, tax_amount, marketing_amount, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, f.Year, int(f.Month), nullDecimal(f.TotalReceived), nullDecimal(f.TaxAmount), nullDecimal(f.MarketingAmount), stamp)
			if err != nil {
				return translate(fmt.Sprintf("import financials %d-%02d", f.Year, f.Month), err)
			}
		}
		for _, e := range d.Expenses {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO extra_expenses (id, year, month, description, category, amount, payment_date, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, newID(e.ID), e.Year, int(e.Month), e.Description, nullString(e.Category), e.Amount.String(), nullDate(e.PaymentDate), stamp)
			if err != nil {
				return translate("import expense", err)
			}
		}
		for _, r := range d.Rates {
			if err := upsertRate(ctx, tx, r, now); err != nil {
				return err
			}
		}
		for _, p := range d.Payments {
			if p.ID == "" {
				p.ID = agency.PaymentID(newID(""))
			}
			if p.CreatedAt.IsZero() {
				p.CreatedAt = now
			}
			if err := insertPayment(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

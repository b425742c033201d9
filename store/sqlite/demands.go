package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/generic"
)

// =============================================================================
// DEMAND STORE
// =============================================================================

const demandColumns = `id, title, client_id, assigned_to, priority, status,
	created_at, due_date, sla_hours, completed_at, design_type`

// SaveDemand inserts or updates a demand. A new demand gets an opening
// history row for its initial status. An update only touches the editable
// fields; status and timestamps change through MoveDemand. The returned
// demand is the stored row.
func (s *Store) SaveDemand(ctx context.Context, d agency.Demand) (agency.Demand, error) {
	d.ID = agency.DemandID(newID(string(d.ID)))
	d.Title = strings.TrimSpace(d.Title)
	if d.Priority == "" {
		d.Priority = agency.PriorityMedium
	}
	if d.Status == "" {
		d.Status = agency.DemandBacklog
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}
	if d.Status == agency.DemandDone && d.CompletedAt == nil {
		at := s.now()
		d.CompletedAt = &at
	}
	if err := agency.ValidateDemand(d); err != nil {
		return agency.Demand{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var saved agency.Demand
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if d.ClientID != nil {
			if err := clientExists(ctx, tx, *d.ClientID); err != nil {
				return err
			}
		}
		if d.AssignedTo != nil {
			if err := memberExists(ctx, tx, *d.AssignedTo); err != nil {
				return err
			}
		}

		var existing int
		err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM demands WHERE id = ?", d.ID).Scan(&existing)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO demands (`+demandColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				client_id = excluded.client_id,
				assigned_to = excluded.assigned_to,
				priority = excluded.priority,
				due_date = excluded.due_date,
				sla_hours = excluded.sla_hours,
				design_type = excluded.design_type
		`, d.ID, d.Title, nullClientID(d.ClientID), nullMemberID(d.AssignedTo), d.Priority, d.Status,
			formatInstant(d.CreatedAt), nullInstant(d.DueDate), nullInt(d.SLAHours), nullInstant(d.CompletedAt),
			nullString(string(d.DesignType)))
		if err != nil {
			return translate("save demand", err)
		}

		if existing == 0 {
			if err := appendHistory(ctx, tx, d.ID, agency.StatusChange{To: d.Status, ChangedAt: d.CreatedAt}); err != nil {
				return err
			}
		}
		saved, err = getDemand(ctx, tx, d.ID)
		return err
	})
	if err != nil {
		return agency.Demand{}, err
	}
	return saved, nil
}

// MoveDemand moves a demand to another kanban column and records the
// transition. Entering done stamps completed_at; leaving done clears it.
func (s *Store) MoveDemand(ctx context.Context, id agency.DemandID, to agency.DemandStatus, note string) (agency.Demand, error) {
	if !to.Valid() {
		return agency.Demand{}, &generic.FieldError{Field: "status", Err: fmt.Errorf("%w: %q", generic.ErrInvalidStatus, to)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var moved agency.Demand
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		d, err := getDemand(ctx, tx, id)
		if err != nil {
			return err
		}
		if d.Status == to {
			moved = d
			return nil
		}

		at := s.now()
		switch {
		case to == agency.DemandDone:
			d.CompletedAt = &at
		case d.Status == agency.DemandDone:
			d.CompletedAt = nil
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE demands SET status = ?, completed_at = ? WHERE id = ?",
			to, nullInstant(d.CompletedAt), id,
		)
		if err != nil {
			return translate("move demand", err)
		}

		change := agency.StatusChange{From: d.Status, To: to, ChangedAt: at, Note: note}
		if err := appendHistory(ctx, tx, id, change); err != nil {
			return err
		}
		d.Status = to
		d.History = append(d.History, change)
		moved = d
		return nil
	})
	if err != nil {
		return agency.Demand{}, err
	}
	return moved, nil
}

// GetDemand retrieves a demand with its status history.
func (s *Store) GetDemand(ctx context.Context, id agency.DemandID) (agency.Demand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getDemand(ctx, s.db, id)
}

// ListDemands returns all demands with their histories, newest first.
func (s *Store) ListDemands(ctx context.Context) ([]agency.Demand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listDemands(ctx, s.db)
}

func getDemand(ctx context.Context, q querier, id agency.DemandID) (agency.Demand, error) {
	d, err := scanDemand(q.QueryRowContext(ctx, "SELECT "+demandColumns+" FROM demands WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return agency.Demand{}, fmt.Errorf("%w: %s", generic.ErrDemandNotFound, id)
	}
	if err != nil {
		return agency.Demand{}, err
	}
	history, err := listHistory(ctx, q, "WHERE demand_id = ?", id)
	if err != nil {
		return agency.Demand{}, err
	}
	d.History = history[id]
	return d, nil
}

func listDemands(ctx context.Context, q querier) ([]agency.Demand, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+demandColumns+" FROM demands ORDER BY created_at DESC, id")
	if err != nil {
		return nil, err
	}
	var demands []agency.Demand
	for rows.Next() {
		d, err := scanDemand(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		demands = append(demands, d)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	history, err := listHistory(ctx, q, "")
	if err != nil {
		return nil, err
	}
	for i := range demands {
		demands[i].History = history[demands[i].ID]
	}
	return demands, nil
}

func scanDemand(row rowScanner) (agency.Demand, error) {
	var d agency.Demand
	var client, assigned, due, completed, design sql.NullString
	var sla sql.NullInt64
	var createdAt string

	if err := row.Scan(&d.ID, &d.Title, &client, &assigned, &d.Priority, &d.Status,
		&createdAt, &due, &sla, &completed, &design); err != nil {
		return agency.Demand{}, err
	}
	d.DesignType = agency.DesignType(design.String)
	if client.Valid {
		id := agency.ClientID(client.String)
		d.ClientID = &id
	}
	if assigned.Valid {
		id := agency.MemberID(assigned.String)
		d.AssignedTo = &id
	}
	d.SLAHours = parseNullInt(sla)

	var err error
	if d.CreatedAt, err = parseInstant(createdAt); err != nil {
		return agency.Demand{}, fmt.Errorf("demand %s created_at: %w", d.ID, err)
	}
	if d.DueDate, err = parseNullInstant(due); err != nil {
		return agency.Demand{}, fmt.Errorf("demand %s due_date: %w", d.ID, err)
	}
	if d.CompletedAt, err = parseNullInstant(completed); err != nil {
		return agency.Demand{}, fmt.Errorf("demand %s completed_at: %w", d.ID, err)
	}
	return d, nil
}

// =============================================================================
// DEMAND HISTORY
// =============================================================================

func appendHistory(ctx context.Context, ex execer, id agency.DemandID, ch agency.StatusChange) error {
	var from sql.NullString
	if ch.From != "" {
		from = sql.NullString{String: string(ch.From), Valid: true}
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO demand_history (demand_id, from_status, to_status, note, changed_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, from, ch.To, nullString(ch.Note), formatInstant(ch.ChangedAt))
	return translate("append demand history", err)
}

func listHistory(ctx context.Context, q querier, where string, args ...any) (map[agency.DemandID][]agency.StatusChange, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT demand_id, from_status, to_status, note, changed_at
		FROM demand_history `+where+`
		ORDER BY changed_at, id
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[agency.DemandID][]agency.StatusChange)
	for rows.Next() {
		var id agency.DemandID
		var from, note sql.NullString
		var ch agency.StatusChange
		var changedAt string
		if err := rows.Scan(&id, &from, &ch.To, &note, &changedAt); err != nil {
			return nil, err
		}
		ch.From = agency.DemandStatus(from.String)
		ch.Note = note.String
		if ch.ChangedAt, err = parseInstant(changedAt); err != nil {
			return nil, fmt.Errorf("demand %s history changed_at: %w", id, err)
		}
		out[id] = append(out[id], ch)
	}
	return out, rows.Err()
}

func nullClientID(id *agency.ClientID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func nullMemberID(id *agency.MemberID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

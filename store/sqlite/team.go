package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/generic"
)

// =============================================================================
// SQUAD STORE
// =============================================================================

// SaveSquad inserts or updates a squad.
func (s *Store) SaveSquad(ctx context.Context, sq agency.Squad) (agency.Squad, error) {
	sq.ID = agency.SquadID(newID(string(sq.ID)))
	if sq.Name == "" {
		return agency.Squad{}, &generic.FieldError{Field: "name", Err: generic.ErrMissingField}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO squads (id, name, description, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description
	`, sq.ID, sq.Name, nullString(sq.Description), formatInstant(s.now()))
	if err != nil {
		return agency.Squad{}, translate("save squad", err)
	}
	return sq, nil
}

// ListSquads returns all squads ordered by name.
func (s *Store) ListSquads(ctx context.Context) ([]agency.Squad, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listSquads(ctx, s.db)
}

func listSquads(ctx context.Context, q querier) ([]agency.Squad, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, name, description FROM squads ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var squads []agency.Squad
	for rows.Next() {
		var sq agency.Squad
		var desc sql.NullString
		if err := rows.Scan(&sq.ID, &sq.Name, &desc); err != nil {
			return nil, err
		}
		sq.Description = desc.String
		squads = append(squads, sq)
	}
	return squads, rows.Err()
}

// =============================================================================
// MEMBER STORE
// =============================================================================

// SaveMember inserts or updates a member and replaces their squad links.
func (s *Store) SaveMember(ctx context.Context, m agency.Member) (agency.Member, error) {
	m.ID = agency.MemberID(newID(string(m.ID)))
	if m.Status == "" {
		m.Status = agency.MemberActive
	}
	if err := agency.ValidateMember(m); err != nil {
		return agency.Member{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO members (id, name, role_title, status, email, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				role_title = excluded.role_title,
				status = excluded.status,
				email = excluded.email
		`, m.ID, m.Name, nullString(m.RoleTitle), m.Status, nullString(m.Email), formatInstant(s.now()))
		if err != nil {
			return translate("save member", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM member_squads WHERE member_id = ?", m.ID); err != nil {
			return err
		}
		for _, sq := range m.SquadIDs {
			var one int
			if err := tx.QueryRowContext(ctx, "SELECT 1 FROM squads WHERE id = ?", sq).Scan(&one); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("%w: %s", generic.ErrSquadNotFound, sq)
				}
				return err
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO member_squads (member_id, squad_id) VALUES (?, ?)", m.ID, sq); err != nil {
				return translate("link squad", err)
			}
		}
		return nil
	})
	if err != nil {
		return agency.Member{}, err
	}
	return m, nil
}

// GetMember retrieves a member with their squads.
func (s *Store) GetMember(ctx context.Context, id agency.MemberID) (agency.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members, err := listMembers(ctx, s.db, "WHERE m.id = ?", id)
	if err != nil {
		return agency.Member{}, err
	}
	if len(members) == 0 {
		return agency.Member{}, fmt.Errorf("%w: %s", generic.ErrMemberNotFound, id)
	}
	return members[0], nil
}

// ListMembers returns all members ordered by name.
func (s *Store) ListMembers(ctx context.Context) ([]agency.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listMembers(ctx, s.db, "")
}

func listMembers(ctx context.Context, q querier, where string, args ...any) ([]agency.Member, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT m.id, m.name, m.role_title, m.status, m.email, ms.squad_id
		FROM members m
		LEFT JOIN member_squads ms ON ms.member_id = m.id
		`+where+`
		ORDER BY m.name, m.id, ms.squad_id
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []agency.Member
	for rows.Next() {
		var m agency.Member
		var role, email, squad sql.NullString
		if err := rows.Scan(&m.ID, &m.Name, &role, &m.Status, &email, &squad); err != nil {
			return nil, err
		}
		m.RoleTitle = role.String
		m.Email = email.String

		if n := len(members); n > 0 && members[n-1].ID == m.ID {
			if squad.Valid {
				members[n-1].SquadIDs = append(members[n-1].SquadIDs, agency.SquadID(squad.String))
			}
			continue
		}
		if squad.Valid {
			m.SquadIDs = []agency.SquadID{agency.SquadID(squad.String)}
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func memberExists(ctx context.Context, q querier, id agency.MemberID) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM members WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", generic.ErrMemberNotFound, id)
	}
	return err
}

// =============================================================================
// ALLOCATION STORE
// =============================================================================

// SaveAllocation validates and stores an allocation. Both the member and the
// client must exist.
func (s *Store) SaveAllocation(ctx context.Context, a agency.Allocation) (agency.Allocation, error) {
	a.ID = agency.AllocationID(newID(string(a.ID)))
	if err := agency.ValidateAllocation(a); err != nil {
		return agency.Allocation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := memberExists(ctx, tx, a.MemberID); err != nil {
			return err
		}
		if err := clientExists(ctx, tx, a.ClientID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO allocations (id, member_id, client_id, monthly_value, start_date, end_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				member_id = excluded.member_id,
				client_id = excluded.client_id,
				monthly_value = excluded.monthly_value,
				start_date = excluded.start_date,
				end_date = excluded.end_date
		`, a.ID, a.MemberID, a.ClientID, a.MonthlyValue.String(), a.StartDate.String(), nullDate(a.EndDate), formatInstant(s.now()))
		return translate("save allocation", err)
	})
	if err != nil {
		return agency.Allocation{}, err
	}
	return a, nil
}

// ListAllocations returns every allocation ordered by start date.
func (s *Store) ListAllocations(ctx context.Context) ([]agency.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listAllocations(ctx, s.db)
}

func listAllocations(ctx context.Context, q querier) ([]agency.Allocation, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, member_id, client_id, monthly_value, start_date, end_date
		FROM allocations ORDER BY start_date, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []agency.Allocation
	for rows.Next() {
		var a agency.Allocation
		var monthly, start string
		var end sql.NullString
		if err := rows.Scan(&a.ID, &a.MemberID, &a.ClientID, &monthly, &start, &end); err != nil {
			return nil, err
		}
		a.MonthlyValue = generic.MustParseDecimal(monthly)
		if a.StartDate, err = generic.ParseDate(start); err != nil {
			return nil, fmt.Errorf("allocation %s start_date: %w", a.ID, err)
		}
		if a.EndDate, err = parseNullDate(end); err != nil {
			return nil, fmt.Errorf("allocation %s end_date: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// EndAllocation sets the end date of an open allocation.
func (s *Store) EndAllocation(ctx context.Context, id agency.AllocationID, end generic.TimePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE allocations SET end_date = ? WHERE id = ? AND start_date <= ?",
		end.String(), id, end.String(),
	)
	if err != nil {
		return translate("end allocation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.FieldError{Field: "end_date", Err: generic.ErrInvalidInterval}
	}
	return nil
}

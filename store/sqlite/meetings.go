package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/agency-engine/agency"
)

// =============================================================================
// MEETING STORE
// =============================================================================

// SaveMeeting records a meeting. A meeting carrying a health score becomes
// the client's current score in the same transaction.
func (s *Store) SaveMeeting(ctx context.Context, m agency.Meeting) (agency.Meeting, error) {
	m.ID = agency.MeetingID(newID(string(m.ID)))
	if err := agency.ValidateMeeting(m); err != nil {
		return agency.Meeting{}, err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := clientExists(ctx, tx, m.ClientID); err != nil {
			return err
		}
		if m.MemberID != nil {
			if err := memberExists(ctx, tx, *m.MemberID); err != nil {
				return err
			}
		}

		var squad sql.NullString
		if m.SquadID != nil {
			squad = sql.NullString{String: string(*m.SquadID), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO meetings (id, meeting_type, client_id, squad_id, member_id, health_score, notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, m.ID, m.Type, m.ClientID, squad, nullMemberID(m.MemberID),
			nullFloat(m.HealthScore), nullString(m.Notes), formatInstant(m.CreatedAt))
		if err != nil {
			return translate("save meeting", err)
		}

		if m.HealthScore == nil {
			return nil
		}
		_, err = tx.ExecContext(ctx, "UPDATE clients SET health_score = ? WHERE id = ?", *m.HealthScore, m.ClientID)
		return translate("update client health", err)
	})
	if err != nil {
		return agency.Meeting{}, err
	}
	return m, nil
}

// ListMeetings returns all meetings, newest first.
func (s *Store) ListMeetings(ctx context.Context) ([]agency.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listMeetings(ctx, s.db)
}

func listMeetings(ctx context.Context, q querier) ([]agency.Meeting, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, meeting_type, client_id, squad_id, member_id, health_score, notes, created_at
		FROM meetings ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []agency.Meeting
	for rows.Next() {
		var m agency.Meeting
		var squad, member, notes sql.NullString
		var health sql.NullFloat64
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Type, &m.ClientID, &squad, &member, &health, &notes, &createdAt); err != nil {
			return nil, err
		}
		if squad.Valid {
			id := agency.SquadID(squad.String)
			m.SquadID = &id
		}
		if member.Valid {
			id := agency.MemberID(member.String)
			m.MemberID = &id
		}
		m.HealthScore = parseNullFloat(health)
		m.Notes = notes.String
		if m.CreatedAt, err = parseInstant(createdAt); err != nil {
			return nil, fmt.Errorf("meeting %s created_at: %w", m.ID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

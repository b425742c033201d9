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
// CLIENT STORE
// =============================================================================

const clientColumns = `id, name, segment, status, monthly_value, min_contract_months,
	operational_cost, start_date, end_date, health_score, created_at`

// SaveClient inserts or updates a client. An empty ID gets a generated one.
func (s *Store) SaveClient(ctx context.Context, c agency.Client) (agency.Client, error) {
	c.ID = agency.ClientID(newID(string(c.ID)))
	if c.Status == "" {
		c.Status = agency.ClientOnboarding
	}
	if err := agency.ValidateClient(c); err != nil {
		return agency.Client{}, err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO clients (` + clientColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			segment = excluded.segment,
			status = excluded.status,
			monthly_value = excluded.monthly_value,
			min_contract_months = excluded.min_contract_months,
			operational_cost = excluded.operational_cost,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			health_score = excluded.health_score
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, nullString(c.Segment), c.Status,
		nullDecimal(c.MonthlyValue), nullInt(c.MinContractMonths), nullDecimal(c.OperationalCost),
		nullDate(c.StartDate), nullDate(c.EndDate), nullFloat(c.HealthScore),
		formatInstant(c.CreatedAt),
	)
	if err != nil {
		return agency.Client{}, translate("save client", err)
	}
	return c, nil
}

// GetClient retrieves a client by ID.
func (s *Store) GetClient(ctx context.Context, id agency.ClientID) (agency.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := scanClient(s.db.QueryRowContext(ctx, "SELECT "+clientColumns+" FROM clients WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return agency.Client{}, fmt.Errorf("%w: %s", generic.ErrClientNotFound, id)
	}
	return c, err
}

// ListClients returns all clients ordered by name.
func (s *Store) ListClients(ctx context.Context) ([]agency.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listClients(ctx, s.db)
}

func listClients(ctx context.Context, q querier) ([]agency.Client, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+clientColumns+" FROM clients ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []agency.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (agency.Client, error) {
	var c agency.Client
	var segment, monthly, operational, start, end sql.NullString
	var minMonths sql.NullInt64
	var health sql.NullFloat64
	var createdAt string

	if err := row.Scan(&c.ID, &c.Name, &segment, &c.Status, &monthly, &minMonths,
		&operational, &start, &end, &health, &createdAt); err != nil {
		return agency.Client{}, err
	}
	c.Segment = segment.String
	c.MinContractMonths = parseNullInt(minMonths)
	c.HealthScore = parseNullFloat(health)

	var err error
	if c.MonthlyValue, err = parseNullDecimal(monthly); err != nil {
		return agency.Client{}, fmt.Errorf("client %s monthly_value: %w", c.ID, err)
	}
	if c.OperationalCost, err = parseNullDecimal(operational); err != nil {
		return agency.Client{}, fmt.Errorf("client %s operational_cost: %w", c.ID, err)
	}
	if c.StartDate, err = parseNullDate(start); err != nil {
		return agency.Client{}, fmt.Errorf("client %s start_date: %w", c.ID, err)
	}
	if c.EndDate, err = parseNullDate(end); err != nil {
		return agency.Client{}, fmt.Errorf("client %s end_date: %w", c.ID, err)
	}
	if c.CreatedAt, err = parseInstant(createdAt); err != nil {
		return agency.Client{}, fmt.Errorf("client %s created_at: %w", c.ID, err)
	}
	return c, nil
}

func clientExists(ctx context.Context, q querier, id agency.ClientID) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM clients WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", generic.ErrClientNotFound, id)
	}
	return err
}

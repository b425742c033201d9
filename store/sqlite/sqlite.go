/*
Package sqlite persists agency entities and produces consistent snapshots.

PURPOSE:
  Owns every write: clients, team, squads, allocations, demands and their
  history, meetings, monthly financials and extra expenses. Reads for the
  engine go through LoadSnapshot, which reads every table inside a single
  read-only transaction so a snapshot never mixes two points in time.

MUTATION RULES:
  - Entities are validated with agency.Validate* before any INSERT
  - Unknown foreign keys are rejected (SQLite foreign keys are on)
  - Recording a meeting with a health score updates the client's score in
    the same transaction
  - Moving a demand appends a history row in the same transaction
  - Approving a design demand registers its payment once, at the
    assignee's rate, and completes the demand in the same transaction

KEY TABLES:
  clients, members, squads, member_squads, allocations,
  demands, demand_history, meetings, monthly_financials, extra_expenses,
  member_rates, design_payments

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Writers take the write lock; reads
  take the read lock.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/agency.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  snap, err := store.LoadSnapshot(ctx, time.Now())

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - agency/snapshot.go: The snapshot the engine reads
  - agency/validate.go: Mutation-boundary rules
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/agency-engine/generic"
)

// Store implements entity persistence using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if strings.Contains(dbPath, ":memory:") {
		// each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetClock replaces the clock used for created_at stamps.
func (s *Store) SetClock(c generic.Clock) {
	s.now = c.Now
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		segment TEXT,
		status TEXT NOT NULL DEFAULT 'onboarding',
		monthly_value TEXT,
		min_contract_months INTEGER,
		operational_cost TEXT,
		start_date TEXT,
		end_date TEXT,
		health_score REAL CHECK (health_score IS NULL OR (health_score >= 0 AND health_score <= 10)),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_clients_status ON clients(status);

	CREATE TABLE IF NOT EXISTS squads (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role_title TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		email TEXT,
		created_at TEXT NOT NULL
	);

	-- Many-to-many: a member may belong to several squads
	CREATE TABLE IF NOT EXISTS member_squads (
		member_id TEXT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		squad_id TEXT NOT NULL REFERENCES squads(id) ON DELETE CASCADE,
		PRIMARY KEY (member_id, squad_id)
	);

	CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL REFERENCES members(id),
		client_id TEXT NOT NULL REFERENCES clients(id),
		monthly_value TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		created_at TEXT NOT NULL,
		CHECK (end_date IS NULL OR end_date >= start_date)
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_member ON allocations(member_id);
	CREATE INDEX IF NOT EXISTS idx_allocations_client ON allocations(client_id);

	CREATE TABLE IF NOT EXISTS demands (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		client_id TEXT REFERENCES clients(id),
		assigned_to TEXT REFERENCES members(id),
		priority TEXT NOT NULL DEFAULT 'medium',
		status TEXT NOT NULL DEFAULT 'backlog',
		created_at TEXT NOT NULL,
		due_date TEXT,
		sla_hours INTEGER,
		completed_at TEXT,
		design_type TEXT CHECK (design_type IS NULL OR design_type IN ('arte', 'video'))
	);

	CREATE INDEX IF NOT EXISTS idx_demands_assigned ON demands(assigned_to);
	CREATE INDEX IF NOT EXISTS idx_demands_status ON demands(status);

	CREATE TABLE IF NOT EXISTS demand_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		demand_id TEXT NOT NULL REFERENCES demands(id) ON DELETE CASCADE,
		from_status TEXT,
		to_status TEXT NOT NULL,
		note TEXT,
		changed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_demand_history_demand ON demand_history(demand_id, changed_at);

	CREATE TABLE IF NOT EXISTS meetings (
		id TEXT PRIMARY KEY,
		meeting_type TEXT NOT NULL,
		client_id TEXT NOT NULL REFERENCES clients(id),
		squad_id TEXT REFERENCES squads(id),
		member_id TEXT REFERENCES members(id),
		health_score REAL,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_meetings_client ON meetings(client_id, created_at);

	CREATE TABLE IF NOT EXISTS monthly_financials (
		year INTEGER NOT NULL,
		month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
		total_received TEXT,
		tax_amount TEXT,
		marketing_amount TEXT,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (year, month)
	);

	CREATE TABLE IF NOT EXISTS extra_expenses (
		id TEXT PRIMARY KEY,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
		description TEXT NOT NULL,
		category TEXT,
		amount TEXT NOT NULL,
		payment_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_extra_expenses_month ON extra_expenses(year, month);

	CREATE TABLE IF NOT EXISTS member_rates (
		member_id TEXT PRIMARY KEY REFERENCES members(id) ON DELETE CASCADE,
		arte_value TEXT NOT NULL,
		video_value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One payment per approved design demand
	CREATE TABLE IF NOT EXISTS design_payments (
		id TEXT PRIMARY KEY,
		demand_id TEXT NOT NULL UNIQUE REFERENCES demands(id),
		member_id TEXT NOT NULL REFERENCES members(id),
		client_id TEXT REFERENCES clients(id),
		design_type TEXT NOT NULL,
		value TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_design_payments_month ON design_payments(year, month);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a write transaction. Caller holds the write lock.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// UTILITIES
// =============================================================================

// resetOrder lists tables children first so foreign keys never block a delete.
var resetOrder = []string{
	"design_payments", "member_rates",
	"demand_history", "demands", "meetings", "allocations", "member_squads",
	"members", "squads", "clients", "monthly_financials", "extra_expenses",
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range resetOrder {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("reset %s: %w", table, err)
			}
		}
		return nil
	})
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

func parseNullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullDate(tp *generic.TimePoint) sql.NullString {
	if tp == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}

func parseNullDate(ns sql.NullString) (*generic.TimePoint, error) {
	if !ns.Valid {
		return nil, nil
	}
	tp, err := generic.ParseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &tp, nil
}

// instantLayout keeps fractional seconds at a fixed width so that stored
// instants sort as strings in chronological order.
const instantLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatInstant(t time.Time) string { return t.UTC().Format(instantLayout) }

func nullInstant(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatInstant(*t), Valid: true}
}

// parseInstant also reads rows written with a variable-width fraction.
func parseInstant(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullInstant(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseInstant(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func parseNullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func parseNullInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func isUniqueError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// translate maps driver errors onto engine sentinels.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return err
	case isForeignKeyError(err):
		return fmt.Errorf("%s: %w", op, generic.ErrDanglingReference)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/agency-engine/agency"
	"github.com/warp/agency-engine/generic"
)

// =============================================================================
// MONTHLY FINANCIALS
// =============================================================================

// SaveFinancials upserts the manually entered figures of one month.
func (s *Store) SaveFinancials(ctx context.Context, f agency.MonthlyFinancials) error {
	if err := validateMonth(f.Year, f.Month); err != nil {
		return err
	}
	amounts := []struct {
		field string
		value *decimal.Decimal
	}{
		{"total_received", f.TotalReceived},
		{"tax_amount", f.TaxAmount},
		{"marketing_amount", f.MarketingAmount},
	}
	for _, a := range amounts {
		if a.value != nil && a.value.IsNegative() {
			return &generic.FieldError{Field: a.field, Err: generic.ErrNegativeAmount}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monthly_financials (year, month, total_received, tax_amount, marketing_amount, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(year, month) DO UPDATE SET
			total_received = excluded.total_received,
			tax_amount = excluded.tax_amount,
			marketing_amount = excluded.marketing_amount,
			updated_at = excluded.updated_at
	`, f.Year, int(f.Month), nullDecimal(f.TotalReceived), nullDecimal(f.TaxAmount),
		nullDecimal(f.MarketingAmount), formatInstant(s.now()))
	return translate("save financials", err)
}

// ListFinancials returns every recorded month, oldest first.
func (s *Store) ListFinancials(ctx context.Context) ([]agency.MonthlyFinancials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listFinancials(ctx, s.db)
}

func listFinancials(ctx context.Context, q querier) ([]agency.MonthlyFinancials, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT year, month, total_received, tax_amount, marketing_amount
		FROM monthly_financials ORDER BY year, month
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []agency.MonthlyFinancials
	for rows.Next() {
		var f agency.MonthlyFinancials
		var month int
		var received, tax, marketing sql.NullString
		if err := rows.Scan(&f.Year, &month, &received, &tax, &marketing); err != nil {
			return nil, err
		}
		f.Month = time.Month(month)
		if f.TotalReceived, err = parseNullDecimal(received); err != nil {
			return nil, fmt.Errorf("financials %d-%02d total_received: %w", f.Year, month, err)
		}
		if f.TaxAmount, err = parseNullDecimal(tax); err != nil {
			return nil, fmt.Errorf("financials %d-%02d tax_amount: %w", f.Year, month, err)
		}
		if f.MarketingAmount, err = parseNullDecimal(marketing); err != nil {
			return nil, fmt.Errorf("financials %d-%02d marketing_amount: %w", f.Year, month, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// =============================================================================
// EXTRA EXPENSES
// =============================================================================

// SaveExpense records a one-off expense for a month.
func (s *Store) SaveExpense(ctx context.Context, e agency.Expense) (agency.Expense, error) {
	e.ID = newID(e.ID)
	e.Description = strings.TrimSpace(e.Description)
	if err := validateMonth(e.Year, e.Month); err != nil {
		return agency.Expense{}, err
	}
	if e.Description == "" {
		return agency.Expense{}, &generic.FieldError{Field: "description", Err: generic.ErrMissingField}
	}
	if e.Amount.IsNegative() {
		return agency.Expense{}, &generic.FieldError{Field: "amount", Err: generic.ErrNegativeAmount}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extra_expenses (id, year, month, description, category, amount, payment_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			year = excluded.year,
			month = excluded.month,
			description = excluded.description,
			category = excluded.category,
			amount = excluded.amount,
			payment_date = excluded.payment_date
	`, e.ID, e.Year, int(e.Month), e.Description, nullString(e.Category), e.Amount.String(),
		nullDate(e.PaymentDate), formatInstant(s.now()))
	if err != nil {
		return agency.Expense{}, translate("save expense", err)
	}
	return e, nil
}

// ListExpenses returns every expense ordered by month.
func (s *Store) ListExpenses(ctx context.Context) ([]agency.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listExpenses(ctx, s.db)
}

func listExpenses(ctx context.Context, q querier) ([]agency.Expense, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, year, month, description, category, amount, payment_date
		FROM extra_expenses ORDER BY year, month, created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []agency.Expense
	for rows.Next() {
		var e agency.Expense
		var month int
		var category, payment sql.NullString
		var amount string
		if err := rows.Scan(&e.ID, &e.Year, &month, &e.Description, &category, &amount, &payment); err != nil {
			return nil, err
		}
		e.Month = time.Month(month)
		e.Category = category.String
		e.Amount = generic.MustParseDecimal(amount)
		if e.PaymentDate, err = parseNullDate(payment); err != nil {
			return nil, fmt.Errorf("expense %s payment_date: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func validateMonth(year int, month time.Month) error {
	if year < 1 {
		return &generic.FieldError{Field: "year", Err: fmt.Errorf("%w: year %d", generic.ErrInvalidPeriod, year)}
	}
	if month < time.January || month > time.December {
		return &generic.FieldError{Field: "month", Err: fmt.Errorf("%w: month %d", generic.ErrInvalidPeriod, month)}
	}
	return nil
}

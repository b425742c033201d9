package cli_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/agency-engine/cli"
	"github.com/warp/agency-engine/factory"
	"github.com/warp/agency-engine/generic"
	"github.com/warp/agency-engine/store/sqlite"
)

const at = "2025-03-20T12:00:00Z"

const agencySnapshot = `{
  "clients": [
    {"id": "acme", "name": "Acme", "status": "active", "monthly_value": "10000"},
    {"id": "globex", "name": "Globex", "status": "churned", "monthly_value": "2000"}
  ],
  "squads": [{"id": "growth", "name": "Growth"}],
  "members": [
    {"id": "ana", "name": "Ana", "role_title": "Designer", "status": "active", "squad_ids": ["growth"]},
    {"id": "bo", "name": "Bo", "role_title": "Developer", "status": "active"}
  ],
  "allocations": [
    {"id": "a-1", "member_id": "ana", "client_id": "acme", "monthly_value": "3000", "start_date": "2025-01-01"},
    {"id": "a-2", "member_id": "bo", "client_id": "acme", "monthly_value": "3100", "start_date": "2025-03-16"},
    {"id": "a-3", "member_id": "ana", "client_id": "globex", "monthly_value": "1000", "start_date": "2024-01-01", "end_date": "2024-12-31"}
  ],
  "demands": [
    {"id": "d-late", "title": "Landing page", "client_id": "acme", "assigned_to": "ana", "priority": "high",
     "status": "todo", "created_at": "2025-03-10T09:00:00Z", "due_date": "2025-03-19T12:00:00Z"},
    {"id": "d-soon", "title": "Newsletter", "client_id": "acme", "assigned_to": "bo", "priority": "medium",
     "status": "in_progress", "created_at": "2025-03-18T12:00:00Z", "due_date": "2025-03-21T00:00:00Z"},
    {"id": "d-shipped", "title": "Logo", "client_id": "acme", "assigned_to": "ana", "priority": "low",
     "status": "done", "created_at": "2025-03-01T09:00:00Z", "due_date": "2025-03-16T00:00:00Z",
     "completed_at": "2025-03-15T10:00:00Z"},
    {"id": "d-early", "title": "Brand book", "client_id": "acme", "assigned_to": "bo", "priority": "low",
     "status": "done", "created_at": "2025-03-01T09:00:00Z", "due_date": "2025-03-16T00:00:00Z",
     "completed_at": "2025-03-10T10:00:00Z"}
  ]
}`

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agency.json")
	require.NoError(t, os.WriteFile(path, []byte(agencySnapshot), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := cli.NewRootCmd(&out)
	cmd.SetArgs(append([]string{"--no-color", "--at", at}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCosts_MonthBySquad(t *testing.T) {
	// GIVEN: Ana (Growth) at 3000 all March and Bo (no squad) at 3100 from the 16th
	// WHEN: Reporting March 2025 by squad
	// THEN: Growth carries 3000, unassigned carries 16/31 of 3100, total 4600

	path := writeSnapshot(t)
	out, err := run(t, "costs", "--snapshot", path, "--month", "3", "--year", "2025", "--by", "squad")
	require.NoError(t, err)

	assert.Contains(t, out, "[2025-03-01, 2025-03-31]")
	assert.Contains(t, out, "Growth")
	assert.Contains(t, out, "3000.00")
	assert.Contains(t, out, "unassigned")
	assert.Contains(t, out, "1600.00")
	assert.Contains(t, out, "Total: 4600.00")
}

func TestCosts_DefaultsToCurrentMonth(t *testing.T) {
	path := writeSnapshot(t)
	out, err := run(t, "costs", "--snapshot", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 4600.00")
}

func TestCosts_HistoryAndItems(t *testing.T) {
	// GIVEN: An allocation that ended in 2024
	// WHEN: Asking for line items with history
	// THEN: It is listed as inactive and excluded from the total

	path := writeSnapshot(t)
	out, err := run(t, "costs", "--snapshot", path, "--items", "--history")
	require.NoError(t, err)

	assert.Contains(t, out, "16/31")
	assert.Contains(t, out, "Inactive in period")
	assert.Contains(t, out, "a-3")
	assert.Contains(t, out, "0/31")
	assert.Contains(t, out, "Total: 4600.00")
}

func TestCosts_DateRange(t *testing.T) {
	path := writeSnapshot(t)
	out, err := run(t, "costs", "--snapshot", path, "--from", "2025-03-16", "--to", "2025-03-31")
	require.NoError(t, err)
	assert.Contains(t, out, "(16 days)")
}

func TestCosts_FlatMethod(t *testing.T) {
	// GIVEN: Bo starts on Mar 16 at 3100
	// WHEN: Reporting March with --method none
	// THEN: Bo is charged the full month, total 6100

	path := writeSnapshot(t)
	out, err := run(t, "costs", "--snapshot", path, "--month", "3", "--year", "2025", "--method", "none")
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 6100.00")

	_, err = run(t, "costs", "--snapshot", path, "--method", "daily")
	require.Error(t, err)
	assert.True(t, generic.IsClientError(err), "got %v", err)
}

func TestCosts_InvalidInput(t *testing.T) {
	path := writeSnapshot(t)

	tests := []struct {
		name string
		args []string
	}{
		{"month out of range", []string{"--month", "13"}},
		{"half range", []string{"--from", "2025-03-01"}},
		{"reversed range", []string{"--from", "2025-03-31", "--to", "2025-03-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append([]string{"costs", "--snapshot", path}, tt.args...)...)
			require.Error(t, err)
			assert.True(t, generic.IsClientError(err), "got %v", err)
		})
	}
}

func TestCosts_UnknownGrouping(t *testing.T) {
	path := writeSnapshot(t)
	_, err := run(t, "costs", "--snapshot", path, "--by", "planet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "planet")
}

func TestSLA_ListsOpenDemands(t *testing.T) {
	// GIVEN: One demand past due, one due within 24h, one done
	// WHEN: Listing SLA states
	// THEN: The done one is hidden and the footer counts the open ones

	path := writeSnapshot(t)
	out, err := run(t, "sla", "--snapshot", path)
	require.NoError(t, err)

	assert.Contains(t, out, "d-late")
	assert.Contains(t, out, "d-soon")
	assert.NotContains(t, out, "d-shipped")
	assert.NotContains(t, out, "d-early")
	assert.Contains(t, out, "overdue: 1  warning: 1  on_time: 0")
}

func TestSLA_FilterAndAll(t *testing.T) {
	path := writeSnapshot(t)

	out, err := run(t, "sla", "--snapshot", path, "--status", "overdue")
	require.NoError(t, err)
	assert.Contains(t, out, "d-late")
	assert.NotContains(t, out, "d-soon")

	out, err = run(t, "sla", "--snapshot", path, "--all", "--status", "on_time")
	require.NoError(t, err)
	assert.Contains(t, out, "d-early")
	assert.NotContains(t, out, "d-shipped")

	_, err = run(t, "sla", "--snapshot", path, "--status", "late")
	require.Error(t, err)
	assert.True(t, generic.IsClientError(err))
}

func TestSLA_DoneInsideWindowStaysWarning(t *testing.T) {
	// GIVEN: d-shipped finished 14h before its due date, inside the 24h window
	// WHEN: Listing done demands days after the due date
	// THEN: It is judged at completion and stays warning

	path := writeSnapshot(t)
	out, err := run(t, "sla", "--snapshot", path, "--all", "--status", "warning")
	require.NoError(t, err)

	assert.Contains(t, out, "d-shipped")
	assert.Contains(t, out, "d-soon")
	assert.NotContains(t, out, "d-early")
	assert.Contains(t, out, "overdue: 0  warning: 2  on_time: 0")
}

func TestRoster_FromSnapshot(t *testing.T) {
	// GIVEN: Ana kept Acme and lost Globex; Bo only ever had Acme
	// WHEN: Rendering the roster
	// THEN: Ana retains 50%, Bo 100%

	path := writeSnapshot(t)
	out, err := run(t, "roster", "--snapshot", path, "--window", "30d")
	require.NoError(t, err)

	assert.Contains(t, out, "Ana")
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "Bo")
	assert.Contains(t, out, "100%")
}

func TestRoster_BadWindow(t *testing.T) {
	path := writeSnapshot(t)
	_, err := run(t, "roster", "--snapshot", path, "--window", "fortnight")
	require.Error(t, err)
	assert.True(t, generic.IsClientError(err))
}

func TestCosts_FromDatabase(t *testing.T) {
	// GIVEN: The snapshot imported into a SQLite file
	// WHEN: Reporting with --db instead of --snapshot
	// THEN: The same totals come out

	f, err := factory.NewSnapshotFactory()
	require.NoError(t, err)
	snap, err := f.ParseSnapshot([]byte(agencySnapshot), time.Now())
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "agency.db")
	store, err := sqlite.New(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.ImportSnapshot(context.Background(), snap.Data))
	require.NoError(t, store.Close())

	out, err := run(t, "costs", "--db", dbPath, "--by", "member")
	require.NoError(t, err)
	assert.Contains(t, out, "Ana")
	assert.Contains(t, out, "Total: 4600.00")
}

func TestSnapshot_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"clients": [{"id": "c", "name": "C", "status": "paused"}]}`), 0o600))

	_, err := run(t, "costs", "--snapshot", path)
	require.Error(t, err)
	assert.True(t, generic.IsClientError(err))
}

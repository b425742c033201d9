/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario passes the snapshot schema and validation,
	loads into the store, and produces the derived state it advertises.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/agency-engine/sla"
)

func TestScenarios_AllLoad(t *testing.T) {
	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			h := setupTestHandler(t)

			rec := do(t, h, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: s.ID})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			rec = do(t, h, http.MethodGet, "/api/scenarios/current", nil)
			assert.Equal(t, s.ID, decodeBody[ScenarioDTO](t, rec).ID)

			snap, err := h.Store.LoadSnapshot(context.Background(), testNow)
			require.NoError(t, err)
			require.NoError(t, snap.Validate())
			assert.NotEmpty(t, snap.Clients)
		})
	}
}

func TestScenario_ChurnWave(t *testing.T) {
	// GIVEN: The churn-wave scenario
	// WHEN: Computing the roster
	// THEN: Eva keeps 2 of 3 clients and Felipe lost both of his

	h := setupTestHandler(t)
	require.NoError(t, h.loadScenario(context.Background(), "churn-wave"))

	rec := do(t, h, http.MethodGet, "/api/team/roster?period=all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decodeBody[RosterDTO](t, rec)

	byID := map[string]MemberMetricsDTO{}
	for _, m := range dto.Members {
		byID[m.MemberID] = m
	}
	assert.Equal(t, 67, byID["eva"].RetentionRate)
	assert.Equal(t, 33, byID["eva"].ChurnRate)
	assert.Equal(t, 0, byID["felipe"].RetentionRate)
	assert.False(t, byID["gabi"].HasHistory)
	assert.Equal(t, 100, byID["gabi"].RetentionRate)
}

func TestScenario_SLAPressure(t *testing.T) {
	h := setupTestHandler(t)
	require.NoError(t, h.loadScenario(context.Background(), "sla-pressure"))

	sweeper := NewSLASweeper(h, 0)
	counts, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)

	// d-late, d-blown overdue; d-soon, d-budget warning; d-calm on time
	assert.Equal(t, 2, counts[sla.Overdue])
	assert.Equal(t, 2, counts[sla.Warning])
	assert.Equal(t, 1, counts[sla.OnTime])
	assert.Equal(t, testNow, sweeper.LastRun())
}

func TestLoadScenario_Unknown(t *testing.T) {
	h := setupTestHandler(t)

	rec := do(t, h, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetDatabase(t *testing.T) {
	h := setupTestHandler(t)
	require.NoError(t, h.loadScenario(context.Background(), "small-agency"))

	rec := do(t, h, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	clients, err := h.Store.ListClients(context.Background())
	require.NoError(t, err)
	assert.Empty(t, clients)

	rec = do(t, h, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null\n", rec.Body.String())
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/agency-engine/config"
	"github.com/warp/agency-engine/generic"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "agency.db", cfg.Database.Path)
	assert.Equal(t, 24.0, cfg.SLA.WarningHours)
	assert.Equal(t, 0.8, cfg.SLA.BudgetWarningRatio)
	assert.Equal(t, time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddr())
	assert.Equal(t, generic.ProrateLinear, cfg.Prorate())
}

func TestLoad_ProrateMethod(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AGENCY_ENGINE_PRORATE_METHOD", "none")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, generic.ProrateNone, cfg.Prorate())

	t.Setenv("AGENCY_ENGINE_PRORATE_METHOD", "daily")
	_, err = config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.prorate_method")
}

func TestLoad_FileThenEnv(t *testing.T) {
	// GIVEN: A YAML file setting the port and warning hours
	// WHEN: The environment overrides the warning hours
	// THEN: The file value for port and the env value for hours win

	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "agency.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\nsla:\n  warning_hours: 12\nengine:\n  time_zone: America/Sao_Paulo\n"), 0o600))
	t.Setenv("AGENCY_SLA_WARNING_HOURS", "6")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 6.0, cfg.SLA.WarningHours)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Sao_Paulo", loc.String())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AGENCY_DATABASE_PATH=from-dotenv.db\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("AGENCY_DATABASE_PATH") })

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.db", cfg.Database.Path)
}

func TestLoad_RejectsBadThresholds(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AGENCY_SLA_BUDGET_WARNING_RATIO", "1.5")

	_, err := config.Load("")
	assert.Error(t, err)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := config.Load("does-not-exist.yaml")
	assert.Error(t, err)
}

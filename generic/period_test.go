package generic_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/agency-engine/generic"
)

func TestPeriod_Validate(t *testing.T) {
	_, err := generic.DateRange(date("2025-04-10"), date("2025-04-01"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrInvalidPeriod))

	p, err := generic.DateRange(date("2025-04-10"), date("2025-04-10"))
	require.NoError(t, err)
	assert.Equal(t, 1, p.DayCount())
}

func TestDateOf_UsesLocation(t *testing.T) {
	// 02:00 UTC on Apr 1 is still Mar 31 in São Paulo (UTC-3)
	instant := time.Date(2025, time.April, 1, 2, 0, 0, 0, time.UTC)
	sp := time.FixedZone("BRT", -3*3600)

	assert.Equal(t, "2025-04-01", generic.DateOf(instant, nil).String())
	assert.Equal(t, "2025-03-31", generic.DateOf(instant, sp).String())
}

func TestParsePeriodConfig(t *testing.T) {
	tests := []struct {
		in   string
		want generic.PeriodConfig
	}{
		{"30d", generic.Last30Days},
		{"90", generic.Last90Days},
		{"all", generic.AllTime},
		{"", generic.AllTime},
		{"month", generic.PeriodConfig{Type: generic.PeriodCalendarMonth}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := generic.ParsePeriodConfig(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := generic.ParsePeriodConfig("-3d")
	assert.True(t, errors.Is(err, generic.ErrInvalidPeriod))
}

func TestPeriodConfig_WindowStart(t *testing.T) {
	now := time.Date(2025, time.April, 20, 15, 0, 0, 0, time.UTC)

	start, ok := generic.Last30Days.WindowStart(now, nil)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.March, 21, 15, 0, 0, 0, time.UTC), start)

	start, ok = generic.PeriodConfig{Type: generic.PeriodCalendarMonth}.WindowStart(now, time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), start)

	_, ok = generic.AllTime.WindowStart(now, nil)
	assert.False(t, ok)
}

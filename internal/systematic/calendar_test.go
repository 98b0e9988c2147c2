package systematic

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/brokerage-service/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextExecutionDate(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		freq models.Frequency
		want time.Time
	}{
		{name: "daily", from: day(2026, 1, 16), freq: models.FrequencyDaily, want: day(2026, 1, 17)},
		{name: "weekly", from: day(2026, 1, 16), freq: models.FrequencyWeekly, want: day(2026, 1, 23)},
		{name: "monthly", from: day(2026, 1, 16), freq: models.FrequencyMonthly, want: day(2026, 2, 16)},
		{name: "quarterly", from: day(2026, 1, 16), freq: models.FrequencyQuarterly, want: day(2026, 4, 16)},
		{name: "daily across year end", from: day(2025, 12, 31), freq: models.FrequencyDaily, want: day(2026, 1, 1)},
		{name: "monthly clamps to february end", from: day(2026, 1, 31), freq: models.FrequencyMonthly, want: day(2026, 2, 28)},
		{name: "monthly clamps in leap year", from: day(2028, 1, 30), freq: models.FrequencyMonthly, want: day(2028, 2, 29)},
		{name: "monthly across year end", from: day(2026, 12, 15), freq: models.FrequencyMonthly, want: day(2027, 1, 15)},
		{name: "quarterly clamps to 30 day month", from: day(2026, 1, 31), freq: models.FrequencyQuarterly, want: day(2026, 4, 30)},
		{name: "quarterly across year end", from: day(2026, 11, 30), freq: models.FrequencyQuarterly, want: day(2027, 2, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NextExecutionDate(tt.from, tt.freq)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextExecutionDate_IgnoresTimeOfDay(t *testing.T) {
	from := time.Date(2026, 1, 16, 23, 59, 0, 0, time.UTC)
	got, err := NextExecutionDate(from, models.FrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, day(2026, 1, 17), got)
}

func TestNextExecutionDate_UnsupportedFrequency(t *testing.T) {
	_, err := NextExecutionDate(day(2026, 1, 16), models.Frequency("YEARLY"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFrequency))
	assert.Contains(t, err.Error(), "YEARLY")
}

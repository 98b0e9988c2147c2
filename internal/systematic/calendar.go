package systematic

import (
	"fmt"
	"time"

	"github.com/Dan9191/brokerage-service/internal/models"
)

// NextExecutionDate returns the due date following date for the given
// cadence. Month arithmetic keeps the day of month, clamped to the last day
// of shorter months (Jan 31 -> Feb 28).
func NextExecutionDate(date time.Time, freq models.Frequency) (time.Time, error) {
	d := models.DateOnly(date)
	switch freq {
	case models.FrequencyDaily:
		return d.AddDate(0, 0, 1), nil
	case models.FrequencyWeekly:
		return d.AddDate(0, 0, 7), nil
	case models.FrequencyMonthly:
		return addMonths(d, 1), nil
	case models.FrequencyQuarterly:
		return addMonths(d, 3), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnsupportedFrequency, string(freq))
	}
}

func addMonths(d time.Time, months int) time.Time {
	y, m, day := d.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(first); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// daysIn returns the number of days in t's month
func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

package systematic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Dan9191/brokerage-service/internal/models"
)

func intPtr(n int) *int { return &n }

func timePtr(t time.Time) *time.Time { return &t }

func TestCheckStopConditions(t *testing.T) {
	target := day(2026, 1, 16)

	tests := []struct {
		name   string
		plan   models.ScheduledPlan
		stop   bool
		reason string
	}{
		{name: "open ended", plan: models.ScheduledPlan{ExecutionCount: 40}},
		{name: "installments remaining", plan: models.ScheduledPlan{ExecutionCount: 11, Installments: intPtr(12)}},
		{
			name:   "installments completed",
			plan:   models.ScheduledPlan{ExecutionCount: 12, Installments: intPtr(12)},
			stop:   true,
			reason: "Installments completed",
		},
		{
			name:   "installments exceeded",
			plan:   models.ScheduledPlan{ExecutionCount: 13, Installments: intPtr(12)},
			stop:   true,
			reason: "Installments completed",
		},
		{name: "end date in future", plan: models.ScheduledPlan{EndDate: timePtr(day(2026, 6, 1))}},
		{name: "end date is target", plan: models.ScheduledPlan{EndDate: timePtr(target)}},
		{
			name:   "end date passed",
			plan:   models.ScheduledPlan{EndDate: timePtr(day(2026, 1, 15))},
			stop:   true,
			reason: "End date reached",
		},
		{
			name: "installments checked before end date",
			plan: models.ScheduledPlan{
				ExecutionCount: 3,
				Installments:   intPtr(3),
				EndDate:        timePtr(day(2025, 12, 1)),
			},
			stop:   true,
			reason: "Installments completed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := CheckStopConditions(tt.plan, target)
			assert.Equal(t, tt.stop, got.ShouldStop)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

package systematic

import (
	"time"

	"github.com/Dan9191/brokerage-service/internal/models"
)

const (
	reasonInstallmentsCompleted = "Installments completed"
	reasonEndDateReached        = "End date reached"
)

// StopDecision tells the orchestrator whether a plan has run its course
type StopDecision struct {
	ShouldStop bool   `json:"should_stop"`
	Reason     string `json:"reason,omitempty"`
}

// CheckStopConditions is evaluated before any ledger mutation. The
// installment cap takes precedence over the end date.
func CheckStopConditions(plan models.ScheduledPlan, targetDate time.Time) StopDecision {
	if plan.Installments != nil && plan.ExecutionCount >= *plan.Installments {
		return StopDecision{ShouldStop: true, Reason: reasonInstallmentsCompleted}
	}
	if plan.EndDate != nil && models.DateOnly(targetDate).After(models.DateOnly(*plan.EndDate)) {
		return StopDecision{ShouldStop: true, Reason: reasonEndDateReached}
	}
	return StopDecision{}
}

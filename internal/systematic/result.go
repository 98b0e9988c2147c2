package systematic

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/brokerage-service/internal/models"
)

const (
	msgAlreadyLocked = "Already locked"
	msgNotDue        = "Not due"
	msgRunCancelled  = "Run cancelled"
)

// ExecutionResult is the outcome of one ExecuteOne call
type ExecutionResult struct {
	PlanID            int64                  `json:"plan_id"`
	PlanType          models.PlanType        `json:"plan_type"`
	FundID            string                 `json:"fund_id"`
	Status            models.ExecutionStatus `json:"status"`
	Message           string                 `json:"message"`
	Units             decimal.Decimal        `json:"units"`
	Price             decimal.Decimal        `json:"price"`
	BalanceAfter      decimal.Decimal        `json:"balance_after"`
	NextExecutionDate *time.Time             `json:"next_execution_date,omitempty"`
	DurationMs        int64                  `json:"duration_ms"`
}

// RunSummary aggregates one ExecuteDuePlans call. It is returned even when
// nothing was due so callers can tell an idle run from a missing one.
type RunSummary struct {
	RunID              string            `json:"run_id"`
	TargetDate         time.Time         `json:"target_date"`
	TotalDue           int               `json:"total_due"`
	Executed           int               `json:"executed"`
	Failed             int               `json:"failed"`
	Skipped            int               `json:"skipped"`
	StaleLocksReleased int64             `json:"stale_locks_released"`
	Details            []ExecutionResult `json:"details"`
	DurationMs         int64             `json:"duration_ms"`
}

func (s *RunSummary) add(r ExecutionResult) {
	switch r.Status {
	case models.ExecutionSuccess:
		s.Executed++
	case models.ExecutionFailed:
		s.Failed++
	case models.ExecutionSkipped:
		s.Skipped++
	}
	s.Details = append(s.Details, r)
}

func newExecutionLog(runID string, target time.Time, r ExecutionResult, executedAt time.Time) *models.ExecutionLog {
	return &models.ExecutionLog{
		PlanID:     r.PlanID,
		RunID:      runID,
		TargetDate: target,
		Status:     r.Status,
		Message:    r.Message,
		Units:      r.Units,
		Price:      r.Price,
		ExecutedAt: executedAt,
		DurationMs: r.DurationMs,
	}
}

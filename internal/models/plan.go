package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PlanType identifies the kind of systematic plan
type PlanType string

const (
	PlanTypeSIP PlanType = "SIP" // systematic investment (buy)
	PlanTypeSWP PlanType = "SWP" // systematic withdrawal (sell)
	PlanTypeSTP PlanType = "STP" // systematic transfer (sell then buy)
)

// Frequency is the cadence of a plan's installments.
// Values read from storage are kept verbatim, so an unknown frequency
// survives until the calendar rejects it.
type Frequency string

const (
	FrequencyDaily     Frequency = "DAILY"
	FrequencyWeekly    Frequency = "WEEKLY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
)

// PlanStatus is the lifecycle state of a plan
type PlanStatus string

const (
	PlanStatusPending   PlanStatus = "PENDING"
	PlanStatusCancelled PlanStatus = "CANCELLED"
)

// CanTransitionTo reports whether a plan in status s may move to next.
// PENDING may stay PENDING or become CANCELLED; CANCELLED is terminal.
func (s PlanStatus) CanTransitionTo(next PlanStatus) bool {
	switch s {
	case PlanStatusPending:
		return next == PlanStatusPending || next == PlanStatusCancelled
	default:
		return false
	}
}

// ScheduledPlan represents a recurring SIP, SWP or STP instruction
type ScheduledPlan struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	Type           PlanType        `json:"type"`
	FundID         string          `json:"fund_id"`
	FundName       string          `json:"fund_name"`
	TargetFundID   string          `json:"target_fund_id,omitempty"`   // STP only
	TargetFundName string          `json:"target_fund_name,omitempty"` // STP only
	Amount         decimal.Decimal `json:"amount"`
	Frequency      Frequency       `json:"frequency"`

	ExecutionCount int        `json:"execution_count"`
	Installments   *int       `json:"installments,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`

	NextExecutionDate *time.Time `json:"next_execution_date"`
	LastExecutionDate *time.Time `json:"last_execution_date"`
	Status            PlanStatus `json:"status"`
	LastFailureReason string     `json:"last_failure_reason,omitempty"`

	LockedAt  *time.Time `json:"-"`
	LockOwner string     `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDue reports whether the plan should run on date
func (p ScheduledPlan) IsDue(date time.Time) bool {
	if p.Status != PlanStatusPending || p.NextExecutionDate == nil {
		return false
	}
	return !DateOnly(*p.NextExecutionDate).After(DateOnly(date))
}

// ExecutionUpdate is the scheduling state written back after an attempt.
// Build it with AdvanceSchedule, CancelSchedule or RecordFailure.
type ExecutionUpdate struct {
	Status            PlanStatus
	NextExecutionDate *time.Time
	LastExecutionDate *time.Time
	ExecutionCount    int
	FailureReason     string
}

// Validate rejects updates that would leave a plan in an impossible state
func (u ExecutionUpdate) Validate() error {
	switch u.Status {
	case PlanStatusPending:
		if u.NextExecutionDate == nil {
			return fmt.Errorf("pending plan requires a next execution date")
		}
	case PlanStatusCancelled:
		if u.NextExecutionDate != nil {
			return fmt.Errorf("cancelled plan cannot have a next execution date")
		}
	default:
		return fmt.Errorf("unknown plan status %q", u.Status)
	}
	if u.ExecutionCount < 0 {
		return fmt.Errorf("execution count cannot be negative")
	}
	return nil
}

// AdvanceSchedule records a successful installment on target and moves the
// plan to next.
func AdvanceSchedule(p ScheduledPlan, target, next time.Time) ExecutionUpdate {
	last := DateOnly(target)
	nxt := DateOnly(next)
	return ExecutionUpdate{
		Status:            PlanStatusPending,
		NextExecutionDate: &nxt,
		LastExecutionDate: &last,
		ExecutionCount:    p.ExecutionCount + 1,
	}
}

// CancelSchedule terminates the plan. Progress counters are kept as they are.
func CancelSchedule(p ScheduledPlan, reason string) ExecutionUpdate {
	return ExecutionUpdate{
		Status:            PlanStatusCancelled,
		LastExecutionDate: p.LastExecutionDate,
		ExecutionCount:    p.ExecutionCount,
		FailureReason:     reason,
	}
}

// RecordFailure keeps the schedule untouched so the installment is retried
// on the next run, and remembers why it failed.
func RecordFailure(p ScheduledPlan, reason string) ExecutionUpdate {
	return ExecutionUpdate{
		Status:            PlanStatusPending,
		NextExecutionDate: p.NextExecutionDate,
		LastExecutionDate: p.LastExecutionDate,
		ExecutionCount:    p.ExecutionCount,
		FailureReason:     reason,
	}
}

// DateOnly truncates t to midnight UTC of its calendar date
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

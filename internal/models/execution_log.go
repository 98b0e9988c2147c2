package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionStatus is the outcome of one execution attempt
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "SUCCESS"
	ExecutionFailed  ExecutionStatus = "FAILED"
	ExecutionSkipped ExecutionStatus = "SKIPPED"
)

// ExecutionLog is the audit record written for every attempt
type ExecutionLog struct {
	ID         int64           `json:"id"`
	PlanID     int64           `json:"plan_id"`
	RunID      string          `json:"run_id"`
	TargetDate time.Time       `json:"target_date"`
	Status     ExecutionStatus `json:"status"`
	Message    string          `json:"message"`
	Units      decimal.Decimal `json:"units"`
	Price      decimal.Decimal `json:"price"`
	ExecutedAt time.Time       `json:"executed_at"`
	DurationMs int64           `json:"duration_ms"`
}

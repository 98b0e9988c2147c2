package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/brokerage-service/internal/models"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicate   = errors.New("duplicate entry")
	ErrLockNotHeld = errors.New("execution lock not held by owner")
)

// PlanStore holds plan definitions, their scheduling state and the
// per-plan execution lock.
type PlanStore interface {
	CreatePlan(ctx context.Context, plan *models.ScheduledPlan) error
	GetPlan(ctx context.Context, id int64) (*models.ScheduledPlan, error)

	// ReleaseStaleLocks clears execution locks held for longer than
	// olderThan and returns how many were cleared. Age is measured on the
	// same clock that stamps locked_at.
	ReleaseStaleLocks(ctx context.Context, olderThan time.Duration) (int64, error)
	// FindDuePlans returns PENDING plans with next_execution_date <= date.
	FindDuePlans(ctx context.Context, date time.Time) ([]models.ScheduledPlan, error)
	// LockForExecution atomically takes the lock; false means it is already held.
	LockForExecution(ctx context.Context, id int64, owner string) (bool, error)
	// Unlock releases the lock only while owner still holds it and returns
	// ErrLockNotHeld otherwise.
	Unlock(ctx context.Context, id int64, owner string) error
	UpdateExecutionStatus(ctx context.Context, id int64, update models.ExecutionUpdate) error
}

// LedgerTx exposes account and holding mutations inside one atomic unit.
// Reads through a LedgerTx lock the rows they return until the unit ends.
type LedgerTx interface {
	FindAccountByUser(ctx context.Context, userID int64) (*models.Account, error)
	UpdateBalance(ctx context.Context, userID int64, balance decimal.Decimal) error
	// FindHolding returns nil, nil when the user owns no units of fundID.
	FindHolding(ctx context.Context, userID int64, fundID string) (*models.Holding, error)
	CreateHolding(ctx context.Context, holding *models.Holding) error
	UpdateUnits(ctx context.Context, holdingID int64, units decimal.Decimal) error
	// UpdateExecutionStatus moves the plan schedule in the same unit as the
	// ledger changes it accounts for.
	UpdateExecutionStatus(ctx context.Context, planID int64, update models.ExecutionUpdate) error
}

// Ledger runs fn atomically: every change made through tx is committed when
// fn returns nil and discarded otherwise.
type Ledger interface {
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// ExecutionLogStore is the append-only execution audit trail
type ExecutionLogStore interface {
	CreateExecutionLog(ctx context.Context, entry *models.ExecutionLog) error
	ListExecutionLogs(ctx context.Context, planID int64, limit int) ([]models.ExecutionLog, error)
	ListRecentExecutionLogs(ctx context.Context, limit int) ([]models.ExecutionLog, error)
}

// UserStore resolves plan owners
type UserStore interface {
	FindUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Store is everything a backing database provides
type Store interface {
	PlanStore
	Ledger
	ExecutionLogStore
	UserStore
}

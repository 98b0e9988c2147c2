package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/brokerage-service/internal/models"
	"github.com/Dan9191/brokerage-service/internal/repository"
)

const planColumns = `
	id, user_id, plan_type, fund_id, fund_name, target_fund_id, target_fund_name,
	amount, frequency, execution_count, installments, end_date,
	next_execution_date, last_execution_date, status, last_failure_reason,
	locked_at, COALESCE(lock_owner, ''), created_at, updated_at`

// Locks are stamped and aged on the database clock only.
const (
	lockQuery = `
		UPDATE brokerage.systematic_transactions
		SET locked_at = CURRENT_TIMESTAMP, lock_owner = $2
		WHERE id = $1 AND locked_at IS NULL`
	unlockQuery = `
		UPDATE brokerage.systematic_transactions
		SET locked_at = NULL, lock_owner = NULL
		WHERE id = $1 AND lock_owner = $2`
	releaseStaleLocksQuery = `
		UPDATE brokerage.systematic_transactions
		SET locked_at = NULL, lock_owner = NULL
		WHERE locked_at IS NOT NULL
		  AND locked_at < CURRENT_TIMESTAMP - make_interval(secs => $1)`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*models.ScheduledPlan, error) {
	var (
		p                      models.ScheduledPlan
		planType, freq, status string
		installments           sql.NullInt64
		endDate, next, last    sql.NullTime
		lockedAt               sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.UserID, &planType, &p.FundID, &p.FundName, &p.TargetFundID, &p.TargetFundName,
		&p.Amount, &freq, &p.ExecutionCount, &installments, &endDate,
		&next, &last, &status, &p.LastFailureReason,
		&lockedAt, &p.LockOwner, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Type = models.PlanType(planType)
	p.Frequency = models.Frequency(freq)
	p.Status = models.PlanStatus(status)
	if installments.Valid {
		n := int(installments.Int64)
		p.Installments = &n
	}
	p.EndDate = datePtr(endDate)
	p.NextExecutionDate = datePtr(next)
	p.LastExecutionDate = datePtr(last)
	p.LockedAt = timePtr(lockedAt)
	return &p, nil
}

// CreatePlan inserts a new PENDING plan
func (r *Repository) CreatePlan(ctx context.Context, plan *models.ScheduledPlan) error {
	if plan.Status == "" {
		plan.Status = models.PlanStatusPending
	}
	var installments sql.NullInt64
	if plan.Installments != nil {
		installments = sql.NullInt64{Int64: int64(*plan.Installments), Valid: true}
	}

	query := `
		INSERT INTO brokerage.systematic_transactions
			(user_id, plan_type, fund_id, fund_name, target_fund_id, target_fund_name,
			 amount, frequency, execution_count, installments, end_date,
			 next_execution_date, last_execution_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		plan.UserID, string(plan.Type), plan.FundID, plan.FundName, plan.TargetFundID, plan.TargetFundName,
		plan.Amount, string(plan.Frequency), plan.ExecutionCount, installments, nullDate(plan.EndDate),
		nullDate(plan.NextExecutionDate), nullDate(plan.LastExecutionDate), string(plan.Status),
	).Scan(&plan.ID, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	return nil
}

// GetPlan retrieves a plan by id
func (r *Repository) GetPlan(ctx context.Context, id int64) (*models.ScheduledPlan, error) {
	query := `SELECT ` + planColumns + ` FROM brokerage.systematic_transactions WHERE id = $1`
	p, err := scanPlan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: plan %d", repository.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return p, nil
}

// ReleaseStaleLocks clears locks held for longer than olderThan. The cutoff
// is computed by postgres, the same clock that stamps locked_at.
func (r *Repository) ReleaseStaleLocks(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, releaseStaleLocksQuery, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to release stale locks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count released locks: %w", err)
	}
	return n, nil
}

// FindDuePlans retrieves PENDING plans due on or before date
func (r *Repository) FindDuePlans(ctx context.Context, date time.Time) ([]models.ScheduledPlan, error) {
	query := `SELECT ` + planColumns + `
		FROM brokerage.systematic_transactions
		WHERE status = 'PENDING'
		  AND next_execution_date IS NOT NULL
		  AND next_execution_date <= $1
		ORDER BY next_execution_date, id`
	rows, err := r.db.QueryContext(ctx, query, models.DateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("failed to find due plans: %w", err)
	}
	defer rows.Close()

	plans := make([]models.ScheduledPlan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due plans: %w", err)
	}
	return plans, nil
}

// LockForExecution takes the plan lock with a single conditional update
func (r *Repository) LockForExecution(ctx context.Context, id int64, owner string) (bool, error) {
	res, err := r.db.ExecContext(ctx, lockQuery, id, owner)
	if err != nil {
		return false, fmt.Errorf("failed to lock plan %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to lock plan %d: %w", id, err)
	}
	return n == 1, nil
}

// Unlock releases the plan lock if owner still holds it
func (r *Repository) Unlock(ctx context.Context, id int64, owner string) error {
	res, err := r.db.ExecContext(ctx, unlockQuery, id, owner)
	if err != nil {
		return fmt.Errorf("failed to unlock plan %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to unlock plan %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: plan %d owner %s", repository.ErrLockNotHeld, id, owner)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// UpdateExecutionStatus persists the scheduling state after an attempt.
// Cancelled plans are never updated again.
func (r *Repository) UpdateExecutionStatus(ctx context.Context, id int64, update models.ExecutionUpdate) error {
	return updateExecutionStatus(ctx, r.db, id, update)
}

func updateExecutionStatus(ctx context.Context, db execer, id int64, update models.ExecutionUpdate) error {
	if err := update.Validate(); err != nil {
		return fmt.Errorf("invalid execution update for plan %d: %w", id, err)
	}

	query := `
		UPDATE brokerage.systematic_transactions
		SET status = $2,
		    next_execution_date = $3,
		    last_execution_date = $4,
		    execution_count = $5,
		    last_failure_reason = $6,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = 'PENDING'`
	res, err := db.ExecContext(ctx, query, id,
		string(update.Status), nullDate(update.NextExecutionDate), nullDate(update.LastExecutionDate),
		update.ExecutionCount, update.FailureReason)
	if err != nil {
		return fmt.Errorf("failed to update plan %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update plan %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: pending plan %d", repository.ErrNotFound, id)
	}
	return nil
}

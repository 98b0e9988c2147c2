package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dan9191/brokerage-service/internal/models"
)

const defaultLogLimit = 100

// CreateExecutionLog appends an audit entry
func (r *Repository) CreateExecutionLog(ctx context.Context, entry *models.ExecutionLog) error {
	query := `
		INSERT INTO brokerage.execution_logs
			(plan_id, run_id, target_date, status, message, units, price, executed_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		entry.PlanID, entry.RunID, models.DateOnly(entry.TargetDate), string(entry.Status), entry.Message,
		entry.Units, entry.Price, entry.ExecutedAt, entry.DurationMs,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to create execution log: %w", err)
	}
	return nil
}

// ListExecutionLogs returns the plan's history, newest first
func (r *Repository) ListExecutionLogs(ctx context.Context, planID int64, limit int) ([]models.ExecutionLog, error) {
	query := `
		SELECT id, plan_id, run_id, target_date, status, message, units, price, executed_at, duration_ms
		FROM brokerage.execution_logs
		WHERE plan_id = $1
		ORDER BY executed_at DESC, id DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, planID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list execution logs: %w", err)
	}
	return scanLogs(rows)
}

// ListRecentExecutionLogs returns the latest entries across all plans
func (r *Repository) ListRecentExecutionLogs(ctx context.Context, limit int) ([]models.ExecutionLog, error) {
	query := `
		SELECT id, plan_id, run_id, target_date, status, message, units, price, executed_at, duration_ms
		FROM brokerage.execution_logs
		ORDER BY executed_at DESC, id DESC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list execution logs: %w", err)
	}
	return scanLogs(rows)
}

func scanLogs(rows *sql.Rows) ([]models.ExecutionLog, error) {
	defer rows.Close()

	logs := make([]models.ExecutionLog, 0)
	for rows.Next() {
		var (
			l      models.ExecutionLog
			status string
		)
		if err := rows.Scan(&l.ID, &l.PlanID, &l.RunID, &l.TargetDate, &status, &l.Message,
			&l.Units, &l.Price, &l.ExecutedAt, &l.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}
		l.Status = models.ExecutionStatus(status)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate execution logs: %w", err)
	}
	return logs, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultLogLimit
	}
	return limit
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/brokerage-service/internal/models"
	"github.com/Dan9191/brokerage-service/internal/repository"
)

// WithinTx runs fn inside a database transaction. Rows read through the tx
// are locked FOR UPDATE, so concurrent units on the same account or holding
// are serialised by postgres.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	if err := fn(&ledgerTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger transaction: %w", err)
	}
	return nil
}

type ledgerTx struct {
	tx *sql.Tx
}

func (t *ledgerTx) FindAccountByUser(ctx context.Context, userID int64) (*models.Account, error) {
	acc := &models.Account{}
	query := `
		SELECT id, user_id, balance, currency, created_at, updated_at
		FROM brokerage.accounts
		WHERE user_id = $1
		FOR UPDATE`
	err := t.tx.QueryRowContext(ctx, query, userID).
		Scan(&acc.ID, &acc.UserID, &acc.Balance, &acc.Currency, &acc.CreatedAt, &acc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account for user %d", repository.ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return acc, nil
}

func (t *ledgerTx) UpdateBalance(ctx context.Context, userID int64, balance decimal.Decimal) error {
	query := `
		UPDATE brokerage.accounts
		SET balance = $2, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1`
	res, err := t.tx.ExecContext(ctx, query, userID, balance)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: account for user %d", repository.ErrNotFound, userID)
	}
	return nil
}

func (t *ledgerTx) FindHolding(ctx context.Context, userID int64, fundID string) (*models.Holding, error) {
	h := &models.Holding{}
	query := `
		SELECT id, user_id, fund_id, fund_name, units, created_at, updated_at
		FROM brokerage.holdings
		WHERE user_id = $1 AND fund_id = $2
		FOR UPDATE`
	err := t.tx.QueryRowContext(ctx, query, userID, fundID).
		Scan(&h.ID, &h.UserID, &h.FundID, &h.FundName, &h.Units, &h.CreatedAt, &h.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find holding: %w", err)
	}
	return h, nil
}

func (t *ledgerTx) CreateHolding(ctx context.Context, holding *models.Holding) error {
	query := `
		INSERT INTO brokerage.holdings (user_id, fund_id, fund_name, units, created_at, updated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := t.tx.QueryRowContext(ctx, query, holding.UserID, holding.FundID, holding.FundName, holding.Units).
		Scan(&holding.ID, &holding.CreatedAt, &holding.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: holding for user %d fund %s", repository.ErrDuplicate, holding.UserID, holding.FundID)
	}
	if err != nil {
		return fmt.Errorf("failed to create holding: %w", err)
	}
	return nil
}

func (t *ledgerTx) UpdateUnits(ctx context.Context, holdingID int64, units decimal.Decimal) error {
	query := `
		UPDATE brokerage.holdings
		SET units = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`
	res, err := t.tx.ExecContext(ctx, query, holdingID, units)
	if err != nil {
		return fmt.Errorf("failed to update units: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: holding %d", repository.ErrNotFound, holdingID)
	}
	return nil
}

// UpdateExecutionStatus advances the plan inside the ledger transaction, so
// the schedule and the money it accounts for commit together.
func (t *ledgerTx) UpdateExecutionStatus(ctx context.Context, planID int64, update models.ExecutionUpdate) error {
	return updateExecutionStatus(ctx, t.tx, planID, update)
}

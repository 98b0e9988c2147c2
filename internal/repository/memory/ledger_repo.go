package memory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/brokerage-service/internal/models"
	"github.com/Dan9191/brokerage-service/internal/repository"
)

// WithinTx serialises all ledger units. Changes are staged on the tx and
// copied into the store only when fn succeeds. Plan updates staged on the tx
// are re-checked and applied together with the ledger changes.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	tx := &ledgerTx{
		store:    s,
		accounts: make(map[int64]models.Account),
		holdings: make(map[int64]models.Holding),
		plans:    make(map[int64]models.ExecutionUpdate),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[*models.ScheduledPlan]models.ExecutionUpdate, len(tx.plans))
	for id, update := range tx.plans {
		p, err := s.checkExecutionUpdate(id, update)
		if err != nil {
			return err
		}
		staged[p] = update
	}
	now := s.now()
	for p, update := range staged {
		applyExecutionUpdate(p, update, now)
	}
	for userID, acc := range tx.accounts {
		s.accounts[userID] = acc
	}
	for id, h := range tx.holdings {
		s.holdings[id] = h
	}
	return nil
}

type ledgerTx struct {
	store    *Store
	accounts map[int64]models.Account
	holdings map[int64]models.Holding
	plans    map[int64]models.ExecutionUpdate
}

func (t *ledgerTx) UpdateExecutionStatus(ctx context.Context, planID int64, update models.ExecutionUpdate) error {
	t.store.mu.RLock()
	_, err := t.store.checkExecutionUpdate(planID, update)
	t.store.mu.RUnlock()
	if err != nil {
		return err
	}
	t.plans[planID] = update
	return nil
}

func (t *ledgerTx) FindAccountByUser(ctx context.Context, userID int64) (*models.Account, error) {
	if acc, ok := t.accounts[userID]; ok {
		return &acc, nil
	}
	acc, ok := t.store.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("%w: account for user %d", repository.ErrNotFound, userID)
	}
	return &acc, nil
}

func (t *ledgerTx) UpdateBalance(ctx context.Context, userID int64, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return fmt.Errorf("balance for user %d cannot be negative: %s", userID, balance)
	}
	acc, err := t.FindAccountByUser(ctx, userID)
	if err != nil {
		return err
	}
	acc.Balance = balance
	acc.UpdatedAt = t.store.now()
	t.accounts[userID] = *acc
	return nil
}

func (t *ledgerTx) FindHolding(ctx context.Context, userID int64, fundID string) (*models.Holding, error) {
	for _, h := range t.holdings {
		if h.UserID == userID && h.FundID == fundID {
			return &h, nil
		}
	}
	for _, h := range t.store.holdings {
		if h.UserID == userID && h.FundID == fundID {
			return &h, nil
		}
	}
	return nil, nil
}

func (t *ledgerTx) CreateHolding(ctx context.Context, holding *models.Holding) error {
	if holding.Units.IsNegative() {
		return fmt.Errorf("holding units cannot be negative: %s", holding.Units)
	}
	existing, _ := t.FindHolding(ctx, holding.UserID, holding.FundID)
	if existing != nil {
		return fmt.Errorf("%w: holding for user %d fund %s", repository.ErrDuplicate, holding.UserID, holding.FundID)
	}
	t.store.nextHoldingID++
	holding.ID = t.store.nextHoldingID
	now := t.store.now()
	holding.CreatedAt = now
	holding.UpdatedAt = now
	t.holdings[holding.ID] = *holding
	return nil
}

func (t *ledgerTx) UpdateUnits(ctx context.Context, holdingID int64, units decimal.Decimal) error {
	if units.IsNegative() {
		return fmt.Errorf("holding %d units cannot be negative: %s", holdingID, units)
	}
	h, ok := t.holdings[holdingID]
	if !ok {
		h, ok = t.store.holdings[holdingID]
	}
	if !ok {
		return fmt.Errorf("%w: holding %d", repository.ErrNotFound, holdingID)
	}
	h.Units = units
	h.UpdatedAt = t.store.now()
	t.holdings[holdingID] = h
	return nil
}

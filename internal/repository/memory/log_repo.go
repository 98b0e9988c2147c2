package memory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/brokerage-service/internal/models"
	"github.com/Dan9191/brokerage-service/internal/repository"
)

func (s *Store) CreateExecutionLog(ctx context.Context, entry *models.ExecutionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLogID++
	entry.ID = s.nextLogID
	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = s.now()
	}
	s.logs = append(s.logs, *entry)
	return nil
}

// ListExecutionLogs returns the plan's entries, newest first
func (s *Store) ListExecutionLogs(ctx context.Context, planID int64, limit int) ([]models.ExecutionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.ExecutionLog, 0)
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].PlanID != planID {
			continue
		}
		result = append(result, s.logs[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *Store) ListRecentExecutionLogs(ctx context.Context, limit int) ([]models.ExecutionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.ExecutionLog, 0)
	for i := len(s.logs) - 1; i >= 0; i-- {
		result = append(result, s.logs[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *Store) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, exists := s.users[id]
	if !exists {
		return nil, fmt.Errorf("%w: user %d", repository.ErrNotFound, id)
	}
	return &u, nil
}

// ---------------------------------------------------------------------------
// Seeding and inspection
// ---------------------------------------------------------------------------

// AddUser registers a user
func (s *Store) AddUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// AddAccount opens an account for userID with the given balance
func (s *Store) AddAccount(userID int64, balance decimal.Decimal) {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	now := s.now()
	s.accounts[userID] = models.Account{
		ID:        userID,
		UserID:    userID,
		Balance:   balance,
		Currency:  "INR",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddHolding records units of fundID owned by userID
func (s *Store) AddHolding(userID int64, fundID string, units decimal.Decimal) models.Holding {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	s.nextHoldingID++
	now := s.now()
	h := models.Holding{
		ID:        s.nextHoldingID,
		UserID:    userID,
		FundID:    fundID,
		Units:     units,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.holdings[h.ID] = h
	return h
}

// Account returns the committed account of userID
func (s *Store) Account(userID int64) (models.Account, bool) {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()
	acc, ok := s.accounts[userID]
	return acc, ok
}

// Holding returns the committed holding of userID in fundID
func (s *Store) Holding(userID int64, fundID string) (models.Holding, bool) {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()
	for _, h := range s.holdings {
		if h.UserID == userID && h.FundID == fundID {
			return h, true
		}
	}
	return models.Holding{}, false
}

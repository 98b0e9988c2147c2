package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Dan9191/brokerage-service/internal/models"
	"github.com/Dan9191/brokerage-service/internal/repository"
)

func (s *Store) CreatePlan(ctx context.Context, plan *models.ScheduledPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if plan.ID != 0 {
		if _, exists := s.plans[plan.ID]; exists {
			return fmt.Errorf("%w: plan %d", repository.ErrDuplicate, plan.ID)
		}
	} else {
		s.nextPlanID++
		plan.ID = s.nextPlanID
	}
	if plan.ID > s.nextPlanID {
		s.nextPlanID = plan.ID
	}
	if plan.Status == "" {
		plan.Status = models.PlanStatusPending
	}

	now := s.now()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	stored := *plan
	s.plans[plan.ID] = &stored
	return nil
}

func (s *Store) GetPlan(ctx context.Context, id int64) (*models.ScheduledPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.plans[id]
	if !exists {
		return nil, fmt.Errorf("%w: plan %d", repository.ErrNotFound, id)
	}
	out := *p
	return &out, nil
}

func (s *Store) ReleaseStaleLocks(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-olderThan)
	var released int64
	for _, p := range s.plans {
		if p.LockedAt != nil && p.LockedAt.Before(cutoff) {
			p.LockedAt = nil
			p.LockOwner = ""
			released++
		}
	}
	return released, nil
}

func (s *Store) FindDuePlans(ctx context.Context, date time.Time) ([]models.ScheduledPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.ScheduledPlan, 0)
	for _, p := range s.plans {
		if p.IsDue(date) {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.NextExecutionDate.Equal(*b.NextExecutionDate) {
			return a.NextExecutionDate.Before(*b.NextExecutionDate)
		}
		return a.ID < b.ID
	})
	return result, nil
}

func (s *Store) LockForExecution(ctx context.Context, id int64, owner string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.plans[id]
	if !exists {
		return false, fmt.Errorf("%w: plan %d", repository.ErrNotFound, id)
	}
	if p.LockedAt != nil {
		return false, nil
	}
	now := s.now()
	p.LockedAt = &now
	p.LockOwner = owner
	return true, nil
}

func (s *Store) Unlock(ctx context.Context, id int64, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.plans[id]
	if !exists {
		return fmt.Errorf("%w: plan %d", repository.ErrNotFound, id)
	}
	if p.LockedAt == nil || p.LockOwner != owner {
		return fmt.Errorf("%w: plan %d owner %s", repository.ErrLockNotHeld, id, owner)
	}
	p.LockedAt = nil
	p.LockOwner = ""
	return nil
}

func (s *Store) UpdateExecutionStatus(ctx context.Context, id int64, update models.ExecutionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.checkExecutionUpdate(id, update)
	if err != nil {
		return err
	}
	applyExecutionUpdate(p, update, s.now())
	return nil
}

// checkExecutionUpdate validates update against the stored plan. s.mu must be held.
func (s *Store) checkExecutionUpdate(id int64, update models.ExecutionUpdate) (*models.ScheduledPlan, error) {
	if err := update.Validate(); err != nil {
		return nil, fmt.Errorf("invalid execution update for plan %d: %w", id, err)
	}
	p, exists := s.plans[id]
	if !exists {
		return nil, fmt.Errorf("%w: plan %d", repository.ErrNotFound, id)
	}
	if !p.Status.CanTransitionTo(update.Status) {
		return nil, fmt.Errorf("plan %d cannot move from %s to %s", id, p.Status, update.Status)
	}
	return p, nil
}

func applyExecutionUpdate(p *models.ScheduledPlan, update models.ExecutionUpdate, now time.Time) {
	p.Status = update.Status
	p.NextExecutionDate = update.NextExecutionDate
	p.LastExecutionDate = update.LastExecutionDate
	p.ExecutionCount = update.ExecutionCount
	p.LastFailureReason = update.FailureReason
	p.UpdatedAt = now
}

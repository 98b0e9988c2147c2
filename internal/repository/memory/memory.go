// Package memory is an in-process implementation of the repository
// interfaces, used for local runs and as the test double of the engine.
package memory

import (
	"sync"
	"time"

	"github.com/Dan9191/brokerage-service/internal/models"
	"github.com/Dan9191/brokerage-service/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// Store keeps plans, ledgers, users and execution logs in maps.
// Plan state and the ledger are guarded by separate mutexes so that a long
// ledger unit never blocks lock acquisition on unrelated plans.
type Store struct {
	mu            sync.RWMutex
	plans         map[int64]*models.ScheduledPlan
	logs          []models.ExecutionLog
	users         map[int64]models.User
	nextPlanID    int64
	nextLogID     int64
	nextHoldingID int64

	ledgerMu sync.Mutex
	accounts map[int64]models.Account // keyed by user id
	holdings map[int64]models.Holding // keyed by holding id

	now func() time.Time
}

// NewStore returns an empty Store
func NewStore() *Store {
	return &Store{
		plans:    make(map[int64]*models.ScheduledPlan),
		users:    make(map[int64]models.User),
		accounts: make(map[int64]models.Account),
		holdings: make(map[int64]models.Holding),
		now:      time.Now,
	}
}

// SetClock replaces the clock used to stamp locks and records
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

package systematic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/brokerage-service/internal/models"
	"github.com/Dan9191/brokerage-service/internal/repository"
	"github.com/Dan9191/brokerage-service/internal/repository/memory"
)

var target = day(2026, 1, 16)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// staticPrices serves fixed NAVs and counts lookups
type staticPrices struct {
	mu    sync.Mutex
	navs  map[string]decimal.Decimal
	err   error
	calls map[string]int
}

func newStaticPrices(navs map[string]string) *staticPrices {
	p := &staticPrices{navs: make(map[string]decimal.Decimal), calls: make(map[string]int)}
	for fund, nav := range navs {
		p.navs[fund] = dec(nav)
	}
	return p
}

func (p *staticPrices) LatestPrice(ctx context.Context, fundID string) (models.Price, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls[fundID]++
	if p.err != nil {
		return models.Price{}, p.err
	}
	nav, ok := p.navs[fundID]
	if !ok {
		return models.Price{}, errors.New("unknown fund")
	}
	return models.Price{FundID: fundID, NAV: nav, AsOf: target}, nil
}

// blockingPrices parks the first lookup until release is closed
type blockingPrices struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
	nav     decimal.Decimal
}

func (p *blockingPrices) LatestPrice(ctx context.Context, fundID string) (models.Price, error) {
	p.once.Do(func() { close(p.entered) })
	select {
	case <-p.release:
	case <-ctx.Done():
		return models.Price{}, ctx.Err()
	}
	return models.Price{FundID: fundID, NAV: p.nav}, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	results []ExecutionResult
}

func (n *recordingNotifier) NotifyExecution(ctx context.Context, plan models.ScheduledPlan, result ExecutionResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, result)
	return nil
}

type recordingMetrics struct {
	mu         sync.Mutex
	executions []ExecutionResult
	runs       []RunSummary
}

func (m *recordingMetrics) ObserveExecution(result ExecutionResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions = append(m.executions, result)
}

func (m *recordingMetrics) ObserveRun(summary RunSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, summary)
}

type fixture struct {
	store    *memory.Store
	engine   *Engine
	hook     *test.Hook
	notifier *recordingNotifier
	metrics  *recordingMetrics
}

func newFixture(t *testing.T, prices PriceSource, opts Options) *fixture {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	store := memory.NewStore()
	f := &fixture{
		store:    store,
		hook:     hook,
		notifier: &recordingNotifier{},
		metrics:  &recordingMetrics{},
	}
	f.engine = New(Deps{
		Plans:    store,
		Ledger:   store,
		Logs:     store,
		Prices:   prices,
		Notifier: f.notifier,
		Metrics:  f.metrics,
		Logger:   logger,
	}, opts)
	return f
}

func (f *fixture) addPlan(t *testing.T, plan models.ScheduledPlan) models.ScheduledPlan {
	t.Helper()

	if plan.UserID == 0 {
		plan.UserID = 1
	}
	if plan.Frequency == "" {
		plan.Frequency = models.FrequencyMonthly
	}
	if plan.NextExecutionDate == nil {
		next := target
		plan.NextExecutionDate = &next
	}
	require.NoError(t, f.store.CreatePlan(context.Background(), &plan))
	return plan
}

func (f *fixture) plan(t *testing.T, id int64) *models.ScheduledPlan {
	t.Helper()

	p, err := f.store.GetPlan(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) logs(t *testing.T, planID int64) []models.ExecutionLog {
	t.Helper()

	logs, err := f.store.ListExecutionLogs(context.Background(), planID, 0)
	require.NoError(t, err)
	return logs
}

// failingLedger injects errors into ledger units: CreateHolding always fails
// with failCreate, the in-unit schedule update fails once with failUpdate.
type failingLedger struct {
	repository.Ledger
	failCreate error

	mu         sync.Mutex
	failUpdate error
}

func (l *failingLedger) WithinTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	return l.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		return fn(&failingTx{LedgerTx: tx, ledger: l})
	})
}

func (l *failingLedger) takeUpdateError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.failUpdate
	l.failUpdate = nil
	return err
}

type failingTx struct {
	repository.LedgerTx
	ledger *failingLedger
}

func (t *failingTx) CreateHolding(ctx context.Context, holding *models.Holding) error {
	if t.ledger.failCreate != nil {
		return t.ledger.failCreate
	}
	return t.LedgerTx.CreateHolding(ctx, holding)
}

func (t *failingTx) UpdateExecutionStatus(ctx context.Context, planID int64, update models.ExecutionUpdate) error {
	if err := t.ledger.takeUpdateError(); err != nil {
		return err
	}
	return t.LedgerTx.UpdateExecutionStatus(ctx, planID, update)
}

// brokenDueQuery fails the due plan query
type brokenDueQuery struct {
	*memory.Store
}

func (b brokenDueQuery) FindDuePlans(ctx context.Context, date time.Time) ([]models.ScheduledPlan, error) {
	return nil, errors.New("connection refused")
}

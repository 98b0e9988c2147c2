// Package systematic executes due installments of SIP, SWP and STP plans.
//
// Each run releases stale execution locks, loads the plans whose next
// execution date has arrived and executes them with a bounded number of
// workers. A plan is only touched while its execution lock is held, and its
// scheduling state is re-read under the lock, so overlapping runs turn into
// SKIPPED outcomes instead of double execution.
package systematic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Dan9191/brokerage-service/internal/models"
	"github.com/Dan9191/brokerage-service/internal/repository"
)

const (
	defaultWorkers        = 4
	defaultStaleLockAfter = 30 * time.Minute
	defaultPriceTimeout   = 10 * time.Second

	unlockAttempts = 3
	unlockDelay    = 200 * time.Millisecond
)

// Notifier tells plan owners about completed or failed installments
type Notifier interface {
	NotifyExecution(ctx context.Context, plan models.ScheduledPlan, result ExecutionResult) error
}

// Recorder receives execution metrics
type Recorder interface {
	ObserveExecution(result ExecutionResult)
	ObserveRun(summary RunSummary)
}

// Deps are the collaborators of the engine. Notifier and Metrics are optional.
type Deps struct {
	Plans    repository.PlanStore
	Ledger   repository.Ledger
	Logs     repository.ExecutionLogStore
	Prices   PriceSource
	Notifier Notifier
	Metrics  Recorder
	Logger   *logrus.Logger
}

// Options tune a run. Zero values fall back to defaults.
type Options struct {
	Workers        int
	StaleLockAfter time.Duration
	PriceTimeout   time.Duration
	Now            func() time.Time
}

// Engine is the systematic plan orchestrator
type Engine struct {
	plans    repository.PlanStore
	logs     repository.ExecutionLogStore
	notifier Notifier
	metrics  Recorder
	log      *logrus.Logger

	sip Strategy
	swp Strategy
	stp Strategy

	workers        int
	staleLockAfter time.Duration
	now            func() time.Time
}

// New wires an Engine
func New(deps Deps, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.StaleLockAfter <= 0 {
		opts.StaleLockAfter = defaultStaleLockAfter
	}
	if opts.PriceTimeout <= 0 {
		opts.PriceTimeout = defaultPriceTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}

	q := quoter{source: deps.Prices, timeout: opts.PriceTimeout}
	return &Engine{
		plans:          deps.Plans,
		logs:           deps.Logs,
		notifier:       deps.Notifier,
		metrics:        deps.Metrics,
		log:            deps.Logger,
		sip:            &sipStrategy{ledger: deps.Ledger, quotes: q},
		swp:            &swpStrategy{ledger: deps.Ledger, quotes: q},
		stp:            &stpStrategy{ledger: deps.Ledger, quotes: q},
		workers:        opts.Workers,
		staleLockAfter: opts.StaleLockAfter,
		now:            opts.Now,
	}
}

// strategyFor is the single dispatch point from plan type to strategy
func (e *Engine) strategyFor(t models.PlanType) (Strategy, error) {
	switch t {
	case models.PlanTypeSIP:
		return e.sip, nil
	case models.PlanTypeSWP:
		return e.swp, nil
	case models.PlanTypeSTP:
		return e.stp, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPlanType, string(t))
	}
}

// ExecuteDuePlans runs every plan due on or before targetDate. Per-plan
// failures are reported in the summary; an error is returned only when the
// due plans could not be loaded.
func (e *Engine) ExecuteDuePlans(ctx context.Context, targetDate time.Time) (RunSummary, error) {
	start := e.now()
	target := models.DateOnly(targetDate)
	summary := RunSummary{
		RunID:      uuid.NewString(),
		TargetDate: target,
		Details:    make([]ExecutionResult, 0),
	}
	log := e.log.WithFields(logrus.Fields{
		"run_id":      summary.RunID,
		"target_date": target.Format(time.DateOnly),
	})

	released, err := e.plans.ReleaseStaleLocks(ctx, e.staleLockAfter)
	if err != nil {
		log.WithError(err).Error("Failed to release stale execution locks")
	} else if released > 0 {
		log.Warnf("Released %d stale execution locks", released)
	}
	summary.StaleLocksReleased = released

	plans, err := e.plans.FindDuePlans(ctx, target)
	if err != nil {
		summary.DurationMs = e.now().Sub(start).Milliseconds()
		return summary, fmt.Errorf("failed to find due plans: %w", err)
	}
	summary.TotalDue = len(plans)

	results := make([]ExecutionResult, len(plans))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, plan := range plans {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = e.cancelled(ctx, summary.RunID, plan, target, log)
				return nil
			}
			results[i] = e.executeOne(ctx, summary.RunID, plan, target)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		summary.add(r)
	}
	summary.DurationMs = e.now().Sub(start).Milliseconds()

	if e.metrics != nil {
		e.metrics.ObserveRun(summary)
	}
	log.WithFields(logrus.Fields{
		"total_due": summary.TotalDue,
		"executed":  summary.Executed,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	}).Info("Systematic run finished")
	return summary, nil
}

// ExecuteOne executes a single installment of plan for targetDate. It never
// returns an error: every failure is folded into the result and the
// execution log.
func (e *Engine) ExecuteOne(ctx context.Context, plan models.ScheduledPlan, targetDate time.Time) ExecutionResult {
	return e.executeOne(ctx, uuid.NewString(), plan, models.DateOnly(targetDate))
}

// executeOne is not cancellable once started: a caller going away must not
// interrupt an installment between its ledger unit and lock release.
func (e *Engine) executeOne(ctx context.Context, runID string, plan models.ScheduledPlan, target time.Time) ExecutionResult {
	ctx = context.WithoutCancel(ctx)
	start := e.now()
	res := ExecutionResult{PlanID: plan.ID, PlanType: plan.Type, FundID: plan.FundID}
	log := e.log.WithFields(logrus.Fields{
		"run_id":    runID,
		"plan_id":   plan.ID,
		"plan_type": plan.Type,
	})

	locked, err := e.plans.LockForExecution(ctx, plan.ID, runID)
	switch {
	case err != nil:
		res.Status = models.ExecutionFailed
		res.Message = fmt.Sprintf("Lock error: %v", err)
	case !locked:
		res.Status = models.ExecutionSkipped
		res.Message = msgAlreadyLocked
	default:
		res = e.executeLocked(ctx, plan.ID, target, res, log)
		e.unlock(ctx, plan.ID, runID, log)
	}

	res.DurationMs = e.now().Sub(start).Milliseconds()
	e.record(ctx, runID, plan, target, res, log)
	return res
}

// executeLocked runs with the plan lock held
func (e *Engine) executeLocked(ctx context.Context, planID int64, target time.Time, res ExecutionResult, log *logrus.Entry) ExecutionResult {
	// The copy returned by the due query may predate another run's update.
	plan, err := e.plans.GetPlan(ctx, planID)
	if err != nil {
		res.Status = models.ExecutionFailed
		res.Message = fmt.Sprintf("Failed to load plan: %v", err)
		return res
	}
	if !plan.IsDue(target) {
		res.Status = models.ExecutionSkipped
		res.Message = notDueMessage(*plan)
		return res
	}

	if stop := CheckStopConditions(*plan, target); stop.ShouldStop {
		if err := e.plans.UpdateExecutionStatus(ctx, plan.ID, models.CancelSchedule(*plan, stop.Reason)); err != nil {
			res.Status = models.ExecutionFailed
			res.Message = fmt.Sprintf("Failed to cancel plan: %v", err)
			return res
		}
		log.WithField("reason", stop.Reason).Info("Plan cancelled")
		res.Status = models.ExecutionSkipped
		res.Message = stop.Reason
		return res
	}

	next, err := NextExecutionDate(target, plan.Frequency)
	if err != nil {
		log.WithError(err).Error("Plan has corrupted scheduling data")
		return e.fail(ctx, *plan, res, err, log)
	}

	strategy, err := e.strategyFor(plan.Type)
	if err != nil {
		log.WithError(err).Error("Plan has corrupted scheduling data")
		return e.fail(ctx, *plan, res, err, log)
	}

	update := models.AdvanceSchedule(*plan, target, next)
	outcome, err := strategy.Execute(ctx, *plan, func(ctx context.Context, tx repository.LedgerTx) error {
		if err := tx.UpdateExecutionStatus(ctx, plan.ID, update); err != nil {
			return fmt.Errorf("failed to advance schedule: %w", err)
		}
		return nil
	})
	if err != nil {
		return e.fail(ctx, *plan, res, err, log)
	}
	res.Units = outcome.Units
	res.Price = outcome.Price
	res.BalanceAfter = outcome.BalanceAfter
	res.Status = models.ExecutionSuccess
	res.NextExecutionDate = update.NextExecutionDate
	res.Message = successMessage(*plan, outcome)
	return res
}

// unlock releases the lock taken by runID. A lock swept as stale and taken
// by another run is left to its new owner.
func (e *Engine) unlock(ctx context.Context, planID int64, runID string, log *logrus.Entry) {
	lost := false
	err := retry(ctx, unlockAttempts, unlockDelay, func() error {
		err := e.plans.Unlock(ctx, planID, runID)
		if errors.Is(err, repository.ErrLockNotHeld) {
			lost = true
			return nil
		}
		return err
	})
	switch {
	case err != nil:
		log.WithError(err).Error("Failed to release execution lock")
	case lost:
		log.Warn("Execution lock was taken over by another run")
	}
}

// cancelled reports a plan the run stopped before starting
func (e *Engine) cancelled(ctx context.Context, runID string, plan models.ScheduledPlan, target time.Time, log *logrus.Entry) ExecutionResult {
	res := ExecutionResult{
		PlanID:   plan.ID,
		PlanType: plan.Type,
		FundID:   plan.FundID,
		Status:   models.ExecutionSkipped,
		Message:  msgRunCancelled,
	}
	e.record(ctx, runID, plan, target, res, log.WithFields(logrus.Fields{
		"plan_id":   plan.ID,
		"plan_type": plan.Type,
	}))
	return res
}

// fail records a failed attempt without moving the schedule
func (e *Engine) fail(ctx context.Context, plan models.ScheduledPlan, res ExecutionResult, cause error, log *logrus.Entry) ExecutionResult {
	res.Status = models.ExecutionFailed
	res.Message = failureMessage(cause)
	if err := e.plans.UpdateExecutionStatus(ctx, plan.ID, models.RecordFailure(plan, res.Message)); err != nil {
		log.WithError(err).Error("Failed to store failure reason")
	}
	return res
}

// record writes the audit entry and emits metrics, logs and notifications
func (e *Engine) record(ctx context.Context, runID string, plan models.ScheduledPlan, target time.Time, res ExecutionResult, log *logrus.Entry) {
	ctx = context.WithoutCancel(ctx)

	entry := newExecutionLog(runID, target, res, e.now())
	if err := e.logs.CreateExecutionLog(ctx, entry); err != nil {
		log.WithError(err).Error("Failed to write execution log")
	}
	if e.metrics != nil {
		e.metrics.ObserveExecution(res)
	}

	log = log.WithFields(logrus.Fields{"status": res.Status, "duration_ms": res.DurationMs})
	switch res.Status {
	case models.ExecutionSuccess:
		log.Infof("Installment executed: %s", res.Message)
	case models.ExecutionFailed:
		log.Warnf("Installment failed: %s", res.Message)
	default:
		log.Infof("Installment skipped: %s", res.Message)
	}

	if e.notifier == nil || res.Status == models.ExecutionSkipped {
		return
	}
	if err := e.notifier.NotifyExecution(ctx, plan, res); err != nil {
		log.WithError(err).Warn("Failed to notify plan owner")
	}
}

func successMessage(plan models.ScheduledPlan, o Outcome) string {
	switch plan.Type {
	case models.PlanTypeSIP:
		return fmt.Sprintf("Bought %s units of %s at %s", o.Units, plan.FundID, o.Price)
	case models.PlanTypeSWP:
		return fmt.Sprintf("Sold %s units of %s at %s", o.Units, plan.FundID, o.Price)
	default:
		return fmt.Sprintf("Switched %s units of %s at %s into %s units of %s at %s",
			o.Units, plan.FundID, o.Price, o.TargetUnits, plan.TargetFundID, o.TargetPrice)
	}
}

func notDueMessage(plan models.ScheduledPlan) string {
	if plan.Status != models.PlanStatusPending {
		return fmt.Sprintf("%s: plan is %s", msgNotDue, plan.Status)
	}
	if plan.NextExecutionDate == nil {
		return msgNotDue
	}
	return fmt.Sprintf("%s: next execution on %s", msgNotDue, plan.NextExecutionDate.Format(time.DateOnly))
}

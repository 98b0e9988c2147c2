package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/brokerage-service/internal/systematic"
)

// Executor runs every plan due on a date
type Executor interface {
	ExecuteDuePlans(ctx context.Context, targetDate time.Time) (systematic.RunSummary, error)
}

// Runner triggers the daily execution run on a cron schedule.
// A tick that fires while the previous run is still going is skipped.
type Runner struct {
	cron     *cron.Cron
	executor Executor
	location *time.Location
	log      *logrus.Logger
	baseCtx  context.Context
	now      func() time.Time
}

func New(baseCtx context.Context, executor Executor, loc *time.Location, log *logrus.Logger) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if loc == nil {
		loc = time.UTC
	}
	cronLog := cron.VerbosePrintfLogger(log)
	return &Runner{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		executor: executor,
		location: loc,
		log:      log,
		baseCtx:  baseCtx,
		now:      time.Now,
	}
}

// Schedule registers the execution run under a standard five field spec
func (r *Runner) Schedule(spec string) error {
	if _, err := r.cron.AddFunc(spec, r.RunOnce); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	r.log.Infof("Systematic execution scheduled: %s (%s)", spec, r.location)
	return nil
}

// RunOnce executes the plans due today in the runner's time zone
func (r *Runner) RunOnce() {
	target := r.now().In(r.location)
	summary, err := r.executor.ExecuteDuePlans(r.baseCtx, target)
	if err != nil {
		r.log.WithError(err).Error("Scheduled execution run failed")
		return
	}
	r.log.WithFields(logrus.Fields{
		"run_id":   summary.RunID,
		"executed": summary.Executed,
		"failed":   summary.Failed,
		"skipped":  summary.Skipped,
	}).Info("Scheduled execution run finished")
}

func (r *Runner) Start() {
	r.log.Info("Cron started")
	r.cron.Start()
}

// Stop waits for a running job to finish
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info("Cron stopped")
}

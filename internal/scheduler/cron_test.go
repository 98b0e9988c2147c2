package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/brokerage-service/internal/systematic"
)

type fakeExecutor struct {
	dates []time.Time
	err   error
}

func (f *fakeExecutor) ExecuteDuePlans(ctx context.Context, targetDate time.Time) (systematic.RunSummary, error) {
	f.dates = append(f.dates, targetDate)
	return systematic.RunSummary{RunID: "run-1", Executed: 2}, f.err
}

func TestRunOnce_UsesLocalDate(t *testing.T) {
	logger, hook := test.NewNullLogger()
	exec := &fakeExecutor{}
	loc := time.FixedZone("IST", 5*3600+1800)
	r := New(context.Background(), exec, loc, logger)
	// 20:00 UTC on the 15th is already the 16th in IST
	r.now = func() time.Time { return time.Date(2026, 1, 15, 20, 0, 0, 0, time.UTC) }

	r.RunOnce()

	require.Len(t, exec.dates, 1)
	y, m, d := exec.dates[0].Date()
	assert.Equal(t, 2026, y)
	assert.Equal(t, time.January, m)
	assert.Equal(t, 16, d)
	assert.Equal(t, "Scheduled execution run finished", hook.LastEntry().Message)
}

func TestRunOnce_LogsFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()
	r := New(context.Background(), &fakeExecutor{err: errors.New("db down")}, nil, logger)

	r.RunOnce()

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestSchedule_RejectsBadSpec(t *testing.T) {
	logger, _ := test.NewNullLogger()
	r := New(context.Background(), &fakeExecutor{}, time.UTC, logger)

	assert.Error(t, r.Schedule("every morning"))
	assert.NoError(t, r.Schedule("0 6 * * *"))
	assert.Len(t, r.cron.Entries(), 1)
}

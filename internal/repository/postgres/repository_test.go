package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/brokerage-service/internal/models"
	"github.com/Dan9191/brokerage-service/internal/repository"
)

func TestNullDateRoundTrip(t *testing.T) {
	assert.False(t, nullDate(nil).Valid)
	assert.Nil(t, datePtr(sql.NullTime{}))

	ts := time.Date(2026, 1, 16, 18, 45, 0, 0, time.FixedZone("IST", 5*3600+1800))
	nd := nullDate(&ts)
	assert.True(t, nd.Valid)
	assert.Equal(t, time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC), nd.Time)

	back := datePtr(nd)
	if assert.NotNil(t, back) {
		assert.Equal(t, nd.Time, *back)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})
	assert.True(t, isUniqueViolation(dup))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.False(t, isUniqueViolation(nil))
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, defaultLogLimit, normalizeLimit(0))
	assert.Equal(t, defaultLogLimit, normalizeLimit(-5))
	assert.Equal(t, 20, normalizeLimit(20))
}

func TestSchemaForbidsCancelledWithNextDate(t *testing.T) {
	assert.Contains(t, schema, "CHECK (status = 'PENDING' OR next_execution_date IS NULL)")
	assert.True(t, strings.Contains(schema, "brokerage.execution_logs"))
}

type fakeResult struct{ rows int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, nil }

type recordingExecer struct {
	query string
	args  []any
	rows  int64
}

func (e *recordingExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	e.query = query
	e.args = args
	return fakeResult{rows: e.rows}, nil
}

func TestUpdateExecutionStatus_OnlyMovesPendingPlans(t *testing.T) {
	ctx := context.Background()
	cur := time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)
	next := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
	plan := models.ScheduledPlan{ID: 4, Status: models.PlanStatusPending, NextExecutionDate: &cur}
	update := models.AdvanceSchedule(plan, cur, next)

	db := &recordingExecer{rows: 1}
	require.NoError(t, updateExecutionStatus(ctx, db, 4, update))
	assert.Contains(t, db.query, "WHERE id = $1 AND status = 'PENDING'")
	assert.Equal(t, int64(4), db.args[0])
	assert.Equal(t, 1, db.args[4])

	db.rows = 0
	err := updateExecutionStatus(ctx, db, 4, update)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = updateExecutionStatus(ctx, &recordingExecer{rows: 1}, 4, models.ExecutionUpdate{Status: models.PlanStatusPending})
	assert.Error(t, err, "pending update without a next date is rejected before hitting the database")
}

func TestLockQueries_UseOwnerAndDatabaseClock(t *testing.T) {
	assert.Contains(t, unlockQuery, "lock_owner = $2")
	assert.Contains(t, lockQuery, "locked_at = CURRENT_TIMESTAMP")
	assert.Contains(t, releaseStaleLocksQuery, "CURRENT_TIMESTAMP - make_interval(secs => $1)")
}

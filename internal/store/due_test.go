// internal/store/due_test.go
package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recurring-scheduler/internal/models"
)

// ==========================
// GetDue
// ==========================

func TestSeriesStore_GetDue_OverfetchSignalsMore(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	a := testSeries(func(s *models.RecurringSeries) { s.ID = "series-a" })
	b := testSeries(func(s *models.RecurringSeries) { s.ID = "series-b" })
	c := testSeries(func(s *models.RecurringSeries) { s.ID = "series-c" })

	// limit 2 fetches 3; the extra row is trimmed and reported as hasMore.
	mock.ExpectQuery(`SELECT (.+) FROM deal_recurring\s+WHERE status = 'active' AND next_scheduled_at <= \$1`).
		WithArgs(sqlmock.AnyArg(), 3).
		WillReturnRows(seriesRows(a, b, c))

	s := NewSeriesStore(db, createTestLogger(t))
	due, hasMore, err := s.GetDue(context.Background(), 2)

	require.NoError(t, err)
	assert.Len(t, due, 2)
	assert.True(t, hasMore)
	assert.Equal(t, "series-a", due[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeriesStore_GetDue_EmptyScan(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM deal_recurring`).
		WithArgs(sqlmock.AnyArg(), DefaultBatchSize+1).
		WillReturnRows(seriesRows())

	s := NewSeriesStore(db, createTestLogger(t))
	due, hasMore, err := s.GetDue(context.Background(), 0)

	require.NoError(t, err)
	assert.Empty(t, due)
	assert.False(t, hasMore)
}

// ==========================
// MarkGenerated
// ==========================

func TestSeriesStore_MarkGenerated_AdvancesAnchoredOnSchedule(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	// Monthly on the 1st, due instant just passed: the next instant is
	// anchored on the scheduled date, not on the time the scheduler ran.
	prior := time.Now().UTC().Add(-time.Hour)
	scheduled := time.Date(prior.Year(), prior.Month(), 1, 0, 0, 0, 0, time.UTC)
	current := testSeries(func(s *models.RecurringSeries) {
		s.NextScheduledAt = &scheduled
	})

	mock.ExpectQuery(`SELECT (.+) FROM deal_recurring`).
		WithArgs("series-1", "team-1").
		WillReturnRows(seriesRows(current))

	next := scheduled.AddDate(0, 1, 0)
	updated := testSeries(func(s *models.RecurringSeries) {
		s.DealsGenerated = 3
		s.NextScheduledAt = &next
	})
	mock.ExpectQuery(`UPDATE deal_recurring`).
		WithArgs("series-1", "team-1", 3, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(seriesRows(updated))

	s := NewSeriesStore(db, createTestLogger(t))
	result, err := s.MarkGenerated(context.Background(), "series-1", "team-1")

	require.NoError(t, err)
	assert.Equal(t, 3, result.Series.DealsGenerated)
	assert.False(t, result.Completed)
	assert.Equal(t, 0, result.Series.ConsecutiveFailures)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeriesStore_MarkGenerated_SkipsMissedCycles(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	// Scheduled three months ago: two intermediate cycles are skipped and
	// the next instant lands in the future.
	scheduled := time.Now().UTC().AddDate(0, -3, 0)
	scheduled = time.Date(scheduled.Year(), scheduled.Month(), 1, 0, 0, 0, 0, time.UTC)
	current := testSeries(func(s *models.RecurringSeries) {
		s.NextScheduledAt = &scheduled
	})

	mock.ExpectQuery(`SELECT (.+) FROM deal_recurring`).
		WithArgs("series-1", "team-1").
		WillReturnRows(seriesRows(current))

	mock.ExpectQuery(`UPDATE deal_recurring`).
		WillReturnRows(seriesRows(testSeries(func(s *models.RecurringSeries) {
			s.DealsGenerated = 3
		})))

	s := NewSeriesStore(db, createTestLogger(t))
	result, err := s.MarkGenerated(context.Background(), "series-1", "team-1")

	require.NoError(t, err)
	assert.Greater(t, result.SkippedCycles, 0)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeriesStore_MarkGenerated_CompletesAtEndCount(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	scheduled := time.Now().UTC().Add(-time.Hour)
	current := testSeries(func(s *models.RecurringSeries) {
		s.EndType = models.EndTypeAfterCount
		s.EndCount = intPtr(3)
		s.DealsGenerated = 2
		s.NextScheduledAt = &scheduled
	})

	mock.ExpectQuery(`SELECT (.+) FROM deal_recurring`).
		WithArgs("series-1", "team-1").
		WillReturnRows(seriesRows(current))

	completed := testSeries(func(s *models.RecurringSeries) {
		s.EndType = models.EndTypeAfterCount
		s.EndCount = intPtr(3)
		s.DealsGenerated = 3
		s.Status = models.StatusCompleted
		s.NextScheduledAt = nil
	})
	mock.ExpectQuery(`UPDATE deal_recurring\s+SET deals_generated = \$3, consecutive_failures = 0, last_generated_at = \$4,\s+next_scheduled_at = NULL, status = 'completed'`).
		WithArgs("series-1", "team-1", 3, sqlmock.AnyArg()).
		WillReturnRows(seriesRows(completed))

	s := NewSeriesStore(db, createTestLogger(t))
	result, err := s.MarkGenerated(context.Background(), "series-1", "team-1")

	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, models.StatusCompleted, result.Series.Status)
	assert.Nil(t, result.Series.NextScheduledAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// RecordFailure
// ==========================

func TestSeriesStore_RecordFailure_IncrementsBelowThreshold(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	current := testSeries(func(s *models.RecurringSeries) { s.ConsecutiveFailures = 1 })
	mock.ExpectQuery(`SELECT (.+) FROM deal_recurring`).
		WithArgs("series-1", "team-1").
		WillReturnRows(seriesRows(current))

	updated := testSeries(func(s *models.RecurringSeries) { s.ConsecutiveFailures = 2 })
	mock.ExpectQuery(`UPDATE deal_recurring`).
		WithArgs("series-1", "team-1", 2, "active").
		WillReturnRows(seriesRows(updated))

	s := NewSeriesStore(db, createTestLogger(t))
	result, autoPaused, err := s.RecordFailure(context.Background(), "series-1", "team-1", 3)

	require.NoError(t, err)
	assert.False(t, autoPaused)
	assert.Equal(t, models.StatusActive, result.Status)
	assert.Equal(t, 2, result.ConsecutiveFailures)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeriesStore_RecordFailure_AutoPausesAtThreshold(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	current := testSeries(func(s *models.RecurringSeries) { s.ConsecutiveFailures = 2 })
	mock.ExpectQuery(`SELECT (.+) FROM deal_recurring`).
		WithArgs("series-1", "team-1").
		WillReturnRows(seriesRows(current))

	paused := testSeries(func(s *models.RecurringSeries) {
		s.ConsecutiveFailures = 3
		s.Status = models.StatusPaused
	})
	mock.ExpectQuery(`UPDATE deal_recurring`).
		WithArgs("series-1", "team-1", 3, "paused").
		WillReturnRows(seriesRows(paused))

	s := NewSeriesStore(db, createTestLogger(t))
	result, autoPaused, err := s.RecordFailure(context.Background(), "series-1", "team-1", 3)

	require.NoError(t, err)
	assert.True(t, autoPaused)
	assert.Equal(t, models.StatusPaused, result.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Advance Notifications
// ==========================

func TestSeriesStore_GetUpcomingDue_BindsCutoffParameters(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	soon := time.Now().UTC().Add(6 * time.Hour)
	due := testSeries(func(s *models.RecurringSeries) { s.NextScheduledAt = &soon })

	// The staleness window rides in as bind parameters, so the statement
	// itself carries no interpolated interval.
	mock.ExpectQuery(`upcoming_notification_sent_at <= next_scheduled_at - \(\$3 \* interval '1 hour'\)`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 25, 101).
		WillReturnRows(seriesRows(due))

	s := NewSeriesStore(db, createTestLogger(t))
	upcoming, hasMore, err := s.GetUpcomingDue(context.Background(), 24, 100)

	require.NoError(t, err)
	assert.Len(t, upcoming, 1)
	assert.False(t, hasMore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeriesStore_MarkNotificationSent(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE deal_recurring\s+SET upcoming_notification_sent_at = NOW\(\)`).
		WithArgs("series-1", "team-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewSeriesStore(db, createTestLogger(t))
	err = s.MarkNotificationSent(context.Background(), "series-1", "team-1")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

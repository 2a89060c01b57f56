// internal/store/due.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	stderrors "recurring-scheduler/internal/common/errors"
	"recurring-scheduler/internal/models"
	"recurring-scheduler/internal/recurrence"
)

// DefaultBatchSize bounds one due scan so a backlog never overwhelms a
// single run.
const DefaultBatchSize = 50

// DefaultMaxConsecutiveFailures is the auto-pause threshold.
const DefaultMaxConsecutiveFailures = 3

// GetDue returns active series whose due instant has arrived, oldest first.
// It fetches one extra row so callers know whether more work is pending.
func (s *SeriesStore) GetDue(ctx context.Context, limit int) ([]*models.RecurringSeries, bool, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	query := fmt.Sprintf(`
		SELECT %s FROM deal_recurring
		WHERE status = 'active' AND next_scheduled_at <= $1
		ORDER BY next_scheduled_at ASC
		LIMIT $2`, seriesColumns)

	rows, err := s.db.QueryContext(ctx, query, time.Now().UTC(), limit+1)
	if err != nil {
		return nil, false, stderrors.NewQueryExecutionFailedError("get_due_series", err)
	}

	data, err := collectSeries(rows)
	if err != nil {
		return nil, false, stderrors.NewQueryExecutionFailedError("get_due_series", err)
	}

	hasMore := len(data) > limit
	if hasMore {
		data = data[:limit]
	}
	return data, hasMore, nil
}

// MarkGeneratedResult reports the state transition after a successful
// generation.
type MarkGeneratedResult struct {
	Series        *models.RecurringSeries
	SkippedCycles int
	Completed     bool
}

// MarkGenerated advances the series after a deal was materialized: the
// counter increments, failures reset, and the next due instant is computed
// from the prior scheduled instant so the cadence anchor never drifts.
// Missed cycles are skipped rather than generated late, and a series whose
// end condition is now met completes with no next instant.
func (s *SeriesStore) MarkGenerated(ctx context.Context, id, teamID string) (*MarkGeneratedResult, error) {
	current, err := s.GetByID(ctx, id, teamID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	newGenerated := current.DealsGenerated + 1
	rule := recurrence.RuleFromSeries(current)

	// The prior scheduled instant, not now, anchors the next cycle.
	base := now
	if current.NextScheduledAt != nil {
		base = *current.NextScheduledAt
	}

	next, err := recurrence.Next(rule, base)
	if err != nil {
		return nil, stderrors.NewCadenceInvalidError(err.Error())
	}

	advanced, err := recurrence.AdvanceToFuture(rule, next, now)
	if err != nil {
		return nil, stderrors.NewCadenceInvalidError(err.Error())
	}
	if advanced.HitSafetyLimit {
		s.logger.Warn("Rescheduled series from now after hitting advance limit", map[string]interface{}{
			"seriesId": id,
			"teamId":   teamID,
		})
	}

	nextDue := advanced.Date
	completed := recurrence.Completed(current.EndType, current.EndDate, current.EndCount, newGenerated, &nextDue)

	var query string
	var row *sql.Row
	if completed {
		query = fmt.Sprintf(`
			UPDATE deal_recurring
			SET deals_generated = $3, consecutive_failures = 0, last_generated_at = $4,
			    next_scheduled_at = NULL, status = 'completed', updated_at = $4
			WHERE id = $1 AND team_id = $2
			RETURNING %s`, seriesColumns)
		row = s.db.QueryRowContext(ctx, query, id, teamID, newGenerated, now)
	} else {
		query = fmt.Sprintf(`
			UPDATE deal_recurring
			SET deals_generated = $3, consecutive_failures = 0, last_generated_at = $4,
			    next_scheduled_at = $5, status = 'active', updated_at = $4
			WHERE id = $1 AND team_id = $2
			RETURNING %s`, seriesColumns)
		row = s.db.QueryRowContext(ctx, query, id, teamID, newGenerated, now, nextDue)
	}

	updated, err := scanSeries(row)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("mark_generated", err)
	}

	return &MarkGeneratedResult{
		Series:        updated,
		SkippedCycles: advanced.Skipped,
		Completed:     completed,
	}, nil
}

// RecordFailure bumps the consecutive failure counter and auto-pauses the
// series once the threshold is reached. The reported bool is true when this
// call triggered the pause.
func (s *SeriesStore) RecordFailure(ctx context.Context, id, teamID string, maxFailures int) (*models.RecurringSeries, bool, error) {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxConsecutiveFailures
	}

	current, err := s.GetByID(ctx, id, teamID)
	if err != nil {
		return nil, false, err
	}

	newCount := current.ConsecutiveFailures + 1
	autoPause := newCount >= maxFailures

	status := current.Status
	if autoPause {
		status = models.StatusPaused
	}

	query := fmt.Sprintf(`
		UPDATE deal_recurring
		SET consecutive_failures = $3, status = $4, updated_at = NOW()
		WHERE id = $1 AND team_id = $2
		RETURNING %s`, seriesColumns)

	updated, err := scanSeries(s.db.QueryRowContext(ctx, query, id, teamID, newCount, status))
	if err != nil {
		return nil, false, stderrors.NewQueryExecutionFailedError("record_failure", err)
	}

	return updated, autoPause, nil
}

// GetUpcomingDue returns active series due within hoursAhead that have not
// yet had an advance notice for the current cycle. A notice stamped more
// than hoursAhead+1 before the due instant belonged to a previous cycle.
// The cutoff arithmetic lives here, bound as parameters, never spliced into
// the statement.
func (s *SeriesStore) GetUpcomingDue(ctx context.Context, hoursAhead, limit int) ([]*models.RecurringSeries, bool, error) {
	if hoursAhead <= 0 {
		hoursAhead = 24
	}
	if limit <= 0 {
		limit = 100
	}

	now := time.Now().UTC()
	windowEnd := now.Add(time.Duration(hoursAhead) * time.Hour)

	query := fmt.Sprintf(`
		SELECT %s FROM deal_recurring
		WHERE status = 'active'
		  AND next_scheduled_at > $1
		  AND next_scheduled_at <= $2
		  AND (upcoming_notification_sent_at IS NULL
		       OR upcoming_notification_sent_at <= next_scheduled_at - ($3 * interval '1 hour'))
		ORDER BY next_scheduled_at ASC
		LIMIT $4`, seriesColumns)

	rows, err := s.db.QueryContext(ctx, query, now, windowEnd, hoursAhead+1, limit+1)
	if err != nil {
		return nil, false, stderrors.NewQueryExecutionFailedError("get_upcoming_due", err)
	}

	data, err := collectSeries(rows)
	if err != nil {
		return nil, false, stderrors.NewQueryExecutionFailedError("get_upcoming_due", err)
	}

	hasMore := len(data) > limit
	if hasMore {
		data = data[:limit]
	}
	return data, hasMore, nil
}

// MarkNotificationSent stamps the advance notice for the current cycle.
func (s *SeriesStore) MarkNotificationSent(ctx context.Context, id, teamID string) error {
	query := `
		UPDATE deal_recurring
		SET upcoming_notification_sent_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND team_id = $2`

	result, err := s.db.ExecContext(ctx, query, id, teamID)
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("mark_notification_sent", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return stderrors.NewSeriesNotFoundError(id)
	}
	return nil
}

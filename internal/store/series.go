// internal/store/series.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	stderrors "recurring-scheduler/internal/common/errors"
	"recurring-scheduler/internal/common/logger"
	"recurring-scheduler/internal/common/validation"
	"recurring-scheduler/internal/models"
	"recurring-scheduler/internal/recurrence"
)

// SeriesStore persists recurring series definitions in the deal_recurring
// table.
type SeriesStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewSeriesStore(db *sql.DB, log logger.Logger) *SeriesStore {
	return &SeriesStore{db: db, logger: log}
}

// CreateSeriesParams carries everything needed to define a new series.
// IssueDate controls the first due instant: a future date schedules the
// first deal for that date, anything else generates on the next scan.
type CreateSeriesParams struct {
	TeamID string
	UserID string

	MerchantID   *string
	MerchantName *string

	Frequency         models.Frequency
	FrequencyDay      *int
	FrequencyWeek     *int
	FrequencyInterval *int
	Timezone          string

	EndType  models.EndType
	EndDate  *time.Time
	EndCount *int

	IssueDate     *time.Time
	DueDateOffset *int // days, defaults to 30

	Amount   *float64
	Currency *string
	Subtotal *float64
	Discount *float64

	LineItems      []byte
	Template       []byte
	PaymentDetails []byte
	FromDetails    []byte
	NoteDetails    []byte
	TopBlock       []byte
	BottomBlock    []byte
	TemplateID     *string
}

// Create validates the cadence and end condition, computes the first due
// instant, and inserts the series in active state.
func (s *SeriesStore) Create(ctx context.Context, p CreateSeriesParams) (*models.RecurringSeries, error) {
	rule := recurrence.Rule{
		Frequency: p.Frequency,
		Day:       p.FrequencyDay,
		Week:      p.FrequencyWeek,
		Interval:  p.FrequencyInterval,
		Timezone:  p.Timezone,
	}
	if err := recurrence.ValidateRule(rule); err != nil {
		return nil, stderrors.NewCadenceInvalidError(err.Error())
	}
	if err := recurrence.ValidateEndCondition(p.EndType, p.EndDate, p.EndCount); err != nil {
		return nil, stderrors.NewEndConditionInvalidError(err.Error())
	}
	if result := validation.ValidateLineItems(p.LineItems); !result.Valid {
		return nil, stderrors.NewLineItemsInvalidError(strings.Join(result.GetErrorMessages(), "; "))
	}

	now := time.Now().UTC()
	issueDate := now
	if p.IssueDate != nil {
		issueDate = *p.IssueDate
	}
	firstDue := recurrence.FirstDue(issueDate, now)

	dueDateOffset := 30
	if p.DueDateOffset != nil {
		dueDateOffset = *p.DueDateOffset
	}

	id := uuid.New().String()

	query := fmt.Sprintf(`
		INSERT INTO deal_recurring (
			id, team_id, user_id, merchant_id, merchant_name,
			frequency, frequency_day, frequency_week, frequency_interval, timezone,
			end_type, end_date, end_count,
			status, deals_generated, next_scheduled_at, consecutive_failures, due_date_offset,
			amount, currency, subtotal, discount,
			line_items, template, payment_details, from_details, note_details,
			top_block, bottom_block, template_id,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13,
			'active', 0, $14, 0, $15,
			$16, $17, $18, $19,
			$20, $21, $22, $23, $24,
			$25, $26, $27,
			$28, $28
		)
		RETURNING %s`, seriesColumns)

	row := s.db.QueryRowContext(ctx, query,
		id, p.TeamID, p.UserID, p.MerchantID, p.MerchantName,
		p.Frequency, p.FrequencyDay, p.FrequencyWeek, p.FrequencyInterval, p.Timezone,
		p.EndType, p.EndDate, p.EndCount,
		firstDue, dueDateOffset,
		p.Amount, p.Currency, p.Subtotal, p.Discount,
		nullableJSON(p.LineItems), nullableJSON(p.Template), nullableJSON(p.PaymentDetails),
		nullableJSON(p.FromDetails), nullableJSON(p.NoteDetails),
		nullableJSON(p.TopBlock), nullableJSON(p.BottomBlock), p.TemplateID,
		now,
	)

	created, err := scanSeries(row)
	if err != nil {
		return nil, stderrors.NewDatabaseInsertFailedError(err)
	}

	s.logger.Info("Created recurring series", map[string]interface{}{
		"seriesId":        created.ID,
		"teamId":          created.TeamID,
		"frequency":       string(created.Frequency),
		"nextScheduledAt": created.NextScheduledAt,
	})

	return created, nil
}

// UpdateSeriesParams updates an existing series. Nil fields are left
// unchanged. Changing any cadence field on an active series recomputes the
// next due instant from now; changing end condition fields validates the
// merged end condition against the stored record.
type UpdateSeriesParams struct {
	ID     string
	TeamID string

	MerchantID   *string
	MerchantName *string

	Frequency         *models.Frequency
	FrequencyDay      *int
	FrequencyWeek     *int
	FrequencyInterval *int
	Timezone          *string

	EndType  *models.EndType
	EndDate  *time.Time
	EndCount *int

	DueDateOffset *int

	Amount   *float64
	Currency *string
	Subtotal *float64
	Discount *float64

	LineItems      []byte
	Template       []byte
	PaymentDetails []byte
	FromDetails    []byte
	NoteDetails    []byte
	TopBlock       []byte
	BottomBlock    []byte
	TemplateID     *string

	// Explicit scheduling overrides, used when linking an existing deal.
	NextScheduledAt *time.Time
	LastGeneratedAt *time.Time
}

func (p UpdateSeriesParams) cadenceChanged() bool {
	return p.Frequency != nil || p.FrequencyDay != nil ||
		p.FrequencyWeek != nil || p.FrequencyInterval != nil || p.Timezone != nil
}

func (p UpdateSeriesParams) endConditionChanged() bool {
	return p.EndType != nil || p.EndDate != nil || p.EndCount != nil
}

func (s *SeriesStore) Update(ctx context.Context, p UpdateSeriesParams) (*models.RecurringSeries, error) {
	if result := validation.ValidateLineItems(p.LineItems); !result.Valid {
		return nil, stderrors.NewLineItemsInvalidError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var current *models.RecurringSeries
	if p.cadenceChanged() || p.endConditionChanged() {
		var err error
		current, err = s.GetByID(ctx, p.ID, p.TeamID)
		if err != nil {
			return nil, err
		}
	}

	if current != nil && p.endConditionChanged() {
		mergedEndType := current.EndType
		if p.EndType != nil {
			mergedEndType = *p.EndType
		}
		mergedEndDate := current.EndDate
		if p.EndDate != nil {
			mergedEndDate = p.EndDate
		}
		mergedEndCount := current.EndCount
		if p.EndCount != nil {
			mergedEndCount = p.EndCount
		}
		if err := recurrence.ValidateEndCondition(mergedEndType, mergedEndDate, mergedEndCount); err != nil {
			return nil, stderrors.NewEndConditionInvalidError(err.Error())
		}
	}

	nextScheduledAt := p.NextScheduledAt

	// A cadence change on an active series re-anchors the schedule from now.
	if nextScheduledAt == nil && p.cadenceChanged() && current != nil && current.Status == models.StatusActive {
		rule := recurrence.RuleFromSeries(current)
		if p.Frequency != nil {
			rule.Frequency = *p.Frequency
		}
		if p.FrequencyDay != nil {
			rule.Day = p.FrequencyDay
		}
		if p.FrequencyWeek != nil {
			rule.Week = p.FrequencyWeek
		}
		if p.FrequencyInterval != nil {
			rule.Interval = p.FrequencyInterval
		}
		if p.Timezone != nil {
			rule.Timezone = *p.Timezone
		}
		if err := recurrence.ValidateRule(rule); err != nil {
			return nil, stderrors.NewCadenceInvalidError(err.Error())
		}

		next, err := recurrence.Next(rule, time.Now().UTC())
		if err != nil {
			return nil, stderrors.NewCadenceInvalidError(err.Error())
		}
		nextScheduledAt = &next
	}

	set := []string{"updated_at = NOW()"}
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if p.MerchantID != nil {
		add("merchant_id", *p.MerchantID)
	}
	if p.MerchantName != nil {
		add("merchant_name", *p.MerchantName)
	}
	if p.Frequency != nil {
		add("frequency", *p.Frequency)
	}
	if p.FrequencyDay != nil {
		add("frequency_day", *p.FrequencyDay)
	}
	if p.FrequencyWeek != nil {
		add("frequency_week", *p.FrequencyWeek)
	}
	if p.FrequencyInterval != nil {
		add("frequency_interval", *p.FrequencyInterval)
	}
	if p.Timezone != nil {
		add("timezone", *p.Timezone)
	}
	if p.EndType != nil {
		add("end_type", *p.EndType)
	}
	if p.EndDate != nil {
		add("end_date", *p.EndDate)
	}
	if p.EndCount != nil {
		add("end_count", *p.EndCount)
	}
	if p.DueDateOffset != nil {
		add("due_date_offset", *p.DueDateOffset)
	}
	if p.Amount != nil {
		add("amount", *p.Amount)
	}
	if p.Currency != nil {
		add("currency", *p.Currency)
	}
	if p.Subtotal != nil {
		add("subtotal", *p.Subtotal)
	}
	if p.Discount != nil {
		add("discount", *p.Discount)
	}
	if p.LineItems != nil {
		add("line_items", nullableJSON(p.LineItems))
	}
	if p.Template != nil {
		add("template", nullableJSON(p.Template))
	}
	if p.PaymentDetails != nil {
		add("payment_details", nullableJSON(p.PaymentDetails))
	}
	if p.FromDetails != nil {
		add("from_details", nullableJSON(p.FromDetails))
	}
	if p.NoteDetails != nil {
		add("note_details", nullableJSON(p.NoteDetails))
	}
	if p.TopBlock != nil {
		add("top_block", nullableJSON(p.TopBlock))
	}
	if p.BottomBlock != nil {
		add("bottom_block", nullableJSON(p.BottomBlock))
	}
	if p.TemplateID != nil {
		add("template_id", *p.TemplateID)
	}
	if nextScheduledAt != nil {
		add("next_scheduled_at", *nextScheduledAt)
	}
	if p.LastGeneratedAt != nil {
		add("last_generated_at", *p.LastGeneratedAt)
	}

	args = append(args, p.ID)
	idArg := len(args)
	args = append(args, p.TeamID)
	teamArg := len(args)

	query := fmt.Sprintf(`
		UPDATE deal_recurring
		SET %s
		WHERE id = $%d AND team_id = $%d
		RETURNING %s`,
		strings.Join(set, ", "), idArg, teamArg, seriesColumns)

	updated, err := scanSeries(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, stderrors.NewSeriesNotFoundError(p.ID)
	}
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("update_series", err)
	}
	return updated, nil
}

// GetByID fetches a single series scoped to the team.
func (s *SeriesStore) GetByID(ctx context.Context, id, teamID string) (*models.RecurringSeries, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM deal_recurring
		WHERE id = $1 AND team_id = $2`, seriesColumns)

	series, err := scanSeries(s.db.QueryRowContext(ctx, query, id, teamID))
	if err == sql.ErrNoRows {
		return nil, stderrors.NewSeriesNotFoundError(id)
	}
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("get_series", err)
	}
	return series, nil
}

// ListSeriesParams filters and paginates the team's series. Cursor is an
// opaque offset returned by a previous page.
type ListSeriesParams struct {
	TeamID     string
	Statuses   []models.SeriesStatus
	MerchantID *string
	Cursor     *int
	PageSize   int
}

// ListResult is one page of series plus pagination metadata.
type ListResult struct {
	Data            []*models.RecurringSeries
	Cursor          *int
	HasPreviousPage bool
	HasNextPage     bool
}

func (s *SeriesStore) List(ctx context.Context, p ListSeriesParams) (*ListResult, error) {
	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = 25
	}
	offset := 0
	if p.Cursor != nil {
		offset = *p.Cursor
	}

	conditions := []string{"team_id = $1"}
	args := []interface{}{p.TeamID}

	if len(p.Statuses) > 0 {
		placeholders := make([]string, 0, len(p.Statuses))
		for _, status := range p.Statuses {
			args = append(args, status)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if p.MerchantID != nil {
		args = append(args, *p.MerchantID)
		conditions = append(conditions, fmt.Sprintf("merchant_id = $%d", len(args)))
	}

	args = append(args, pageSize)
	limitArg := len(args)
	args = append(args, offset)
	offsetArg := len(args)

	query := fmt.Sprintf(`
		SELECT %s FROM deal_recurring
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		seriesColumns, strings.Join(conditions, " AND "), limitArg, offsetArg)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("list_series", err)
	}

	data, err := collectSeries(rows)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("list_series", err)
	}

	result := &ListResult{
		Data:            data,
		HasPreviousPage: offset > 0,
		HasNextPage:     len(data) == pageSize,
	}
	if result.HasNextPage {
		next := offset + pageSize
		result.Cursor = &next
	}
	return result, nil
}

// Pause suspends generation. The series keeps its schedule state so Resume
// can pick up from a freshly computed due instant.
func (s *SeriesStore) Pause(ctx context.Context, id, teamID string) (*models.RecurringSeries, error) {
	query := fmt.Sprintf(`
		UPDATE deal_recurring
		SET status = 'paused', updated_at = NOW()
		WHERE id = $1 AND team_id = $2
		RETURNING %s`, seriesColumns)

	series, err := scanSeries(s.db.QueryRowContext(ctx, query, id, teamID))
	if err == sql.ErrNoRows {
		return nil, stderrors.NewSeriesNotFoundError(id)
	}
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("pause_series", err)
	}
	return series, nil
}

// Resume reactivates a paused series with a next due instant recomputed
// from now, never from the stale pre-pause schedule. If the end condition
// was reached while paused the series completes instead. Resuming an
// already-active series is a no-op; terminal series read as not found.
func (s *SeriesStore) Resume(ctx context.Context, id, teamID string) (*models.RecurringSeries, error) {
	current, err := s.GetByID(ctx, id, teamID)
	if err != nil {
		return nil, err
	}
	if current.Status == models.StatusActive {
		return current, nil
	}
	if current.Status.IsTerminal() {
		return nil, stderrors.NewSeriesNotFoundError(id)
	}

	now := time.Now().UTC()
	next, err := recurrence.Next(recurrence.RuleFromSeries(current), now)
	if err != nil {
		return nil, stderrors.NewCadenceInvalidError(err.Error())
	}

	if recurrence.Completed(current.EndType, current.EndDate, current.EndCount, current.DealsGenerated, &next) {
		query := fmt.Sprintf(`
			UPDATE deal_recurring
			SET status = 'completed', next_scheduled_at = NULL, updated_at = NOW()
			WHERE id = $1 AND team_id = $2
			RETURNING %s`, seriesColumns)

		series, err := scanSeries(s.db.QueryRowContext(ctx, query, id, teamID))
		if err != nil {
			return nil, stderrors.NewQueryExecutionFailedError("complete_series", err)
		}

		s.logger.Info("Series completed on resume", map[string]interface{}{
			"seriesId": id,
			"teamId":   teamID,
		})
		return series, nil
	}

	query := fmt.Sprintf(`
		UPDATE deal_recurring
		SET status = 'active', consecutive_failures = 0, next_scheduled_at = $3, updated_at = NOW()
		WHERE id = $1 AND team_id = $2
		RETURNING %s`, seriesColumns)

	series, err := scanSeries(s.db.QueryRowContext(ctx, query, id, teamID, next))
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("resume_series", err)
	}
	return series, nil
}

// Cancel is a soft delete: the series is retired but every generated deal
// is kept.
func (s *SeriesStore) Cancel(ctx context.Context, id, teamID string) (*models.RecurringSeries, error) {
	query := fmt.Sprintf(`
		UPDATE deal_recurring
		SET status = 'canceled', next_scheduled_at = NULL, updated_at = NOW()
		WHERE id = $1 AND team_id = $2
		RETURNING %s`, seriesColumns)

	series, err := scanSeries(s.db.QueryRowContext(ctx, query, id, teamID))
	if err == sql.ErrNoRows {
		return nil, stderrors.NewSeriesNotFoundError(id)
	}
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("cancel_series", err)
	}
	return series, nil
}

// UpcomingPreview returns the next occurrences of the series without
// touching any state.
func (s *SeriesStore) UpcomingPreview(ctx context.Context, id, teamID string, limit int) ([]recurrence.UpcomingDeal, recurrence.UpcomingSummary, error) {
	series, err := s.GetByID(ctx, id, teamID)
	if err != nil {
		return nil, recurrence.UpcomingSummary{}, err
	}

	if limit <= 0 {
		limit = 10
	}

	start := time.Now().UTC()
	if series.NextScheduledAt != nil {
		start = *series.NextScheduledAt
	}

	amount := 0.0
	if series.Amount != nil {
		amount = *series.Amount
	}
	currency := "USD"
	if series.Currency != nil {
		currency = *series.Currency
	}

	return recurrence.Upcoming(
		recurrence.RuleFromSeries(series),
		start,
		amount,
		currency,
		series.EndType,
		series.EndDate,
		series.EndCount,
		series.DealsGenerated,
		limit,
	)
}

// nullableJSON maps an empty payload to SQL NULL instead of an empty string.
func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

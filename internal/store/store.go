// Package store implements PostgreSQL persistence for recurring series and
// the deals generated from them.
package store

import (
	"database/sql"

	"recurring-scheduler/internal/models"
)

// seriesColumns is the canonical column order every series query selects and
// scanSeries consumes. Keep the two in sync.
const seriesColumns = `id, team_id, user_id, merchant_id, merchant_name,
	frequency, frequency_day, frequency_week, frequency_interval, timezone,
	end_type, end_date, end_count,
	status, deals_generated, next_scheduled_at, last_generated_at,
	consecutive_failures, upcoming_notification_sent_at, due_date_offset,
	amount, currency, subtotal, discount,
	line_items, template, payment_details, from_details, note_details,
	top_block, bottom_block, template_id,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSeries(row rowScanner) (*models.RecurringSeries, error) {
	var s models.RecurringSeries
	err := row.Scan(
		&s.ID, &s.TeamID, &s.UserID, &s.MerchantID, &s.MerchantName,
		&s.Frequency, &s.FrequencyDay, &s.FrequencyWeek, &s.FrequencyInterval, &s.Timezone,
		&s.EndType, &s.EndDate, &s.EndCount,
		&s.Status, &s.DealsGenerated, &s.NextScheduledAt, &s.LastGeneratedAt,
		&s.ConsecutiveFailures, &s.UpcomingNoticeSentAt, &s.DueDateOffset,
		&s.Amount, &s.Currency, &s.Subtotal, &s.Discount,
		&s.LineItems, &s.Template, &s.PaymentDetails, &s.FromDetails, &s.NoteDetails,
		&s.TopBlock, &s.BottomBlock, &s.TemplateID,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSeries(rows *sql.Rows) ([]*models.RecurringSeries, error) {
	defer rows.Close()

	var out []*models.RecurringSeries
	for rows.Next() {
		s, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

package store

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap/zaptest"

	"recurring-scheduler/internal/common/logger"
	"recurring-scheduler/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func floatPtr(v float64) *float64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }

var seriesCols = []string{
	"id", "team_id", "user_id", "merchant_id", "merchant_name",
	"frequency", "frequency_day", "frequency_week", "frequency_interval", "timezone",
	"end_type", "end_date", "end_count",
	"status", "deals_generated", "next_scheduled_at", "last_generated_at",
	"consecutive_failures", "upcoming_notification_sent_at", "due_date_offset",
	"amount", "currency", "subtotal", "discount",
	"line_items", "template", "payment_details", "from_details", "note_details",
	"top_block", "bottom_block", "template_id",
	"created_at", "updated_at",
}

// sqlmock needs concrete driver values, so pointers are flattened to their
// value or nil before they go into a row.
func deref(v interface{}) interface{} {
	switch p := v.(type) {
	case *int:
		if p == nil {
			return nil
		}
		return *p
	case *string:
		if p == nil {
			return nil
		}
		return *p
	case *float64:
		if p == nil {
			return nil
		}
		return *p
	case *time.Time:
		if p == nil {
			return nil
		}
		return *p
	default:
		return v
	}
}

func seriesRows(list ...*models.RecurringSeries) *sqlmock.Rows {
	rows := sqlmock.NewRows(seriesCols)
	for _, s := range list {
		rows.AddRow(
			s.ID, s.TeamID, s.UserID, deref(s.MerchantID), deref(s.MerchantName),
			string(s.Frequency), deref(s.FrequencyDay), deref(s.FrequencyWeek), deref(s.FrequencyInterval), s.Timezone,
			string(s.EndType), deref(s.EndDate), deref(s.EndCount),
			string(s.Status), s.DealsGenerated, deref(s.NextScheduledAt), deref(s.LastGeneratedAt),
			s.ConsecutiveFailures, deref(s.UpcomingNoticeSentAt), s.DueDateOffset,
			deref(s.Amount), deref(s.Currency), deref(s.Subtotal), deref(s.Discount),
			[]byte(s.LineItems), []byte(s.Template), []byte(s.PaymentDetails),
			[]byte(s.FromDetails), []byte(s.NoteDetails),
			[]byte(s.TopBlock), []byte(s.BottomBlock), deref(s.TemplateID),
			s.CreatedAt, s.UpdatedAt,
		)
	}
	return rows
}

func testSeries(overrides func(*models.RecurringSeries)) *models.RecurringSeries {
	next := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	s := &models.RecurringSeries{
		ID:              "series-1",
		TeamID:          "team-1",
		UserID:          "user-1",
		MerchantID:      strPtr("merchant-1"),
		MerchantName:    strPtr("Acme Corp"),
		Frequency:       models.FrequencyMonthlyDate,
		FrequencyDay:    intPtr(1),
		Timezone:        "UTC",
		EndType:         models.EndTypeNever,
		Status:          models.StatusActive,
		DealsGenerated:  2,
		NextScheduledAt: &next,
		DueDateOffset:   30,
		Amount:          floatPtr(500),
		Currency:        strPtr("USD"),
		CreatedAt:       time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:       time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	if overrides != nil {
		overrides(s)
	}
	return s
}

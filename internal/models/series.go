// internal/models/series.go
package models

import (
	"encoding/json"
	"time"
)

// Frequency describes how often a recurring series produces a deal.
type Frequency string

const (
	FrequencyWeekly         Frequency = "weekly"
	FrequencyBiweekly       Frequency = "biweekly"
	FrequencyMonthlyDate    Frequency = "monthly_date"
	FrequencyMonthlyWeekday Frequency = "monthly_weekday"
	FrequencyMonthlyLastDay Frequency = "monthly_last_day"
	FrequencyQuarterly      Frequency = "quarterly"
	FrequencySemiAnnual     Frequency = "semi_annual"
	FrequencyAnnual         Frequency = "annual"
	FrequencyCustom         Frequency = "custom"
)

// Frequencies lists every valid frequency value.
var Frequencies = []Frequency{
	FrequencyWeekly,
	FrequencyBiweekly,
	FrequencyMonthlyDate,
	FrequencyMonthlyWeekday,
	FrequencyMonthlyLastDay,
	FrequencyQuarterly,
	FrequencySemiAnnual,
	FrequencyAnnual,
	FrequencyCustom,
}

// EndType describes how a recurring series terminates.
type EndType string

const (
	EndTypeNever      EndType = "never"
	EndTypeOnDate     EndType = "on_date"
	EndTypeAfterCount EndType = "after_count"
)

// SeriesStatus is the lifecycle state of a recurring series.
type SeriesStatus string

const (
	StatusActive    SeriesStatus = "active"
	StatusPaused    SeriesStatus = "paused"
	StatusCompleted SeriesStatus = "completed"
	StatusCanceled  SeriesStatus = "canceled"
)

// IsTerminal reports whether no further deals will ever be scheduled.
func (s SeriesStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// RecurringSeries is a recurring deal definition. The payload fields
// (line items, template, payment details, layout blocks) are opaque to the
// scheduler and copied verbatim into every generated deal.
type RecurringSeries struct {
	ID     string
	TeamID string
	UserID string

	// MerchantName is denormalized so the series stays displayable even if
	// the merchant record is later deleted (FK is ON DELETE SET NULL).
	MerchantID   *string
	MerchantName *string

	Frequency         Frequency
	FrequencyDay      *int // 0-6 weekday or 1-31 day of month, per frequency
	FrequencyWeek     *int // 1-5, which weekday occurrence in the month
	FrequencyInterval *int // custom: every N days
	Timezone          string

	EndType  EndType
	EndDate  *time.Time
	EndCount *int

	Status               SeriesStatus
	DealsGenerated       int
	NextScheduledAt      *time.Time // nil iff Status is terminal
	LastGeneratedAt      *time.Time
	ConsecutiveFailures  int
	UpcomingNoticeSentAt *time.Time

	DueDateOffset int // days between issue date and due date

	Amount   *float64
	Currency *string
	Subtotal *float64
	Discount *float64

	LineItems      json.RawMessage
	Template       json.RawMessage
	PaymentDetails json.RawMessage
	FromDetails    json.RawMessage
	NoteDetails    json.RawMessage
	TopBlock       json.RawMessage
	BottomBlock    json.RawMessage
	TemplateID     *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NextSequence is the 1-based sequence number the next generated deal
// will carry. It is the idempotency key for generation.
func (s *RecurringSeries) NextSequence() int {
	return s.DealsGenerated + 1
}

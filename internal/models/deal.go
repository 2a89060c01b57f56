// internal/models/deal.go
package models

import (
	"encoding/json"
	"time"
)

// DealStatus is the lifecycle state of a generated deal. The scheduler only
// ever creates deals as drafts; everything after that belongs to the deal's
// own lifecycle.
type DealStatus string

const (
	DealStatusDraft     DealStatus = "draft"
	DealStatusScheduled DealStatus = "scheduled"
	DealStatusUnpaid    DealStatus = "unpaid"
	DealStatusPaid      DealStatus = "paid"
	DealStatusCanceled  DealStatus = "canceled"
)

// DealSummary is the slice of a generated deal the scheduler cares about
// when deciding whether a sequence has already been materialized.
type DealSummary struct {
	ID         string
	Status     DealStatus
	DealNumber string
}

// NewDealParams carries everything needed to materialize one deal from a
// recurring series. Payload fields pass through untouched.
type NewDealParams struct {
	ID       string
	TeamID   string
	UserID   string
	SeriesID string
	Sequence int

	DealNumber string
	IssueDate  time.Time
	DueDate    time.Time

	MerchantID   *string
	MerchantName *string

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
}

// internal/recurrence/preview.go
package recurrence

import (
	"time"

	"recurring-scheduler/internal/models"
)

// UpcomingDeal is one entry in a schedule preview.
type UpcomingDeal struct {
	Date     time.Time
	Amount   float64
	Currency string
}

// UpcomingSummary aggregates a preview. TotalCount and TotalAmount are nil
// for open-ended series.
type UpcomingSummary struct {
	HasEndDate  bool
	TotalCount  *int
	TotalAmount *float64
	Currency    string
}

// Bounds for preview iteration: hard caps, not tunables. The summary cap
// exists because an on_date series can span thousands of cycles.
const (
	previewBoundedCap = 100
	summaryIterCap    = 1000
)

// Upcoming produces up to limit future occurrences starting at start,
// stopping early once the end condition is reached. Read-only; never
// touches series state.
func Upcoming(
	rule Rule,
	start time.Time,
	amount float64,
	currency string,
	endType models.EndType,
	endDate *time.Time,
	endCount *int,
	alreadyGenerated int,
	limit int,
) ([]UpcomingDeal, UpcomingSummary, error) {
	maxIterations := limit
	if endType != models.EndTypeNever && maxIterations > previewBoundedCap {
		maxIterations = previewBoundedCap
	}

	var remaining *int
	if endType == models.EndTypeAfterCount && endCount != nil {
		r := *endCount - alreadyGenerated
		remaining = &r
	}

	var deals []UpcomingDeal
	current := start
	for count := 0; count < maxIterations; count++ {
		if endType == models.EndTypeOnDate && endDate != nil && current.After(*endDate) {
			break
		}
		if remaining != nil && count >= *remaining {
			break
		}

		deals = append(deals, UpcomingDeal{Date: current, Amount: amount, Currency: currency})

		next, err := Next(rule, current)
		if err != nil {
			return nil, UpcomingSummary{}, err
		}
		current = next
	}

	summary := UpcomingSummary{
		HasEndDate: endType != models.EndTypeNever,
		Currency:   currency,
	}

	switch {
	case endType == models.EndTypeAfterCount && endCount != nil:
		total := *endCount
		totalAmount := float64(total) * amount
		summary.TotalCount = &total
		summary.TotalAmount = &totalAmount

	case endType == models.EndTypeOnDate && endDate != nil:
		// Count full cycles until the end date, capped for safety.
		tmp := start
		total := 0
		for !tmp.After(*endDate) && total < summaryIterCap {
			total++
			next, err := Next(rule, tmp)
			if err != nil {
				return nil, UpcomingSummary{}, err
			}
			tmp = next
		}
		totalAmount := float64(total) * amount
		summary.TotalCount = &total
		summary.TotalAmount = &totalAmount
	}

	return deals, summary, nil
}

// internal/recurrence/validate.go
package recurrence

import (
	"fmt"
	"time"

	"recurring-scheduler/internal/models"
)

// ValidateRule checks that the cadence modifiers required by the rule's
// frequency are present and in range. Enforced on every write so an invalid
// cadence can never reach the scanner.
func ValidateRule(rule Rule) error {
	if _, err := rule.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", rule.Timezone, err)
	}

	switch rule.Frequency {
	case models.FrequencyWeekly, models.FrequencyBiweekly:
		if rule.Day == nil {
			return fmt.Errorf("frequencyDay is required for %s frequency (0-6, Sunday-Saturday)", rule.Frequency)
		}
		if *rule.Day < 0 || *rule.Day > 6 {
			return fmt.Errorf("for %s frequency, frequencyDay must be 0-6 (Sunday-Saturday)", rule.Frequency)
		}

	case models.FrequencyMonthlyDate, models.FrequencyQuarterly,
		models.FrequencySemiAnnual, models.FrequencyAnnual:
		if rule.Day == nil {
			return fmt.Errorf("frequencyDay is required for %s frequency (1-31, day of month)", rule.Frequency)
		}
		if *rule.Day < 1 || *rule.Day > 31 {
			return fmt.Errorf("for %s frequency, frequencyDay must be 1-31 (day of month)", rule.Frequency)
		}

	case models.FrequencyMonthlyWeekday:
		if rule.Day == nil || *rule.Day < 0 || *rule.Day > 6 {
			return fmt.Errorf("monthly_weekday frequency requires frequencyDay 0-6 (Sunday-Saturday)")
		}
		if rule.Week == nil || *rule.Week < 1 || *rule.Week > 5 {
			return fmt.Errorf("monthly_weekday frequency requires frequencyWeek 1-5")
		}

	case models.FrequencyMonthlyLastDay:
		// No modifiers needed.

	case models.FrequencyCustom:
		if rule.Interval == nil || *rule.Interval < 1 {
			return fmt.Errorf("custom frequency requires frequencyInterval >= 1 (days)")
		}

	default:
		return fmt.Errorf("unknown frequency: %s", rule.Frequency)
	}

	return nil
}

// ValidateEndCondition enforces the end-type invariant: exactly the
// auxiliary field matching the end type must be set.
func ValidateEndCondition(endType models.EndType, endDate *time.Time, endCount *int) error {
	switch endType {
	case models.EndTypeNever:
		return nil
	case models.EndTypeOnDate:
		if endDate == nil {
			return fmt.Errorf("endDate is required when endType is 'on_date'")
		}
	case models.EndTypeAfterCount:
		if endCount == nil || *endCount < 1 {
			return fmt.Errorf("endCount is required when endType is 'after_count'")
		}
	default:
		return fmt.Errorf("unknown endType: %s", endType)
	}
	return nil
}

// internal/recurrence/recurrence_test.go
package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recurring-scheduler/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func utc(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func monthlyOn(day int) Rule {
	return Rule{
		Frequency: models.FrequencyMonthlyDate,
		Day:       intPtr(day),
		Timezone:  "UTC",
	}
}

// ==========================
// Next
// ==========================

func TestNext_Frequencies(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		base time.Time
		want time.Time
	}{
		{
			name: "weekly advances to next target weekday",
			rule: Rule{Frequency: models.FrequencyWeekly, Day: intPtr(5), Timezone: "UTC"},
			base: utc(2024, time.January, 3), // Wednesday
			want: utc(2024, time.January, 5), // Friday
		},
		{
			name: "weekly on the target weekday pushes a full week",
			rule: Rule{Frequency: models.FrequencyWeekly, Day: intPtr(5), Timezone: "UTC"},
			base: utc(2024, time.January, 5), // Friday
			want: utc(2024, time.January, 12),
		},
		{
			name: "weekly target earlier in week wraps forward",
			rule: Rule{Frequency: models.FrequencyWeekly, Day: intPtr(1), Timezone: "UTC"},
			base: utc(2024, time.January, 3), // Wednesday, target Monday
			want: utc(2024, time.January, 8),
		},
		{
			name: "biweekly is a fixed 14 day step",
			rule: Rule{Frequency: models.FrequencyBiweekly, Day: intPtr(1), Timezone: "UTC"},
			base: utc(2024, time.January, 1),
			want: utc(2024, time.January, 15),
		},
		{
			name: "monthly_date keeps the anchor day",
			rule: monthlyOn(1),
			base: utc(2024, time.January, 1),
			want: utc(2024, time.February, 1),
		},
		{
			name: "monthly_date clamps to short months",
			rule: monthlyOn(31),
			base: utc(2024, time.January, 31),
			want: utc(2024, time.February, 29), // leap year
		},
		{
			name: "monthly_date recovers the anchor after a clamped month",
			rule: monthlyOn(31),
			base: utc(2024, time.February, 29),
			want: utc(2024, time.March, 31),
		},
		{
			name: "monthly_weekday finds the nth weekday of next month",
			rule: Rule{Frequency: models.FrequencyMonthlyWeekday, Day: intPtr(2), Week: intPtr(2), Timezone: "UTC"},
			base: utc(2024, time.January, 9),   // 2nd Tuesday of January
			want: utc(2024, time.February, 13), // 2nd Tuesday of February
		},
		{
			name: "monthly_last_day tracks month length",
			rule: Rule{Frequency: models.FrequencyMonthlyLastDay, Timezone: "UTC"},
			base: utc(2024, time.January, 31),
			want: utc(2024, time.February, 29),
		},
		{
			name: "quarterly steps three months",
			rule: Rule{Frequency: models.FrequencyQuarterly, Day: intPtr(15), Timezone: "UTC"},
			base: utc(2024, time.January, 15),
			want: utc(2024, time.April, 15),
		},
		{
			name: "semi_annual steps six months",
			rule: Rule{Frequency: models.FrequencySemiAnnual, Day: intPtr(10), Timezone: "UTC"},
			base: utc(2024, time.January, 10),
			want: utc(2024, time.July, 10),
		},
		{
			name: "annual clamps Feb 29 anchors in non-leap years",
			rule: Rule{Frequency: models.FrequencyAnnual, Day: intPtr(29), Timezone: "UTC"},
			base: utc(2024, time.February, 29),
			want: utc(2025, time.February, 28),
		},
		{
			name: "annual wraps December into the next year",
			rule: Rule{Frequency: models.FrequencyAnnual, Day: intPtr(5), Timezone: "UTC"},
			base: utc(2023, time.December, 5),
			want: utc(2024, time.December, 5),
		},
		{
			name: "custom steps the configured day interval",
			rule: Rule{Frequency: models.FrequencyCustom, Interval: intPtr(10), Timezone: "UTC"},
			base: utc(2024, time.January, 1),
			want: utc(2024, time.January, 11),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.rule, tt.base)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
			assert.True(t, got.After(tt.base), "next occurrence must be strictly after base")
		})
	}
}

func TestNext_UnknownFrequency(t *testing.T) {
	_, err := Next(Rule{Frequency: "fortnightly", Timezone: "UTC"}, utc(2024, time.January, 1))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown frequency")
}

func TestNext_InvalidTimezone(t *testing.T) {
	_, err := Next(monthlyOn(1), utc(2024, time.January, 1))
	require.NoError(t, err)

	bad := monthlyOn(1)
	bad.Timezone = "Mars/Olympus_Mons"
	_, err = Next(bad, utc(2024, time.January, 1))
	assert.Error(t, err)
}

func TestNext_TimezoneAnchoring(t *testing.T) {
	// A weekly Friday series in New York must stay at the same local clock
	// time across the March DST transition.
	rule := Rule{Frequency: models.FrequencyWeekly, Day: intPtr(5), Timezone: "America/New_York"}
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	base := time.Date(2024, time.March, 8, 9, 0, 0, 0, loc) // Friday, EST
	got, err := Next(rule, base)
	require.NoError(t, err)

	local := got.In(loc)
	assert.Equal(t, time.Friday, local.Weekday())
	assert.Equal(t, 15, local.Day())
	assert.Equal(t, 9, local.Hour(), "local clock time must survive DST")
}

// ==========================
// FirstDue
// ==========================

func TestFirstDue(t *testing.T) {
	now := time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		issue time.Time
		want  time.Time
	}{
		{"future issue date schedules for that date", utc(2026, time.January, 31), utc(2026, time.January, 31)},
		{"same-day issue date generates immediately", utc(2026, time.January, 15), now},
		{"past issue date generates immediately", utc(2026, time.January, 4), now},
		{
			// Day-level comparison in UTC: late on the same UTC day is not "future".
			"same UTC day with later clock time generates immediately",
			time.Date(2026, time.January, 15, 23, 59, 0, 0, time.UTC),
			now,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FirstDue(tt.issue, now)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}

// ==========================
// AdvanceToFuture
// ==========================

func TestAdvanceToFuture_SkipsMissedCycles(t *testing.T) {
	// A monthly series anchored to the 1st, last scheduled 2024-01-01,
	// first scanned 2024-04-15: the next due instant lands on 2024-05-01,
	// not 2024-02-01, and three cycles are reported skipped.
	rule := monthlyOn(1)
	now := utc(2024, time.April, 15)

	candidate, err := Next(rule, utc(2024, time.January, 1))
	require.NoError(t, err)
	assert.True(t, candidate.Equal(utc(2024, time.February, 1)))

	res, err := AdvanceToFuture(rule, candidate, now)
	require.NoError(t, err)
	assert.True(t, res.Date.Equal(utc(2024, time.May, 1)), "got %s", res.Date)
	assert.Equal(t, 3, res.Skipped)
	assert.False(t, res.HitSafetyLimit)
}

func TestAdvanceToFuture_AlreadyFuture(t *testing.T) {
	rule := monthlyOn(1)
	candidate := utc(2024, time.June, 1)

	res, err := AdvanceToFuture(rule, candidate, utc(2024, time.April, 15))
	require.NoError(t, err)
	assert.True(t, res.Date.Equal(candidate))
	assert.Equal(t, 0, res.Skipped)
}

func TestAdvanceToFuture_SafetyLimit(t *testing.T) {
	// Daily cadence 1500 days behind exceeds the iteration cap; the series
	// is rescheduled from now instead.
	rule := Rule{Frequency: models.FrequencyCustom, Interval: intPtr(1), Timezone: "UTC"}
	now := utc(2024, time.June, 1)
	candidate := now.AddDate(0, 0, -1500)

	res, err := AdvanceToFuture(rule, candidate, now)
	require.NoError(t, err)
	assert.True(t, res.HitSafetyLimit)
	assert.Equal(t, 0, res.Skipped)
	assert.True(t, res.Date.After(now))
}

// ==========================
// Completed
// ==========================

func TestCompleted(t *testing.T) {
	endDate := utc(2024, time.June, 15)

	tests := []struct {
		name      string
		endType   models.EndType
		endDate   *time.Time
		endCount  *int
		generated int
		nextDue   *time.Time
		want      bool
	}{
		{"never is never complete", models.EndTypeNever, nil, nil, 9999, timePtr(utc(2030, time.January, 1)), false},
		{"on_date incomplete while next due before end", models.EndTypeOnDate, &endDate, nil, 5, timePtr(utc(2024, time.June, 1)), false},
		{"on_date incomplete when next due equals end", models.EndTypeOnDate, &endDate, nil, 5, &endDate, false},
		{"on_date complete once next due passes end", models.EndTypeOnDate, &endDate, nil, 5, timePtr(utc(2024, time.July, 1)), true},
		{"after_count incomplete below count", models.EndTypeAfterCount, nil, intPtr(3), 2, timePtr(utc(2024, time.July, 1)), false},
		{"after_count complete at count", models.EndTypeAfterCount, nil, intPtr(3), 3, timePtr(utc(2024, time.July, 1)), true},
		{"after_count complete beyond count", models.EndTypeAfterCount, nil, intPtr(3), 4, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Completed(tt.endType, tt.endDate, tt.endCount, tt.generated, tt.nextDue)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ==========================
// Validation
// ==========================

func TestValidateRule(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr string
	}{
		{"weekly requires day", Rule{Frequency: models.FrequencyWeekly, Timezone: "UTC"}, "frequencyDay is required"},
		{"weekly day out of range", Rule{Frequency: models.FrequencyWeekly, Day: intPtr(7), Timezone: "UTC"}, "must be 0-6"},
		{"weekly valid", Rule{Frequency: models.FrequencyWeekly, Day: intPtr(0), Timezone: "UTC"}, ""},
		{"monthly_date requires day of month", Rule{Frequency: models.FrequencyMonthlyDate, Timezone: "UTC"}, "frequencyDay is required"},
		{"monthly_date day zero rejected", Rule{Frequency: models.FrequencyMonthlyDate, Day: intPtr(0), Timezone: "UTC"}, "must be 1-31"},
		{"monthly_weekday requires week", Rule{Frequency: models.FrequencyMonthlyWeekday, Day: intPtr(2), Timezone: "UTC"}, "frequencyWeek 1-5"},
		{"monthly_last_day needs no modifiers", Rule{Frequency: models.FrequencyMonthlyLastDay, Timezone: "UTC"}, ""},
		{"custom requires interval", Rule{Frequency: models.FrequencyCustom, Timezone: "UTC"}, "frequencyInterval"},
		{"custom interval valid", Rule{Frequency: models.FrequencyCustom, Interval: intPtr(30), Timezone: "UTC"}, ""},
		{"bad timezone rejected", Rule{Frequency: models.FrequencyMonthlyLastDay, Timezone: "Nope/Nowhere"}, "invalid timezone"},
		{"unknown frequency rejected", Rule{Frequency: "daily-ish", Timezone: "UTC"}, "unknown frequency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRule(tt.rule)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateEndCondition(t *testing.T) {
	endDate := utc(2024, time.December, 31)

	tests := []struct {
		name     string
		endType  models.EndType
		endDate  *time.Time
		endCount *int
		wantErr  bool
	}{
		{"never needs nothing", models.EndTypeNever, nil, nil, false},
		{"on_date requires endDate", models.EndTypeOnDate, nil, nil, true},
		{"on_date with endDate", models.EndTypeOnDate, &endDate, nil, false},
		{"after_count requires endCount", models.EndTypeAfterCount, nil, nil, true},
		{"after_count zero is invalid", models.EndTypeAfterCount, nil, intPtr(0), true},
		{"after_count with endCount", models.EndTypeAfterCount, nil, intPtr(12), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndCondition(tt.endType, tt.endDate, tt.endCount)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

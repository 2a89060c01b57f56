// internal/recurrence/recurrence.go

// Package recurrence holds the pure cadence math for recurring deal series.
// Every function here is side-effect free; all date arithmetic runs in the
// rule's IANA timezone so a series anchored to "the 2nd Tuesday" stays on
// the 2nd Tuesday across DST transitions.
package recurrence

import (
	"fmt"
	"time"

	"recurring-scheduler/internal/models"
)

// MaxAdvanceIterations bounds AdvanceToFuture against runaway loops when a
// series has been dormant for a very long time relative to its interval.
const MaxAdvanceIterations = 1000

// Rule is the cadence of a recurring series: frequency plus its modifiers
// and the timezone that anchors all computed instants.
type Rule struct {
	Frequency models.Frequency
	Day       *int // 0-6 weekday or 1-31 day of month, depending on Frequency
	Week      *int // 1-5, which occurrence of the weekday within the month
	Interval  *int // custom frequency: every N days
	Timezone  string
}

// RuleFromSeries extracts the cadence rule from a series record.
func RuleFromSeries(s *models.RecurringSeries) Rule {
	return Rule{
		Frequency: s.Frequency,
		Day:       s.FrequencyDay,
		Week:      s.FrequencyWeek,
		Interval:  s.FrequencyInterval,
		Timezone:  s.Timezone,
	}
}

// Location resolves the rule's timezone. An empty timezone falls back to UTC
// rather than the process-local zone so results never depend on where the
// scheduler happens to run.
func (r Rule) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(r.Timezone)
}

// FirstDue determines when the first deal of a new series is due. A future
// issue date (at UTC day granularity) schedules the first occurrence for
// that date; a past or same-day issue date generates immediately.
func FirstDue(issueDate, now time.Time) time.Time {
	if startOfDayUTC(issueDate).After(startOfDayUTC(now)) {
		return issueDate
	}
	return now
}

// Next computes the occurrence strictly after base. The base must always be
// the series' previous scheduled instant, never "now": anchoring on the
// prior instant is what keeps a long-running series aligned to its original
// pattern even when a tick runs late.
func Next(rule Rule, base time.Time) (time.Time, error) {
	loc, err := rule.Location()
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", rule.Timezone, err)
	}
	b := base.In(loc)

	switch rule.Frequency {
	case models.FrequencyWeekly:
		target := clamp(intOr(rule.Day, 0), 0, 6)
		return nextWeekday(b, time.Weekday(target)), nil

	case models.FrequencyBiweekly:
		// Fixed 14-day step keeps the same weekday automatically.
		return b.AddDate(0, 0, 14), nil

	case models.FrequencyMonthlyDate:
		return addMonthsClamped(b, 1, intOr(rule.Day, 1)), nil

	case models.FrequencyMonthlyWeekday:
		dow := clamp(intOr(rule.Day, 0), 0, 6)
		week := clamp(intOr(rule.Week, 1), 1, 5)
		y, m := nextMonth(b)
		return nthWeekdayOfMonth(y, m, time.Weekday(dow), week, b), nil

	case models.FrequencyMonthlyLastDay:
		y, m := nextMonth(b)
		return withClock(time.Date(y, m, daysInMonth(y, m), 0, 0, 0, 0, b.Location()), b), nil

	case models.FrequencyQuarterly:
		return addMonthsClamped(b, 3, intOr(rule.Day, b.Day())), nil

	case models.FrequencySemiAnnual:
		return addMonthsClamped(b, 6, intOr(rule.Day, b.Day())), nil

	case models.FrequencyAnnual:
		return addMonthsClamped(b, 12, intOr(rule.Day, b.Day())), nil

	case models.FrequencyCustom:
		interval := intOr(rule.Interval, 1)
		if interval < 1 {
			interval = 1
		}
		return b.AddDate(0, 0, interval), nil

	default:
		return time.Time{}, fmt.Errorf("unknown frequency: %s", rule.Frequency)
	}
}

// AdvanceResult is the outcome of fast-forwarding a stale scheduled instant.
type AdvanceResult struct {
	Date time.Time
	// Skipped counts the cycles that were passed over without generating.
	// Surfaced for logs and metrics so missed cycles are observable rather
	// than silently dropped.
	Skipped        int
	HitSafetyLimit bool
}

// AdvanceToFuture walks the candidate forward until it is strictly after
// now. This is what guarantees at most one deal per scan per series: a
// scheduler outage never causes a burst of back-dated generations, the
// missed cycles are skipped.
func AdvanceToFuture(rule Rule, candidate, now time.Time) (AdvanceResult, error) {
	next := candidate
	skipped := 0

	for !next.After(now) && skipped < MaxAdvanceIterations {
		n, err := Next(rule, next)
		if err != nil {
			return AdvanceResult{}, err
		}
		next = n
		skipped++
	}

	if skipped >= MaxAdvanceIterations {
		// Degenerate cadence or a decades-dormant series: reschedule from
		// now instead of looping further.
		n, err := Next(rule, now)
		if err != nil {
			return AdvanceResult{}, err
		}
		return AdvanceResult{Date: n, Skipped: 0, HitSafetyLimit: true}, nil
	}

	return AdvanceResult{Date: next, Skipped: skipped}, nil
}

// Completed reports whether a series has satisfied its end condition given
// the number of deals generated so far and the candidate next-due instant.
func Completed(endType models.EndType, endDate *time.Time, endCount *int, generated int, nextDue *time.Time) bool {
	switch endType {
	case models.EndTypeNever:
		return false
	case models.EndTypeOnDate:
		return endDate != nil && nextDue != nil && nextDue.After(*endDate)
	case models.EndTypeAfterCount:
		return endCount != nil && generated >= *endCount
	default:
		return false
	}
}

// StartOfDayUTC truncates to midnight UTC. Generated deals carry day-level
// issue dates anchored on the scheduled instant, not on when the scheduler
// actually ran.
func StartOfDayUTC(t time.Time) time.Time {
	return startOfDayUTC(t)
}

// ---- internal date helpers ----

// startOfDayUTC truncates to midnight UTC for day-level comparisons that
// must agree between API callers and the scheduler regardless of server
// timezone.
func startOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// nextWeekday returns the target weekday in the week of b+1d, pushed out a
// week if that lands on or before b.
func nextWeekday(b time.Time, target time.Weekday) time.Time {
	d := b.AddDate(0, 0, 1)
	n := d.AddDate(0, 0, int(target)-int(d.Weekday()))
	if !n.After(b) {
		n = n.AddDate(0, 0, 7)
	}
	return n
}

// addMonthsClamped advances by months months and pins the result to
// targetDay, clamped to the target month's length (Jan 31 + 1mo = Feb 28/29).
// time.AddDate would normalize the overflow into the following month instead.
func addMonthsClamped(b time.Time, months, targetDay int) time.Time {
	month0 := int(b.Month()) - 1 + months
	y := b.Year() + month0/12
	m := time.Month(month0%12 + 1)

	day := targetDay
	if last := daysInMonth(y, m); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(y, m, day, b.Hour(), b.Minute(), b.Second(), b.Nanosecond(), b.Location())
}

// nthWeekdayOfMonth finds the nth occurrence of a weekday within (y, m),
// keeping the clock time of base. A 5th occurrence that does not exist
// overflows into the following month, matching the anchor semantics of
// "every 5th Friday" rules.
func nthWeekdayOfMonth(y int, m time.Month, dow time.Weekday, week int, base time.Time) time.Time {
	first := time.Date(y, m, 1, 0, 0, 0, 0, base.Location())
	offset := (int(dow) - int(first.Weekday()) + 7) % 7
	return withClock(first.AddDate(0, 0, offset+(week-1)*7), base)
}

func nextMonth(b time.Time) (int, time.Month) {
	month0 := int(b.Month()) // b.Month() is 1-based, so this is next month 0-based
	y := b.Year() + month0/12
	return y, time.Month(month0%12 + 1)
}

func daysInMonth(y int, m time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func withClock(d, clock time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), d.Location())
}

func intOr(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

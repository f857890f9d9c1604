// Package calendar implements business-day arithmetic over weekdays and an
// injected non-instructional day predicate.
package calendar

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// MaxSpanDays bounds every walk over the calendar.
const MaxSpanDays = 3 * 366

// NonInstructionalDayFunc reports whether the institution has no classes on day.
type NonInstructionalDayFunc func(institutionID string, day time.Time) bool

// Source is a context-aware provider of non-instructional days.
type Source interface {
	IsNonInstructionalDay(ctx context.Context, institutionID string, day time.Time) (bool, error)
}

// BusinessCalendar counts weekdays that are instructional for an institution.
type BusinessCalendar struct {
	isNonInstructional NonInstructionalDayFunc
}

// New builds a calendar. A nil predicate treats every weekday as a business day.
func New(pred NonInstructionalDayFunc) *BusinessCalendar {
	if pred == nil {
		pred = func(string, time.Time) bool { return false }
	}
	return &BusinessCalendar{isNonInstructional: pred}
}

// SourcePredicate adapts a Source into a predicate bound to ctx. Lookup failures
// are logged and the day is treated as instructional.
func SourcePredicate(ctx context.Context, src Source, logger *zap.Logger) NonInstructionalDayFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(institutionID string, day time.Time) bool {
		if src == nil {
			return false
		}
		off, err := src.IsNonInstructionalDay(ctx, institutionID, day)
		if err != nil {
			logger.Warn("non-instructional day lookup failed",
				zap.String("institution_id", institutionID),
				zap.Time("day", day),
				zap.Error(err))
			return false
		}
		return off
	}
}

// Date truncates t to midnight UTC of its calendar day.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsWeekend reports whether day falls on Saturday or Sunday.
func IsWeekend(day time.Time) bool {
	wd := day.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsBusinessDay reports whether day is a weekday with classes.
func (c *BusinessCalendar) IsBusinessDay(institutionID string, day time.Time) bool {
	day = Date(day)
	return !IsWeekend(day) && !c.isNonInstructional(institutionID, day)
}

// BusinessDaysBetween counts business days in (d1, d2]. The result is negative
// when d2 precedes d1.
func (c *BusinessCalendar) BusinessDaysBetween(institutionID string, d1, d2 time.Time) int {
	d1, d2 = Date(d1), Date(d2)
	if d2.Before(d1) {
		return -c.BusinessDaysBetween(institutionID, d2, d1)
	}
	count := 0
	for day, steps := d1.AddDate(0, 0, 1), 0; !day.After(d2) && steps < MaxSpanDays; day, steps = day.AddDate(0, 0, 1), steps+1 {
		if c.IsBusinessDay(institutionID, day) {
			count++
		}
	}
	return count
}

// AddBusinessDays returns the date n business days after day. A zero n returns day itself.
func (c *BusinessCalendar) AddBusinessDays(institutionID string, day time.Time, n int) time.Time {
	day = Date(day)
	for added, steps := 0, 0; added < n && steps < MaxSpanDays; steps++ {
		day = day.AddDate(0, 0, 1)
		if c.IsBusinessDay(institutionID, day) {
			added++
		}
	}
	return day
}

// LastBusinessDayOnOrBefore walks back from day to the closest business day.
func (c *BusinessCalendar) LastBusinessDayOnOrBefore(institutionID string, day time.Time) time.Time {
	day = Date(day)
	for steps := 0; !c.IsBusinessDay(institutionID, day) && steps < MaxSpanDays; steps++ {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// DaysUntil returns the business days from today to the last business day on or
// before event, saturating at limit. Past events yield at most -1.
func (c *BusinessCalendar) DaysUntil(institutionID string, today, event time.Time, limit int) int {
	today = Date(today)
	target := c.LastBusinessDayOnOrBefore(institutionID, event)
	if Date(event).Before(today) {
		return -1
	}
	if target.Before(today) {
		target = today
	}
	count := 0
	for day := today.AddDate(0, 0, 1); !day.After(target) && count < limit; day = day.AddDate(0, 0, 1) {
		if c.IsBusinessDay(institutionID, day) {
			count++
		}
	}
	return count
}

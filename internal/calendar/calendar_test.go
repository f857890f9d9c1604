package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBusinessDaysBetweenSkipsWeekends(t *testing.T) {
	cal := New(nil)

	// Monday to the following Monday.
	assert.Equal(t, 5, cal.BusinessDaysBetween("escola-1", day("2024-01-01"), day("2024-01-08")))
	assert.Equal(t, 0, cal.BusinessDaysBetween("escola-1", day("2024-01-05"), day("2024-01-07")))
	assert.Equal(t, -5, cal.BusinessDaysBetween("escola-1", day("2024-01-08"), day("2024-01-01")))
	assert.Equal(t, 0, cal.BusinessDaysBetween("escola-1", day("2024-01-01"), day("2024-01-01")))
}

func TestBusinessDaysBetweenHonoursPredicate(t *testing.T) {
	holidays := map[string]bool{"2024-01-03": true}
	calls := 0
	cal := New(func(institutionID string, d time.Time) bool {
		calls++
		return institutionID == "escola-1" && holidays[d.Format("2006-01-02")]
	})

	assert.Equal(t, 4, cal.BusinessDaysBetween("escola-1", day("2024-01-01"), day("2024-01-08")))
	assert.Equal(t, 5, cal.BusinessDaysBetween("escola-2", day("2024-01-01"), day("2024-01-08")))

	// The predicate is consulted on every call rather than cached.
	before := calls
	holidays["2024-01-04"] = true
	assert.Equal(t, 3, cal.BusinessDaysBetween("escola-1", day("2024-01-01"), day("2024-01-08")))
	assert.Greater(t, calls, before)
}

func TestAddBusinessDays(t *testing.T) {
	cal := New(nil)

	assert.Equal(t, day("2024-01-08"), cal.AddBusinessDays("", day("2024-01-05"), 1))
	assert.Equal(t, day("2024-01-03"), cal.AddBusinessDays("", day("2024-01-01"), 2))
	assert.Equal(t, day("2024-01-01"), cal.AddBusinessDays("", day("2024-01-01"), 0))
}

func TestLastBusinessDayOnOrBefore(t *testing.T) {
	cal := New(nil)

	assert.Equal(t, day("2024-01-05"), cal.LastBusinessDayOnOrBefore("", day("2024-01-07")))
	assert.Equal(t, day("2024-01-08"), cal.LastBusinessDayOnOrBefore("", day("2024-01-08")))
}

func TestDaysUntil(t *testing.T) {
	cal := New(nil)

	assert.Equal(t, -1, cal.DaysUntil("", day("2024-01-08"), day("2024-01-05"), 30))
	assert.Equal(t, 0, cal.DaysUntil("", day("2024-01-08"), day("2024-01-08"), 30))
	assert.Equal(t, 5, cal.DaysUntil("", day("2024-01-01"), day("2024-01-08"), 30))
	// Weekend events count up to the Friday before.
	assert.Equal(t, 4, cal.DaysUntil("", day("2024-01-01"), day("2024-01-06"), 30))
	assert.Equal(t, 3, cal.DaysUntil("", day("2024-01-01"), day("2024-03-01"), 3))
}

type sourceStub struct {
	off map[string]bool
	err error
}

func (s sourceStub) IsNonInstructionalDay(ctx context.Context, institutionID string, d time.Time) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.off[d.Format("2006-01-02")], nil
}

func TestSourcePredicate(t *testing.T) {
	pred := SourcePredicate(context.Background(), sourceStub{off: map[string]bool{"2024-01-02": true}}, nil)
	cal := New(pred)
	require.False(t, cal.IsBusinessDay("escola-1", day("2024-01-02")))
	require.True(t, cal.IsBusinessDay("escola-1", day("2024-01-03")))

	failing := New(SourcePredicate(context.Background(), sourceStub{err: errors.New("db down")}, nil))
	require.True(t, failing.IsBusinessDay("escola-1", day("2024-01-02")))
}

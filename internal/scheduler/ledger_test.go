package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHourLedgerDayIndex(t *testing.T) {
	ledger := NewHourLedger(day(t, "2026-01-05"), day(t, "2026-01-11"))

	assert.Equal(t, 7, ledger.Days())
	assert.Equal(t, 0, ledger.DayIndex(day(t, "2026-01-05")))
	assert.Equal(t, 6, ledger.DayIndex(day(t, "2026-01-11")))
	assert.Equal(t, -1, ledger.DayIndex(day(t, "2026-01-04")))
	assert.Equal(t, -1, ledger.DayIndex(day(t, "2026-01-12")))
}

func TestHourLedgerAddRemove(t *testing.T) {
	ledger := NewHourLedger(day(t, "2026-01-05"), day(t, "2026-01-11"))

	ledger.Add("r1", day(t, "2026-01-06"), 4)
	ledger.Add("r1", day(t, "2026-01-06"), 4)
	assert.Equal(t, 8.0, ledger.HoursOn("r1", 1))

	ledger.Remove("r1", day(t, "2026-01-06"), 4)
	assert.Equal(t, 4.0, ledger.HoursOn("r1", 1))

	// Dates outside the span are ignored, not panics.
	ledger.Add("r1", day(t, "2026-02-01"), 4)
	assert.Equal(t, 4.0, ledger.TotalHours("r1"))
}

func TestHourLedgerRestDays(t *testing.T) {
	ledger := NewHourLedger(day(t, "2026-01-05"), day(t, "2026-01-11"))

	for i := 0; i < 5; i++ {
		ledger.Add("r1", day(t, "2026-01-05").AddDate(0, 0, i), 8)
	}
	assert.Equal(t, 2, ledger.RestDays("r1", 0, 6))
	assert.Equal(t, 7, ledger.RestDays("unknown", 0, 6))
}

func TestWouldExceedDutyShortSpan(t *testing.T) {
	// A 7-day ledger clamps the duty window to the span: the cap is one
	// week's worth of hours.
	ledger := NewHourLedger(day(t, "2026-01-05"), day(t, "2026-01-11"))
	for i := 0; i < 6; i++ {
		ledger.Add("r1", day(t, "2026-01-05").AddDate(0, 0, i), 13)
	}

	// 78 hours held; 4 more crosses the 80-hour weekly cap.
	assert.True(t, ledger.WouldExceedDuty("r1", 6, 4, WeeklyHourCap))
	assert.False(t, ledger.WouldExceedDuty("r1", 6, 2, WeeklyHourCap))
}

func TestWouldExceedDutyPersonalCap(t *testing.T) {
	ledger := NewHourLedger(day(t, "2026-01-05"), day(t, "2026-01-11"))
	ledger.Add("r1", day(t, "2026-01-05"), 8)

	assert.True(t, ledger.WouldExceedDuty("r1", 1, 4, 10))
	assert.False(t, ledger.WouldExceedDuty("r1", 1, 4, 80))
}

func TestWouldExceedDutyFullWindow(t *testing.T) {
	// A 28-day span uses the full rolling window: 4 weeks at 80 hours.
	ledger := NewHourLedger(day(t, "2026-01-05"), day(t, "2026-02-01"))
	for i := 0; i < 27; i++ {
		ledger.Add("r1", day(t, "2026-01-05").AddDate(0, 0, i), 11.8)
	}

	// 318.6 hours held across the window; limit is 320.
	assert.True(t, ledger.WouldExceedDuty("r1", 27, 4, WeeklyHourCap))
	assert.False(t, ledger.WouldExceedDuty("r1", 27, 1, WeeklyHourCap))
}

func TestWouldBreakRest(t *testing.T) {
	ledger := NewHourLedger(day(t, "2026-01-05"), day(t, "2026-01-11"))
	for i := 0; i < 6; i++ {
		ledger.Add("r1", day(t, "2026-01-05").AddDate(0, 0, i), 8)
	}

	// Day 6 is the only remaining rest day in the window.
	assert.True(t, ledger.WouldBreakRest("r1", 6))

	ledger.Remove("r1", day(t, "2026-01-10"), 8)
	assert.False(t, ledger.WouldBreakRest("r1", 6))
}

func TestWouldBreakRestAlreadyWorking(t *testing.T) {
	ledger := NewHourLedger(day(t, "2026-01-05"), day(t, "2026-01-11"))
	for i := 0; i < 6; i++ {
		ledger.Add("r1", day(t, "2026-01-05").AddDate(0, 0, i), 4)
	}

	// Adding a second session to a day already worked never costs a rest day.
	assert.False(t, ledger.WouldBreakRest("r1", 3))
}

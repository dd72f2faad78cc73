package scheduler

import (
	"time"

	"github.com/clinrota/clinrota-api/internal/models"
)

// Rolling-window rule parameters.
const (
	// DutyWindowDays is the span of the rolling duty-hour window.
	DutyWindowDays = 28
	// RestWindowDays is the cadence at which a qualifying rest day is due.
	RestWindowDays = 7
	// WeeklyHourCap is the program-wide average weekly duty-hour ceiling.
	WeeklyHourCap = 80.0
	// MinRestDaysPerDutyWindow is the averaged rest-day requirement: one rest
	// day per seven days, averaged over the duty window.
	MinRestDaysPerDutyWindow = DutyWindowDays / RestWindowDays
)

// HourLedger tracks assigned hours per person per calendar day across a fixed
// date span. It backs both the batch compliance audit and the incremental
// feasibility oracle used inside solver strategies, so the two evaluate the
// same windows the same way.
type HourLedger struct {
	start time.Time
	days  int
	hours map[string][]float64
}

// NewHourLedger builds an empty ledger covering the inclusive date range.
func NewHourLedger(start, end time.Time) *HourLedger {
	start = models.DateOnly(start)
	days := models.DaysBetween(start, end) + 1
	if days < 1 {
		days = 1
	}
	return &HourLedger{
		start: start,
		days:  days,
		hours: make(map[string][]float64),
	}
}

// Days returns the number of calendar days the ledger covers.
func (l *HourLedger) Days() int { return l.days }

// Start returns the first day covered by the ledger.
func (l *HourLedger) Start() time.Time { return l.start }

// DayIndex maps a date to its offset inside the ledger span, or -1 when the
// date falls outside it.
func (l *HourLedger) DayIndex(date time.Time) int {
	idx := models.DaysBetween(l.start, date)
	if idx < 0 || idx >= l.days {
		return -1
	}
	return idx
}

func (l *HourLedger) row(personID string) []float64 {
	row, ok := l.hours[personID]
	if !ok {
		row = make([]float64, l.days)
		l.hours[personID] = row
	}
	return row
}

// Add records assigned hours for a person on a date.
func (l *HourLedger) Add(personID string, date time.Time, hours float64) {
	if idx := l.DayIndex(date); idx >= 0 {
		l.row(personID)[idx] += hours
	}
}

// Remove subtracts previously recorded hours.
func (l *HourLedger) Remove(personID string, date time.Time, hours float64) {
	if idx := l.DayIndex(date); idx >= 0 {
		row := l.row(personID)
		row[idx] -= hours
		if row[idx] < 0 {
			row[idx] = 0
		}
	}
}

// HoursOn returns the hours recorded for a person on a single day index.
func (l *HourLedger) HoursOn(personID string, dayIdx int) float64 {
	row, ok := l.hours[personID]
	if !ok || dayIdx < 0 || dayIdx >= l.days {
		return 0
	}
	return row[dayIdx]
}

// WindowHours sums recorded hours over the inclusive day-index window.
func (l *HourLedger) WindowHours(personID string, from, to int) float64 {
	row, ok := l.hours[personID]
	if !ok {
		return 0
	}
	if from < 0 {
		from = 0
	}
	if to >= l.days {
		to = l.days - 1
	}
	var sum float64
	for i := from; i <= to; i++ {
		sum += row[i]
	}
	return sum
}

// RestDays counts qualifying rest days (full calendar days with zero
// assignments) in the inclusive day-index window.
func (l *HourLedger) RestDays(personID string, from, to int) int {
	if from < 0 {
		from = 0
	}
	if to >= l.days {
		to = l.days - 1
	}
	row := l.hours[personID]
	count := 0
	for i := from; i <= to; i++ {
		if row == nil || row[i] == 0 {
			count++
		}
	}
	return count
}

// TotalHours returns all hours recorded for a person across the span.
func (l *HourLedger) TotalHours(personID string) float64 {
	return l.WindowHours(personID, 0, l.days-1)
}

// dutyWindow clamps the duty window length to the ledger span, so short
// generation ranges are still evaluated proportionally.
func (l *HourLedger) dutyWindow() int {
	if l.days < DutyWindowDays {
		return l.days
	}
	return DutyWindowDays
}

// WouldExceedDuty reports whether adding hours on the given day would push
// any duty window containing that day over the weekly cap. Cost is bounded by
// the window size, independent of the full schedule length.
func (l *HourLedger) WouldExceedDuty(personID string, dayIdx int, add, weeklyCap float64) bool {
	window := l.dutyWindow()
	weeks := float64(window) / 7.0
	limit := weeklyCap * weeks
	for from := dayIdx - window + 1; from <= dayIdx; from++ {
		to := from + window - 1
		if from < 0 || to >= l.days {
			continue
		}
		if l.WindowHours(personID, from, to)+add > limit {
			return true
		}
	}
	return false
}

// WouldBreakRest reports whether occupying the given (currently free) day
// would drop any duty window containing it below the averaged rest-day floor.
func (l *HourLedger) WouldBreakRest(personID string, dayIdx int) bool {
	if l.HoursOn(personID, dayIdx) > 0 {
		// Day is already a working day; occupying it further changes nothing.
		return false
	}
	window := l.dutyWindow()
	required := window / RestWindowDays
	if required == 0 {
		return false
	}
	for from := dayIdx - window + 1; from <= dayIdx; from++ {
		to := from + window - 1
		if from < 0 || to >= l.days {
			continue
		}
		if l.RestDays(personID, from, to)-1 < required {
			return true
		}
	}
	return false
}

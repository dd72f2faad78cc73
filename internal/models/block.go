package models

import (
	"fmt"
	"time"
)

// Session identifies the half-day a block occupies.
type Session string

const (
	SessionAM Session = "AM"
	SessionPM Session = "PM"
)

// SessionHours is the fixed duration of one block.
const SessionHours = 4.0

// Block is one AM or PM session on a given date, the atomic unit of scheduling.
type Block struct {
	ID      string    `db:"id" json:"id"`
	Date    time.Time `db:"date" json:"date"`
	Session Session   `db:"session" json:"session"`
	Hours   float64   `db:"hours" json:"hours"`
}

// BlockID builds the canonical identifier for a date/session pair.
func BlockID(date time.Time, session Session) string {
	return fmt.Sprintf("%s-%s", DateOnly(date).Format("2006-01-02"), session)
}

// BlocksForRange generates the AM and PM blocks for every date in the
// inclusive range, in chronological order.
func BlocksForRange(start, end time.Time) []Block {
	start = DateOnly(start)
	end = DateOnly(end)
	var blocks []Block
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		for _, session := range []Session{SessionAM, SessionPM} {
			blocks = append(blocks, Block{
				ID:      BlockID(d, session),
				Date:    d,
				Session: session,
				Hours:   SessionHours,
			})
		}
	}
	return blocks
}

// DateOnly truncates a timestamp to UTC midnight.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b, negative when
// b precedes a.
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}

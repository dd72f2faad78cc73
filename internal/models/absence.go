package models

import "time"

// AbsenceType categorises why a person is away.
type AbsenceType string

const (
	AbsenceLeave      AbsenceType = "leave"
	AbsenceDeployment AbsenceType = "deployment"
	AbsenceTDY        AbsenceType = "tdy"
	AbsenceMedical    AbsenceType = "medical"
	AbsenceOther      AbsenceType = "other"
)

// Absence marks a person ineligible for any block inside its inclusive date
// range. Read-only to the scheduling core.
type Absence struct {
	ID        string      `db:"id" json:"id"`
	PersonID  string      `db:"person_id" json:"person_id"`
	StartDate time.Time   `db:"start_date" json:"start_date"`
	EndDate   time.Time   `db:"end_date" json:"end_date"`
	Type      AbsenceType `db:"type" json:"type"`
}

// Covers reports whether the date falls inside the absence range.
func (a Absence) Covers(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(DateOnly(a.StartDate)) && !d.After(DateOnly(a.EndDate))
}

// AbsenceIndex answers per-person absence lookups.
type AbsenceIndex map[string][]Absence

// NewAbsenceIndex groups absences by person.
func NewAbsenceIndex(absences []Absence) AbsenceIndex {
	idx := make(AbsenceIndex, len(absences))
	for _, a := range absences {
		idx[a.PersonID] = append(idx[a.PersonID], a)
	}
	return idx
}

// Absent reports whether the person is absent on the given date.
func (idx AbsenceIndex) Absent(personID string, date time.Time) bool {
	for _, a := range idx[personID] {
		if a.Covers(date) {
			return true
		}
	}
	return false
}

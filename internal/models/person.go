package models

import "time"

// Role distinguishes trainees from supervising staff.
type Role string

const (
	RoleResident Role = "resident"
	RoleFaculty  Role = "faculty"
)

// Credential is a procedure or certification tag with a validity window.
type Credential struct {
	Tag        string    `db:"tag" json:"tag"`
	ValidFrom  time.Time `db:"valid_from" json:"valid_from"`
	ValidUntil time.Time `db:"valid_until" json:"valid_until"`
}

// ValidOn reports whether the credential covers the given date.
func (c Credential) ValidOn(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(DateOnly(c.ValidFrom)) && !d.After(DateOnly(c.ValidUntil))
}

// Person is a roster member. Immutable for the duration of a generation run.
type Person struct {
	ID          string       `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	Role        Role         `db:"role" json:"role"`
	PGYLevel    int          `db:"pgy_level" json:"pgy_level,omitempty"`
	Credentials []Credential `json:"credentials,omitempty"`
	// MaxWeeklyHours overrides the program-wide duty-hour cap when set.
	MaxWeeklyHours *float64 `db:"max_weekly_hours" json:"max_weekly_hours,omitempty"`
}

// IsResident reports whether the person is a trainee.
func (p Person) IsResident() bool {
	return p.Role == RoleResident
}

// HasCredential reports whether the person holds an unexpired credential tag
// as of the given date. An empty tag requirement always passes.
func (p Person) HasCredential(tag string, date time.Time) bool {
	if tag == "" {
		return true
	}
	for _, c := range p.Credentials {
		if c.Tag == tag && c.ValidOn(date) {
			return true
		}
	}
	return false
}

// WeeklyHourCap returns the duty-hour ceiling applying to this person.
func (p Person) WeeklyHourCap(programCap float64) float64 {
	if p.MaxWeeklyHours != nil && *p.MaxWeeklyHours > 0 {
		return *p.MaxWeeklyHours
	}
	return programCap
}

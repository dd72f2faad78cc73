package models

import "time"

// ViolationType names the rule a schedule breaks.
type ViolationType string

const (
	ViolationDutyHours     ViolationType = "DUTY_HOURS"
	ViolationRestDay       ViolationType = "REST_DAY"
	ViolationSupervision   ViolationType = "SUPERVISION"
	ViolationDoubleBooking ViolationType = "DOUBLE_BOOKING"
	ViolationEligibility   ViolationType = "ELIGIBILITY"
	ViolationAbsence       ViolationType = "ABSENCE_OVERLAP"
)

// Severity ranks how urgently a violation must be addressed.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
)

// Violation is one detected rule breach. Violations are reported in full,
// never silently repaired.
type Violation struct {
	Type        ViolationType `json:"type"`
	Severity    Severity      `json:"severity"`
	PersonID    string        `json:"person_id,omitempty"`
	BlockID     string        `json:"block_id,omitempty"`
	WindowStart *time.Time    `json:"window_start,omitempty"`
	WindowEnd   *time.Time    `json:"window_end,omitempty"`
	Actual      float64       `json:"actual,omitempty"`
	Limit       float64       `json:"limit,omitempty"`
	Message     string        `json:"message"`
}

// Blocking reports whether the violation must be fixed before a schedule is
// usable.
func (v Violation) Blocking() bool {
	return v.Severity == SeverityCritical || v.Severity == SeverityHigh
}

package models

import "time"

// SwapKind distinguishes reciprocal exchanges from one-directional transfers.
type SwapKind string

const (
	// SwapOneToOne exchanges the two weeks in both directions.
	SwapOneToOne SwapKind = "one_to_one"
	// SwapAbsorb moves one week to the target with no reciprocal week.
	SwapAbsorb SwapKind = "absorb"
)

// SwapStatus is the state machine of a swap record.
//
// PENDING -> EXECUTED -> ROLLED_BACK (within the rollback window only)
// PENDING -> FAILED (terminal)
type SwapStatus string

const (
	SwapPending    SwapStatus = "PENDING"
	SwapExecuted   SwapStatus = "EXECUTED"
	SwapFailed     SwapStatus = "FAILED"
	SwapRolledBack SwapStatus = "ROLLED_BACK"
)

// SwapRecord captures one requested exchange of rotation weeks. Status
// transitions are the only mutation after creation.
type SwapRecord struct {
	ID              string     `db:"id" json:"id"`
	SourcePersonID  string     `db:"source_person_id" json:"source_person_id"`
	SourceWeekStart time.Time  `db:"source_week_start" json:"source_week_start"`
	TargetPersonID  string     `db:"target_person_id" json:"target_person_id"`
	TargetWeekStart time.Time  `db:"target_week_start" json:"target_week_start"`
	Kind            SwapKind   `db:"kind" json:"kind"`
	Status          SwapStatus `db:"status" json:"status"`
	Reason          string     `db:"reason" json:"reason,omitempty"`
	RequestedAt     time.Time  `db:"requested_at" json:"requested_at"`
	ExecutedAt      *time.Time `db:"executed_at" json:"executed_at,omitempty"`
}

// CanTransition reports whether moving to the given status is legal.
func (s SwapStatus) CanTransition(next SwapStatus) bool {
	switch s {
	case SwapPending:
		return next == SwapExecuted || next == SwapFailed
	case SwapExecuted:
		return next == SwapRolledBack
	default:
		return false
	}
}

package models

import "time"

// BlockRole is the capacity a person fills on a block.
type BlockRole string

const (
	BlockRoleResident   BlockRole = "resident"
	BlockRoleSupervisor BlockRole = "supervisor"
)

// Assignment binds a person to a block under a rotation template.
//
// Version increases monotonically and carries optimistic-concurrency
// semantics: an update must supply the version it last read, and a mismatch
// is a conflict, never a silent overwrite.
type Assignment struct {
	ID         string    `db:"id" json:"id"`
	BlockID    string    `db:"block_id" json:"block_id"`
	PersonID   string    `db:"person_id" json:"person_id"`
	TemplateID string    `db:"template_id" json:"template_id"`
	Role       BlockRole `db:"role" json:"role"`
	Version    int64     `db:"version" json:"version"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Key identifies the person/block/version triple used by swap round-trip
// verification.
type AssignmentKey struct {
	PersonID string
	BlockID  string
	Version  int64
}

// Key returns the identity triple for this assignment.
func (a Assignment) Key() AssignmentKey {
	return AssignmentKey{PersonID: a.PersonID, BlockID: a.BlockID, Version: a.Version}
}

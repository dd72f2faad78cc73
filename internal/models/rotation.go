package models

import "time"

// RotationTemplate is static reference data describing one kind of clinical
// activity and the staffing rules it imposes.
type RotationTemplate struct {
	ID                 string `db:"id" json:"id"`
	Activity           string `db:"activity" json:"activity"`
	RequiredCredential string `db:"required_credential" json:"required_credential,omitempty"`
	// SupervisionRatio is the maximum number of residents one supervising
	// faculty member may cover on a block governed by this template.
	SupervisionRatio int `db:"supervision_ratio" json:"supervision_ratio"`
	MinPGYLevel      int `db:"min_pgy_level" json:"min_pgy_level"`
}

// EligiblePerson reports whether the person satisfies the template's PGY and
// credential requirements as of the block date. Faculty are exempt from the
// PGY floor.
func (t RotationTemplate) EligiblePerson(p Person, date time.Time) bool {
	if p.IsResident() && p.PGYLevel < t.MinPGYLevel {
		return false
	}
	return p.HasCredential(t.RequiredCredential, date)
}

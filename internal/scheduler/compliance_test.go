package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinrota/clinrota-api/internal/models"
)

func violationsOfType(violations []models.Violation, vt models.ViolationType) []models.Violation {
	var out []models.Violation
	for _, v := range violations {
		if v.Type == vt {
			out = append(out, v)
		}
	}
	return out
}

func TestValidateCleanSchedule(t *testing.T) {
	blocks := models.BlocksForRange(day(t, "2026-01-05"), day(t, "2026-01-06"))
	people := []models.Person{resident("r1", 2), resident("r2", 2), faculty("f1")}
	tmpl := wardTemplate(4, 1)

	var assignments []models.Assignment
	for i, b := range blocks {
		who := "r1"
		if i%2 == 1 {
			who = "r2"
		}
		assignments = append(assignments,
			assignmentOn(b, who, tmpl.ID, models.BlockRoleResident),
			assignmentOn(b, "f1", tmpl.ID, models.BlockRoleSupervisor))
	}

	snap := snapshotFor(blocks, people, []models.RotationTemplate{tmpl}, nil, assignments)
	violations, stats := Validator{}.Validate(snap)

	assert.Empty(t, violations)
	assert.Equal(t, 1.0, stats.CoverageRate)
	assert.Equal(t, 4, stats.AssignedBlocks)
}

func TestValidateDoubleBooking(t *testing.T) {
	blocks := models.BlocksForRange(day(t, "2026-01-05"), day(t, "2026-01-05"))
	tmpl := wardTemplate(4, 1)
	a := assignmentOn(blocks[0], "r1", tmpl.ID, models.BlockRoleResident)
	dup := a
	dup.ID = a.ID + ":dup"

	snap := snapshotFor(blocks, []models.Person{resident("r1", 1), faculty("f1")},
		[]models.RotationTemplate{tmpl}, nil, []models.Assignment{a, dup,
			assignmentOn(blocks[0], "f1", tmpl.ID, models.BlockRoleSupervisor)})
	violations, _ := Validator{}.Validate(snap)

	found := violationsOfType(violations, models.ViolationDoubleBooking)
	require.Len(t, found, 1)
	assert.Equal(t, models.SeverityCritical, found[0].Severity)
	assert.Equal(t, "r1", found[0].PersonID)
}

func TestValidateEligibility(t *testing.T) {
	blocks := models.BlocksForRange(day(t, "2026-01-05"), day(t, "2026-01-05"))
	tmpl := wardTemplate(4, 2)

	snap := snapshotFor(blocks, []models.Person{resident("r1", 1), faculty("f1")},
		[]models.RotationTemplate{tmpl}, nil, []models.Assignment{
			assignmentOn(blocks[0], "r1", tmpl.ID, models.BlockRoleResident),
			assignmentOn(blocks[0], "f1", tmpl.ID, models.BlockRoleSupervisor)})
	violations, _ := Validator{}.Validate(snap)

	found := violationsOfType(violations, models.ViolationEligibility)
	require.Len(t, found, 1)
	assert.Equal(t, models.SeverityCritical, found[0].Severity)
}

func TestValidateAbsenceOverlap(t *testing.T) {
	blocks := models.BlocksForRange(day(t, "2026-01-05"), day(t, "2026-01-05"))
	tmpl := wardTemplate(4, 1)
	absence := models.Absence{
		ID: "ab1", PersonID: "r1", Type: models.AbsenceLeave,
		StartDate: day(t, "2026-01-04"), EndDate: day(t, "2026-01-06"),
	}

	snap := snapshotFor(blocks, []models.Person{resident("r1", 1), faculty("f1")},
		[]models.RotationTemplate{tmpl}, []models.Absence{absence}, []models.Assignment{
			assignmentOn(blocks[0], "r1", tmpl.ID, models.BlockRoleResident),
			assignmentOn(blocks[0], "f1", tmpl.ID, models.BlockRoleSupervisor)})
	violations, _ := Validator{}.Validate(snap)

	found := violationsOfType(violations, models.ViolationAbsence)
	require.Len(t, found, 1)
	assert.Equal(t, "r1", found[0].PersonID)
}

func TestValidateDutyHoursPersonalCap(t *testing.T) {
	blocks := models.BlocksForRange(day(t, "2026-01-05"), day(t, "2026-01-11"))
	tmpl := wardTemplate(4, 1)
	capped := resident("r1", 2)
	capped.MaxWeeklyHours = hoursCap(8)

	// Three blocks of four hours each push r1 to 12 weekly hours against a
	// personal cap of 8.
	assignments := []models.Assignment{
		assignmentOn(blocks[0], "r1", tmpl.ID, models.BlockRoleResident),
		assignmentOn(blocks[2], "r1", tmpl.ID, models.BlockRoleResident),
		assignmentOn(blocks[4], "r1", tmpl.ID, models.BlockRoleResident),
	}
	for _, i := range []int{0, 2, 4} {
		assignments = append(assignments, assignmentOn(blocks[i], "f1", tmpl.ID, models.BlockRoleSupervisor))
	}

	snap := snapshotFor(blocks, []models.Person{capped, faculty("f1")},
		[]models.RotationTemplate{tmpl}, nil, assignments)
	violations, _ := Validator{}.Validate(snap)

	found := violationsOfType(violations, models.ViolationDutyHours)
	require.NotEmpty(t, found)
	assert.Equal(t, models.SeverityCritical, found[0].Severity)
	assert.Equal(t, 8.0, found[0].Limit)
	assert.Equal(t, 12.0, found[0].Actual)
	require.NotNil(t, found[0].WindowStart)
	require.NotNil(t, found[0].WindowEnd)
}

func TestValidateRestDayAveraged(t *testing.T) {
	blocks := models.BlocksForRange(day(t, "2026-01-05"), day(t, "2026-01-11"))
	tmpl := wardTemplate(4, 1)

	// Every day of the week worked: zero rest days against a floor of one.
	var assignments []models.Assignment
	for _, b := range blocks {
		if b.Session == models.SessionAM {
			assignments = append(assignments,
				assignmentOn(b, "r1", tmpl.ID, models.BlockRoleResident),
				assignmentOn(b, "f1", tmpl.ID, models.BlockRoleSupervisor))
		}
	}

	snap := snapshotFor(blocks, []models.Person{resident("r1", 1), faculty("f1")},
		[]models.RotationTemplate{tmpl}, nil, assignments)
	violations, _ := Validator{}.Validate(snap)

	found := violationsOfType(violations, models.ViolationRestDay)
	require.Len(t, found, 1)
	assert.Equal(t, models.SeverityHigh, found[0].Severity)
	assert.Equal(t, 0.0, found[0].Actual)
	assert.Equal(t, 1.0, found[0].Limit)
}

func TestValidateRestDayStrictMode(t *testing.T) {
	blocks := models.BlocksForRange(day(t, "2026-01-05"), day(t, "2026-01-18"))
	tmpl := wardTemplate(4, 1)

	// Ten consecutive working days then four off. The averaged contract is
	// satisfied (4 rest days in 14), but strict mode flags the first weeks.
	var assignments []models.Assignment
	for i, b := range blocks {
		if b.Session != models.SessionAM || i/2 >= 10 {
			continue
		}
		assignments = append(assignments,
			assignmentOn(b, "r1", tmpl.ID, models.BlockRoleResident),
			assignmentOn(b, "f1", tmpl.ID, models.BlockRoleSupervisor))
	}

	snap := snapshotFor(blocks, []models.Person{resident("r1", 1), faculty("f1")},
		[]models.RotationTemplate{tmpl}, nil, assignments)

	violations, _ := Validator{}.Validate(snap)
	assert.Empty(t, violationsOfType(violations, models.ViolationRestDay))

	strict, _ := Validator{StrictRest: true}.Validate(snap)
	assert.NotEmpty(t, violationsOfType(strict, models.ViolationRestDay))
}

func TestValidateSupervisionRatio(t *testing.T) {
	blocks := models.BlocksForRange(day(t, "2026-01-05"), day(t, "2026-01-05"))
	tmpl := wardTemplate(2, 1)

	assignments := []models.Assignment{
		assignmentOn(blocks[0], "r1", tmpl.ID, models.BlockRoleResident),
		assignmentOn(blocks[0], "r2", tmpl.ID, models.BlockRoleResident),
		assignmentOn(blocks[0], "r3", tmpl.ID, models.BlockRoleResident),
		assignmentOn(blocks[0], "f1", tmpl.ID, models.BlockRoleSupervisor),
	}
	people := []models.Person{resident("r1", 1), resident("r2", 1), resident("r3", 1), faculty("f1")}

	snap := snapshotFor(blocks, people, []models.RotationTemplate{tmpl}, nil, assignments)
	violations, _ := Validator{}.Validate(snap)

	found := violationsOfType(violations, models.ViolationSupervision)
	require.Len(t, found, 1)
	assert.Equal(t, models.SeverityHigh, found[0].Severity)
	assert.Equal(t, blocks[0].ID, found[0].BlockID)
	assert.Equal(t, 3.0, found[0].Actual)
	assert.Equal(t, 2.0, found[0].Limit)
}

func TestValidateSupervisionMostRestrictiveTemplateGoverns(t *testing.T) {
	blocks := models.BlocksForRange(day(t, "2026-01-05"), day(t, "2026-01-05"))
	loose := wardTemplate(4, 1)
	tight := models.RotationTemplate{ID: "icu", Activity: "icu", SupervisionRatio: 1, MinPGYLevel: 1}

	assignments := []models.Assignment{
		assignmentOn(blocks[0], "r1", loose.ID, models.BlockRoleResident),
		assignmentOn(blocks[0], "r2", tight.ID, models.BlockRoleResident),
		assignmentOn(blocks[0], "f1", loose.ID, models.BlockRoleSupervisor),
	}
	people := []models.Person{resident("r1", 1), resident("r2", 1), faculty("f1")}

	snap := snapshotFor(blocks, people, []models.RotationTemplate{loose, tight}, nil, assignments)
	violations, _ := Validator{}.Validate(snap)

	found := violationsOfType(violations, models.ViolationSupervision)
	require.Len(t, found, 1)
	assert.Equal(t, 1.0, found[0].Limit)
}

func TestValidateStatsEmptySchedule(t *testing.T) {
	blocks := models.BlocksForRange(day(t, "2026-01-05"), day(t, "2026-01-06"))
	snap := snapshotFor(blocks, []models.Person{resident("r1", 1)}, nil, nil, nil)

	violations, stats := Validator{}.Validate(snap)
	assert.Empty(t, violations)
	assert.Equal(t, 0.0, stats.CoverageRate)
	assert.Equal(t, 4, stats.TotalBlocks)
}

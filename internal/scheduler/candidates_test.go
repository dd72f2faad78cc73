package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinrota/clinrota-api/internal/models"
)

func TestGenerateCandidatesSplitsRoles(t *testing.T) {
	blocks := models.BlocksForRange(day(t, "2026-01-05"), day(t, "2026-01-05"))
	people := []models.Person{resident("r1", 2), resident("r2", 3), faculty("f1")}
	tmpl := wardTemplate(4, 1)

	set := GenerateCandidates(people, []models.RotationTemplate{tmpl}, nil, blocks)
	require.Len(t, set.Blocks, 2)

	bc, ok := set.ForBlock(blocks[0].ID)
	require.True(t, ok)
	assert.Len(t, bc.Residents, 2)
	assert.Len(t, bc.Supervisors, 1)
	assert.Equal(t, "ward", bc.Template.ID)
}

func TestGenerateCandidatesExcludesAbsent(t *testing.T) {
	blocks := models.BlocksForRange(day(t, "2026-01-05"), day(t, "2026-01-06"))
	people := []models.Person{resident("r1", 2), resident("r2", 2), faculty("f1")}
	absences := models.NewAbsenceIndex([]models.Absence{{
		ID: "ab1", PersonID: "r1", Type: models.AbsenceLeave,
		StartDate: day(t, "2026-01-05"), EndDate: day(t, "2026-01-05"),
	}})

	set := GenerateCandidates(people, []models.RotationTemplate{wardTemplate(4, 1)}, absences, blocks)

	first, ok := set.ForBlock(models.BlockID(day(t, "2026-01-05"), models.SessionAM))
	require.True(t, ok)
	for _, c := range first.Residents {
		assert.NotEqual(t, "r1", c.Person.ID)
	}

	second, ok := set.ForBlock(models.BlockID(day(t, "2026-01-06"), models.SessionAM))
	require.True(t, ok)
	assert.Len(t, second.Residents, 2, "absence over, r1 eligible again")
}

func TestGenerateCandidatesEnforcesPGYFloor(t *testing.T) {
	blocks := models.BlocksForRange(day(t, "2026-01-05"), day(t, "2026-01-05"))
	people := []models.Person{resident("r1", 1), resident("r2", 3), faculty("f1")}
	tmpl := wardTemplate(4, 2)

	set := GenerateCandidates(people, []models.RotationTemplate{tmpl}, nil, blocks)
	bc, ok := set.ForBlock(blocks[0].ID)
	require.True(t, ok)

	require.Len(t, bc.Residents, 1)
	assert.Equal(t, "r2", bc.Residents[0].Person.ID)
	// Faculty are exempt from the PGY floor.
	assert.Len(t, bc.Supervisors, 1)
}

func TestGenerateCandidatesHonoursCredentialValidity(t *testing.T) {
	blocks := models.BlocksForRange(day(t, "2026-01-05"), day(t, "2026-01-06"))
	tmpl := models.RotationTemplate{
		ID: "procedures", Activity: "procedures",
		RequiredCredential: "ACLS", SupervisionRatio: 4, MinPGYLevel: 1,
	}
	certified := resident("r1", 2)
	certified.Credentials = []models.Credential{{
		Tag: "ACLS", ValidFrom: day(t, "2026-01-01"), ValidUntil: day(t, "2026-01-05"),
	}}
	people := []models.Person{certified, faculty("f1")}

	set := GenerateCandidates(people, []models.RotationTemplate{tmpl}, nil, blocks)

	inDate, ok := set.ForBlock(models.BlockID(day(t, "2026-01-05"), models.SessionAM))
	require.True(t, ok)
	assert.Len(t, inDate.Residents, 1)

	expired, ok := set.ForBlock(models.BlockID(day(t, "2026-01-06"), models.SessionAM))
	require.True(t, ok)
	assert.Empty(t, expired.Residents, "credential lapsed the day before")
}

func TestGenerateCandidatesScarcityOrdering(t *testing.T) {
	blocks := models.BlocksForRange(day(t, "2026-01-05"), day(t, "2026-01-06"))
	// r2 is absent on the second day, so it has fewer eligible blocks and
	// must rank ahead of the flexible r1.
	people := []models.Person{resident("r1", 2), resident("r2", 2), faculty("f1")}
	absences := models.NewAbsenceIndex([]models.Absence{{
		ID: "ab1", PersonID: "r2", Type: models.AbsenceLeave,
		StartDate: day(t, "2026-01-06"), EndDate: day(t, "2026-01-06"),
	}})

	set := GenerateCandidates(people, []models.RotationTemplate{wardTemplate(4, 1)}, absences, blocks)

	bc, ok := set.ForBlock(models.BlockID(day(t, "2026-01-05"), models.SessionAM))
	require.True(t, ok)
	require.Len(t, bc.Residents, 2)
	assert.Equal(t, "r2", bc.Residents[0].Person.ID)

	// Blocks with fewer resident candidates come first across the set.
	assert.Len(t, set.Blocks[0].Residents, 1)
}

func TestGenerateCandidatesGoverningTemplate(t *testing.T) {
	blocks := models.BlocksForRange(day(t, "2026-01-05"), day(t, "2026-01-05"))
	senior := wardTemplate(4, 3)
	junior := models.RotationTemplate{ID: "clinic", Activity: "clinic", SupervisionRatio: 4, MinPGYLevel: 1}
	people := []models.Person{resident("r1", 1), resident("r2", 1), resident("r3", 3), faculty("f1")}

	set := GenerateCandidates(people, []models.RotationTemplate{senior, junior}, nil, blocks)
	bc, ok := set.ForBlock(blocks[0].ID)
	require.True(t, ok)

	// The template with the most eligible residents governs the block.
	assert.Equal(t, "clinic", bc.Template.ID)
	assert.Len(t, bc.Residents, 3)
}

func TestFilterPeople(t *testing.T) {
	people := []models.Person{resident("r1", 1), resident("r2", 2), faculty("f1")}

	narrowed := FilterPeople(people, []int{2})
	require.Len(t, narrowed, 2)
	assert.Equal(t, "r2", narrowed[0].ID)
	assert.Equal(t, "f1", narrowed[1].ID, "faculty always pass the PGY filter")

	assert.Len(t, FilterPeople(people, nil), 3)
}

func TestFilterTemplates(t *testing.T) {
	templates := []models.RotationTemplate{wardTemplate(4, 1), {ID: "icu", SupervisionRatio: 1}}

	narrowed := FilterTemplates(templates, []string{"icu"})
	require.Len(t, narrowed, 1)
	assert.Equal(t, "icu", narrowed[0].ID)

	assert.Len(t, FilterTemplates(templates, nil), 2)
}
